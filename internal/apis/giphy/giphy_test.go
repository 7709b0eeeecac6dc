package giphy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter/internal/config"
)

func TestSearchParsesResults(t *testing.T) {
	var gotQuery, gotKey, gotRating string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gifs/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("api_key")
		gotRating = r.URL.Query().Get("rating")
		w.Write([]byte(`{"data":[
			{"id":"abc123","slug":"cat-dance","title":"Cat Dance","rating":"pg"},
			{"id":"","slug":"broken","title":"no id"},
			{"id":"def456","slug":"dog-spin","title":"Dog Spin","rating":"g"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(config.GiphyConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Rating:  "pg-13",
		Limit:   5,
	})
	require.True(t, client.Enabled())

	results, err := client.Search(context.Background(), "cats")
	require.NoError(t, err)

	assert.Equal(t, "cats", gotQuery)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "pg-13", gotRating)

	require.Len(t, results, 2) // entry without id is dropped
	assert.Equal(t, "https://i.giphy.com/abc123.webp", results[0].URL)
	assert.Equal(t, "Cat Dance", results[0].Title)
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(config.GiphyConfig{APIKey: "k", BaseURL: server.URL})
	_, err := client.Search(context.Background(), "cats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSearchWithoutKey(t *testing.T) {
	client := NewClient(config.GiphyConfig{})
	assert.False(t, client.Enabled())

	_, err := client.Search(context.Background(), "cats")
	require.Error(t, err)
}
