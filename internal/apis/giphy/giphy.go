// Package giphy is a minimal client for the Giphy search API, backing the
// gif tool.
package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"banter/internal/config"
	"banter/internal/logging"
)

// Result is one GIF hit. URL points at the directly embeddable rendition.
type Result struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Rating string `json:"rating"`
	URL    string `json:"url"`
}

// Client calls the Giphy REST API.
type Client struct {
	baseURL    string
	apiKey     string
	rating     string
	limit      int
	httpClient *http.Client
}

// NewClient builds a client from config. The caller checks Enabled before
// registering GIF features.
func NewClient(cfg config.GiphyConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.giphy.com/v1"
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		rating:     cfg.Rating,
		limit:      limit,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Search runs gifs/search and returns the hits with embeddable URLs.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("giphy API key not configured")
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(c.limit))
	if c.rating != "" {
		params.Set("rating", c.rating)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/gifs/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create giphy request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("giphy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("giphy returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read giphy response: %w", err)
	}

	var parsed struct {
		Data []struct {
			ID     string `json:"id"`
			Slug   string `json:"slug"`
			Title  string `json:"title"`
			Rating string `json:"rating"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode giphy response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Data))
	for _, gif := range parsed.Data {
		if gif.ID == "" {
			continue
		}
		results = append(results, Result{
			Slug:   gif.Slug,
			Title:  gif.Title,
			Rating: gif.Rating,
			URL:    fmt.Sprintf("https://i.giphy.com/%s.webp", gif.ID),
		})
	}

	logging.ToolsDebug("giphy search %q returned %d results", query, len(results))
	return results, nil
}
