package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter/internal/media"
)

func TestRecord_RoundTrip(t *testing.T) {
	cache := newTestMediaCache(t)

	sent := time.Unix(1720000000, 250_000_000)
	original := Message{
		Role:    RoleUser,
		Content: "check this out",
		Metadata: map[string]any{
			"from_user": "sam",
			"in_reply_to": map[string]any{
				"author":  "banter",
				"content": "earlier reply",
			},
		},
		Time:   sent,
		Images: []*media.Image{cache.Image("aabbcc")},
		Audio:  []*media.Audio{cache.Audio("ddeeff")},
	}
	require.NoError(t, original.Validate())

	// Through JSON, as the registry persists it.
	data, err := json.Marshal(original.Record())
	require.NoError(t, err)
	var rec MessageRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	restored, err := FromRecord(rec, cache)
	require.NoError(t, err)

	assert.Equal(t, original.Role, restored.Role)
	assert.Equal(t, original.Content, restored.Content)
	if diff := cmp.Diff(original.Metadata, restored.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, sent.Unix(), restored.Time.Unix())
	require.Len(t, restored.Images, 1)
	assert.Equal(t, "aabbcc", restored.Images[0].Hash)
	require.Len(t, restored.Audio, 1)
	assert.Equal(t, "ddeeff", restored.Audio[0].Hash)
}

func TestRecord_ToolCallsPersistAsObjects(t *testing.T) {
	m := Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{Name: "wiki_search", Arguments: json.RawMessage(`{"query":"go"}`), Index: 0, ID: "call_9"},
		},
	}
	require.NoError(t, m.Validate())

	data, err := json.Marshal(m.Record())
	require.NoError(t, err)

	// Arguments must persist as a JSON object, not an escaped string.
	assert.Contains(t, string(data), `"arguments":{"query":"go"}`)
	// Assistant tool-call messages persist a null content.
	assert.Contains(t, string(data), `"content":null`)

	var rec MessageRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	restored, err := FromRecord(rec, nil)
	require.NoError(t, err)
	require.Len(t, restored.ToolCalls, 1)
	assert.Equal(t, "wiki_search", restored.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"go"}`, string(restored.ToolCalls[0].Arguments))
	assert.Equal(t, "call_9", restored.ToolCalls[0].ID)
}

func TestFromRecord_InvalidRole(t *testing.T) {
	content := "x"
	_, err := FromRecord(MessageRecord{Role: "narrator", Content: &content}, nil)
	require.Error(t, err)
}

func TestFromRecord_RoleCaseInsensitive(t *testing.T) {
	content := "x"
	m, err := FromRecord(MessageRecord{Role: "USER", Content: &content, Time: 1720000000}, nil)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, m.Role)
}

func TestFromRecord_NilCacheDropsAttachments(t *testing.T) {
	content := "x"
	rec := MessageRecord{
		Role:    "user",
		Content: &content,
		Time:    1720000000,
		Images:  []HashRecord{{Hash: "aa"}},
	}
	m, err := FromRecord(rec, nil)
	require.NoError(t, err)
	assert.Empty(t, m.Images)
}

func TestFromRecord_ZeroTimeDefaultsToNow(t *testing.T) {
	content := "x"
	before := time.Now()
	m, err := FromRecord(MessageRecord{Role: "user", Content: &content}, nil)
	require.NoError(t, err)
	assert.False(t, m.Time.Before(before.Add(-time.Second)))
}
