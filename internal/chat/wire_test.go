package chat

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter/internal/media"
)

func TestToWire_System(t *testing.T) {
	m := MustMessage(RoleSystem, "be nice")
	wire, err := m.ToWire(true)
	require.NoError(t, err)
	assert.Equal(t, "system", wire.Role)
	assert.Equal(t, "be nice", wire.Content)
	assert.Empty(t, wire.ToolCalls)
}

func TestToWire_UserFraming(t *testing.T) {
	m := Message{
		Role:     RoleUser,
		Content:  "what's up",
		Time:     time.Now().Add(-2 * time.Minute),
		Metadata: map[string]any{"from_user": "sam"},
	}
	require.NoError(t, m.Validate())

	wire, err := m.ToWire(true)
	require.NoError(t, err)

	parts, ok := wire.Content.([]ContentPart)
	require.True(t, ok, "user content should be a part array")
	require.Len(t, parts, 1)
	text := parts[0].Text

	assert.True(t, strings.HasPrefix(text, "User: what's up\n"), "got %q", text)
	assert.Contains(t, text, "Sent At: ")
	assert.Contains(t, text, "(2 minutes ago)")
	assert.Contains(t, text, "Metadata:\n```json\n")
	assert.Contains(t, text, `"from_user":"sam"`)
	assert.True(t, strings.HasSuffix(text, "\n```"), "metadata fence should close the block")
}

func TestToWire_TimestampsDisabled(t *testing.T) {
	m := MustMessage(RoleUser, "hey")
	wire, err := m.ToWire(false)
	require.NoError(t, err)

	parts := wire.Content.([]ContentPart)
	assert.Equal(t, "User: hey", parts[0].Text)
}

func TestToWire_AssistantToolCalls(t *testing.T) {
	m := Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{Name: "gif", Arguments: json.RawMessage(`{"query":"cats"}`), Index: 0, ID: "call_1"},
		},
	}
	require.NoError(t, m.Validate())

	wire, err := m.ToWire(true)
	require.NoError(t, err)
	assert.Nil(t, wire.Content)
	require.Len(t, wire.ToolCalls, 1)
	tc := wire.ToolCalls[0]
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "gif", tc.Function.Name)
	assert.JSONEq(t, `{"query":"cats"}`, tc.Function.Arguments)
}

func TestToWire_Tool(t *testing.T) {
	m := Message{Role: RoleTool, Content: `"ok"`, ToolCallID: "call_1"}
	require.NoError(t, m.Validate())

	wire, err := m.ToWire(true)
	require.NoError(t, err)
	assert.Equal(t, "tool", wire.Role)
	assert.Equal(t, `"ok"`, wire.Content)
	assert.Equal(t, "call_1", wire.ToolCallID)
}

func TestToWire_UserWithImage(t *testing.T) {
	cache := newTestMediaCache(t)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	handle, err := cache.PutImage(buf.Bytes())
	require.NoError(t, err)

	m := Message{Role: RoleUser, Content: "look", Time: time.Now(), Images: []*media.Image{handle}}
	wire, err := m.ToWire(false)
	require.NoError(t, err)

	parts := wire.Content.([]ContentPart)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].Type)
	require.NotNil(t, parts[1].ImageURL)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestToWire_MissingImageFails(t *testing.T) {
	cache := newTestMediaCache(t)
	m := Message{
		Role:    RoleUser,
		Content: "look",
		Time:    time.Now(),
		Images:  []*media.Image{cache.Image("feedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface")},
	}
	_, err := m.ToWire(false)
	require.Error(t, err)
}

func TestFormatTimeAgo(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "just now"},
		{time.Second, "1 second ago"},
		{2 * time.Minute, "2 minutes ago"},
		{90 * time.Minute, "1 hour ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{60 * 24 * time.Hour, "2 months ago"},
		{400 * 24 * time.Hour, "1 year ago"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTimeAgo(tc.d), "delta %v", tc.d)
	}
}
