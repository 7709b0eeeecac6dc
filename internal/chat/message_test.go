package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter/internal/media"
)

func TestNewMessage(t *testing.T) {
	t.Run("stamps current time", func(t *testing.T) {
		before := time.Now()
		m, err := NewMessage(RoleUser, "hello")
		require.NoError(t, err)
		assert.Equal(t, RoleUser, m.Role)
		assert.Equal(t, "hello", m.Content)
		assert.False(t, m.Time.Before(before))
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		_, err := NewMessage(Role("narrator"), "hello")
		require.Error(t, err)
	})

	t.Run("rejects empty user content", func(t *testing.T) {
		_, err := NewMessage(RoleUser, "")
		require.Error(t, err)
	})
}

func TestMustMessage_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustMessage(RoleSystem, "")
	})
	assert.NotPanics(t, func() {
		MustMessage(RoleSystem, "prompt")
	})
}

func TestMessage_Validate(t *testing.T) {
	t.Run("system cannot carry metadata", func(t *testing.T) {
		m := Message{Role: RoleSystem, Content: "x", Metadata: map[string]any{"k": "v"}}
		require.Error(t, m.Validate())
	})

	t.Run("user may carry metadata and attachments", func(t *testing.T) {
		c := newTestMediaCache(t)
		m := Message{
			Role:     RoleUser,
			Content:  "look",
			Metadata: map[string]any{"from_user": "sam"},
			Images:   []*media.Image{c.Image("abc")},
		}
		require.NoError(t, m.Validate())
	})

	t.Run("assistant cannot mix content and tool calls", func(t *testing.T) {
		m := Message{
			Role:      RoleAssistant,
			Content:   "hi",
			ToolCalls: []ToolCall{{Name: "gif", ID: "c1"}},
		}
		require.Error(t, m.Validate())

		m.Content = ""
		require.NoError(t, m.Validate())
	})

	t.Run("assistant may be empty", func(t *testing.T) {
		m := Message{Role: RoleAssistant}
		require.NoError(t, m.Validate())
	})

	t.Run("tool requires tool_call_id", func(t *testing.T) {
		m := Message{Role: RoleTool, Content: "result"}
		require.Error(t, m.Validate())

		m.ToolCallID = "c1"
		require.NoError(t, m.Validate())
	})

	t.Run("attachments forbidden outside user", func(t *testing.T) {
		c := newTestMediaCache(t)
		m := Message{Role: RoleAssistant, Content: "x", Images: []*media.Image{c.Image("abc")}}
		require.Error(t, m.Validate())
	})
}

func TestMessage_BudgetSize(t *testing.T) {
	c := newTestMediaCache(t)

	m := Message{Role: RoleUser, Content: "hello"}
	assert.Equal(t, len("user")+len("hello"), m.BudgetSize())

	m.Images = []*media.Image{c.Image("a"), c.Image("b")}
	m.Audio = []*media.Audio{c.Audio("c")}
	assert.Equal(t, len("user")+len("hello")+3*200, m.BudgetSize())
}

func TestRearranged(t *testing.T) {
	mk := func(role Role, content string) Message {
		return Message{Role: role, Content: content, Time: time.Now()}
	}
	msgs := []Message{
		mk(RoleUser, "a"),
		mk(RoleAssistant, "b"),
		mk(RoleUser, "c"),
		mk(RoleAssistant, "d"),
		mk(RoleUser, "e"),
	}
	isUser := func(m *Message) bool { return m.Role == RoleUser }

	t.Run("moves matches to the end preserving order", func(t *testing.T) {
		out := Rearranged(msgs, isUser, 5)
		var contents []string
		for _, m := range out {
			contents = append(contents, m.Content)
		}
		assert.Equal(t, []string{"b", "d", "a", "c", "e"}, contents)
	})

	t.Run("caps selection at n", func(t *testing.T) {
		out := Rearranged(msgs, isUser, 2)
		var contents []string
		for _, m := range out {
			contents = append(contents, m.Content)
		}
		// Only the last two matches move; the earliest user message stays put.
		assert.Equal(t, []string{"a", "b", "d", "c", "e"}, contents)
	})

	t.Run("input is not modified", func(t *testing.T) {
		_ = Rearranged(msgs, isUser, 5)
		assert.Equal(t, "a", msgs[0].Content)
		assert.Equal(t, "e", msgs[4].Content)
	})

	t.Run("nil predicate copies input", func(t *testing.T) {
		out := Rearranged(msgs, nil, 5)
		require.Len(t, out, len(msgs))
		assert.Equal(t, "a", out[0].Content)
	})
}

func newTestMediaCache(t *testing.T) *media.Cache {
	t.Helper()
	c, err := media.NewCache(t.TempDir(), media.Options{})
	require.NoError(t, err)
	return c
}
