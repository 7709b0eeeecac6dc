// Package chat defines the transcript message model: roles, tool calls,
// attachments, and the conversions between in-memory, persisted and wire
// forms.
package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"banter/internal/media"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ValidRole reports whether r is one of the four transcript roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is one function invocation requested by the model. Arguments
// hold the accumulated JSON object exactly as the model produced it.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Index     int             `json:"index"`
	ID        string          `json:"id"`
}

// Message is a single transcript entry. Images and audio are handles into
// the media cache; only their digests persist.
type Message struct {
	Role       Role
	Content    string
	Metadata   map[string]any
	Time       time.Time
	Images     []*media.Image
	Audio      []*media.Audio
	ToolCalls  []ToolCall
	ToolCallID string
}

// NewMessage builds a validated message stamped with the current time.
func NewMessage(role Role, content string) (Message, error) {
	m := Message{Role: role, Content: content, Time: time.Now()}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// MustMessage is NewMessage for static content; panics on invalid input.
func MustMessage(role Role, content string) Message {
	m, err := NewMessage(role, content)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate checks the per-role field requirements.
func (m *Message) Validate() error {
	if !ValidRole(m.Role) {
		return fmt.Errorf("invalid role %q", m.Role)
	}

	switch m.Role {
	case RoleSystem:
		if m.Content == "" {
			return fmt.Errorf("system message requires content")
		}
		if m.Metadata != nil {
			return fmt.Errorf("system message cannot carry metadata")
		}
		if len(m.Images) > 0 || len(m.Audio) > 0 {
			return fmt.Errorf("attachments are only allowed on user messages")
		}
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("system message cannot carry tool calls")
		}

	case RoleUser:
		if m.Content == "" {
			return fmt.Errorf("user message requires content")
		}
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("user message cannot carry tool calls")
		}

	case RoleAssistant:
		if m.Metadata != nil {
			return fmt.Errorf("assistant message cannot carry metadata")
		}
		if len(m.Images) > 0 || len(m.Audio) > 0 {
			return fmt.Errorf("attachments are only allowed on user messages")
		}
		if m.ToolCallID != "" {
			return fmt.Errorf("assistant message cannot carry a tool_call_id")
		}
		if len(m.ToolCalls) > 0 && m.Content != "" {
			return fmt.Errorf("assistant message cannot carry both content and tool calls")
		}

	case RoleTool:
		if m.Content == "" {
			return fmt.Errorf("tool message requires content")
		}
		if m.ToolCallID == "" {
			return fmt.Errorf("tool message requires a tool_call_id")
		}
		if m.Metadata != nil || len(m.Images) > 0 || len(m.Audio) > 0 || len(m.ToolCalls) > 0 {
			return fmt.Errorf("tool message carries only content and tool_call_id")
		}
	}

	return nil
}

// attachmentWeight is the budget cost charged per attachment; attachment
// payloads never count byte-for-byte against the history budget.
const attachmentWeight = 200

// BudgetSize estimates this message's footprint in an outgoing request.
func (m *Message) BudgetSize() int {
	return len(m.Role) + len(m.Content) + attachmentWeight*(len(m.Images)+len(m.Audio))
}
