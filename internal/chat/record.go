package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"banter/internal/media"
)

// MessageRecord is the stable persisted form of a Message. Attachments are
// stored as digests only; FromRecord rebinds them to a cache.
type MessageRecord struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	Metadata   map[string]any   `json:"metadata"`
	Time       float64          `json:"time"`
	Images     []HashRecord     `json:"images"`
	Audio      []HashRecord     `json:"audio"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	ToolCallID *string          `json:"tool_call_id"`
}

// HashRecord is a persisted attachment reference.
type HashRecord struct {
	Hash string `json:"hash"`
}

// ToolCallRecord is a persisted tool call.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
	Index     int    `json:"index"`
	ID        string `json:"id"`
}

// Record converts the message to its persisted form.
func (m *Message) Record() MessageRecord {
	rec := MessageRecord{
		Role:     string(m.Role),
		Metadata: m.Metadata,
		Time:     float64(m.Time.UnixNano()) / 1e9,
		Images:   make([]HashRecord, 0, len(m.Images)),
		Audio:    make([]HashRecord, 0, len(m.Audio)),
	}
	if m.Content != "" || m.Role != RoleAssistant {
		content := m.Content
		rec.Content = &content
	}
	if m.ToolCallID != "" {
		id := m.ToolCallID
		rec.ToolCallID = &id
	}
	for _, img := range m.Images {
		rec.Images = append(rec.Images, HashRecord{Hash: img.Hash})
	}
	for _, aud := range m.Audio {
		rec.Audio = append(rec.Audio, HashRecord{Hash: aud.Hash})
	}
	rec.ToolCalls = make([]ToolCallRecord, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		rec.ToolCalls = append(rec.ToolCalls, ToolCallRecord{
			Name:      tc.Name,
			Arguments: rawToAny(tc.Arguments),
			Index:     tc.Index,
			ID:        tc.ID,
		})
	}
	return rec
}

// FromRecord rebuilds a message from its persisted form, binding attachment
// handles to cache. A nil cache drops attachments rather than failing, so
// transcripts stay loadable when media caching is disabled.
func FromRecord(rec MessageRecord, cache *media.Cache) (Message, error) {
	role := Role(strings.ToLower(rec.Role))
	if !ValidRole(role) {
		return Message{}, fmt.Errorf("invalid persisted role %q", rec.Role)
	}

	m := Message{
		Role:     role,
		Metadata: rec.Metadata,
		Time:     timeFromUnix(rec.Time),
	}
	if rec.Content != nil {
		m.Content = *rec.Content
	}
	if rec.ToolCallID != nil {
		m.ToolCallID = *rec.ToolCallID
	}
	if cache != nil {
		for _, h := range rec.Images {
			if h.Hash == "" {
				continue
			}
			m.Images = append(m.Images, cache.Image(h.Hash))
		}
		for _, h := range rec.Audio {
			if h.Hash == "" {
				continue
			}
			m.Audio = append(m.Audio, cache.Audio(h.Hash))
		}
	}
	for _, tc := range rec.ToolCalls {
		args, err := anyToRaw(tc.Arguments)
		if err != nil {
			return Message{}, fmt.Errorf("invalid persisted tool call %q: %w", tc.Name, err)
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			Name:      tc.Name,
			Arguments: args,
			Index:     tc.Index,
			ID:        tc.ID,
		})
	}

	if err := m.Validate(); err != nil {
		return Message{}, fmt.Errorf("invalid persisted message: %w", err)
	}
	return m, nil
}

func timeFromUnix(f float64) time.Time {
	if f <= 0 {
		return time.Now()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// rawToAny exposes raw JSON as a plain value so records persist arguments
// as an object rather than an escaped string.
func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// Keep whatever the model produced; persistence should not be
		// stricter than the dispatch path.
		return string(raw)
	}
	return v
}

func anyToRaw(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
