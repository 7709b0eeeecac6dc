package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WireMessage is one message in an OpenAI chat.completions request.
// Content is either a plain string or a []ContentPart for multimodal user
// messages.
type WireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ContentPart is one element of a multimodal content array.
type ContentPart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ImageURL   *ImageURLPart   `json:"image_url,omitempty"`
	InputAudio *InputAudioPart `json:"input_audio,omitempty"`
}

// ImageURLPart carries an image as a data: URL.
type ImageURLPart struct {
	URL string `json:"url"`
}

// InputAudioPart carries base64 audio. The format field is what the API
// schema requires, not what the payload actually is.
type InputAudioPart struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// WireToolCall is an assistant tool call in wire form.
type WireToolCall struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	Function WireFunctionCall `json:"function"`
}

// WireFunctionCall holds the function name and its arguments as a JSON
// string, per the OpenAI schema.
type WireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (tc ToolCall) toWire() WireToolCall {
	args := "{}"
	if len(tc.Arguments) > 0 {
		args = string(tc.Arguments)
	}
	return WireToolCall{
		Type: "function",
		ID:   tc.ID,
		Function: WireFunctionCall{
			Name:      tc.Name,
			Arguments: args,
		},
	}
}

// ToWire renders the message for an outgoing request. User messages become
// a content-part array: a text part framing the content with sender label,
// timestamp and metadata, followed by one part per attachment. timestamps
// controls the "Sent At" line.
func (m *Message) ToWire(timestamps bool) (WireMessage, error) {
	wire := WireMessage{Role: string(m.Role)}

	switch m.Role {
	case RoleUser:
		lines := []string{"User: " + m.Content}
		if timestamps {
			sent := m.Time.Format("2006-01-02 15:04:05 MST")
			ago := FormatTimeAgo(time.Since(m.Time))
			lines = append(lines, fmt.Sprintf("Sent At: %s (%s)", sent, ago))
		}
		if m.Metadata != nil {
			meta, err := json.Marshal(m.Metadata)
			if err != nil {
				return WireMessage{}, fmt.Errorf("failed to encode metadata: %w", err)
			}
			lines = append(lines, "Metadata:", "```json", string(meta), "```")
		}

		parts := []ContentPart{{Type: "text", Text: strings.Join(lines, "\n")}}
		for _, img := range m.Images {
			url, err := img.DataURL()
			if err != nil {
				return WireMessage{}, fmt.Errorf("failed to load image %s: %w", img.Hash, err)
			}
			parts = append(parts, ContentPart{
				Type:     "image_url",
				ImageURL: &ImageURLPart{URL: url},
			})
		}
		for _, aud := range m.Audio {
			b64, err := aud.Base64()
			if err != nil {
				return WireMessage{}, fmt.Errorf("failed to load audio %s: %w", aud.Hash, err)
			}
			parts = append(parts, ContentPart{
				Type:       "input_audio",
				InputAudio: &InputAudioPart{Data: b64, Format: "wav"},
			})
		}
		wire.Content = parts

	case RoleAssistant:
		if m.Content != "" {
			wire.Content = m.Content
		} else {
			calls := make([]WireToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, tc.toWire())
			}
			wire.ToolCalls = calls
		}

	case RoleTool:
		wire.Content = m.Content
		wire.ToolCallID = m.ToolCallID

	default:
		wire.Content = m.Content
	}

	return wire, nil
}

// timeAgoPeriods is ordered longest-first; the first period the delta
// reaches wins.
var timeAgoPeriods = []struct {
	name    string
	seconds float64
}{
	{"year", 60 * 60 * 24 * 365},
	{"month", 60 * 60 * 24 * 30},
	{"week", 60 * 60 * 24 * 7},
	{"day", 60 * 60 * 24},
	{"hour", 60 * 60},
	{"minute", 60},
	{"second", 1},
}

// FormatTimeAgo renders a duration as a human-readable "N units ago".
func FormatTimeAgo(d time.Duration) string {
	delta := d.Seconds()
	for _, p := range timeAgoPeriods {
		if delta >= p.seconds {
			howMany := int(delta / p.seconds)
			plural := ""
			if howMany >= 2 {
				plural = "s"
			}
			return fmt.Sprintf("%d %s%s ago", howMany, p.name, plural)
		}
	}
	return "just now"
}
