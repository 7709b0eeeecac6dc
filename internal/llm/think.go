package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkFilter drops everything between <think> and </think>, markers
// included, across arbitrary chunk boundaries. It holds back at most
// len(marker)-1 trailing characters: a character is released only once it
// can no longer be part of a marker.
type thinkFilter struct {
	carry    string
	thinking bool
}

// Feed scans one chunk and returns the characters safe to emit.
func (f *thinkFilter) Feed(chunk string) string {
	var out strings.Builder
	text := f.carry + chunk
	f.carry = ""

	for text != "" {
		if f.thinking {
			idx := strings.Index(text, thinkClose)
			if idx < 0 {
				// Keep only a tail that could still become the close marker.
				f.carry = markerTail(text, thinkClose)
				return out.String()
			}
			text = text[idx+len(thinkClose):]
			f.thinking = false
			continue
		}

		idx := strings.Index(text, thinkOpen)
		if idx < 0 {
			tail := markerTail(text, thinkOpen)
			out.WriteString(text[:len(text)-len(tail)])
			f.carry = tail
			return out.String()
		}
		out.WriteString(text[:idx])
		text = text[idx+len(thinkOpen):]
		f.thinking = true
	}

	return out.String()
}

// Flush returns whatever the filter was still holding back. A partial open
// marker at end of stream is ordinary text; anything held inside an
// unterminated think block stays suppressed.
func (f *thinkFilter) Flush() string {
	held := f.carry
	f.carry = ""
	if f.thinking {
		return ""
	}
	return held
}

// markerTail returns the longest suffix of text that is a proper prefix of
// marker.
func markerTail(text, marker string) string {
	max := len(marker) - 1
	if len(text) < max {
		max = len(text)
	}
	for l := max; l > 0; l-- {
		if strings.HasSuffix(text, marker[:l]) {
			return text[len(text)-l:]
		}
	}
	return ""
}

// StripThink removes think blocks from a complete string.
func StripThink(s string) string {
	var f thinkFilter
	return f.Feed(s) + f.Flush()
}
