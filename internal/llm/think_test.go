package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThinkFilter_ChunkBoundaries(t *testing.T) {
	var f thinkFilter
	out := f.Feed("he<thi")
	out += f.Feed("nk>secret</thi")
	out += f.Feed("nk>llo")
	out += f.Flush()
	assert.Equal(t, "hello", out)
}

func TestThinkFilter_RuneByRune(t *testing.T) {
	input := "a<think>hidden</think>b<think>more</think>c"
	var f thinkFilter
	var out string
	for _, r := range input {
		out += f.Feed(string(r))
	}
	out += f.Flush()
	assert.Equal(t, "abc", out)
}

func TestThinkFilter_HoldsBackPossibleMarker(t *testing.T) {
	var f thinkFilter
	assert.Equal(t, "hello ", f.Feed("hello <th"))

	// "<that" can no longer be a marker prefix, so it all comes out.
	assert.Equal(t, "<that", f.Feed("at"))
	assert.Equal(t, "", f.Flush())
}

func TestThinkFilter_FlushReleasesTrailingPartial(t *testing.T) {
	var f thinkFilter
	assert.Equal(t, "done ", f.Feed("done <thin"))
	assert.Equal(t, "<thin", f.Flush(), "a partial marker at end of stream is ordinary text")
}

func TestThinkFilter_UnterminatedBlockSuppressed(t *testing.T) {
	var f thinkFilter
	assert.Equal(t, "before ", f.Feed("before <think>never closed"))
	assert.Equal(t, "", f.Flush())
}

func TestStripThink(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no markers", "plain text", "plain text"},
		{"single block", "a<think>x</think>b", "ab"},
		{"block at start", "<think>reasoning</think>answer", "answer"},
		{"only block", "<think>everything</think>", ""},
		{"nested-looking content", "a<think>I see <brackets></think>b", "ab"},
		{"close without open passes through", "a</think>b", "a</think>b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripThink(tt.input))
		})
	}
}
