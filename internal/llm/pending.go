package llm

import (
	"sort"
	"strings"
)

// PendingToolCall accumulates one streamed tool call from its fragments.
// The id and name usually arrive whole in the first fragment; argument
// text arrives in pieces and is appended in order.
type PendingToolCall struct {
	Index int
	ID    string
	Name  string

	args strings.Builder
}

// Arguments returns the accumulated argument text.
func (p *PendingToolCall) Arguments() string {
	return p.args.String()
}

// appendArguments adds one argument fragment.
func (p *PendingToolCall) appendArguments(fragment string) {
	p.args.WriteString(fragment)
}

// callAccumulator assembles streamed tool call fragments keyed by index.
// A fragment for an index not seen before finalizes every pending call
// with a lower index: the stream has moved on, so those calls are
// complete.
type callAccumulator struct {
	pending map[int]*PendingToolCall
}

func newCallAccumulator() *callAccumulator {
	return &callAccumulator{pending: make(map[int]*PendingToolCall)}
}

// Add merges one fragment and returns the calls it finalized, in index
// order.
func (a *callAccumulator) Add(delta ToolCallDelta) []*PendingToolCall {
	var done []*PendingToolCall

	call, seen := a.pending[delta.Index]
	if !seen {
		done = a.finalizeBelow(delta.Index)
		call = &PendingToolCall{Index: delta.Index}
		a.pending[delta.Index] = call
	}

	if delta.ID != "" {
		call.ID = delta.ID
	}
	call.Name += delta.Function.Name
	call.appendArguments(delta.Function.Arguments)

	return done
}

// Drain finalizes every call still pending at end of stream and returns
// them in index order.
func (a *callAccumulator) Drain() []*PendingToolCall {
	return a.finalizeBelow(int(^uint(0) >> 1))
}

func (a *callAccumulator) finalizeBelow(bound int) []*PendingToolCall {
	var indexes []int
	for idx := range a.pending {
		if idx < bound {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)

	var done []*PendingToolCall
	for _, idx := range indexes {
		done = append(done, a.pending[idx])
		delete(a.pending, idx)
	}
	return done
}
