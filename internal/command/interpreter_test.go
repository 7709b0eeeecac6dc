package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	name string
	data string
}

func newRecordingSet(t *testing.T, names ...string) (*Set, *[]recorded) {
	t.Helper()
	var calls []recorded
	set := NewSet()
	for _, name := range names {
		name := name
		err := set.Register(Command{
			Name:  name,
			Field: "data",
			Handler: func(ctx context.Context, data string) error {
				calls = append(calls, recorded{name: name, data: data})
				return nil
			},
		})
		require.NoError(t, err)
	}
	return set, &calls
}

func feedAll(t *testing.T, ip *Interpreter, chunks ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	for _, chunk := range chunks {
		pass, err := ip.Feed(context.Background(), chunk)
		out.WriteString(pass)
		if err != nil {
			return out.String(), err
		}
	}
	return out.String(), nil
}

func TestInterpreter_PassThrough(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	out, err := feedAll(t, ip, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Empty(t, *calls)
}

func TestInterpreter_SimpleCommand(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	out, err := feedAll(t, ip, "[SEND: hi there]")
	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, *calls, 1)
	assert.Equal(t, recorded{name: "SEND", data: "hi there"}, (*calls)[0])
}

func TestInterpreter_NestedBracketsStayInData(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	out, err := feedAll(t, ip, "[SEND: outer [inner] still-outer]")
	require.NoError(t, err)
	assert.Empty(t, out, "nothing should pass through")
	require.Len(t, *calls, 1)
	assert.Equal(t, "outer [inner] still-outer", (*calls)[0].data)
}

func TestInterpreter_UnknownCommandIsProtocolError(t *testing.T) {
	set, _ := newRecordingSet(t, "SEND")
	ip := New(set)

	_, err := feedAll(t, ip, "[NONE]")
	require.Error(t, err)
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "NONE", perr.Name)
}

func TestInterpreter_ChunkBoundariesDoNotMatter(t *testing.T) {
	input := "before [SEND: split across chunks] after"

	// Scan once with the whole string, then once per rune; results must match.
	wholeSet, wholeCalls := newRecordingSet(t, "SEND")
	wholeOut, err := feedAll(t, New(wholeSet), input)
	require.NoError(t, err)

	splitSet, splitCalls := newRecordingSet(t, "SEND")
	ipSplit := New(splitSet)
	var chunks []string
	for _, r := range input {
		chunks = append(chunks, string(r))
	}
	splitOut, err := feedAll(t, ipSplit, chunks...)
	require.NoError(t, err)

	assert.Equal(t, wholeOut, splitOut)
	assert.Equal(t, *wholeCalls, *splitCalls)
	assert.Equal(t, "before  after", splitOut)
	require.Len(t, *splitCalls, 1)
	assert.Equal(t, "split across chunks", (*splitCalls)[0].data)
}

func TestInterpreter_CaseInsensitiveLookup(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	_, err := feedAll(t, ip, "[send: lower]", "[SeNd: mixed]")
	require.NoError(t, err)
	require.Len(t, *calls, 2)
	assert.Equal(t, "lower", (*calls)[0].data)
	assert.Equal(t, "mixed", (*calls)[1].data)
}

func TestInterpreter_CommandWithoutData(t *testing.T) {
	set, calls := newRecordingSet(t, "RESET")
	ip := New(set)

	_, err := feedAll(t, ip, "[RESET]")
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, "", (*calls)[0].data)
}

func TestInterpreter_DataKeepsLaterColons(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	_, err := feedAll(t, ip, "[SEND: see https://example.com:8080/x]")
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, "see https://example.com:8080/x", (*calls)[0].data)
}

func TestInterpreter_UnterminatedCommandDiscarded(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	out, err := feedAll(t, ip, "before [SEND: never finished")
	require.NoError(t, err)
	assert.Equal(t, "before ", out)
	assert.True(t, ip.Pending())

	ip.Close()
	assert.False(t, ip.Pending())
	assert.Empty(t, *calls)
}

func TestInterpreter_StrayClosingBracketPassesThrough(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	out, err := feedAll(t, ip, "a] b [SEND: x] c]")
	require.NoError(t, err)
	assert.Equal(t, "a] b  c]", out)
	require.Len(t, *calls, 1)
}

func TestInterpreter_HandlerErrorWrapped(t *testing.T) {
	set := NewSet()
	boom := errors.New("boom")
	require.NoError(t, set.Register(Command{
		Name:  "SEND",
		Field: "message",
		Handler: func(ctx context.Context, data string) error {
			return boom
		},
	}))
	ip := New(set)

	_, err := feedAll(t, ip, "[SEND: x]")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	var perr *ProtocolError
	assert.False(t, errors.As(err, &perr), "handler errors are not protocol errors")
}

func TestInterpreter_CommandsDispatchInCloseOrder(t *testing.T) {
	set, calls := newRecordingSet(t, "A", "B")
	ip := New(set)

	_, err := feedAll(t, ip, "[A:1] mid [B:2]")
	require.NoError(t, err)
	require.Len(t, *calls, 2)
	assert.Equal(t, "A", (*calls)[0].name)
	assert.Equal(t, "B", (*calls)[1].name)
}

func TestInterpreter_CancelledContextStopsDispatch(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ip.Feed(ctx, "[SEND: x]")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *calls)
}

func TestInterpreter_Run(t *testing.T) {
	set, calls := newRecordingSet(t, "SEND")
	ip := New(set)

	in := make(chan string)
	go func() {
		defer close(in)
		in <- "he"
		in <- "llo [SE"
		in <- "ND: streamed] bye"
	}()

	out, errc := ip.Run(context.Background(), in)
	var got strings.Builder
	for r := range out {
		got.WriteRune(r)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, "hello  bye", got.String())
	require.Len(t, *calls, 1)
	assert.Equal(t, "streamed", (*calls)[0].data)
}

func TestInterpreter_RunSurfacesProtocolError(t *testing.T) {
	set, _ := newRecordingSet(t, "SEND")
	ip := New(set)

	in := make(chan string, 1)
	in <- "[NOPE]"
	close(in)

	out, errc := ip.Run(context.Background(), in)
	for range out {
	}
	err := <-errc
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "NOPE", perr.Name)
}

func TestSet_PromptLines(t *testing.T) {
	set := NewSet()
	noop := func(ctx context.Context, data string) error { return nil }
	require.NoError(t, set.Register(Command{Name: "SEND", Field: "message", Description: "send a message", Handler: noop}))
	require.NoError(t, set.Register(Command{Name: "REACT", Field: "emoji", Handler: noop}))

	prompt := set.PromptLines()
	lines := strings.Split(prompt, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "- [SEND:<message>]: send a message", lines[0])
	assert.Equal(t, "- [REACT:<emoji>]: no description", lines[1])
}

func TestSet_RegisterValidation(t *testing.T) {
	set := NewSet()
	noop := func(ctx context.Context, data string) error { return nil }

	require.Error(t, set.Register(Command{Field: "x", Handler: noop}))
	require.Error(t, set.Register(Command{Name: "X", Field: "x"}))

	require.NoError(t, set.Register(Command{Name: "X", Field: "a", Handler: noop}))
	require.NoError(t, set.Register(Command{Name: "x", Field: "b", Handler: noop}))
	assert.Equal(t, 1, set.Len(), "re-registering replaces, case-insensitively")

	cmd, ok := set.Get("X")
	require.True(t, ok)
	assert.Equal(t, "b", cmd.Field)
}

func TestProtocolError_Message(t *testing.T) {
	err := &ProtocolError{Name: "FOO"}
	assert.Equal(t, fmt.Sprintf("the command %q is not implemented", "FOO"), err.Error())
}
