package command

import (
	"context"
	"fmt"
	"strings"

	"banter/internal/logging"
)

// Interpreter scans a streamed character sequence for bracket commands.
// A `[` opens a command and raises the nesting depth; while the depth is
// non-zero every character accumulates into the command buffer. The `]`
// that returns the depth to zero completes the command: the buffer (minus
// the outer brackets) splits at its first colon into name and data, both
// trimmed, and the named handler runs to completion before scanning
// resumes. Characters outside any command pass through unchanged.
//
// The interpreter keeps its state across Feed calls, so chunk boundaries
// never affect parsing.
type Interpreter struct {
	set   *Set
	depth int
	buf   strings.Builder
}

// New returns an interpreter dispatching into set.
func New(set *Set) *Interpreter {
	return &Interpreter{set: set}
}

// Feed scans one chunk. It returns the chunk's pass-through characters and
// the first error raised: a *ProtocolError for an unknown command, or the
// handler's own error. After an error the caller should stop feeding.
func (ip *Interpreter) Feed(ctx context.Context, chunk string) (string, error) {
	var out strings.Builder

	for _, r := range chunk {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}

		if r == '[' {
			ip.depth++
		}

		if ip.depth != 0 {
			ip.buf.WriteRune(r)
		} else {
			out.WriteRune(r)
		}

		if r == ']' && ip.depth > 0 {
			ip.depth--
			if ip.depth == 0 {
				if err := ip.dispatch(ctx); err != nil {
					return out.String(), err
				}
			}
		}
	}

	return out.String(), nil
}

// dispatch completes the buffered command and runs its handler.
func (ip *Interpreter) dispatch(ctx context.Context) error {
	raw := ip.buf.String()
	ip.buf.Reset()

	// Strip the outer brackets; nested ones stay part of the data.
	inner := raw[1 : len(raw)-1]

	name := inner
	data := ""
	if idx := strings.Index(inner, ":"); idx >= 0 {
		name = inner[:idx]
		data = strings.TrimSpace(inner[idx+1:])
	}
	name = strings.TrimSpace(name)

	cmd, ok := ip.set.Get(name)
	if !ok {
		logging.Command("unknown command %q", name)
		return &ProtocolError{Name: name}
	}

	logging.CommandDebug("dispatch %s (%d bytes of data)", cmd.Name, len(data))
	if err := cmd.Handler(ctx, data); err != nil {
		return fmt.Errorf("command %s: %w", cmd.Name, err)
	}
	return nil
}

// Pending reports whether a command is still open. Streams that end with a
// non-zero depth simply drop the partial command.
func (ip *Interpreter) Pending() bool {
	return ip.depth != 0
}

// Close discards any partial command, returning the interpreter to its
// initial state.
func (ip *Interpreter) Close() {
	if ip.depth != 0 {
		logging.CommandDebug("discarding unterminated command (%d buffered bytes)", ip.buf.Len())
	}
	ip.depth = 0
	ip.buf.Reset()
}

// Run wires the interpreter to channels for stream plumbing: chunks from
// in are scanned as they arrive, pass-through characters are emitted one
// rune at a time on the first returned channel, and the first error (if
// any) arrives on the second before both close. An unterminated command at
// end of input is discarded.
func (ip *Interpreter) Run(ctx context.Context, in <-chan string) (<-chan rune, <-chan error) {
	out := make(chan rune)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		defer ip.Close()

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			case chunk, ok := <-in:
				if !ok {
					return
				}
				pass, err := ip.Feed(ctx, chunk)
				for _, r := range pass {
					select {
					case out <- r:
					case <-ctx.Done():
						errc <- ctx.Err()
						return
					}
				}
				if err != nil {
					errc <- err
					return
				}
			}
		}
	}()

	return out, errc
}
