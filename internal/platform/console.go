package platform

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Console is the in-tree loopback adapter: sends are written to an
// io.Writer and recorded, reactions are logged as text. It backs the
// interactive CLI and the admin API's respond endpoint, and it is the
// reference implementation for adapter tests.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	sends  []string
	onSend func(text string)
	seq    int
}

// NewConsole creates a console adapter writing to out. A nil out discards
// output (sends are still recorded). onSend, when non-nil, observes every
// delivered message.
func NewConsole(out io.Writer, onSend func(text string)) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{out: out, onSend: onSend}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Identity(ev *Event) string { return IdentityFor(ev) }

func (c *Console) Typing(ctx context.Context, channelID string) error { return nil }

// Send writes the text after the requested typing delay.
func (c *Console) Send(ctx context.Context, channelID, text string, opts SendOptions) error {
	if opts.Delay > 0 {
		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.sends = append(c.sends, text)
	onSend := c.onSend
	c.mu.Unlock()

	if _, err := fmt.Fprintln(c.out, text); err != nil {
		return fmt.Errorf("console send: %w", err)
	}
	if onSend != nil {
		onSend(text)
	}
	return nil
}

func (c *Console) React(ctx context.Context, ref MessageRef, emoji string) error {
	_, err := fmt.Fprintf(c.out, "* reacted with %s *\n", emoji)
	return err
}

func (c *Console) FetchAttachments(ctx context.Context, ev *Event) ([][]byte, [][]byte, error) {
	return nil, nil, nil
}

func (c *Console) ReplyContext(ctx context.Context, ev *Event) (*ReplyInfo, error) {
	return nil, nil
}

// IsSelf is always false: console input comes from the operator.
func (c *Console) IsSelf(ev *Event) bool { return false }

// Sends returns a copy of every message delivered so far.
func (c *Console) Sends() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sends))
	copy(out, c.sends)
	return out
}

// ResetSends clears the recorded sends and returns what was there.
func (c *Console) ResetSends() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sends
	c.sends = nil
	return out
}

// NextEvent fabricates an inbound console event for text typed by the
// operator.
func (c *Console) NextEvent(text string) *Event {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return &Event{
		Ref:    MessageRef{ChannelID: "console", MessageID: fmt.Sprintf("console-%d", seq)},
		Sender: UserInfo{ID: "operator", Name: "Operator"},
		Text:   text,
		Time:   time.Now(),
		IsDM:   true,
	}
}
