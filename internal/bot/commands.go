package bot

import (
	"context"
	"errors"
	"math"
	"time"

	"banter/internal/command"
	"banter/internal/logging"
	"banter/internal/platform"
)

// responseState tracks one generation attempt's delivery side: whether
// anything was actually sent, and the pacing clock for typing delays.
type responseState struct {
	inst    *Instance
	adapter platform.Adapter
	ev      *platform.Event

	start     time.Time
	lastSend  time.Time
	responded bool
}

// typingDelay computes how long to appear to type before a message of n
// characters goes out. Grows sub-linearly with length and is reduced by the
// time already spent generating, so slow models don't double-wait.
func typingDelay(n int, elapsed time.Duration) time.Duration {
	secs := 0.5 + math.Pow(1.8, math.Log2(1+float64(n)))/10 - elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// send delivers text to the triggering channel with typing simulation. The
// first message of a non-DM response threads under the triggering message.
func (st *responseState) send(ctx context.Context, text string) error {
	base := st.lastSend
	if base.IsZero() {
		base = st.start
	}

	opts := platform.SendOptions{
		Delay: typingDelay(len([]rune(text)), time.Since(base)),
	}
	if !st.responded && !st.ev.IsDM {
		opts.AsReply = true
		opts.ReplyTo = st.ev.Ref
	}

	_ = st.adapter.Typing(ctx, st.ev.Ref.ChannelID)
	if err := platform.SendWithRetry(ctx, st.adapter, st.ev.Ref.ChannelID, text, opts, st.inst.cfg.SendRetries); err != nil {
		return err
	}

	st.responded = true
	st.lastSend = time.Now()
	return nil
}

// registerBuiltins installs SEND, NOTE, and REACT on the per-response set.
func (inst *Instance) registerBuiltins(set *command.Set, st *responseState) {
	set.Register(command.Command{
		Name:        "SEND",
		Field:       "message",
		Description: "deliver a chat message; use several SENDs for separate bubbles",
		Handler: func(ctx context.Context, data string) error {
			if data == "" {
				return nil
			}
			inst.metrics.CommandDispatched("send")
			return st.send(ctx, data)
		},
	})

	set.Register(command.Command{
		Name:        "NOTE",
		Field:       "thoughts",
		Description: "write down a private thought before acting; nobody reads these",
		Handler: func(ctx context.Context, data string) error {
			inst.metrics.CommandDispatched("note")
			logging.BotDebug("instance %s note: %s", inst.identity, data)
			if !inst.notesVisible || data == "" {
				return nil
			}
			// Visible notes skip typing simulation; they are debug output.
			return st.adapter.Send(ctx, st.ev.Ref.ChannelID, "> "+data, platform.SendOptions{})
		},
	})

	set.Register(command.Command{
		Name:        "REACT",
		Field:       "emoji",
		Description: "attach an emoji reaction to the message you are answering",
		Handler: func(ctx context.Context, data string) error {
			if data == "" {
				return nil
			}
			inst.metrics.CommandDispatched("react")
			err := st.adapter.React(ctx, st.ev.Ref, data)
			if err != nil && !errors.Is(err, context.Canceled) {
				// A failed reaction never sinks the whole attempt.
				logging.Bot("instance %s: react failed: %v", inst.identity, err)
			}
			return nil
		},
	})
}
