package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"banter/internal/agents"
	"banter/internal/archive"
	"banter/internal/chat"
	"banter/internal/command"
	"banter/internal/config"
	"banter/internal/llm"
	"banter/internal/logging"
	"banter/internal/media"
	"banter/internal/metrics"
	"banter/internal/platform"
	"banter/internal/tools"
)

// ErrNoResponse reports a generation that completed without delivering
// anything to the channel. Guarded attempts treat it as a failure.
var ErrNoResponse = errors.New("generation produced no response")

// Instance is one persona bound to one conversation identity: its
// transcript, its tool registry, its memory notebook, and its save file.
// All generation for an identity is serialized through the instance mutex.
type Instance struct {
	identity string
	uuid     string
	prefix   string
	persona  Persona

	cfg     config.BotConfig
	session *llm.Session
	toolReg *tools.Registry
	extras  []CommandSpec
	metrics *metrics.Metrics
	arch    *archive.Archive
	cache   *media.Cache
	prompts func() config.PromptFiles

	// Memory is the instance's long-term memory notebook. It survives
	// conversation resets.
	Memory *agents.MemoryAgent

	saveDir string

	mu           sync.Mutex
	realtime     map[string]any
	notesVisible bool
}

// Identity returns the conversation key this instance is bound to.
func (inst *Instance) Identity() string { return inst.identity }

// UUID returns the stable instance id assigned at creation.
func (inst *Instance) UUID() string { return inst.uuid }

// Persona returns the instance's character sheet.
func (inst *Instance) Persona() Persona { return inst.persona }

// Tools returns the instance's tool registry.
func (inst *Instance) Tools() *tools.Registry { return inst.toolReg }

// Len returns the transcript length.
func (inst *Instance) Len() int {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.session.Len()
}

// Messages returns a copy of the transcript.
func (inst *Instance) Messages() []chat.Message {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.session.Messages()
}

// NotesVisible reports whether NOTE output is forwarded to the channel.
func (inst *Instance) NotesVisible() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.notesVisible
}

// ToggleNotes flips note visibility and returns the new state.
func (inst *Instance) ToggleNotes() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.notesVisible = !inst.notesVisible
	return inst.notesVisible
}

// UpdateRealtime publishes a key into the realtime block of the system
// prompt, e.g. voice channel membership or platform presence.
func (inst *Instance) UpdateRealtime(key string, value any) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if value == nil {
		delete(inst.realtime, key)
		return
	}
	inst.realtime[key] = value
}

// Reset discards the transcript and re-seeds the greeting exchange. The
// memory notebook is left alone; resets forget the conversation, not the
// relationship.
func (inst *Instance) Reset() error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.seedGreeting()
	return inst.save()
}

// AppendMessage adds a message to the transcript outside a generation
// cycle and persists it. The admin API uses this to inject context.
func (inst *Instance) AppendMessage(msg chat.Message) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.session.Append(msg)
	return inst.save()
}

// Save writes the instance to its save file.
func (inst *Instance) Save() error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.save()
}

// seedGreeting installs the canned opening exchange on an empty transcript.
func (inst *Instance) seedGreeting() {
	inst.session.Replace([]chat.Message{
		chat.MustMessage(chat.RoleAssistant, greetingSeed),
	})
}

// lastAssistantContent returns the content of the most recent assistant
// message, or "" when there is none. Used by reply deduplication.
func (inst *Instance) lastAssistantContent() string {
	msgs := inst.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

// Respond runs one guarded generation attempt for an inbound message: the
// transcript is checkpointed, the model streams through the command
// interpreter, and on any failure the transcript rolls back to the
// checkpoint. Returns whether anything was delivered to the channel.
//
// Text the model leaves outside any command is sent verbatim after the
// stream ends; models drift out of protocol and the words are usually fine.
func (inst *Instance) Respond(ctx context.Context, adapter platform.Adapter, ev *platform.Event, msg chat.Message) (bool, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.respond(ctx, adapter, ev, msg)
}

func (inst *Instance) respond(ctx context.Context, adapter platform.Adapter, ev *platform.Event, msg chat.Message) (bool, error) {
	checkpoint := inst.session.Len()
	start := time.Now()
	inst.metrics.GenerationStarted()

	st := &responseState{inst: inst, adapter: adapter, ev: ev, start: start}
	set := command.NewSet()
	inst.registerBuiltins(set, st)
	for _, spec := range inst.extras {
		if spec.Predicate != nil && !spec.Predicate(inst) {
			continue
		}
		spec := spec
		set.Register(command.Command{
			Name:        spec.Name,
			Field:       spec.Field,
			Description: spec.Description,
			Handler: func(ctx context.Context, data string) error {
				inst.metrics.CommandDispatched(strings.ToLower(spec.Name))
				return spec.Handler(ctx, inst, adapter, ev, data)
			},
		})
	}

	inst.session.SetSystem(inst.systemPrompt(set))
	inst.session.Append(msg)

	_ = adapter.Typing(ctx, ev.Ref.ChannelID)

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chars, errs := inst.session.Stream(genCtx)
	interp := command.New(set)
	defer interp.Close()

	var plain strings.Builder
	var feedErr error
	count := 0
	for r := range chars {
		count++
		passed, err := interp.Feed(genCtx, string(r))
		plain.WriteString(passed)
		if err != nil {
			feedErr = err
			cancel()
			for range chars {
			}
			break
		}
	}
	streamErr := <-errs
	inst.metrics.StreamChars(count)

	err := feedErr
	if err == nil {
		err = streamErr
	}
	if err == nil {
		if leftover := strings.TrimSpace(plain.String()); leftover != "" {
			err = st.send(ctx, leftover)
		}
	}

	if err != nil {
		inst.session.TruncateTo(checkpoint)
		inst.metrics.GenerationFailed()
		return false, err
	}
	if !st.responded {
		inst.session.TruncateTo(checkpoint)
		return false, nil
	}

	inst.metrics.GenerationSucceeded(time.Since(start).Seconds())
	inst.commit(ctx, checkpoint)
	return true, nil
}

// commit archives the new transcript slice and persists the instance.
// Neither failure rolls back delivery; the words are already out.
func (inst *Instance) commit(ctx context.Context, checkpoint int) {
	if inst.arch != nil {
		delta := inst.session.Messages()[checkpoint:]
		if err := inst.arch.AppendAll(ctx, inst.identity, delta); err != nil {
			logging.Bot("instance %s: archive append failed: %v", inst.identity, err)
		}
	}
	if err := inst.save(); err != nil {
		logging.Bot("instance %s: save failed: %v", inst.identity, err)
	}
}

// RespondWithRetry runs guarded attempts up to the configured budget, then
// one final unguarded attempt that sends the raw model output. The failure
// notice goes to the channel only when even the unguarded attempt dies.
// Cancellation (a superseding event) aborts immediately without retrying.
func (inst *Instance) RespondWithRetry(ctx context.Context, adapter platform.Adapter, ev *platform.Event, msg chat.Message) error {
	attempts := inst.cfg.MaxRetries
	if attempts < 1 {
		attempts = 3
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		responded, err := inst.Respond(ctx, adapter, ev, msg)
		if err == nil && responded {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = ErrNoResponse
		}
		lastErr = err
		inst.metrics.GenerationRetried()
		logging.Bot("instance %s: attempt %d/%d failed: %v", inst.identity, i+1, attempts, err)
	}

	if err := inst.respondUnguarded(ctx, adapter, ev, msg); err != nil {
		if ctx.Err() == nil {
			notice := platform.SendOptions{}
			_ = adapter.Send(ctx, ev.Ref.ChannelID, FailureNotice, notice)
		}
		return fmt.Errorf("all attempts failed (last guarded: %v): %w", lastErr, err)
	}
	return nil
}

// respondUnguarded abandons the command protocol: one non-streaming
// completion whose reply text is sent to the channel as-is.
func (inst *Instance) respondUnguarded(ctx context.Context, adapter platform.Adapter, ev *platform.Event, msg chat.Message) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	checkpoint := inst.session.Len()
	inst.metrics.GenerationStarted()
	start := time.Now()

	set := command.NewSet()
	inst.registerBuiltins(set, &responseState{inst: inst, adapter: adapter, ev: ev, start: start})
	inst.session.SetSystem(inst.systemPrompt(set))

	reply, err := inst.session.AskMessage(ctx, msg)
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			err = ErrNoResponse
		}
	}
	if err == nil {
		err = platform.SendWithRetry(ctx, adapter, ev.Ref.ChannelID, reply, platform.SendOptions{}, inst.cfg.SendRetries)
	}
	if err != nil {
		inst.session.TruncateTo(checkpoint)
		inst.metrics.GenerationFailed()
		return err
	}

	inst.metrics.GenerationSucceeded(time.Since(start).Seconds())
	inst.commit(ctx, checkpoint)
	return nil
}
