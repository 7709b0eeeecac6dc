package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"banter/internal/chat"
	"banter/internal/config"
	"banter/internal/logging"
	"banter/internal/tools"
)

// cutOffMarker prefixes a message whose content had to be truncated to fit
// the context budget.
const cutOffMarker = "[this message was cut off] "

// attachmentWeight mirrors chat.Message.BudgetSize.
const attachmentWeight = 200

// SessionOptions configures a session beyond what the client carries.
type SessionOptions struct {
	// Registry supplies the callable tools; nil or empty sends none.
	Registry *tools.Registry

	// Timestamps adds "Sent At" framing lines to outgoing user messages.
	Timestamps bool
}

// Session owns one model conversation: the transcript, the context budget,
// system prompt placement, and the request/response cycle including tool
// call rounds. A session is not safe for concurrent use; callers serialize
// access (instances run one generation at a time).
type Session struct {
	client     *Client
	cfg        config.LLMConfig
	registry   *tools.Registry
	timestamps bool

	system   string
	messages []chat.Message

	rearrange  func(*chat.Message) bool
	rearrangeN int
}

// NewSession creates a session on the given client.
func NewSession(client *Client, opts SessionOptions) *Session {
	return &Session{
		client:     client,
		cfg:        client.Config(),
		registry:   opts.Registry,
		timestamps: opts.Timestamps,
	}
}

// SetSystem replaces the system prompt. Empty disables it.
func (s *Session) SetSystem(text string) {
	s.system = text
}

// System returns the current system prompt.
func (s *Session) System() string {
	return s.system
}

// Append adds a message to the transcript.
func (s *Session) Append(msg chat.Message) {
	s.messages = append(s.messages, msg)
}

// Len returns the transcript length.
func (s *Session) Len() int {
	return len(s.messages)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []chat.Message {
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// TruncateTo drops every message past n. Used for checkpoint rollback.
func (s *Session) TruncateTo(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(s.messages) {
		s.messages = s.messages[:n]
	}
}

// Replace swaps in a whole transcript, e.g. one loaded from disk.
func (s *Session) Replace(msgs []chat.Message) {
	s.messages = make([]chat.Message, len(msgs))
	copy(s.messages, msgs)
}

// SetRearrange installs the request rearrangement hook: the last n
// predicate matches move to the end of the outgoing copy. The stored
// transcript is never reordered. A nil predicate disables the hook.
func (s *Session) SetRearrange(pred func(*chat.Message) bool, n int) {
	s.rearrange = pred
	s.rearrangeN = n
}

// Ask appends a user message and runs a non-streaming completion,
// returning the assistant's reply with think blocks stripped. The reply is
// appended to the transcript.
func (s *Session) Ask(ctx context.Context, text string) (string, error) {
	msg, err := chat.NewMessage(chat.RoleUser, text)
	if err != nil {
		return "", err
	}
	return s.AskMessage(ctx, msg)
}

// AskMessage is Ask for a prebuilt message, allowing metadata and
// attachments.
func (s *Session) AskMessage(ctx context.Context, msg chat.Message) (string, error) {
	if msg.Role != chat.RoleUser {
		return "", fmt.Errorf("ask requires a user message, got %s", msg.Role)
	}
	s.messages = append(s.messages, msg)
	return s.generate(ctx, nil)
}

// AskTemporal runs Ask and then restores the transcript to its prior
// state: the question, the reply, and any tool rounds all evaporate.
func (s *Session) AskTemporal(ctx context.Context, text string) (string, error) {
	n := len(s.messages)
	defer func() { s.messages = s.messages[:n] }()
	return s.Ask(ctx, text)
}

// Stream runs a streaming completion over the current transcript. Reply
// characters arrive one rune at a time with think blocks suppressed; tool
// call rounds happen transparently. The first error (if any) is delivered
// on the second channel before both close.
func (s *Session) Stream(ctx context.Context) (<-chan rune, <-chan error) {
	out := make(chan rune, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		emit := func(text string) error {
			for _, r := range text {
				select {
				case out <- r:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}

		if _, err := s.generate(ctx, emit); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

// generate runs completion rounds until the model stops calling tools,
// then returns the final filtered content. When emit is non-nil the rounds
// stream and content is emitted as it clears the think filter.
func (s *Session) generate(ctx context.Context, emit func(string) error) (string, error) {
	maxRounds := s.cfg.MaxToolRounds
	if maxRounds < 1 {
		maxRounds = 8
	}

	for round := 0; round < maxRounds; round++ {
		req, err := s.buildRequest(emit != nil)
		if err != nil {
			return "", err
		}

		var content string
		var started []*startedCall
		if emit != nil {
			content, started, err = s.streamRound(ctx, req, emit)
		} else {
			content, started, err = s.completeRound(ctx, req)
		}
		if err != nil {
			return "", err
		}

		if len(started) == 0 {
			if content != "" {
				s.messages = append(s.messages, assistantText(content))
			}
			return content, nil
		}

		logging.LLMDebug("round %d produced %d tool calls", round, len(started))
		s.appendToolRound(started)
		if content != "" {
			s.messages = append(s.messages, assistantText(content))
		}
	}

	return "", fmt.Errorf("%w (%d)", ErrToolRoundsExceeded, maxRounds)
}

// buildRequest assembles the outgoing request: budget-trimmed transcript,
// rearrangement, wire conversion, and system prompt placement.
func (s *Session) buildRequest(stream bool) (Request, error) {
	msgs := budgetTrim(s.messages, s.cfg.MaxLength*4)

	if s.rearrange != nil {
		msgs = chat.Rearranged(msgs, s.rearrange, s.rearrangeN)
	}

	wire := make([]chat.WireMessage, 0, len(msgs)+1)
	for i := range msgs {
		wm, err := msgs[i].ToWire(s.timestamps)
		if err != nil {
			return Request{}, fmt.Errorf("message %d: %w", i, err)
		}
		wire = append(wire, wm)
	}

	if s.system != "" {
		sys := chat.WireMessage{Role: string(chat.RoleSystem), Content: s.system}
		switch {
		case s.cfg.SystemFirst || len(wire) == 0:
			wire = append([]chat.WireMessage{sys}, wire...)
		default:
			// Keep the system prompt adjacent to the model's context while
			// the final message stays the actual request.
			last := wire[len(wire)-1]
			wire = append(wire[:len(wire)-1], sys, last)
		}
	}

	req := Request{
		Model:       s.cfg.Model,
		Messages:    wire,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		TopP:        s.cfg.TopP,
		Stream:      stream,
	}
	if s.registry != nil && s.registry.Count() > 0 {
		req.Tools = s.registry.Specs()
	}
	return req, nil
}

// budgetTrim keeps the newest messages whose summed estimated size fits
// capBytes. The newest message is always retained; when it alone exceeds
// the cap its content is truncated behind a cut-off marker instead, so a
// non-empty transcript never yields an empty request.
func budgetTrim(msgs []chat.Message, capBytes int) []chat.Message {
	if len(msgs) == 0 || capBytes <= 0 {
		out := make([]chat.Message, len(msgs))
		copy(out, msgs)
		return out
	}

	total := 0
	keepFrom := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		size := msgs[i].BudgetSize()
		if total+size > capBytes {
			break
		}
		total += size
		keepFrom = i
	}

	if keepFrom == len(msgs) {
		// Even the newest message is over budget on its own.
		kept := msgs[len(msgs)-1]
		allowed := capBytes - len(kept.Role) - attachmentWeight*(len(kept.Images)+len(kept.Audio)) - len(cutOffMarker)
		if allowed < 0 {
			allowed = 0
		}
		if allowed < len(kept.Content) {
			kept.Content = cutOffMarker + kept.Content[len(kept.Content)-allowed:]
		}
		logging.Chat("transcript over budget, truncating the only retained message to %d bytes", len(kept.Content))
		return []chat.Message{kept}
	}

	if keepFrom > 0 {
		logging.Chat("unable to fit all messages in one request, dropping %d oldest", keepFrom)
	}
	out := make([]chat.Message, len(msgs)-keepFrom)
	copy(out, msgs[keepFrom:])
	return out
}

// streamRound consumes one streamed completion: content deltas pass the
// think filter and are emitted, tool call fragments accumulate, and
// finalized calls start executing without blocking the stream.
func (s *Session) streamRound(ctx context.Context, req Request, emit func(string) error) (string, []*startedCall, error) {
	chunks, errc := s.client.StreamChunks(ctx, req)

	acc := newCallAccumulator()
	var filter thinkFilter
	var content strings.Builder
	var started []*startedCall

	for chunk := range chunks {
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta == nil {
			continue
		}

		for _, fragment := range choice.Delta.ToolCalls {
			for _, call := range acc.Add(fragment) {
				started = append(started, s.startCall(ctx, call))
			}
		}

		if choice.Delta.Content != "" {
			pass := filter.Feed(choice.Delta.Content)
			if pass != "" {
				content.WriteString(pass)
				if err := emit(pass); err != nil {
					return "", nil, err
				}
			}
		}
	}
	if err := <-errc; err != nil {
		return "", nil, err
	}

	if tail := filter.Flush(); tail != "" {
		content.WriteString(tail)
		if err := emit(tail); err != nil {
			return "", nil, err
		}
	}

	for _, call := range acc.Drain() {
		started = append(started, s.startCall(ctx, call))
	}
	return content.String(), started, nil
}

// completeRound runs one non-streaming completion.
func (s *Session) completeRound(ctx context.Context, req Request) (string, []*startedCall, error) {
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return "", nil, err
	}

	choice := resp.Choices[0]
	if choice.Message == nil {
		return "", nil, nil
	}

	acc := newCallAccumulator()
	var started []*startedCall
	for _, tc := range choice.Message.ToolCalls {
		for _, call := range acc.Add(tc) {
			started = append(started, s.startCall(ctx, call))
		}
	}
	for _, call := range acc.Drain() {
		started = append(started, s.startCall(ctx, call))
	}

	return StripThink(choice.Message.Content), started, nil
}

// startedCall is one tool call executing in the background.
type startedCall struct {
	call   *PendingToolCall
	done   chan struct{}
	result string
}

// startCall launches the call's handler and returns a handle to await.
func (s *Session) startCall(ctx context.Context, call *PendingToolCall) *startedCall {
	sc := &startedCall{call: call, done: make(chan struct{})}
	go func() {
		defer close(sc.done)
		sc.result = s.runTool(ctx, call)
	}()
	return sc
}

// runTool resolves one finalized call to its result text. Failures never
// propagate: the model sees them as content and can react.
func (s *Session) runTool(ctx context.Context, call *PendingToolCall) string {
	if s.registry == nil || !s.registry.Has(call.Name) {
		logging.Tools("Tool '%s' was not found.", call.Name)
		return fmt.Sprintf("Tool '%s' was not found.", call.Name)
	}

	args, err := tools.ParseArgs(call.Arguments())
	if err != nil {
		return fmt.Sprintf("Tool error: %v", err)
	}

	result, err := s.registry.Invoke(ctx, tools.Invocation{ID: call.ID, Name: call.Name, Args: args})
	if err != nil {
		return fmt.Sprintf("Tool error: %v", err)
	}
	return result.Result
}

// appendToolRound waits for the round's calls and appends one assistant
// message carrying all of them, then one tool message per result in call
// order.
func (s *Session) appendToolRound(started []*startedCall) {
	calls := make([]chat.ToolCall, len(started))
	for i, sc := range started {
		args := sc.call.Arguments()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		calls[i] = chat.ToolCall{
			Name:      sc.call.Name,
			Arguments: json.RawMessage(args),
			Index:     sc.call.Index,
			ID:        callID(sc.call),
		}
	}
	s.messages = append(s.messages, chat.Message{
		Role:      chat.RoleAssistant,
		ToolCalls: calls,
		Time:      time.Now(),
	})

	for _, sc := range started {
		<-sc.done
		s.messages = append(s.messages, chat.Message{
			Role:       chat.RoleTool,
			Content:    sc.result,
			ToolCallID: callID(sc.call),
			Time:       time.Now(),
		})
	}
}

func callID(call *PendingToolCall) string {
	if call.ID != "" {
		return call.ID
	}
	return fmt.Sprintf("call_%d", call.Index)
}

func assistantText(content string) chat.Message {
	return chat.Message{Role: chat.RoleAssistant, Content: content, Time: time.Now()}
}
