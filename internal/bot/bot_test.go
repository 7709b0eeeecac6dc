package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"banter/internal/chat"
	"banter/internal/config"
	"banter/internal/llm"
	"banter/internal/platform"
)

// scripted is one scripted model reply. A non-zero status serves an HTTP
// error instead. When hold is set, a streaming reply emits its first chunk,
// then waits for the channel (or client disconnect) before continuing.
type scripted struct {
	content string
	status  int
	hold    chan struct{}
}

// fakeModel is an httptest completions endpoint serving scripted replies in
// order. Streaming and non-streaming requests share the same script.
type fakeModel struct {
	t  *testing.T
	mu sync.Mutex

	served  int
	script  []scripted
	systems []string
	users   []string
}

func newFakeModel(t *testing.T) (*fakeModel, *llm.Client) {
	t.Helper()
	fm := &fakeModel{t: t}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Stream   bool `json:"stream"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		fm.mu.Lock()
		for _, m := range body.Messages {
			var text string
			if json.Unmarshal(m.Content, &text) != nil {
				text = string(m.Content)
			}
			switch m.Role {
			case "system":
				fm.systems = append(fm.systems, text)
			case "user":
				fm.users = append(fm.users, text)
			}
		}
		if fm.served >= len(fm.script) {
			fm.mu.Unlock()
			t.Errorf("unexpected request #%d", fm.served+1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		reply := fm.script[fm.served]
		fm.served++
		fm.mu.Unlock()

		if reply.status != 0 {
			w.WriteHeader(reply.status)
			fmt.Fprint(w, `{"error":{"message":"scripted failure"}}`)
			return
		}

		if !body.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply.content)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		emit := func(text string) {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", mustJSON(text))
			if fl != nil {
				fl.Flush()
			}
		}

		if reply.hold != nil {
			half := len(reply.content) / 2
			emit(reply.content[:half])
			select {
			case <-reply.hold:
			case <-r.Context().Done():
				return
			}
			emit(reply.content[half:])
		} else {
			emit(reply.content)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	client := llm.NewClient(config.LLMConfig{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		Model:         "test-model",
		Temperature:   0.7,
		TopP:          0.9,
		MaxLength:     8000,
		MaxToolRounds: 8,
		Timeout:       "5s",
	})
	return fm, client
}

func mustJSON(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func (fm *fakeModel) reply(content string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.script = append(fm.script, scripted{content: content})
}

func (fm *fakeModel) replyHeld(content string) chan struct{} {
	hold := make(chan struct{})
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.script = append(fm.script, scripted{content: content, hold: hold})
	return hold
}

func (fm *fakeModel) fail(status int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.script = append(fm.script, scripted{status: status})
}

func (fm *fakeModel) lastSystem() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if len(fm.systems) == 0 {
		return ""
	}
	return fm.systems[len(fm.systems)-1]
}

// recorder is a test adapter that records delivery without honoring typing
// delays, so tests never sleep through send pacing.
type recorder struct {
	mu      sync.Mutex
	sends   []string
	reacts  []string
	replies int
	reply   *platform.ReplyInfo
	sendErr error
	seq     int
}

func (r *recorder) Name() string                        { return "test" }
func (r *recorder) Identity(ev *platform.Event) string  { return platform.IdentityFor(ev) }
func (r *recorder) Typing(context.Context, string) error { return nil }
func (r *recorder) IsSelf(*platform.Event) bool          { return false }

func (r *recorder) Send(ctx context.Context, channelID, text string, opts platform.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	if opts.AsReply {
		r.replies++
	}
	r.sends = append(r.sends, text)
	return nil
}

func (r *recorder) React(ctx context.Context, ref platform.MessageRef, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reacts = append(r.reacts, emoji)
	return nil
}

func (r *recorder) FetchAttachments(context.Context, *platform.Event) ([][]byte, [][]byte, error) {
	return nil, nil, nil
}

func (r *recorder) ReplyContext(context.Context, *platform.Event) (*platform.ReplyInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reply, nil
}

func (r *recorder) Sends() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sends))
	copy(out, r.sends)
	return out
}

func (r *recorder) event(text string) *platform.Event {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()
	return &platform.Event{
		Ref:    platform.MessageRef{ChannelID: "chan-1", MessageID: fmt.Sprintf("m-%d", seq)},
		Sender: platform.UserInfo{ID: "u-1", Name: "Sam"},
		Text:   text,
		Time:   time.Now(),
		IsDM:   true,
	}
}

func (r *recorder) channelEvent(text string) *platform.Event {
	ev := r.event(text)
	ev.IsDM = false
	return ev
}

// testRegistry builds a registry over a throwaway state dir.
func testRegistry(t *testing.T, client *llm.Client) (*Registry, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()
	reg := NewRegistry(RegistryDeps{Config: cfg, Client: client})
	return reg, cfg
}

func userMessage(t *testing.T, inst *Instance, rec *recorder, ev *platform.Event) chat.Message {
	t.Helper()
	m, err := inst.BuildEventMessage(context.Background(), rec, ev)
	if err != nil {
		t.Fatalf("BuildEventMessage: %v", err)
	}
	return m
}
