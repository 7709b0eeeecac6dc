package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter/internal/archive"
	"banter/internal/bot"
	"banter/internal/chat"
	"banter/internal/config"
	"banter/internal/llm"
	"banter/internal/metrics"
)

// fakeModel serves queued completion contents, streaming or not.
type fakeModel struct {
	mu    sync.Mutex
	queue []string
}

func (fm *fakeModel) push(content string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.queue = append(fm.queue, content)
}

func (fm *fakeModel) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Stream bool `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		fm.mu.Lock()
		if len(fm.queue) == 0 {
			fm.mu.Unlock()
			t.Error("unexpected model request")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		content := fm.queue[0]
		fm.queue = fm.queue[1:]
		fm.mu.Unlock()

		data, _ := json.Marshal(content)
		if body.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", data)
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, data)
	}
}

type fixture struct {
	fm     *fakeModel
	srv    *Server
	reg    *bot.Registry
	arch   *archive.Archive
	server config.ServerConfig
}

func newFixture(t *testing.T, withArchive bool) *fixture {
	t.Helper()

	fm := &fakeModel{}
	model := httptest.NewServer(fm.handler(t))
	t.Cleanup(model.Close)

	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()
	client := llm.NewClient(config.LLMConfig{
		BaseURL: model.URL, APIKey: "k", Model: "m",
		MaxLength: 8000, MaxToolRounds: 8, Timeout: "5s",
	})

	var arch *archive.Archive
	if withArchive {
		var err error
		arch, err = archive.Open(filepath.Join(cfg.StateDir, "archive.db"))
		require.NoError(t, err)
		t.Cleanup(func() { arch.Close() })
	}

	reg := bot.NewRegistry(bot.RegistryDeps{Config: cfg, Client: client, Archive: arch})
	srv := New(cfg.Server, reg, arch, nil)
	return &fixture{fm: fm, srv: srv, reg: reg, arch: arch, server: cfg.Server}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	var env apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	w, env := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestGetInstance_Unknown(t *testing.T) {
	f := newFixture(t, false)
	w, env := f.do(t, http.MethodGet, "/api/v1/instances/nobody", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "no such instance")
}

func TestRespondAndInspectLifecycle(t *testing.T) {
	f := newFixture(t, false)
	f.fm.push("[SEND: hey!!]")

	w, env := f.do(t, http.MethodPost, "/api/v1/instances/user-1/respond",
		`{"message":"hello there","sender":"Admin"}`)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	msgs := data["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hey!!", msgs[0])

	// the transcript is now inspectable
	w, env = f.do(t, http.MethodGet, "/api/v1/instances/user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := env.Data.(map[string]any)
	assert.Equal(t, "user-1", view["identity"])
	records := view["messages"].([]any)
	assert.GreaterOrEqual(t, len(records), 3, "greeting + user + assistant")

	// listed
	_, env = f.do(t, http.MethodGet, "/api/v1/instances", "")
	ids := env.Data.(map[string]any)["identities"].([]any)
	assert.Contains(t, ids, "user-1")

	// removed
	w, _ = f.do(t, http.MethodDelete, "/api/v1/instances/user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/v1/instances/user-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateInstance(t *testing.T) {
	f := newFixture(t, false)

	w, env := f.do(t, http.MethodPost, "/api/v1/instances/user-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := env.Data.(map[string]any)
	assert.Equal(t, "user-2", view["identity"])
	assert.NotEmpty(t, view["uuid"])
	records := view["messages"].([]any)
	assert.Len(t, records, 1, "fresh instances carry the greeting seed")

	// now visible without creating again
	w, _ = f.do(t, http.MethodGet, "/api/v1/instances/user-2", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAppendMessage(t *testing.T) {
	f := newFixture(t, false)

	w, env := f.do(t, http.MethodPost, "/api/v1/instances/user-3/messages",
		`{"role":"user","content":"context injected by an operator"}`)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, float64(2), env.Data.(map[string]any)["length"], "greeting + injected")

	_, env = f.do(t, http.MethodGet, "/api/v1/instances/user-3", "")
	records := env.Data.(map[string]any)["messages"].([]any)
	last := records[len(records)-1].(map[string]any)
	assert.Equal(t, "user", last["role"])

	// tool turns cannot be injected
	w, _ = f.do(t, http.MethodPost, "/api/v1/instances/user-3/messages",
		`{"role":"tool","content":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// role and content are required
	w, _ = f.do(t, http.MethodPost, "/api/v1/instances/user-3/messages",
		`{"role":"user"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespond_BadRequest(t *testing.T) {
	f := newFixture(t, false)
	w, env := f.do(t, http.MethodPost, "/api/v1/instances/user-1/respond", `{"sender":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
}

func TestResetReturnsAck(t *testing.T) {
	f := newFixture(t, false)
	w, env := f.do(t, http.MethodPost, "/api/v1/instances/user-1/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bot.ResetAck, env.Data.(map[string]any)["ack"])
}

func TestToggleNotes(t *testing.T) {
	f := newFixture(t, false)
	_, env := f.do(t, http.MethodPost, "/api/v1/instances/user-1/notes", "")
	assert.Equal(t, true, env.Data.(map[string]any)["notes_visible"])
	_, env = f.do(t, http.MethodPost, "/api/v1/instances/user-1/notes", "")
	assert.Equal(t, false, env.Data.(map[string]any)["notes_visible"])
}

func TestArchiveSearch(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.arch.Append(context.Background(), "user-1",
		chat.MustMessage(chat.RoleUser, "remember the minecraft seed please")))

	w, env := f.do(t, http.MethodGet, "/api/v1/instances/user-1/archive?q=minecraft", "")
	require.Equal(t, http.StatusOK, w.Code)
	matches := env.Data.(map[string]any)["matches"].([]any)
	require.Len(t, matches, 1)

	// parameter validation
	w, _ = f.do(t, http.MethodGet, "/api/v1/instances/user-1/archive", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/v1/instances/user-1/archive?q=x&limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchiveSearch_Disabled(t *testing.T) {
	f := newFixture(t, false)
	w, env := f.do(t, http.MethodGet, "/api/v1/instances/user-1/archive?q=x", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, env.Error, "not enabled")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, false)

	// rebuild with a tight limit
	cfg := f.server
	cfg.RatePerSecond = 1
	cfg.RateBurst = 1
	srv := New(cfg, f.reg, nil, nil)

	first := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w1 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w1, first)
	assert.Equal(t, http.StatusOK, w1.Code)

	second := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w2, second)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)

	m := metrics.New()
	m.GenerationStarted()
	srv := New(f.server, f.reg, nil, m)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "banter_generations")
}
