package bot

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"banter/internal/agents"
	"banter/internal/archive"
	"banter/internal/chat"
	"banter/internal/config"
	"banter/internal/llm"
	"banter/internal/logging"
	"banter/internal/media"
	"banter/internal/metrics"
	"banter/internal/platform"
	"banter/internal/tools"
)

// ToolSpec registers a tool with the registry for fan-out to instances.
// Build runs once per instance so tools can close over instance state; a
// nil Predicate means every instance gets the tool.
type ToolSpec struct {
	Build     func(inst *Instance) *tools.Tool
	Predicate func(inst *Instance) bool
}

// StaticTool wraps an instance-independent tool as a spec.
func StaticTool(t *tools.Tool) ToolSpec {
	return ToolSpec{Build: func(*Instance) *tools.Tool { return t }}
}

// CommandSpec registers an extra bracket command. The handler receives the
// instance and the triggering event; Predicate is re-evaluated on every
// response, so command availability can track instance state. Predicates
// run while the instance lock is held and must not call locking Instance
// methods.
type CommandSpec struct {
	Name        string
	Field       string
	Description string
	Handler     func(ctx context.Context, inst *Instance, adapter platform.Adapter, ev *platform.Event, data string) error
	Predicate   func(inst *Instance) bool
}

// RegistryDeps carries everything instances are built from. Archive and
// Metrics are optional.
type RegistryDeps struct {
	Config  *config.Config
	Client  *llm.Client
	Cache   *media.Cache
	Archive *archive.Archive
	Metrics *metrics.Metrics
	Prompts config.PromptFiles
}

// Registry owns every live instance and the per-channel task slots that
// serialize and supersede generation. It is the only constructor of
// instances.
type Registry struct {
	cfg     *config.Config
	client  *llm.Client
	cache   *media.Cache
	arch    *archive.Archive
	metrics *metrics.Metrics

	mu        sync.Mutex
	prompts   config.PromptFiles
	instances map[string]*Instance
	toolSpecs []ToolSpec
	cmdSpecs  []CommandSpec
	tasks     map[string]*task
}

// NewRegistry creates an empty registry.
func NewRegistry(deps RegistryDeps) *Registry {
	return &Registry{
		cfg:       deps.Config,
		client:    deps.Client,
		cache:     deps.Cache,
		arch:      deps.Archive,
		metrics:   deps.Metrics,
		prompts:   deps.Prompts,
		instances: make(map[string]*Instance),
		tasks:     make(map[string]*task),
	}
}

// SetPrompts swaps the prompt templates. Live instances pick the new
// templates up on their next generation; the prompt watcher calls this.
func (r *Registry) SetPrompts(pf config.PromptFiles) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = pf
}

func (r *Registry) currentPrompts() config.PromptFiles {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts
}

// RegisterTool adds a tool spec. Instances created afterwards get it;
// already-live instances do not.
func (r *Registry) RegisterTool(spec ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolSpecs = append(r.toolSpecs, spec)
}

// RegisterCommand adds an extra bracket command spec.
func (r *Registry) RegisterCommand(spec CommandSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmdSpecs = append(r.cmdSpecs, spec)
}

// Peek returns the live instance for an identity, or nil. Never creates.
func (r *Registry) Peek(identity string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances[identity]
}

// Identities lists the live instance identities.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.instances))
	for id := range r.instances {
		out = append(out, id)
	}
	return out
}

// GetOrCreate returns the instance bound to an identity, creating and
// restoring it on first sight. Tool specs fan out at creation time;
// command specs are carried and filtered per response.
func (r *Registry) GetOrCreate(identity string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[identity]; ok {
		return inst, nil
	}

	inst := &Instance{
		identity:     identity,
		uuid:         uuid.NewString(),
		prefix:       r.cfg.Bot.Prefix,
		persona:      PersonaFromConfig(r.cfg.Persona),
		cfg:          r.cfg.Bot,
		metrics:      r.metrics,
		arch:         r.arch,
		cache:        r.cache,
		prompts:      r.currentPrompts,
		saveDir:      r.cfg.InstancesDir(),
		realtime:     make(map[string]any),
		notesVisible: r.cfg.Bot.NotesDefault,
	}

	inst.Memory = agents.NewMemoryAgent(r.client, filepath.Join(r.cfg.MemoriesDir(), SaveName(inst.prefix, identity)))
	inst.Memory.Load()

	reg := tools.NewRegistry()
	for _, spec := range r.toolSpecs {
		if spec.Predicate != nil && !spec.Predicate(inst) {
			continue
		}
		tool := spec.Build(inst)
		if tool == nil {
			continue
		}
		if err := reg.Register(r.instrument(tool)); err != nil {
			return nil, err
		}
	}
	inst.toolReg = reg
	inst.extras = append([]CommandSpec(nil), r.cmdSpecs...)

	inst.session = llm.NewSession(r.client, llm.SessionOptions{
		Registry:   reg,
		Timestamps: true,
	})
	// Attachment turns stay near the end of outgoing requests so vision
	// and audio context survives budget trims.
	inst.session.SetRearrange(func(m *chat.Message) bool {
		return len(m.Images) > 0 || len(m.Audio) > 0
	}, r.cfg.Bot.RecentWindow)

	if !inst.restore() {
		inst.seedGreeting()
	}

	r.instances[identity] = inst
	logging.Bot("instance created for %s (%d tools)", identity, reg.Count())
	return inst, nil
}

// instrument wraps a tool handler with outcome metrics.
func (r *Registry) instrument(t *tools.Tool) *tools.Tool {
	if r.metrics == nil {
		return t
	}
	inner := t.Handler
	wrapped := *t
	wrapped.Handler = func(ctx context.Context, inv tools.Invocation) (string, error) {
		out, err := inner(ctx, inv)
		r.metrics.ToolCall(t.Name, err == nil)
		return out, err
	}
	return &wrapped
}

// Remove evicts an instance and deletes its save file. Idempotent: a
// never-seen identity still gets its save file cleaned up.
func (r *Registry) Remove(identity string) error {
	r.mu.Lock()
	inst := r.instances[identity]
	delete(r.instances, identity)
	prefix := r.cfg.Bot.Prefix
	dir := r.cfg.InstancesDir()
	r.mu.Unlock()

	path := filepath.Join(dir, SaveName(prefix, identity))
	if inst != nil {
		path = inst.savePath()
	}
	if err := removeIfPresent(path); err != nil {
		return err
	}
	logging.Bot("instance removed for %s", identity)
	return nil
}

// SaveAll persists every live instance concurrently.
func (r *Registry) SaveAll(ctx context.Context) error {
	r.mu.Lock()
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, inst := range insts {
		inst := inst
		g.Go(inst.Save)
	}
	return g.Wait()
}

// Dispatch routes an inbound event: resolve the instance, build the user
// message, and run the response as the channel's current task, superseding
// any generation already running for that channel. Blocks until the
// response finishes or is superseded in turn.
func (r *Registry) Dispatch(ctx context.Context, adapter platform.Adapter, ev *platform.Event) error {
	if adapter.IsSelf(ev) {
		return nil
	}

	inst, err := r.GetOrCreate(adapter.Identity(ev))
	if err != nil {
		return err
	}
	msg, err := inst.BuildEventMessage(ctx, adapter, ev)
	if err != nil {
		return err
	}

	return r.runTask(ctx, ev.Ref.ChannelID, func(taskCtx context.Context) error {
		return inst.RespondWithRetry(taskCtx, adapter, ev, msg)
	})
}
