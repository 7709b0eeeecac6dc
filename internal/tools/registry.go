package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"banter/internal/logging"
)

// Registry holds all available tools and provides lookup functionality.
// It is thread-safe and supports registration at runtime.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Tool
	order  []string
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	r.byName[tool.Name] = tool
	r.order = append(r.order, tool.Name)

	logging.ToolsDebug("Registered tool: %s (category=%s)", tool.Name, tool.Category)
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// All returns all registered tools in registration order.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Filter returns a new registry holding only the tools pred accepts,
// preserving registration order. Tool values are shared, not copied; a nil
// predicate accepts everything.
func (r *Registry) Filter(pred func(*Tool) bool) *Registry {
	filtered := NewRegistry()
	for _, tool := range r.All() {
		if pred == nil || pred(tool) {
			filtered.byName[tool.Name] = tool
			filtered.order = append(filtered.order, tool.Name)
		}
	}
	return filtered
}

// Specs exports every registered tool as an OpenAI function spec, in
// registration order.
func (r *Registry) Specs() []FunctionSpec {
	tools := r.All()
	specs := make([]FunctionSpec, 0, len(tools))
	for _, tool := range tools {
		specs = append(specs, tool.Spec())
	}
	return specs
}

// ParseArgs decodes a JSON argument payload. Empty or blank input decodes
// to an empty map.
func ParseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgParse, err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// Execute runs a tool by name with the given arguments.
// Returns ErrToolNotFound if the tool doesn't exist.
func (r *Registry) Execute(ctx context.Context, name string, args Args) (*ToolResult, error) {
	return r.Invoke(ctx, Invocation{Name: name, Args: args})
}

// Invoke validates the invocation's arguments against the tool's schema,
// applies defaults, and runs the handler.
func (r *Registry) Invoke(ctx context.Context, inv Invocation) (*ToolResult, error) {
	tool := r.Get(inv.Name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, inv.Name)
	}

	start := time.Now()

	if inv.Args == nil {
		inv.Args = Args{}
	}
	tool.applyDefaults(inv.Args)
	if err := tool.checkArgs(inv.Args); err != nil {
		return &ToolResult{
			ToolName:   tool.Name,
			CallID:     inv.ID,
			Error:      err,
			DurationMs: time.Since(start).Milliseconds(),
		}, err
	}

	logging.ToolsDebug("Executing tool: %s", tool.Name)
	result, err := tool.Handler(ctx, inv)

	duration := time.Since(start)
	logging.ToolsDebug("Tool %s completed in %v (success=%v)", tool.Name, duration, err == nil)

	return &ToolResult{
		ToolName:   tool.Name,
		CallID:     inv.ID,
		Result:     result,
		Error:      err,
		DurationMs: duration.Milliseconds(),
	}, err
}
