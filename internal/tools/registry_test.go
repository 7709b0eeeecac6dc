package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func noopHandler(ctx context.Context, inv Invocation) (string, error) {
	return "", nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if reg.Count() != 0 {
		t.Errorf("new registry should be empty, got %d tools", reg.Count())
	}
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	tool := &Tool{
		Name:        "gif",
		Description: "Search for a gif",
		Category:    CategorySearch,
		Handler:     noopHandler,
	}

	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got := reg.Get("gif")
	if got == nil {
		t.Fatal("Get returned nil for registered tool")
	}
	if got.Name != "gif" {
		t.Errorf("got name %q, want %q", got.Name, "gif")
	}
	if !reg.Has("gif") {
		t.Error("Has returned false for registered tool")
	}
	if reg.Has("nope") {
		t.Error("Has returned true for unregistered tool")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	tool := &Tool{Name: "dupe", Handler: noopHandler}
	if err := reg.Register(tool); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := reg.Register(tool)
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Fatalf("expected ErrToolAlreadyRegistered, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name    string
		tool    *Tool
		wantErr error
	}{
		{
			name:    "empty name",
			tool:    &Tool{Name: "", Handler: noopHandler},
			wantErr: ErrToolNameEmpty,
		},
		{
			name:    "nil handler",
			tool:    &Tool{Name: "test", Handler: nil},
			wantErr: ErrToolHandlerNil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.tool)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAllPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		reg.MustRegister(&Tool{Name: name, Handler: noopHandler})
	}

	all := reg.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(all))
	}
	for i, want := range []string{"charlie", "alpha", "bravo"} {
		if all[i].Name != want {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].Name, want)
		}
	}

	names := reg.Names()
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if names[i] != want {
			t.Errorf("Names()[%d] = %s, want %s (sorted)", i, names[i], want)
		}
	}
}

func TestExecute(t *testing.T) {
	reg := NewRegistry()

	tool := &Tool{
		Name:     "echo",
		Category: CategoryGeneral,
		Handler: func(ctx context.Context, inv Invocation) (string, error) {
			return "Echo: " + inv.Args.String("message"), nil
		},
		Schema: ToolSchema{
			Required:   []string{"message"},
			Properties: map[string]Property{"message": {Type: "string"}},
		},
	}

	reg.MustRegister(tool)

	result, err := reg.Execute(context.Background(), "echo", Args{"message": "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Result != "Echo: hello" {
		t.Errorf("got result %q, want %q", result.Result, "Echo: hello")
	}
	if !result.IsSuccess() {
		t.Error("expected IsSuccess to be true")
	}

	// Missing required argument fails before the handler runs.
	result, err = reg.Execute(context.Background(), "echo", Args{})
	if !errors.Is(err, ErrMissingArg) {
		t.Errorf("expected ErrMissingArg, got %v", err)
	}
	var argErr *ArgError
	if !errors.As(err, &argErr) || argErr.Arg != "message" {
		t.Errorf("expected ArgError naming message, got %v", err)
	}
	if result == nil || result.IsSuccess() {
		t.Error("expected failed result for missing arg")
	}

	// Unknown tool.
	_, err = reg.Execute(context.Background(), "nonexistent", Args{})
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestInvoke_AppliesDefaults(t *testing.T) {
	reg := NewRegistry()
	var seen Args
	reg.MustRegister(&Tool{
		Name: "search",
		Handler: func(ctx context.Context, inv Invocation) (string, error) {
			seen = inv.Args
			return "", nil
		},
		Schema: ToolSchema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {Type: "string"},
				"limit": {Type: "integer", Default: 5},
			},
		},
	})

	_, err := reg.Invoke(context.Background(), Invocation{
		ID:   "call_1",
		Name: "search",
		Args: Args{"query": "cats"},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if seen.Int("limit") != 5 {
		t.Errorf("default not applied: limit = %d, want 5", seen.Int("limit"))
	}
	if seen.String("query") != "cats" {
		t.Errorf("query = %q, want cats", seen.String("query"))
	}
}

func TestInvoke_TypeAndEnumChecks(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name:    "resize",
		Handler: noopHandler,
		Schema: ToolSchema{
			Required: []string{"width"},
			Properties: map[string]Property{
				"width":  {Type: "integer"},
				"mode":   {Type: "string", Enum: []any{"fit", "fill"}},
				"factor": {Type: "number"},
				"tags":   {Type: "array", Items: &PropertyItems{Type: "string"}},
			},
		},
	})

	invoke := func(args Args) error {
		_, err := reg.Invoke(context.Background(), Invocation{Name: "resize", Args: args})
		return err
	}

	if err := invoke(Args{"width": float64(10)}); err != nil {
		t.Errorf("integral float64 should satisfy integer: %v", err)
	}
	if err := invoke(Args{"width": 10.5}); !errors.Is(err, ErrArgType) {
		t.Errorf("fractional width should fail type check, got %v", err)
	}
	if err := invoke(Args{"width": "ten"}); !errors.Is(err, ErrArgType) {
		t.Errorf("string width should fail type check, got %v", err)
	}
	if err := invoke(Args{"width": float64(1), "mode": "fill"}); err != nil {
		t.Errorf("enum member should pass: %v", err)
	}
	if err := invoke(Args{"width": float64(1), "mode": "stretch"}); !errors.Is(err, ErrArgValue) {
		t.Errorf("non-member should fail enum check, got %v", err)
	}
	if err := invoke(Args{"width": float64(1), "factor": 2.5}); err != nil {
		t.Errorf("number should accept float: %v", err)
	}
	if err := invoke(Args{"width": float64(1), "tags": []any{"a"}}); err != nil {
		t.Errorf("array should accept []any: %v", err)
	}
	if err := invoke(Args{"width": float64(1), "tags": "a"}); !errors.Is(err, ErrArgType) {
		t.Errorf("string should fail array check, got %v", err)
	}
	// Null and unknown keys pass through.
	if err := invoke(Args{"width": float64(1), "mode": nil, "extra": 42}); err != nil {
		t.Errorf("null and unknown keys should pass: %v", err)
	}
}

func TestInvoke_HandlerErrorInResult(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("backend down")
	reg.MustRegister(&Tool{
		Name: "flaky",
		Handler: func(ctx context.Context, inv Invocation) (string, error) {
			return "", boom
		},
	})

	result, err := reg.Invoke(context.Background(), Invocation{Name: "flaky"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a result alongside the error")
	}
	if result.IsSuccess() {
		t.Error("result should not report success")
	}
	if result.ToolName != "flaky" {
		t.Errorf("ToolName = %q, want flaky", result.ToolName)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`{"query": "go", "limit": 3}`)
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if args.String("query") != "go" || args.Int("limit") != 3 {
		t.Errorf("unexpected args: %v", args)
	}

	args, err = ParseArgs("")
	if err != nil || len(args) != 0 {
		t.Errorf("empty payload should decode to empty map, got %v, %v", args, err)
	}

	args, err = ParseArgs("null")
	if err != nil || args == nil {
		t.Errorf("null payload should decode to empty map, got %v, %v", args, err)
	}

	if _, err = ParseArgs("{broken"); !errors.Is(err, ErrArgParse) {
		t.Errorf("expected ErrArgParse, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{Name: "gif", Category: CategorySearch, Handler: noopHandler})
	reg.MustRegister(&Tool{Name: "remember", Category: CategoryMemory, Handler: noopHandler})
	reg.MustRegister(&Tool{Name: "wiki_search", Category: CategorySearch, Handler: noopHandler})

	search := reg.Filter(func(tool *Tool) bool { return tool.Category == CategorySearch })
	if search.Count() != 2 {
		t.Fatalf("expected 2 search tools, got %d", search.Count())
	}
	all := search.All()
	if all[0].Name != "gif" || all[1].Name != "wiki_search" {
		t.Errorf("filter should preserve registration order, got %v", []string{all[0].Name, all[1].Name})
	}
	if search.Has("remember") {
		t.Error("filtered registry should not contain memory tools")
	}

	everything := reg.Filter(nil)
	if everything.Count() != 3 {
		t.Errorf("nil predicate should keep all tools, got %d", everything.Count())
	}
}

func TestSpecs(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name:        "gif",
		Description: "Search for a gif",
		Handler:     noopHandler,
		Schema: ToolSchema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {Type: "string", Description: "search terms"},
			},
		},
	})
	reg.MustRegister(&Tool{Name: "bare", Description: "No arguments", Handler: noopHandler})

	specs := reg.Specs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Type != "function" || specs[0].Function.Name != "gif" {
		t.Errorf("unexpected first spec: %+v", specs[0])
	}
	if specs[0].Function.Parameters.Type != "object" {
		t.Errorf("parameters type = %q, want object", specs[0].Function.Parameters.Type)
	}

	// Schema-less tools must still serialize required/properties as [] / {}.
	raw, err := json.Marshal(specs[1])
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(raw), "null") {
		t.Errorf("spec JSON should not contain null: %s", raw)
	}
	if !strings.Contains(string(raw), `"required":[]`) {
		t.Errorf("expected empty required array, got %s", raw)
	}
	if !strings.Contains(string(raw), `"properties":{}`) {
		t.Errorf("expected empty properties object, got %s", raw)
	}
}

func TestArgsGetters(t *testing.T) {
	args := Args{
		"s":     "text",
		"f":     3.9,
		"i":     float64(7),
		"b":     true,
		"wrong": []any{"x"},
	}

	if got := args.String("s"); got != "text" {
		t.Errorf("String = %q", got)
	}
	if got := args.String("missing"); got != "" {
		t.Errorf("String(missing) = %q, want empty", got)
	}
	if got := args.Int("i"); got != 7 {
		t.Errorf("Int = %d, want 7", got)
	}
	if got := args.Int("f"); got != 3 {
		t.Errorf("Int should truncate float, got %d", got)
	}
	if got := args.Float("f"); got != 3.9 {
		t.Errorf("Float = %v, want 3.9", got)
	}
	if !args.Bool("b") {
		t.Error("Bool = false, want true")
	}
	if args.Bool("wrong") {
		t.Error("Bool on non-bool should be false")
	}
	if !args.Has("wrong") || args.Has("missing") {
		t.Error("Has misreported key presence")
	}
}
