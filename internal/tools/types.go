// Package tools defines the structured tool-calling surface exposed to the
// model. Each tool carries a JSON schema; arguments are validated against it
// (required keys present, values type-compatible, defaults applied) before
// the handler runs. The registry exports OpenAI-style function specs for the
// request body.
package tools

import (
	"context"
	"math"
)

// ToolCategory groups tools for per-instance filtering.
type ToolCategory string

const (
	// CategoryGeneral is for tools usable by any instance.
	CategoryGeneral ToolCategory = "general"

	// CategorySearch covers external lookups: gif search, wiki, datasets.
	CategorySearch ToolCategory = "search"

	// CategoryMemory covers long-term memory and transcript recall.
	CategoryMemory ToolCategory = "memory"

	// CategoryMedia covers tools that produce or fetch attachments.
	CategoryMedia ToolCategory = "media"
)

// Property describes a single schema property.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// Args holds decoded tool arguments. Values carry encoding/json types:
// numbers arrive as float64, objects as map[string]any.
type Args map[string]any

// Has reports whether key is present.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// String returns the string value under key, or "" when absent or not a
// string.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the integer value under key, coercing float64 as needed.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the numeric value under key.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the boolean value under key.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Invocation is one validated tool call handed to a handler.
type Invocation struct {
	// ID is the provider-assigned tool call id, echoed back in the tool
	// role reply. Empty for direct invocations.
	ID string

	// Name is the registered tool name.
	Name string

	// Args holds the decoded arguments with schema defaults applied.
	Args Args
}

// Handler runs a validated tool invocation and returns the result text the
// model will see.
type Handler func(ctx context.Context, inv Invocation) (string, error)

// Tool is one callable function exposed to the model.
type Tool struct {
	// Name is the unique identifier, sent as the function name.
	Name string

	// Description explains what the tool does; the model reads this.
	Description string

	// Category groups the tool for per-instance filtering.
	Category ToolCategory

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Handler executes the call.
	Handler Handler
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Handler == nil {
		return ErrToolHandlerNil
	}
	return nil
}

// applyDefaults fills absent optional properties that declare a default.
func (t *Tool) applyDefaults(args Args) {
	for name, prop := range t.Schema.Properties {
		if prop.Default == nil {
			continue
		}
		if _, ok := args[name]; !ok {
			args[name] = prop.Default
		}
	}
}

// checkArgs verifies required keys are present and every known key carries
// a schema-compatible value. Keys the schema does not mention pass
// untouched; models routinely over-supply.
func (t *Tool) checkArgs(args Args) error {
	for _, req := range t.Schema.Required {
		if _, ok := args[req]; !ok {
			return &ArgError{Tool: t.Name, Arg: req, Err: ErrMissingArg}
		}
	}
	for name, val := range args {
		prop, known := t.Schema.Properties[name]
		if !known {
			continue
		}
		if !typeCompatible(prop.Type, val) {
			return &ArgError{Tool: t.Name, Arg: name, Err: ErrArgType}
		}
		if len(prop.Enum) > 0 && !enumAllows(prop.Enum, val) {
			return &ArgError{Tool: t.Name, Arg: name, Err: ErrArgValue}
		}
	}
	return nil
}

// typeCompatible reports whether val satisfies a JSON-schema type name.
// JSON null satisfies any type; handlers decide what absence means.
func typeCompatible(want string, val any) bool {
	if val == nil {
		return true
	}
	switch want {
	case "", "any":
		return true
	case "string":
		_, ok := val.(string)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "number":
		switch val.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := val.(type) {
		case int, int64:
			return true
		case float64:
			return v == math.Trunc(v)
		}
		return false
	case "array":
		_, ok := val.([]any)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	}
	return true
}

// enumAllows reports whether val matches one of the enum values, with
// numeric values compared by magnitude (5 matches 5.0).
func enumAllows(enum []any, val any) bool {
	for _, allowed := range enum {
		if allowed == val {
			return true
		}
		av, aok := toFloat(allowed)
		vv, vok := toFloat(val)
		if aok && vok && av == vv {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ToolResult wraps the result of one invocation with timing metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// CallID echoes the invocation's provider id.
	CallID string

	// Result is the string output from the tool.
	Result string

	// Error is set if validation or the handler failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
