package tools

// FunctionSpec is the OpenAI tools[] entry for one registered tool.
type FunctionSpec struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef carries the function name, description, and parameter schema.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ParametersSpec `json:"parameters"`
}

// ParametersSpec is the JSON-schema object wrapper for the tool's arguments.
type ParametersSpec struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Spec renders the tool as an OpenAI function spec. Properties and required
// always serialize as {} and [] rather than null; some providers reject the
// latter.
func (t *Tool) Spec() FunctionSpec {
	props := t.Schema.Properties
	if props == nil {
		props = map[string]Property{}
	}
	required := t.Schema.Required
	if required == nil {
		required = []string{}
	}
	return FunctionSpec{
		Type: "function",
		Function: FunctionDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters: ParametersSpec{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}
