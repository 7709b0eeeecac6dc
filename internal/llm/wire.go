package llm

import (
	"banter/internal/chat"
	"banter/internal/tools"
)

// Request is the chat completions request body. Temperature and top_p are
// always sent; max_tokens is omitted when zero.
type Request struct {
	Model       string               `json:"model"`
	Messages    []chat.WireMessage   `json:"messages"`
	Tools       []tools.FunctionSpec `json:"tools,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature float64              `json:"temperature"`
	TopP        float64              `json:"top_p"`
	Stream      bool                 `json:"stream,omitempty"`
}

// Response is the completions response body, shared between the full
// object and streamed chunks (which carry Delta instead of Message).
type Response struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIFault `json:"error,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int            `json:"index"`
	Message      *ChoiceMessage `json:"message,omitempty"`
	Delta        *Delta         `json:"delta,omitempty"` // For streaming
	FinishReason string         `json:"finish_reason"`
}

// ChoiceMessage is the assistant message of a non-streaming response.
type ChoiceMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// Delta is one streamed fragment of the assistant message.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is one tool call, or one streamed fragment of it. Streams
// key fragments by Index; id and name usually arrive in the first fragment
// and arguments accumulate across the rest.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

// FunctionDelta carries the function name and an argument text fragment.
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Usage reports token accounting for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIFault is the provider's in-body error object.
type APIFault struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
