package agent

import (
	"context"
	"encoding/json"

	"github.com/morrisonlaw/clara/pkg/models"
)

// LLMProvider is the reasoning step behind the control loop.
//
// Implementations handle the specifics of an external language-model
// service (Anthropic, OpenAI) while presenting a unified streaming
// interface. The loop treats the provider as an opaque decision oracle:
// given the ordered turn history, the behavioral policy, and the tool
// descriptors, it produces either reply text or tool-call requests.
//
// Implementations must be safe for concurrent use; multiple goroutines
// may call Complete simultaneously for different sessions.
type LLMProvider interface {
	// Complete sends a completion request and streams the response.
	// The returned channel is closed when the response is finished or
	// an error chunk has been delivered.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider identifier used for routing and metrics.
	Name() string

	// SupportsTools reports whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains everything the reasoning step sees: the
// behavioral policy (system prompt), the ordered conversation history,
// and the available tool descriptors.
type CompletionRequest struct {
	// Model selects the LLM model; empty uses the provider default.
	Model string `json:"model"`

	// System is the behavioral policy document. It is configuration,
	// not code: swapping it must never require loop changes.
	System string `json:"system,omitempty"`

	// Messages is the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools lists the tools the reasoning step may request.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the response length; 0 uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionMessage is a single turn presented to the reasoning step.
// Role is "user", "assistant", or "tool".
type CompletionMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// CompletionChunk is one element of a streaming provider response.
// Exactly one of Text, ToolCall, Done, or Error is meaningful per chunk.
type CompletionChunk struct {
	// Text is partial reply text, streamed incrementally.
	Text string `json:"text,omitempty"`

	// ToolCall is a complete tool execution request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done marks successful completion of the stream.
	Done bool `json:"done,omitempty"`

	// Error terminates the stream.
	Error error `json:"-"`
}

// Tool is a named, schema-described side-effecting operation the
// reasoning step may request.
//
// Implementing a Tool:
//
//	type greeter struct{}
//
//	func (greeter) Name() string        { return "greet" }
//	func (greeter) Description() string { return "Greets a caller by name" }
//	func (greeter) Schema() json.RawMessage {
//	    return json.RawMessage(`{
//	        "type": "object",
//	        "properties": {"name": {"type": "string"}},
//	        "required": ["name"]
//	    }`)
//	}
//	func (greeter) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
//	    var in struct{ Name string `json:"name"` }
//	    if err := json.Unmarshal(params, &in); err != nil {
//	        return nil, err
//	    }
//	    return &ToolResult{Content: "Hello, " + in.Name}, nil
//	}
type Tool interface {
	// Name returns the unique tool name used for dispatch.
	Name() string

	// Description tells the reasoning step when the tool applies.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	// Required parameters listed here are enforced at dispatch time.
	Schema() json.RawMessage

	// Execute runs the tool with schema-valid JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the output of one tool execution. Errors are also
// communicated as results with IsError set, so the reasoning step can
// recover gracefully instead of the loop aborting.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ResponseChunk is a streaming output element from the control loop.
// Consumers receive reply text as it is generated, tool results as they
// complete, and a final Done marker. Err carries internal failures for
// logging only; the loop always emits caller-safe fallback Text before
// an Err chunk, so transports never surface raw faults.
type ResponseChunk struct {
	Text       string             `json:"text,omitempty"`
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
	Done       bool               `json:"done,omitempty"`
	Err        error              `json:"-"`
}
