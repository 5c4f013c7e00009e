package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool parameter limits to prevent resource exhaustion.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (1MB).
	MaxToolParamsSize = 1 << 20
)

// ToolRegistry manages the fixed set of named tools with thread-safe
// registration and lookup. Tool schemas are compiled at registration so
// every dispatch validates arguments before execution.
//
// Contract violations (an unknown tool name, oversized or malformed
// parameters, missing required arguments) surface as error ToolResults
// rather than raised faults, so one bad call in a batch never prevents
// dispatch of its siblings and never aborts the control loop.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewToolRegistry creates an empty registry ready for registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry by its name, replacing any
// existing tool with the same name. The tool's parameter schema is
// compiled here; a tool with an invalid schema is rejected.
func (r *ToolRegistry) Register(tool Tool) error {
	compiled, err := jsonschema.CompileString("tool_"+tool.Name(), string(tool.Schema()))
	if err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.schemas[tool.Name()] = compiled
	return nil
}

// Get returns a tool by name and whether it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// AsLLMTools returns all registered tools for passing to the reasoning
// provider as tool descriptors.
func (r *ToolRegistry) AsLLMTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// Execute runs a tool by name with the given JSON parameters after
// validating them against the tool's schema. Validation failures and
// unknown tools are reported as error results, never as errors.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	if len(name) > MaxToolNameLength {
		return &ToolResult{
			Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength),
			IsError: true,
		}, nil
	}
	if len(params) > MaxToolParamsSize {
		return &ToolResult{
			Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
			IsError: true,
		}, nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolResult{
			Content: "tool not found: " + name,
			IsError: true,
		}, nil
	}

	if err := validateToolParams(schema, params); err != nil {
		return &ToolResult{
			Content: fmt.Sprintf("invalid arguments for %s: %v", name, err),
			IsError: true,
		}, nil
	}

	return tool.Execute(ctx, params)
}

// validateToolParams checks raw parameters against a compiled schema.
// An empty parameter payload is treated as an empty object so schemas
// with no required fields accept it.
func validateToolParams(schema *jsonschema.Schema, params json.RawMessage) error {
	if schema == nil {
		return nil
	}
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	var payload any
	if err := json.Unmarshal(params, &payload); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return schema.Validate(payload)
}
