package providers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/pkg/models"
)

// mockTool implements agent.Tool for conversion tests.
type mockTool struct {
	name        string
	description string
	schema      json.RawMessage
}

func (m *mockTool) Name() string            { return m.name }
func (m *mockTool) Description() string     { return m.description }
func (m *mockTool) Schema() json.RawMessage { return m.schema }

func (m *mockTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: "test result"}, nil
}

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      AnthropicConfig
		expectError bool
	}{
		{
			name: "valid config",
			config: AnthropicConfig{
				APIKey:       "test-key",
				MaxRetries:   3,
				RetryDelay:   time.Second,
				DefaultModel: "claude-sonnet-4-20250514",
			},
			expectError: false,
		},
		{
			name: "missing API key",
			config: AnthropicConfig{
				MaxRetries: 3,
			},
			expectError: true,
		},
		{
			name: "defaults applied",
			config: AnthropicConfig{
				APIKey: "test-key",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewAnthropicProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if provider.maxRetries <= 0 {
				t.Error("maxRetries should have default value")
			}
			if provider.retryDelay <= 0 {
				t.Error("retryDelay should have default value")
			}
			if provider.defaultModel == "" {
				t.Error("defaultModel should have default value")
			}
		})
	}
}

func TestAnthropicProviderMethods(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if provider.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got '%s'", provider.Name())
	}
	if !provider.SupportsTools() {
		t.Error("expected SupportsTools to return true")
	}
}

func TestAnthropicConvertMessages(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name     string
		messages []agent.CompletionMessage
		wantErr  bool
		wantLen  int
	}{
		{
			name: "simple user message",
			messages: []agent.CompletionMessage{
				{Role: "user", Content: "Hi, I need a lawyer."},
			},
			wantLen: 1,
		},
		{
			name: "system message is skipped",
			messages: []agent.CompletionMessage{
				{Role: "system", Content: "You are Clara."},
				{Role: "user", Content: "Hello!"},
			},
			wantLen: 1,
		},
		{
			name: "assistant turn",
			messages: []agent.CompletionMessage{
				{Role: "user", Content: "Hello!"},
				{Role: "assistant", Content: "Thank you for calling Morrison & Associates."},
			},
			wantLen: 2,
		},
		{
			name: "assistant turn with tool calls",
			messages: []agent.CompletionMessage{
				{
					Role:    "assistant",
					Content: "Let me check availability.",
					ToolCalls: []models.ToolCall{
						{
							ID:    "call_123",
							Name:  "check_availability",
							Input: json.RawMessage(`{"practice_area":"family law"}`),
						},
					},
				},
			},
			wantLen: 1,
		},
		{
			name: "tool turn maps to user message",
			messages: []agent.CompletionMessage{
				{
					Role: "tool",
					ToolResults: []models.ToolResult{
						{
							ToolCallID: "call_123",
							Content:    `{"status":"confirmed"}`,
						},
					},
				},
			},
			wantLen: 1,
		},
		{
			name: "empty turn is dropped",
			messages: []agent.CompletionMessage{
				{Role: "user", Content: ""},
				{Role: "user", Content: "still here?"},
			},
			wantLen: 1,
		},
		{
			name: "invalid tool call JSON",
			messages: []agent.CompletionMessage{
				{
					Role: "assistant",
					ToolCalls: []models.ToolCall{
						{
							ID:    "call_123",
							Name:  "capture_lead",
							Input: json.RawMessage(`invalid json`),
						},
					},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := provider.convertMessages(tt.messages)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != tt.wantLen {
				t.Errorf("expected %d messages, got %d", tt.wantLen, len(result))
			}
		})
	}
}

func TestAnthropicConvertTools(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name    string
		tools   []agent.Tool
		wantErr bool
	}{
		{
			name: "valid tool",
			tools: []agent.Tool{
				&mockTool{
					name:        "check_availability",
					description: "Check consultation slots",
					schema:      json.RawMessage(`{"type":"object","properties":{"practice_area":{"type":"string"}}}`),
				},
			},
		},
		{
			name: "multiple tools",
			tools: []agent.Tool{
				&mockTool{
					name:        "capture_lead",
					description: "Save caller contact details",
					schema:      json.RawMessage(`{"type":"object"}`),
				},
				&mockTool{
					name:        "search_firm_knowledge",
					description: "Look up firm information",
					schema:      json.RawMessage(`{"type":"object"}`),
				},
			},
		},
		{
			name: "invalid schema JSON",
			tools: []agent.Tool{
				&mockTool{
					name:        "broken",
					description: "Broken tool",
					schema:      json.RawMessage(`invalid`),
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := provider.convertTools(tt.tools)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.tools) {
				t.Errorf("expected %d tools, got %d", len(tt.tools), len(result))
			}
		})
	}
}

func TestAnthropicModelDefaults(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if got := provider.getModel(""); got != defaultAnthropicModel {
		t.Errorf("getModel(\"\") = %q, want %q", got, defaultAnthropicModel)
	}
	if got := provider.getModel("claude-3-haiku-20240307"); got != "claude-3-haiku-20240307" {
		t.Errorf("getModel override = %q", got)
	}

	if got := provider.getMaxTokens(0); got != 1024 {
		t.Errorf("getMaxTokens(0) = %d, want 1024", got)
	}
	if got := provider.getMaxTokens(-5); got != 1024 {
		t.Errorf("getMaxTokens(-5) = %d, want 1024", got)
	}
	if got := provider.getMaxTokens(2048); got != 2048 {
		t.Errorf("getMaxTokens(2048) = %d, want 2048", got)
	}
}

func TestAnthropicWrapErrorNil(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if got := provider.wrapError(nil, "claude-sonnet-4-20250514"); got != nil {
		t.Errorf("wrapError(nil) = %v, want nil", got)
	}
}

func TestAnthropicWrapErrorAlreadyWrapped(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	original := NewProviderError("anthropic", "claude-sonnet-4-20250514", context.DeadlineExceeded)
	wrapped := provider.wrapError(original, "claude-sonnet-4-20250514")
	if wrapped != error(original) {
		t.Error("expected already-wrapped error to pass through unchanged")
	}
}
