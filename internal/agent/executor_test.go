package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morrisonlaw/clara/pkg/models"
)

// openTool builds a tool with a permissive schema so executor tests
// focus on execution semantics rather than validation.
func openTool(name string, fn func(ctx context.Context, params json.RawMessage) (*ToolResult, error)) *stubTool {
	return &stubTool{
		name:   name,
		desc:   "test tool",
		schema: `{"type": "object"}`,
		fn:     fn,
	}
}

func mustRegister(t *testing.T, reg *ToolRegistry, tool Tool) {
	t.Helper()
	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register %s: %v", tool.Name(), err)
	}
}

func TestExecutorSuccess(t *testing.T) {
	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("lookup", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		return &ToolResult{Content: "result"}, nil
	}))

	executor := NewExecutor(registry, nil)
	result := executor.Execute(context.Background(), models.ToolCall{
		ID:    "call-1",
		Name:  "lookup",
		Input: json.RawMessage(`{}`),
	})

	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.Result.Content != "result" {
		t.Errorf("content = %q, want %q", result.Result.Content, "result")
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if result.ToolCallID != "call-1" {
		t.Errorf("ToolCallID = %q, want call-1", result.ToolCallID)
	}
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	attempts := 0
	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("flaky", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("timeout: connection timeout")
		}
		return &ToolResult{Content: "success"}, nil
	}))

	config := DefaultExecutorConfig()
	config.DefaultRetries = 3
	config.RetryBackoff = 10 * time.Millisecond

	executor := NewExecutor(registry, config)
	result := executor.Execute(context.Background(), models.ToolCall{
		ID:    "call-1",
		Name:  "flaky",
		Input: json.RawMessage(`{}`),
	})

	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestExecutorDoesNotRetryValidationFailures(t *testing.T) {
	attempts := 0
	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("strict", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		attempts++
		return nil, errors.New("invalid input: missing required field")
	}))

	config := DefaultExecutorConfig()
	config.DefaultRetries = 3

	executor := NewExecutor(registry, config)
	result := executor.Execute(context.Background(), models.ToolCall{
		ID:    "call-1",
		Name:  "strict",
		Input: json.RawMessage(`{}`),
	})

	if result.Error == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for non-retryable)", attempts)
	}
}

func TestExecutorTimeout(t *testing.T) {
	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("slow", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		select {
		case <-time.After(5 * time.Second):
			return &ToolResult{Content: "done"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	config := DefaultExecutorConfig()
	config.DefaultTimeout = 50 * time.Millisecond
	config.DefaultRetries = 0

	executor := NewExecutor(registry, config)
	result := executor.Execute(context.Background(), models.ToolCall{
		ID:    "call-1",
		Name:  "slow",
		Input: json.RawMessage(`{}`),
	})

	if result.Error == nil {
		t.Fatal("expected timeout error")
	}
	toolErr, ok := GetToolError(result.Error)
	if !ok {
		t.Fatalf("expected ToolError, got %T", result.Error)
	}
	if toolErr.Type != ToolErrorTimeout {
		t.Errorf("type = %s, want timeout", toolErr.Type)
	}
}

func TestExecutorContainsPanics(t *testing.T) {
	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("crashing", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		panic("boom")
	}))

	executor := NewExecutor(registry, nil)
	result := executor.Execute(context.Background(), models.ToolCall{
		ID:    "call-1",
		Name:  "crashing",
		Input: json.RawMessage(`{}`),
	})

	if result.Error == nil {
		t.Fatal("expected error from panicking tool")
	}
	toolErr, ok := GetToolError(result.Error)
	if !ok {
		t.Fatalf("expected ToolError, got %T", result.Error)
	}
	if toolErr.Type != ToolErrorPanic {
		t.Errorf("type = %s, want panic", toolErr.Type)
	}
}

func TestExecutorConcurrencyLimit(t *testing.T) {
	var running atomic.Int32
	var maxConcurrent atomic.Int32

	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("parallel", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		current := running.Add(1)
		defer running.Add(-1)

		for {
			old := maxConcurrent.Load()
			if current <= old || maxConcurrent.CompareAndSwap(old, current) {
				break
			}
		}

		time.Sleep(50 * time.Millisecond)
		return &ToolResult{Content: "done"}, nil
	}))

	config := DefaultExecutorConfig()
	config.MaxConcurrency = 3

	executor := NewExecutor(registry, config)

	calls := make([]models.ToolCall, 5)
	for i := range calls {
		calls[i] = models.ToolCall{
			ID:    fmt.Sprintf("call-%d", i),
			Name:  "parallel",
			Input: json.RawMessage(`{}`),
		}
	}

	results := executor.ExecuteAll(context.Background(), calls)

	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, r := range results {
		if r.Error != nil {
			t.Errorf("result %d: unexpected error: %v", i, r.Error)
		}
		if r.ToolCallID != calls[i].ID {
			t.Errorf("result %d: ToolCallID = %q, want %q", i, r.ToolCallID, calls[i].ID)
		}
	}
	if maxConcurrent.Load() > 3 {
		t.Errorf("max concurrent = %d, want <= 3", maxConcurrent.Load())
	}
}

func TestExecutorBackpressure(t *testing.T) {
	registry := NewToolRegistry()
	mustRegister(t, registry, openTool("blocking", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		time.Sleep(100 * time.Millisecond)
		return &ToolResult{Content: "done"}, nil
	}))

	config := DefaultExecutorConfig()
	config.MaxConcurrency = 1

	executor := NewExecutor(registry, config)

	go executor.Execute(context.Background(), models.ToolCall{
		ID:    "first",
		Name:  "blocking",
		Input: json.RawMessage(`{}`),
	})

	// Let the first call acquire the semaphore slot.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := executor.Execute(ctx, models.ToolCall{
		ID:    "waiting",
		Name:  "blocking",
		Input: json.RawMessage(`{}`),
	})

	if result.Error == nil {
		t.Fatal("expected error waiting for a semaphore slot")
	}
}

func TestExecutorMetrics(t *testing.T) {
	registry := NewToolRegistry()

	attempts := 0
	mustRegister(t, registry, openTool("flaky", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("timeout: first attempt")
		}
		return &ToolResult{Content: "ok"}, nil
	}))
	mustRegister(t, registry, openTool("failing", func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
		return nil, errors.New("permanent failure")
	}))

	config := DefaultExecutorConfig()
	config.DefaultRetries = 2
	config.RetryBackoff = time.Millisecond

	executor := NewExecutor(registry, config)

	executor.Execute(context.Background(), models.ToolCall{
		ID: "1", Name: "flaky", Input: json.RawMessage(`{}`),
	})
	executor.Execute(context.Background(), models.ToolCall{
		ID: "2", Name: "failing", Input: json.RawMessage(`{}`),
	})

	metrics := executor.Metrics()
	if metrics.TotalExecutions != 2 {
		t.Errorf("TotalExecutions = %d, want 2", metrics.TotalExecutions)
	}
	if metrics.TotalRetries != 1 {
		t.Errorf("TotalRetries = %d, want 1", metrics.TotalRetries)
	}
	if metrics.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", metrics.TotalFailures)
	}
}

func TestResultsToToolResults(t *testing.T) {
	results := []*ExecutionResult{
		{ToolCallID: "a", Result: &ToolResult{Content: "fine"}},
		{ToolCallID: "b", Error: errors.New("exploded")},
		{ToolCallID: "c", Result: &ToolResult{Content: "reported failure", IsError: true}},
	}

	out := ResultsToToolResults(results)
	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	if out[0].IsError || out[0].Content != "fine" {
		t.Errorf("result a = %+v", out[0])
	}
	if !out[1].IsError {
		t.Error("result b should be an error result")
	}
	if !out[2].IsError {
		t.Error("result c should preserve IsError")
	}
	for i, id := range []string{"a", "b", "c"} {
		if out[i].ToolCallID != id {
			t.Errorf("result %d: ToolCallID = %q, want %q", i, out[i].ToolCallID, id)
		}
	}
}
