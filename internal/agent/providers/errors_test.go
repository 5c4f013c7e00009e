package providers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFailureReasonIsRetryable(t *testing.T) {
	tests := []struct {
		reason   FailureReason
		expected bool
	}{
		{FailureRateLimit, true},
		{FailureTimeout, true},
		{FailureServerError, true},
		{FailureAuth, false},
		{FailureInvalidRequest, false},
		{FailureModelUnavailable, false},
		{FailureUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			if got := tt.reason.IsRetryable(); got != tt.expected {
				t.Errorf("FailureReason(%q).IsRetryable() = %v, want %v", tt.reason, got, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected FailureReason
	}{
		{"nil error", nil, FailureUnknown},
		{"timeout", errors.New("request timeout"), FailureTimeout},
		{"deadline exceeded", errors.New("context deadline exceeded"), FailureTimeout},
		{"rate limit", errors.New("rate limit exceeded"), FailureRateLimit},
		{"too many requests", errors.New("too many requests"), FailureRateLimit},
		{"429 status", errors.New("HTTP 429"), FailureRateLimit},
		{"unauthorized", errors.New("unauthorized"), FailureAuth},
		{"invalid api key", errors.New("invalid api key"), FailureAuth},
		{"model not found", errors.New("model not found"), FailureModelUnavailable},
		{"server error", errors.New("internal server error"), FailureServerError},
		{"502 status", errors.New("HTTP 502 bad gateway"), FailureServerError},
		{"unknown", errors.New("something went wrong"), FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status   int
		expected FailureReason
	}{
		{401, FailureAuth},
		{403, FailureAuth},
		{400, FailureInvalidRequest},
		{404, FailureModelUnavailable},
		{429, FailureRateLimit},
		{500, FailureServerError},
		{503, FailureServerError},
		{200, FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := classifyStatusCode(tt.status); got != tt.expected {
				t.Errorf("classifyStatusCode(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestNewProviderErrorClassifiesCause(t *testing.T) {
	err := NewProviderError("anthropic", "claude-sonnet-4-20250514", errors.New("rate limit exceeded"))

	if err.Reason != FailureRateLimit {
		t.Errorf("Reason = %q, want %q", err.Reason, FailureRateLimit)
	}
	if err.Provider != "anthropic" {
		t.Errorf("Provider = %q", err.Provider)
	}
	if !IsRetryable(err) {
		t.Error("expected rate limit error to be retryable")
	}
}

func TestProviderErrorBuilders(t *testing.T) {
	err := NewProviderError("openai", "gpt-4o", errors.New("boom")).
		WithStatus(429).
		WithCode("rate_limit_exceeded").
		WithRequestID("req_123").
		WithMessage("slow down")

	if err.Reason != FailureRateLimit {
		t.Errorf("Reason = %q, want %q", err.Reason, FailureRateLimit)
	}
	if err.Status != 429 {
		t.Errorf("Status = %d, want 429", err.Status)
	}
	if err.RequestID != "req_123" {
		t.Errorf("RequestID = %q", err.RequestID)
	}

	msg := err.Error()
	for _, want := range []string{"[rate_limit]", "openai", "model=gpt-4o", "status=429", "slow down"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewProviderError("anthropic", "", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	wrapped := fmt.Errorf("request failed: %w", err)
	got, ok := GetProviderError(wrapped)
	if !ok {
		t.Fatal("expected GetProviderError to find error in chain")
	}
	if got.Provider != "anthropic" {
		t.Errorf("Provider = %q", got.Provider)
	}
}

func TestIsRetryableRawError(t *testing.T) {
	if !IsRetryable(errors.New("connection timeout")) {
		t.Error("expected raw timeout to be retryable")
	}
	if IsRetryable(errors.New("invalid api key")) {
		t.Error("expected auth error to not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("expected nil to not be retryable")
	}
}
