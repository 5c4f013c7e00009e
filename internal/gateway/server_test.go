package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/observability"
	"github.com/morrisonlaw/clara/internal/sessions"
)

// wordProvider streams its reply word by word, the way a real
// reasoning service delivers tokens.
type wordProvider struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (p *wordProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	words := strings.SplitAfter(p.reply, " ")
	ch := make(chan *agent.CompletionChunk, len(words)+1)
	for _, w := range words {
		ch <- &agent.CompletionChunk{Text: w}
	}
	ch <- &agent.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func (p *wordProvider) Name() string        { return "word" }
func (p *wordProvider) SupportsTools() bool { return true }

func newTestServer(t *testing.T, reply string) (*Server, *sessions.MemoryStore) {
	t.Helper()

	store := sessions.NewMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	loop := agent.NewControlLoop(&wordProvider{reply: reply}, nil, store, nil, nil, logger)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	server := NewServer(loop, store, metrics, logger, Config{
		Addr:      "127.0.0.1:0",
		PublicURL: "https://clara.example.com/",
	})
	return server, store
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, "hello")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
}

func TestChatEndpoint(t *testing.T) {
	server, store := newTestServer(t, "We handle family law matters. How can I help?")

	rec := postJSON(t, server.Handler(), "/chat", `{"session_id":"s-1","message":"Do you handle divorce?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "s-1" {
		t.Errorf("session_id = %q, want s-1", resp.SessionID)
	}
	if !strings.Contains(resp.Reply, "family law") {
		t.Errorf("reply = %q", resp.Reply)
	}

	// The turn must be persisted under the caller's session.
	history, err := store.GetHistory(t.Context(), "s-1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 stored turns, got %d", len(history))
	}
}

func TestChatEndpointDefaultsSession(t *testing.T) {
	server, _ := newTestServer(t, "Hello!")

	rec := postJSON(t, server.Handler(), "/chat", `{"message":"hi"}`)

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "default" {
		t.Errorf("session_id = %q, want default", resp.SessionID)
	}
}

func TestChatEndpointLockContentionIsInternalError(t *testing.T) {
	store := sessions.NewMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	locks := sessions.NewLockManager(30 * time.Millisecond)
	loop := agent.NewControlLoop(&wordProvider{reply: "hi"}, nil, store, locks, nil, logger)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	server := NewServer(loop, store, metrics, logger, Config{Addr: "127.0.0.1:0"})

	// Hold the session so the request's acquire times out.
	release, err := locks.Acquire(context.Background(), "s-busy", 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	rec := postJSON(t, server.Handler(), "/chat", `{"session_id":"s-busy","message":"hello"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "include a message") {
		t.Errorf("internal failure must not blame the caller's input: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "I apologize") {
		t.Errorf("caller must receive the apology, got %s", rec.Body.String())
	}
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	rec := postJSON(t, server.Handler(), "/chat", `{"session_id":"s-1","message":"  "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected a natural-language error message")
	}
	if strings.Contains(resp["error"], "goroutine") {
		t.Errorf("error leaks internals: %q", resp["error"])
	}
}

func TestChatEndpointRejectsBadJSON(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	rec := postJSON(t, server.Handler(), "/chat", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatCompletionsNonStreaming(t *testing.T) {
	server, store := newTestServer(t, "Our consultations are free.")

	body := `{
		"call": {"id": "call-77"},
		"messages": [
			{"role": "system", "content": "ignored"},
			{"role": "user", "content": "first question"},
			{"role": "assistant", "content": "earlier answer"},
			{"role": "user", "content": "Do consultations cost anything?"}
		]
	}`
	rec := postJSON(t, server.Handler(), "/chat/completions", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.ID != completionID {
		t.Errorf("id = %q", resp.ID)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("object = %q", resp.Object)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(resp.Choices))
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
	if !strings.Contains(resp.Choices[0].Message.Content, "free") {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}

	// The call ID names the session; only the last user entry ran.
	history, err := store.GetHistory(t.Context(), "call-77", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 stored turns, got %d", len(history))
	}
	if history[0].Content != "Do consultations cost anything?" {
		t.Errorf("stored user turn = %q", history[0].Content)
	}
}

func TestChatCompletionsStreaming(t *testing.T) {
	server, _ := newTestServer(t, "Yes we can help with that.")

	body := `{
		"stream": true,
		"call": {"id": "call-88"},
		"messages": [{"role": "user", "content": "Can you help?"}]
	}`
	rec := postJSON(t, server.Handler(), "/chat/completions", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	raw := rec.Body.String()
	if !strings.HasSuffix(strings.TrimSpace(raw), "data: [DONE]") {
		t.Errorf("stream missing [DONE] terminator: %q", raw)
	}

	var text strings.Builder
	sawStop := false
	for _, line := range strings.Split(raw, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			continue
		}

		var chunk struct {
			Object  string `json:"object"`
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("bad SSE chunk %q: %v", payload, err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("chunk object = %q", chunk.Object)
		}
		for _, choice := range chunk.Choices {
			text.WriteString(choice.Delta.Content)
			if choice.FinishReason == "stop" {
				sawStop = true
			}
		}
	}

	if !sawStop {
		t.Error("stream missing finish_reason stop chunk")
	}
	if got := text.String(); !strings.Contains(got, "Yes we can help") {
		t.Errorf("assembled text = %q", got)
	}
}

func TestVoiceAssistantRequest(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	rec := postJSON(t, server.Handler(), "/voice", `{"message":{"type":"assistant-request"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Assistant struct {
			FirstMessage string `json:"firstMessage"`
			Model        struct {
				Provider string `json:"provider"`
				URL      string `json:"url"`
			} `json:"model"`
			Voice struct {
				Provider string `json:"provider"`
				VoiceID  string `json:"voiceId"`
			} `json:"voice"`
		} `json:"assistant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if !strings.Contains(resp.Assistant.FirstMessage, "This is Clara speaking") {
		t.Errorf("firstMessage = %q", resp.Assistant.FirstMessage)
	}
	if resp.Assistant.Model.Provider != "custom-llm" {
		t.Errorf("model provider = %q", resp.Assistant.Model.Provider)
	}
	if resp.Assistant.Model.URL != "https://clara.example.com/chat" {
		t.Errorf("model url = %q", resp.Assistant.Model.URL)
	}
	if resp.Assistant.Voice.Provider != "11labs" {
		t.Errorf("voice provider = %q", resp.Assistant.Voice.Provider)
	}
	if resp.Assistant.Voice.VoiceID != defaultVoiceID {
		t.Errorf("voice id = %q, want the default voice", resp.Assistant.Voice.VoiceID)
	}
}

func TestVoiceEndOfCallReport(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	rec := postJSON(t, server.Handler(), "/voice", `{"message":{"type":"end-of-call-report","summary":"caller booked a consultation"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
