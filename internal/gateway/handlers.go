package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/firm"
)

// completionID labels every OpenAI-compatible response from this
// service. Telephony bridges treat it as opaque.
const completionID = "chatcmpl-clara"

// Voice synthesis defaults announced to the telephony platform.
const (
	voiceProvider  = "11labs"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// chatRequest is the body for POST /chat.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "I couldn't read that request. Please send JSON with a message field.")
		return
	}

	if req.SessionID == "" {
		req.SessionID = "default"
	}

	reply, err := s.runTurn(r, req.SessionID, req.Message)
	if err != nil {
		s.writeTurnError(w, err, "Please include a message so Clara can help you.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{
		SessionID: req.SessionID,
		Reply:     reply,
	})
}

// completionsRequest is the body for POST /chat/completions. Telephony
// bridges send the OpenAI messages shape with the call ID carried in
// call.id; direct clients may send session_id instead.
type completionsRequest struct {
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Call struct {
		ID string `json:"id"`
	} `json:"call"`
}

// sessionID resolves the conversation identity: call.id from the
// telephony bridge wins, then session_id, then a shared default.
func (req *completionsRequest) sessionID() string {
	if req.Call.ID != "" {
		return req.Call.ID
	}
	if req.SessionID != "" {
		return req.SessionID
	}
	return "default"
}

// lastUserMessage returns the content of the most recent user entry.
func (req *completionsRequest) lastUserMessage() string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req completionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "I couldn't read that request. Please send an OpenAI-style messages array.")
		return
	}

	if req.Stream {
		s.streamCompletion(w, r, &req)
		return
	}

	reply, err := s.runTurn(r, req.sessionID(), req.lastUserMessage())
	if err != nil {
		s.writeTurnError(w, err, "Please include a user message so Clara can help you.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     completionID,
		Object: "chat.completion",
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: reply,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
	})
}

// streamCompletion replies with SSE chunks as reply tokens arrive,
// then a finish_reason stop chunk and the [DONE] terminator.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, req *completionsRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Streaming is not available right now. Please retry without stream.")
		return
	}

	ctx, cancel := s.turnContext(r)
	defer cancel()

	chunks, err := s.loop.Run(ctx, req.sessionID(), req.lastUserMessage())
	if err != nil {
		s.writeTurnError(w, err, "Please include a user message so Clara can help you.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeChunk := func(chunk openai.ChatCompletionStreamResponse) {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			// Fallback text was already streamed before the error.
			s.logger.Warn("turn failed mid-stream", "session_id", req.sessionID(), "error", chunk.Err)
			continue
		}
		if chunk.Text == "" {
			continue
		}
		writeChunk(openai.ChatCompletionStreamResponse{
			ID:     completionID,
			Object: "chat.completion.chunk",
			Choices: []openai.ChatCompletionStreamChoice{
				{
					Index: 0,
					Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk.Text},
				},
			},
		})
	}

	writeChunk(openai.ChatCompletionStreamResponse{
		ID:     completionID,
		Object: "chat.completion.chunk",
		Choices: []openai.ChatCompletionStreamChoice{
			{
				Index:        0,
				FinishReason: openai.FinishReasonStop,
			},
		},
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// voiceRequest is the telephony platform's webhook envelope.
type voiceRequest struct {
	Message struct {
		Type    string `json:"type"`
		Summary string `json:"summary"`
	} `json:"message"`
}

// handleVoice answers the telephony platform's webhooks. An
// assistant-request gets the greeting plus pointers at this service's
// completions endpoint; an end-of-call-report is logged.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "I couldn't read that webhook payload.")
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch req.Message.Type {
	case "assistant-request":
		voiceID := s.config.VoiceID
		if voiceID == "" {
			voiceID = defaultVoiceID
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assistant": map[string]any{
				"firstMessage": firm.Greeting,
				"model": map[string]any{
					"provider": "custom-llm",
					"url":      strings.TrimSuffix(s.config.PublicURL, "/") + "/chat",
				},
				"voice": map[string]any{
					"provider": voiceProvider,
					"voiceId":  voiceID,
				},
			},
		})

	case "end-of-call-report":
		s.logger.Info("call ended", "summary", req.Message.Summary)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// runTurn executes one conversational turn and returns the full reply
// text. Tool-result chunks are loop internals; only text reaches HTTP
// callers.
func (s *Server) runTurn(r *http.Request, sessionID, message string) (string, error) {
	ctx, cancel := s.turnContext(r)
	defer cancel()

	chunks, err := s.loop.Run(ctx, sessionID, message)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			s.logger.Warn("turn failed", "session_id", sessionID, "error", chunk.Err)
			continue
		}
		reply.WriteString(chunk.Text)
	}
	return reply.String(), nil
}

// writeTurnError maps a failed turn to a response: a blank message is
// the caller's to fix, anything else is an internal fault and gets the
// apology instead of text blaming the caller.
func (s *Server) writeTurnError(w http.ResponseWriter, err error, validationMessage string) {
	if errors.Is(err, agent.ErrEmptyMessage) {
		s.writeError(w, http.StatusBadRequest, validationMessage)
		return
	}
	s.logger.Error("turn failed before streaming", "error", err)
	s.writeError(w, http.StatusInternalServerError,
		"I apologize, Clara is having trouble right now. Please call back in a moment.")
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
