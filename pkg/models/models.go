// Package models defines the shared data types for the Clara front-desk
// agent: sessions, conversation turns, tool calls, and tool results.
//
// A Session is one continuous caller interaction. Its conversation
// history is an ordered, append-only sequence of Messages; ordering is
// semantically significant because the history is the reasoning step's
// only context. Tool calls and tool results are linked by a correlation
// ID (ToolCall.ID == ToolResult.ToolCallID), never by position.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Urgency levels for a caller's matter.
const (
	UrgencyNormal = "normal"
	UrgencyUrgent = "urgent"
)

// Message is one atomic turn in a session's conversation history.
//
// A caller utterance is a user message with Content. A reasoning-step
// reply is an assistant message with Content. A tool-invocation request
// is an assistant message carrying ToolCalls. A tool-invocation result
// is a tool message carrying ToolResults.
type Message struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ToolCall is the reasoning step's request to execute a named tool.
// ID is the correlation identifier linking this request to its result.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the structured outcome of one tool execution.
// Content is a JSON payload with a status field and a human-readable
// message; IsError marks contract violations and execution failures.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// CallerInfo holds the attributes Clara accumulates about a caller over
// the course of a session. Fields are only ever added or overwritten,
// never cleared.
type CallerInfo struct {
	Name               string `json:"name,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Email              string `json:"email,omitempty"`
	CaseType           string `json:"case_type,omitempty"`
	Urgency            string `json:"urgency"`
	ConsultationBooked bool   `json:"consultation_booked"`
	LeadCaptured       bool   `json:"lead_captured"`
	PreferredTime      string `json:"preferred_time,omitempty"`
}

// DefaultCallerInfo returns the caller attributes assigned at session
// creation: normal urgency, nothing booked, no lead captured.
func DefaultCallerInfo() CallerInfo {
	return CallerInfo{Urgency: UrgencyNormal}
}

// Session represents one caller interaction, identified by an opaque
// stable ID assigned at creation. ToolsInvoked is the append-only audit
// trail of tool names actually executed during the session.
type Session struct {
	ID           string     `json:"id"`
	CallerInfo   CallerInfo `json:"caller_info"`
	ToolsInvoked []string   `json:"tools_invoked,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Clone returns an independent copy of the session so stored state can
// never be mutated through a handed-out pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	if len(s.ToolsInvoked) > 0 {
		clone.ToolsInvoked = append([]string(nil), s.ToolsInvoked...)
	}
	return &clone
}

// CloneMessage returns an independent copy of a message, including its
// tool call and tool result slices.
func CloneMessage(msg *Message) *Message {
	if msg == nil {
		return nil
	}
	clone := *msg
	if len(msg.ToolCalls) > 0 {
		clone.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			clone.ToolCalls[i] = tc
			if tc.Input != nil {
				clone.ToolCalls[i].Input = append(json.RawMessage(nil), tc.Input...)
			}
		}
	}
	if len(msg.ToolResults) > 0 {
		clone.ToolResults = append([]ToolResult(nil), msg.ToolResults...)
	}
	return &clone
}
