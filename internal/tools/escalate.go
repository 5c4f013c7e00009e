package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/firm"
)

// EscalateName is the escalation tool's registry name. The control
// loop orders any batch containing it so escalation executes first.
const EscalateName = "escalate_urgent_case"

// EscalateUrgentCase alerts the on-call attorney about an urgent
// matter. Its result message includes an instruction the caller can
// act on immediately, before any callback arrives.
type EscalateUrgentCase struct {
	logger *slog.Logger
	now    clock
}

// NewEscalateUrgentCase creates the escalation tool.
func NewEscalateUrgentCase(logger *slog.Logger) *EscalateUrgentCase {
	return &EscalateUrgentCase{logger: logger, now: defaultClock}
}

func (t *EscalateUrgentCase) Name() string { return EscalateName }

func (t *EscalateUrgentCase) Description() string {
	return "Immediately escalates urgent cases to the on-call attorney. " +
		"Use when caller mentions arrest, detention, custody emergency, " +
		"restraining order violation, or says they need help RIGHT NOW. " +
		"This should be called before any other tool in urgent situations."
}

func (t *EscalateUrgentCase) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"caller_name": {"type": "string", "description": "Caller's full name"},
			"phone": {"type": "string", "description": "Callback phone number"},
			"situation": {"type": "string", "description": "Brief description of the emergency"}
		},
		"required": ["caller_name", "phone", "situation"]
	}`)
}

type escalateParams struct {
	CallerName string `json:"caller_name"`
	Phone      string `json:"phone"`
	Situation  string `json:"situation"`
}

func (t *EscalateUrgentCase) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p escalateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid escalation arguments: %w", err)
	}

	alertID := firm.AlertID(t.now())

	payload, err := json.Marshal(map[string]any{
		"status":            "escalated",
		"alert_id":          alertID,
		"on_call_attorney":  firm.OnCallAttorney,
		"expected_callback": "Within 15 minutes",
		"message": fmt.Sprintf("URGENT alert sent. Attorney David Kim has been notified "+
			"and will call %s within 15 minutes. "+
			"If with police: say I am invoking my right to remain silent "+
			"and my right to an attorney.", p.Phone),
	})
	if err != nil {
		return nil, err
	}

	t.logger.Warn("urgent case escalated",
		"alert_id", alertID,
		"caller", p.CallerName,
		"situation", p.Situation,
	)
	return &agent.ToolResult{Content: string(payload)}, nil
}
