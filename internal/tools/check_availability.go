package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/firm"
)

// CheckAvailability lists upcoming consultation openings for a
// practice area.
type CheckAvailability struct {
	logger *slog.Logger
	now    clock
}

// NewCheckAvailability creates the availability tool.
func NewCheckAvailability(logger *slog.Logger) *CheckAvailability {
	return &CheckAvailability{logger: logger, now: defaultClock}
}

func (t *CheckAvailability) Name() string { return "check_availability" }

func (t *CheckAvailability) Description() string {
	return "Checks available consultation slots for the specified practice area. " +
		"Use this when the caller asks when they can meet or before booking."
}

func (t *CheckAvailability) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"practice_area": {"type": "string", "description": "Practice area for the consultation"},
			"preferred_day": {"type": "string", "description": "Caller's preferred day, or any"}
		},
		"required": ["practice_area"]
	}`)
}

type checkAvailabilityParams struct {
	PracticeArea string `json:"practice_area"`
	PreferredDay string `json:"preferred_day"`
}

func (t *CheckAvailability) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p checkAvailabilityParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid availability arguments: %w", err)
	}

	attorney := firm.SchedulingAttorneyFor(p.PracticeArea)
	slots := firm.AvailableSlots(t.now())

	payload, err := json.Marshal(map[string]any{
		"attorney":        attorney,
		"available_slots": slots,
		"duration":        "15 minutes free consultation",
		"message":         fmt.Sprintf("%s has openings available.", attorney),
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("availability checked", "practice_area", p.PracticeArea, "slots", len(slots))
	return &agent.ToolResult{Content: string(payload)}, nil
}
