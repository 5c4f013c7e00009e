package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/firm"
)

// BookConsultation books a free 15-minute consultation with the
// attorney assigned to the caller's practice area. Unrecognized
// practice areas book with the senior attorney rather than failing.
type BookConsultation struct {
	logger *slog.Logger
	now    clock
}

// NewBookConsultation creates the booking tool.
func NewBookConsultation(logger *slog.Logger) *BookConsultation {
	return &BookConsultation{logger: logger, now: defaultClock}
}

func (t *BookConsultation) Name() string { return "book_consultation" }

func (t *BookConsultation) Description() string {
	return "Books a free 15-minute consultation with the appropriate attorney. " +
		"Use this when the caller is ready to schedule and has provided " +
		"their name, phone number, and preferred time."
}

func (t *BookConsultation) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"caller_name": {"type": "string", "description": "Caller's full name"},
			"phone": {"type": "string", "description": "Caller's phone number"},
			"practice_area": {"type": "string", "description": "Practice area for the consultation"},
			"preferred_time": {"type": "string", "description": "Caller's preferred consultation time"},
			"email": {"type": "string", "description": "Caller's email address"}
		},
		"required": ["caller_name", "phone", "practice_area", "preferred_time"]
	}`)
}

type bookConsultationParams struct {
	CallerName    string `json:"caller_name"`
	Phone         string `json:"phone"`
	PracticeArea  string `json:"practice_area"`
	PreferredTime string `json:"preferred_time"`
	Email         string `json:"email"`
}

func (t *BookConsultation) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p bookConsultationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid booking arguments: %w", err)
	}

	attorney := firm.AttorneyFor(p.PracticeArea)
	confirmationID := firm.ConfirmationID(t.now())

	payload, err := json.Marshal(map[string]any{
		"status":          "confirmed",
		"confirmation_id": confirmationID,
		"client_name":     p.CallerName,
		"attorney":        attorney,
		"practice_area":   p.PracticeArea,
		"scheduled_time":  p.PreferredTime,
		"duration":        firm.ConsultationDuration,
		"message": fmt.Sprintf("Booked! %s will call %s at %s.",
			attorney, p.Phone, p.PreferredTime),
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("consultation booked",
		"confirmation_id", confirmationID,
		"caller", p.CallerName,
		"practice_area", p.PracticeArea,
	)
	return &agent.ToolResult{Content: string(payload)}, nil
}
