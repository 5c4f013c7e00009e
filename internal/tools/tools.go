// Package tools implements the firm's side-effecting operations:
// consultation booking, lead capture, urgent escalation, availability
// lookup, and knowledge search. Each tool returns a JSON payload with
// a status field and a human-readable message; validation failures
// surface as error results, never as faults.
package tools

import (
	"log/slog"
	"time"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/knowledge"
)

// RegisterAll registers the firm's full tool set on the registry. The
// retriever backs search_firm_knowledge; pass a StaticRetriever when
// no knowledge base is configured.
func RegisterAll(reg *agent.ToolRegistry, retriever knowledge.Retriever, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	all := []agent.Tool{
		NewBookConsultation(logger),
		NewCaptureLead(logger),
		NewEscalateUrgentCase(logger),
		NewCheckAvailability(logger),
		NewSearchFirmKnowledge(retriever, logger),
	}
	for _, tool := range all {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// clock returns current time; tools take it as a field so tests can
// pin identifiers and slot dates.
type clock func() time.Time

func defaultClock() time.Time { return time.Now() }
