package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTurn(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTurn("ok", 1.2)
	m.RecordTurn("ok", 0.4)
	m.RecordTurn("fallback", 3.0)

	expected := `
		# HELP clara_turns_total Total conversational turns by outcome
		# TYPE clara_turns_total counter
		clara_turns_total{status="fallback"} 1
		clara_turns_total{status="ok"} 2
	`
	if err := testutil.CollectAndCompare(m.TurnCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected turn counter values: %v", err)
	}

	if got := testutil.CollectAndCount(m.TurnDuration); got != 1 {
		t.Errorf("expected 1 histogram series, got %d", got)
	}
}

func TestRecordToolExecutionFeedsOutcomeCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordToolExecution("escalate_urgent_case", "success", 0.05)
	m.RecordToolExecution("book_consultation", "success", 0.02)
	m.RecordToolExecution("book_consultation", "success", 0.03)
	m.RecordToolExecution("capture_lead", "error", 0.01)
	m.RecordToolExecution("search_firm_knowledge", "success", 0.5)

	if got := testutil.ToFloat64(m.EscalationCounter); got != 1 {
		t.Errorf("escalations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConsultationsBooked); got != 2 {
		t.Errorf("consultations booked = %v, want 2", got)
	}
	// Error results never count as captured leads.
	if got := testutil.ToFloat64(m.LeadsCaptured); got != 0 {
		t.Errorf("leads captured = %v, want 0", got)
	}

	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("capture_lead", "error")); got != 1 {
		t.Errorf("capture_lead error count = %v, want 1", got)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLLMRequest("anthropic", "success", 1.1)
	m.RecordLLMRequest("anthropic", "error", 0.2)

	if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("anthropic", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("anthropic", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("POST", "/chat", "200", 0.2)
	m.RecordHTTPRequest("POST", "/chat", "200", 0.1)
	m.RecordHTTPRequest("GET", "/healthz", "200", 0.001)

	if got := testutil.ToFloat64(m.HTTPRequestCounter.WithLabelValues("POST", "/chat", "200")); got != 2 {
		t.Errorf("POST /chat count = %v, want 2", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ActiveSessions.Inc()
	m.ActiveSessions.Inc()
	m.ActiveSessions.Dec()

	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
}
