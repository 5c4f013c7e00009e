// Package observability exposes Prometheus metrics for the front-desk
// service: turn throughput, reasoning latency, tool execution patterns,
// escalations, and HTTP traffic.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the central metric set for the service. Create one at
// startup with NewMetrics and share it; all fields are safe for
// concurrent use.
type Metrics struct {
	// TurnCounter counts conversational turns.
	// Labels: status (ok|fallback)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures end-to-end turn latency in seconds.
	// Buckets cover sub-second tool calls through multi-round turns.
	TurnDuration prometheus.Histogram

	// LLMRequestCounter counts reasoning requests.
	// Labels: provider (anthropic|openai), status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures reasoning latency in seconds.
	// Labels: provider
	LLMRequestDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool latency in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// EscalationCounter counts urgent-case escalations.
	EscalationCounter prometheus.Counter

	// ConsultationsBooked counts confirmed consultation bookings.
	ConsultationsBooked prometheus.Counter

	// LeadsCaptured counts saved caller leads.
	LeadsCaptured prometheus.Counter

	// ActiveSessions tracks conversation turns currently in flight.
	ActiveSessions prometheus.Gauge

	// HTTPRequestCounter counts gateway requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration measures gateway request latency in seconds.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metric set registered against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh
// registry for isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clara_turns_total",
				Help: "Total conversational turns by outcome",
			},
			[]string{"status"},
		),

		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clara_turn_duration_seconds",
				Help:    "End-to-end duration of conversational turns in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clara_llm_requests_total",
				Help: "Total reasoning requests by provider and status",
			},
			[]string{"provider", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clara_llm_request_duration_seconds",
				Help:    "Duration of reasoning requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clara_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clara_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		EscalationCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clara_escalations_total",
				Help: "Total urgent-case escalations to the on-call attorney",
			},
		),

		ConsultationsBooked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clara_consultations_booked_total",
				Help: "Total consultations booked",
			},
		),

		LeadsCaptured: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clara_leads_captured_total",
				Help: "Total caller leads captured",
			},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "clara_active_sessions",
				Help: "Conversation turns currently in flight",
			},
		),

		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clara_http_requests_total",
				Help: "Total HTTP requests handled by the gateway",
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clara_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordTurn records one completed conversational turn.
func (m *Metrics) RecordTurn(status string, durationSeconds float64) {
	m.TurnCounter.WithLabelValues(status).Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordLLMRequest records one reasoning request.
func (m *Metrics) RecordLLMRequest(provider, status string, durationSeconds float64) {
	m.LLMRequestCounter.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordToolExecution records one tool execution. Escalations and the
// booking and lead outcomes feed their dedicated counters as well.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)

	if status != "success" {
		return
	}
	switch toolName {
	case "escalate_urgent_case":
		m.EscalationCounter.Inc()
	case "book_consultation":
		m.ConsultationsBooked.Inc()
	case "capture_lead":
		m.LeadsCaptured.Inc()
	}
}

// RecordHTTPRequest records one gateway request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
