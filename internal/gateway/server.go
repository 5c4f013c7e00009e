// Package gateway exposes the front-desk agent over HTTP: a simple
// chat endpoint, an OpenAI-compatible completions endpoint used by
// telephony bridges, and a voice webhook. All caller-facing failures
// are natural-language JSON, never stack traces.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/observability"
	"github.com/morrisonlaw/clara/internal/sessions"
)

// Config holds the gateway's runtime settings.
type Config struct {
	// Addr is the host:port to bind.
	Addr string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// TurnTimeout bounds one conversational turn end to end.
	TurnTimeout time.Duration

	// PublicURL is the externally reachable base URL handed to the
	// telephony platform so it can call back into /chat.
	PublicURL string

	// VoiceID selects the synthesis voice announced to the telephony
	// platform. Empty means defaultVoiceID.
	VoiceID string
}

// Server serves the HTTP transport. Create with NewServer, start with
// Start, stop with Shutdown.
type Server struct {
	loop     *agent.ControlLoop
	sessions sessions.Store
	metrics  *observability.Metrics
	logger   *slog.Logger
	config   Config

	httpServer *http.Server
	listener   net.Listener
}

// NewServer wires the HTTP transport around a control loop.
func NewServer(loop *agent.ControlLoop, store sessions.Store, metrics *observability.Metrics, logger *slog.Logger, config Config) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.TurnTimeout <= 0 {
		config.TurnTimeout = 2 * time.Minute
	}
	return &Server{
		loop:     loop,
		sessions: store,
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// Handler returns the routed handler. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /voice", s.handleVoice)

	return s.instrument(mux)
}

// Start binds the listener and serves until Shutdown or a fatal error.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	s.httpServer = server
	s.listener = listener

	s.logger.Info("starting http server", "addr", s.config.Addr)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
		return err
	}
	return nil
}

// turnContext derives the per-turn context from the request, bounded
// by TurnTimeout.
func (s *Server) turnContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.TurnTimeout)
}

// instrument wraps the mux with request logging and metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", duration,
		)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(recorder.status), duration.Seconds())
		}
	})
}

// statusRecorder captures the response code for logging and metrics.
// Flush passes through so SSE streaming keeps working underneath it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
