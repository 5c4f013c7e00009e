package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/morrisonlaw/clara/internal/observability"
	"github.com/morrisonlaw/clara/internal/sessions"
	"github.com/morrisonlaw/clara/pkg/models"
)

// processBufferSize is the response channel buffer.
const processBufferSize = 32

// MaxResponseTextSize bounds a single reply's accumulated text.
const MaxResponseTextSize = 1 << 20

// MaxToolCallsPerIteration bounds one reasoning step's tool batch.
const MaxToolCallsPerIteration = 16

// LoopConfig configures the control loop.
type LoopConfig struct {
	// MaxIterations caps reasoning/tool round trips per inbound
	// message. Hitting the cap fails closed with a fallback reply.
	// Default: 6
	MaxIterations int

	// MaxTokens is the per-response token budget for the reasoning
	// step. Default: 1024
	MaxTokens int

	// HistoryLimit is how many recent turns the reasoning step sees.
	// Default: 50
	HistoryLimit int

	// MaxWallTime limits total handling time for one message
	// (0 = no limit).
	MaxWallTime time.Duration

	// ExecutorConfig configures the parallel tool executor.
	ExecutorConfig *ExecutorConfig

	// StreamToolResults streams tool results as they complete.
	// Default: true
	StreamToolResults bool
}

// DefaultLoopConfig returns the default loop configuration.
func DefaultLoopConfig() *LoopConfig {
	return &LoopConfig{
		MaxIterations:     6,
		MaxTokens:         1024,
		HistoryLimit:      50,
		ExecutorConfig:    DefaultExecutorConfig(),
		StreamToolResults: true,
	}
}

func sanitizeLoopConfig(config *LoopConfig) *LoopConfig {
	if config == nil {
		return DefaultLoopConfig()
	}
	cfg := *config
	defaults := DefaultLoopConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.ExecutorConfig == nil {
		cfg.ExecutorConfig = defaults.ExecutorConfig
	}
	if cfg.MaxWallTime < 0 {
		cfg.MaxWallTime = 0
	}
	return &cfg
}

// LoopPhase identifies what the loop was doing when an error occurred.
type LoopPhase string

const (
	PhaseReasoning      LoopPhase = "reasoning"
	PhaseExecutingTools LoopPhase = "executing_tools"
)

// LoopError wraps a control loop failure with its phase and iteration.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Cause     error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("loop %s iteration %d: %v", e.Phase, e.Iteration, e.Cause)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// ControlLoop orchestrates one conversation turn: it alternates the
// reasoning step with deterministic tool execution until the reasoning
// step produces a plain reply, accumulating caller state across turns.
//
// The loop is a two-state machine, reasoning and executing tools, and
// terminates when reasoning returns zero tool requests. Executions for
// the same session are serialized through the lock manager; turns
// within a session are strictly ordered and append-only.
type ControlLoop struct {
	provider LLMProvider
	executor *Executor
	sessions sessions.Store
	locks    *sessions.LockManager
	config   *LoopConfig
	logger   *slog.Logger

	model   string
	policy  string
	metrics *observability.Metrics
}

// NewControlLoop creates a control loop. If config is nil,
// DefaultLoopConfig is used; the policy defaults to DefaultPolicy.
func NewControlLoop(provider LLMProvider, registry *ToolRegistry, store sessions.Store,
	locks *sessions.LockManager, config *LoopConfig, logger *slog.Logger) *ControlLoop {
	config = sanitizeLoopConfig(config)
	if registry == nil {
		registry = NewToolRegistry()
	}
	if locks == nil {
		locks = sessions.NewLockManager(0)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ControlLoop{
		provider: provider,
		executor: NewExecutor(registry, config.ExecutorConfig),
		sessions: store,
		locks:    locks,
		config:   config,
		logger:   logger,
		policy:   DefaultPolicy,
	}
}

// SetModel sets the reasoning model identifier.
func (l *ControlLoop) SetModel(model string) { l.model = model }

// SetPolicy replaces the behavioral policy document. The policy is
// configuration; swapping it never requires a loop change.
func (l *ControlLoop) SetPolicy(policy string) {
	if policy != "" {
		l.policy = policy
	}
}

// SetMetrics attaches a metrics sink for turn, reasoning, and tool
// instrumentation. Nil (the default) disables recording.
func (l *ControlLoop) SetMetrics(m *observability.Metrics) { l.metrics = m }

// ConfigureTool sets per-tool executor overrides.
func (l *ControlLoop) ConfigureTool(name string, config *ToolConfig) {
	l.executor.ConfigureTool(name, config)
}

// Registry exposes the loop's tool registry for registration.
func (l *ControlLoop) Registry() *ToolRegistry {
	return l.executor.registry
}

// ExecutorMetrics returns a snapshot of tool execution counters.
func (l *ControlLoop) ExecutorMetrics() ExecutorMetricsSnapshot {
	return l.executor.Metrics()
}

// loopState carries the in-flight turn context for one inbound message.
type loopState struct {
	session         *models.Session
	messages        []CompletionMessage
	accumulatedText string
	iteration       int
	started         time.Time
}

// Run handles one inbound caller message and streams the response.
// The channel delivers reply text incrementally, tool results as they
// complete, and a final Done chunk; it is closed when handling ends.
// The caller never sees a raw fault: provider failures and the
// iteration cap both produce a safe fallback reply, with the Err chunk
// carrying the cause for logging.
func (l *ControlLoop) Run(ctx context.Context, sessionID, content string) (<-chan *ResponseChunk, error) {
	if l.provider == nil {
		return nil, ErrNoProvider
	}
	if l.sessions == nil {
		return nil, errors.New("no session store configured")
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if l.config.MaxWallTime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, l.config.MaxWallTime)
	}

	// Two messages for the same session never interleave.
	release, err := l.locks.Acquire(runCtx, sessionID, 0)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}

	session, err := l.sessions.GetOrCreate(runCtx, sessionID)
	if err != nil {
		release()
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	chunks := make(chan *ResponseChunk, processBufferSize)

	go func() {
		defer close(chunks)
		defer release()
		if cancel != nil {
			defer cancel()
		}
		if l.metrics != nil {
			l.metrics.ActiveSessions.Inc()
			defer l.metrics.ActiveSessions.Dec()
		}
		l.run(runCtx, session, content, chunks)
	}()

	return chunks, nil
}

func (l *ControlLoop) run(ctx context.Context, session *models.Session, content string, chunks chan<- *ResponseChunk) {
	state := &loopState{session: session, started: time.Now()}

	if err := l.initializeState(ctx, state, content); err != nil {
		l.failTurn(ctx, state, chunks, &LoopError{Phase: PhaseReasoning, Cause: err})
		return
	}

	for state.iteration < l.config.MaxIterations {
		select {
		case <-ctx.Done():
			l.failTurn(ctx, state, chunks, &LoopError{
				Phase: PhaseReasoning, Iteration: state.iteration, Cause: ctx.Err(),
			})
			return
		default:
		}

		toolCalls, err := l.reasoningPhase(ctx, state, chunks)
		if err != nil {
			l.failTurn(ctx, state, chunks, &LoopError{
				Phase: PhaseReasoning, Iteration: state.iteration, Cause: err,
			})
			return
		}

		// Escalation runs before everything else in its batch.
		toolCalls = prioritizeEscalation(toolCalls)

		if err := l.persistAssistantTurn(ctx, state, toolCalls); err != nil {
			l.failTurn(ctx, state, chunks, &LoopError{
				Phase: PhaseReasoning, Iteration: state.iteration, Cause: err,
			})
			return
		}

		if len(toolCalls) == 0 {
			// Terminal: a plain reply ends the turn.
			if err := l.sessions.Update(ctx, state.session); err != nil {
				l.logger.Warn("failed to persist session state",
					"session_id", state.session.ID, "error", err)
			}
			if l.metrics != nil {
				l.metrics.RecordTurn("ok", time.Since(state.started).Seconds())
			}
			chunks <- &ResponseChunk{Done: true}
			return
		}

		results := l.executeToolsPhase(ctx, state, toolCalls, chunks)

		if err := l.sessions.Update(ctx, state.session); err != nil {
			l.logger.Warn("failed to persist session state",
				"session_id", state.session.ID, "error", err)
		}

		l.continueConversation(state, toolCalls, results)
		state.iteration++
	}

	// Iteration cap: fail closed with a safe reply.
	l.logger.Error("iteration cap reached",
		"session_id", state.session.ID,
		"max_iterations", l.config.MaxIterations,
	)
	l.failTurn(ctx, state, chunks, &LoopError{
		Phase:     PhaseReasoning,
		Iteration: state.iteration,
		Cause:     ErrMaxIterations,
	})
}

// initializeState loads history, appends the caller turn, and builds
// the reasoning context.
func (l *ControlLoop) initializeState(ctx context.Context, state *loopState, content string) error {
	history, err := l.sessions.GetHistory(ctx, state.session.ID, l.config.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	state.messages = make([]CompletionMessage, 0, len(history)+1)
	for _, m := range history {
		state.messages = append(state.messages, CompletionMessage{
			Role:        string(m.Role),
			Content:     m.Content,
			ToolCalls:   m.ToolCalls,
			ToolResults: m.ToolResults,
		})
	}
	state.messages = append(state.messages, CompletionMessage{
		Role:    string(models.RoleUser),
		Content: content,
	})

	return l.sessions.AppendMessage(ctx, state.session.ID, &models.Message{
		ID:        uuid.NewString(),
		SessionID: state.session.ID,
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// reasoningPhase streams one completion and collects any tool calls.
func (l *ControlLoop) reasoningPhase(ctx context.Context, state *loopState, chunks chan<- *ResponseChunk) ([]models.ToolCall, error) {
	req := &CompletionRequest{
		Model:     l.model,
		System:    l.policy,
		Messages:  state.messages,
		Tools:     l.executor.registry.AsLLMTools(),
		MaxTokens: l.config.MaxTokens,
	}

	start := time.Now()
	completion, err := l.provider.Complete(ctx, req)
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordLLMRequest(l.provider.Name(), "error", time.Since(start).Seconds())
		}
		return nil, err
	}

	var toolCalls []models.ToolCall
	var text strings.Builder

	for chunk := range completion {
		if chunk.Error != nil {
			drainCompletion(completion)
			if l.metrics != nil {
				l.metrics.RecordLLMRequest(l.provider.Name(), "error", time.Since(start).Seconds())
			}
			return nil, chunk.Error
		}
		if chunk.Text != "" {
			if text.Len()+len(chunk.Text) > MaxResponseTextSize {
				drainCompletion(completion)
				return nil, fmt.Errorf("response text exceeds maximum size of %d bytes", MaxResponseTextSize)
			}
			text.WriteString(chunk.Text)
			chunks <- &ResponseChunk{Text: chunk.Text}
		}
		if chunk.ToolCall != nil {
			if len(toolCalls) >= MaxToolCallsPerIteration {
				drainCompletion(completion)
				return nil, fmt.Errorf("tool calls exceed maximum of %d per iteration", MaxToolCallsPerIteration)
			}
			tc := *chunk.ToolCall
			if tc.ID == "" {
				tc.ID = uuid.NewString()
			}
			toolCalls = append(toolCalls, tc)
		}
	}

	if l.metrics != nil {
		l.metrics.RecordLLMRequest(l.provider.Name(), "success", time.Since(start).Seconds())
	}

	state.accumulatedText = text.String()
	return toolCalls, nil
}

// executeToolsPhase runs the batch and appends one tool result turn
// per call, in batch order, each matched by correlation ID.
func (l *ControlLoop) executeToolsPhase(ctx context.Context, state *loopState, toolCalls []models.ToolCall, chunks chan<- *ResponseChunk) []models.ToolResult {
	execResults := l.executor.ExecuteAll(ctx, toolCalls)
	results := ResultsToToolResults(execResults)

	if l.metrics != nil {
		for _, er := range execResults {
			status := "success"
			if er.Error != nil || (er.Result != nil && er.Result.IsError) {
				status = "error"
			}
			l.metrics.RecordToolExecution(er.ToolName, status, er.Duration.Seconds())
		}
	}

	for i := range results {
		if results[i].ToolCallID == "" {
			results[i].ToolCallID = toolCalls[i].ID
		}

		// Each result is its own turn so escalation's result precedes
		// its siblings' in the transcript.
		if err := l.sessions.AppendMessage(ctx, state.session.ID, &models.Message{
			ID:          uuid.NewString(),
			SessionID:   state.session.ID,
			Role:        models.RoleTool,
			ToolResults: []models.ToolResult{results[i]},
			CreatedAt:   time.Now(),
		}); err != nil {
			l.logger.Warn("failed to persist tool result",
				"session_id", state.session.ID,
				"tool", toolCalls[i].Name,
				"error", err,
			)
		}

		state.session.ToolsInvoked = append(state.session.ToolsInvoked, toolCalls[i].Name)

		if !results[i].IsError {
			mergeCallerInfo(&state.session.CallerInfo, toolCalls[i].Name, toolCalls[i].Input)
		}

		if l.config.StreamToolResults {
			chunks <- &ResponseChunk{ToolResult: &results[i]}
		}
	}

	return results
}

// continueConversation extends the reasoning context with the
// assistant's tool batch and the results, in transcript order.
func (l *ControlLoop) continueConversation(state *loopState, toolCalls []models.ToolCall, results []models.ToolResult) {
	state.messages = append(state.messages, CompletionMessage{
		Role:      string(models.RoleAssistant),
		Content:   state.accumulatedText,
		ToolCalls: toolCalls,
	})
	for i := range results {
		state.messages = append(state.messages, CompletionMessage{
			Role:        string(models.RoleTool),
			ToolResults: []models.ToolResult{results[i]},
		})
	}
	state.accumulatedText = ""
}

// persistAssistantTurn appends the assistant message for this
// iteration, carrying any tool call batch.
func (l *ControlLoop) persistAssistantTurn(ctx context.Context, state *loopState, toolCalls []models.ToolCall) error {
	return l.sessions.AppendMessage(ctx, state.session.ID, &models.Message{
		ID:        uuid.NewString(),
		SessionID: state.session.ID,
		Role:      models.RoleAssistant,
		Content:   state.accumulatedText,
		ToolCalls: toolCalls,
		CreatedAt: time.Now(),
	})
}

// failTurn delivers the safe fallback reply, persists it as the
// assistant turn so the caller can retry with context intact, and
// closes the turn with the cause attached for logging.
func (l *ControlLoop) failTurn(ctx context.Context, state *loopState, chunks chan<- *ResponseChunk, cause *LoopError) {
	l.logger.Error("turn failed",
		"session_id", state.session.ID,
		"phase", cause.Phase,
		"iteration", cause.Iteration,
		"error", cause.Cause,
	)

	chunks <- &ResponseChunk{Text: FallbackReply}

	if err := l.sessions.AppendMessage(ctx, state.session.ID, &models.Message{
		ID:        uuid.NewString(),
		SessionID: state.session.ID,
		Role:      models.RoleAssistant,
		Content:   FallbackReply,
		CreatedAt: time.Now(),
	}); err != nil {
		l.logger.Warn("failed to persist fallback reply",
			"session_id", state.session.ID, "error", err)
	}
	if err := l.sessions.Update(ctx, state.session); err != nil {
		l.logger.Warn("failed to persist session state",
			"session_id", state.session.ID, "error", err)
	}

	if l.metrics != nil {
		l.metrics.RecordTurn("fallback", time.Since(state.started).Seconds())
	}

	chunks <- &ResponseChunk{Err: cause}
	chunks <- &ResponseChunk{Done: true}
}

// drainCompletion consumes the rest of a completion stream in the
// background so the provider goroutine is never left blocked on a send
// after the loop stops reading mid-stream.
func drainCompletion(ch <-chan *CompletionChunk) {
	go func() {
		for range ch {
		}
	}()
}

// prioritizeEscalation stable-reorders a batch so escalation requests
// come first. Relative order is otherwise preserved.
func prioritizeEscalation(calls []models.ToolCall) []models.ToolCall {
	if len(calls) < 2 {
		return calls
	}
	ordered := make([]models.ToolCall, 0, len(calls))
	for _, tc := range calls {
		if tc.Name == "escalate_urgent_case" {
			ordered = append(ordered, tc)
		}
	}
	if len(ordered) == 0 {
		return calls
	}
	for _, tc := range calls {
		if tc.Name != "escalate_urgent_case" {
			ordered = append(ordered, tc)
		}
	}
	return ordered
}

// callerArgs is the superset of tool arguments that feed caller state.
type callerArgs struct {
	Name          string `json:"name"`
	CallerName    string `json:"caller_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	CaseType      string `json:"case_type"`
	PracticeArea  string `json:"practice_area"`
	Urgency       string `json:"urgency"`
	PreferredTime string `json:"preferred_time"`
}

// mergeCallerInfo folds a successful tool call's arguments into the
// session's caller attributes. Empty values never overwrite populated
// fields; attributes are only added or overwritten, never cleared.
func mergeCallerInfo(info *models.CallerInfo, toolName string, input json.RawMessage) {
	var args callerArgs
	if len(input) > 0 {
		// Unknown or malformed args contribute nothing.
		_ = json.Unmarshal(input, &args)
	}

	setIfPresent(&info.Name, args.Name)
	setIfPresent(&info.Name, args.CallerName)
	setIfPresent(&info.Phone, args.Phone)
	setIfPresent(&info.Email, args.Email)
	setIfPresent(&info.CaseType, args.CaseType)
	setIfPresent(&info.CaseType, args.PracticeArea)
	setIfPresent(&info.Urgency, args.Urgency)
	setIfPresent(&info.PreferredTime, args.PreferredTime)

	switch toolName {
	case "book_consultation":
		info.ConsultationBooked = true
	case "capture_lead":
		info.LeadCaptured = true
	case "escalate_urgent_case":
		info.Urgency = models.UrgencyUrgent
	}
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
