package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/agent/providers"
	"github.com/morrisonlaw/clara/internal/config"
	"github.com/morrisonlaw/clara/internal/firm"
	"github.com/morrisonlaw/clara/internal/gateway"
	"github.com/morrisonlaw/clara/internal/knowledge"
	"github.com/morrisonlaw/clara/internal/observability"
	"github.com/morrisonlaw/clara/internal/sessions"
	"github.com/morrisonlaw/clara/internal/tools"
)

// runtime bundles the wired application components shared by the
// serve and chat commands.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  sessions.Store
	loop   *agent.ControlLoop

	closers []func() error
}

func (rt *runtime) Close() {
	for _, closer := range rt.closers {
		if err := closer(); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
}

// loadConfig loads the file when given, defaults otherwise.
func loadConfig(configPath string) (*config.Config, error) {
	if strings.TrimSpace(configPath) == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func buildLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func buildStore(cfg *config.Config, rt *runtime) (sessions.Store, error) {
	switch cfg.Sessions.Backend {
	case "sqlite":
		store, err := sessions.NewSQLiteStore(cfg.Sessions.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		return store, nil
	default:
		return sessions.NewMemoryStore(), nil
	}
}

func buildProvider(ctx context.Context, cfg *config.Config) (agent.LLMProvider, string, error) {
	name := cfg.LLM.DefaultProvider
	providerCfg := cfg.ProviderConfig(name)

	switch name {
	case "openai":
		apiKey := providerCfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, "", errors.New("openai API key missing: set llm.providers.openai.api_key or OPENAI_API_KEY")
		}
		return providers.NewOpenAIProvider(apiKey), providerCfg.DefaultModel, nil

	default:
		apiKey := providerCfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       apiKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
		if err != nil {
			return nil, "", fmt.Errorf("anthropic provider: %w (set llm.providers.anthropic.api_key or ANTHROPIC_API_KEY)", err)
		}
		return provider, providerCfg.DefaultModel, nil
	}
}

func buildRetriever(ctx context.Context, cfg *config.Config) (knowledge.Retriever, error) {
	if cfg.Knowledge.Backend == "bedrock" {
		return knowledge.NewBedrockRetriever(ctx, cfg.Knowledge.Region, cfg.Knowledge.KnowledgeBaseID)
	}
	return knowledge.NewStaticRetriever(), nil
}

// buildRuntime wires the full agent stack from configuration.
func buildRuntime(ctx context.Context, configPath string, debug bool) (*runtime, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rt := &runtime{cfg: cfg}
	rt.logger = buildLogger(cfg, debug)

	store, err := buildStore(cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = store

	provider, model, err := buildProvider(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	retriever, err := buildRetriever(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("knowledge retriever: %w", err)
	}

	locks := sessions.NewLockManager(cfg.Sessions.LockTimeout)

	loopConfig := &agent.LoopConfig{
		MaxIterations: cfg.Agent.MaxIterations,
		MaxTokens:     cfg.Agent.MaxTokens,
		HistoryLimit:  cfg.Agent.HistoryLimit,
		MaxWallTime:   cfg.Agent.MaxWallTime,
		ExecutorConfig: &agent.ExecutorConfig{
			MaxConcurrency: cfg.Agent.MaxConcurrency,
			DefaultTimeout: cfg.Agent.ToolTimeout,
		},
		StreamToolResults: true,
	}

	loop := agent.NewControlLoop(provider, nil, store, locks, loopConfig, rt.logger)
	loop.SetModel(model)

	if cfg.Agent.PolicyPath != "" {
		policy, err := os.ReadFile(cfg.Agent.PolicyPath)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		loop.SetPolicy(string(policy))
	}

	if err := tools.RegisterAll(loop.Registry(), retriever, rt.logger); err != nil {
		rt.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	rt.loop = loop
	return rt, nil
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("starting Clara gateway",
		"version", version,
		"commit", commit,
		"addr", rt.cfg.Server.Addr(),
		"sessions_backend", rt.cfg.Sessions.Backend,
		"llm_provider", rt.cfg.LLM.DefaultProvider,
	)

	if rt.cfg.Sessions.IdleTTL > 0 {
		sweeper := sessions.NewSweeper(rt.store, rt.cfg.Sessions.IdleTTL, rt.cfg.Sessions.SweepInterval, rt.logger)
		go sweeper.Run(ctx)
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	rt.loop.SetMetrics(metrics)
	server := gateway.NewServer(rt.loop, rt.store, metrics, rt.logger, gateway.Config{
		Addr:            rt.cfg.Server.Addr(),
		ShutdownTimeout: rt.cfg.Server.ShutdownTimeout,
		TurnTimeout:     rt.cfg.Agent.MaxWallTime,
		PublicURL:       os.Getenv("CLARA_PUBLIC_URL"),
		VoiceID:         os.Getenv("ELEVENLABS_VOICE_ID"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.logger.Info("shutdown signal received, draining requests")
	if err := server.Shutdown(context.Background()); err != nil {
		return err
	}
	rt.logger.Info("Clara gateway stopped gracefully")
	return nil
}

func runChat(ctx context.Context, configPath string, debug bool, sessionID string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	if sessionID == "" {
		sessionID = uuid.NewString()[:8]
	}

	out := os.Stdout
	fmt.Fprintln(out, "CLARA | "+firm.Name)
	fmt.Fprintln(out, "Family Law | Personal Injury | Criminal Defense | Estate Planning")
	fmt.Fprintln(out, "Type quit to end | Type help for commands")
	fmt.Fprintf(out, "Session: %s | %s\n\n", sessionID, time.Now().Format("3:04 PM"))

	fmt.Fprintf(out, "Clara: %s\n\n", firm.Greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "quit"):
			fmt.Fprintln(out, "\nSession ended.")
			return nil
		case strings.EqualFold(input, "help"):
			printChatHelp(out)
			continue
		}

		if err := streamTurn(ctx, rt, out, sessionID, input); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "\nSession interrupted.")
				return nil
			}
			return err
		}
	}

	return scanner.Err()
}

// streamTurn runs one turn and prints reply text as it streams.
func streamTurn(ctx context.Context, rt *runtime, out io.Writer, sessionID, input string) error {
	chunks, err := rt.loop.Run(ctx, sessionID, input)
	if err != nil {
		return err
	}

	fmt.Fprint(out, "\nClara: ")
	for chunk := range chunks {
		if chunk.Err != nil {
			rt.logger.Debug("turn degraded", "error", chunk.Err)
			continue
		}
		fmt.Fprint(out, chunk.Text)
	}
	fmt.Fprint(out, "\n\n")
	return ctx.Err()
}

func printChatHelp(out io.Writer) {
	fmt.Fprintln(out, `
Commands:
  quit - End session
  help - Show commands

Try saying:
  I need help with a custody battle
  I was just in a car accident
  I was just arrested help
  What are your fees for estate planning`)
}

func runSessionsList(ctx context.Context, configPath string, limit int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: slog.Default()}
	store, err := buildStore(cfg, rt)
	if err != nil {
		return err
	}
	defer rt.Close()

	list, err := store.List(ctx, sessions.ListOptions{Limit: limit})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-12s  %-8s  %s\n", "ID", "CALLER", "CASE TYPE", "URGENCY", "UPDATED")
	for _, session := range list {
		caller := session.CallerInfo.Name
		if caller == "" {
			caller = "-"
		}
		caseType := session.CallerInfo.CaseType
		if caseType == "" {
			caseType = "-"
		}
		fmt.Printf("%-36s  %-20s  %-12s  %-8s  %s\n",
			session.ID,
			caller,
			caseType,
			session.CallerInfo.Urgency,
			session.UpdatedAt.Format(time.RFC3339),
		)
	}
	return nil
}
