// Package config loads and validates the front-desk service
// configuration from YAML, with environment-variable expansion so
// secrets stay out of config files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Clara service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port the HTTP gateway binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SessionsConfig struct {
	// Backend selects the session store: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// IdleTTL evicts sessions with no activity for this long. Zero
	// disables eviction.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// LockTimeout bounds the wait for a session's write lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type LLMConfig struct {
	// DefaultProvider selects the reasoning service: "anthropic" or
	// "openai".
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

type AgentConfig struct {
	// MaxIterations caps reasoning rounds per caller message.
	MaxIterations int `yaml:"max_iterations"`

	// MaxTokens limits the length of each reasoning response.
	MaxTokens int `yaml:"max_tokens"`

	// HistoryLimit is how many stored turns each reasoning request sees.
	HistoryLimit int `yaml:"history_limit"`

	// MaxWallTime bounds one full conversational turn. Zero disables.
	MaxWallTime time.Duration `yaml:"max_wall_time"`

	// ToolTimeout bounds a single tool execution.
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// MaxConcurrency caps tools running in parallel.
	MaxConcurrency int `yaml:"max_concurrency"`

	// PolicyPath optionally overrides the built-in behavioral policy
	// with the contents of a text file.
	PolicyPath string `yaml:"policy_path"`
}

type KnowledgeConfig struct {
	// Backend selects the retriever: "static" or "bedrock".
	Backend string `yaml:"backend"`

	// Region is the AWS region for the bedrock backend.
	Region string `yaml:"region"`

	// KnowledgeBaseID identifies the Bedrock knowledge base.
	KnowledgeBaseID string `yaml:"knowledge_base_id"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file. Environment variables
// referenced as ${VAR} or $VAR are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = "memory"
	}
	if cfg.Sessions.SQLitePath == "" {
		cfg.Sessions.SQLitePath = "clara.db"
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = time.Minute
	}
	if cfg.Sessions.LockTimeout == 0 {
		cfg.Sessions.LockTimeout = 30 * time.Second
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}

	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 6
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 1024
	}
	if cfg.Agent.HistoryLimit == 0 {
		cfg.Agent.HistoryLimit = 50
	}
	if cfg.Agent.ToolTimeout == 0 {
		cfg.Agent.ToolTimeout = 30 * time.Second
	}
	if cfg.Agent.MaxConcurrency == 0 {
		cfg.Agent.MaxConcurrency = 5
	}

	if cfg.Knowledge.Backend == "" {
		cfg.Knowledge.Backend = "static"
	}
	if cfg.Knowledge.Region == "" {
		cfg.Knowledge.Region = "us-east-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate rejects configurations the service cannot run with.
func (cfg *Config) Validate() error {
	switch cfg.Sessions.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown sessions backend %q (want memory or sqlite)", cfg.Sessions.Backend)
	}

	switch cfg.LLM.DefaultProvider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q (want anthropic or openai)", cfg.LLM.DefaultProvider)
	}

	switch cfg.Knowledge.Backend {
	case "static", "bedrock":
	default:
		return fmt.Errorf("unknown knowledge backend %q (want static or bedrock)", cfg.Knowledge.Backend)
	}
	if cfg.Knowledge.Backend == "bedrock" && cfg.Knowledge.KnowledgeBaseID == "" {
		return fmt.Errorf("knowledge.knowledge_base_id is required for the bedrock backend")
	}

	if cfg.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	return nil
}

// ProviderConfig returns the settings for the named provider, or a zero
// value if none are configured.
func (cfg *Config) ProviderConfig(name string) LLMProviderConfig {
	if cfg.LLM.Providers == nil {
		return LLMProviderConfig{}
	}
	return cfg.LLM.Providers[name]
}
