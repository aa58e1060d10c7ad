// Package config provides configuration management for txt2sql.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when neither the config file nor the
// environment provides an override.
const (
	DefaultListenAddr       = ":8090"
	DefaultLLMBaseURL       = "http://localhost:11434"
	DefaultLLMModel         = "qwen2.5-coder:14b"
	DefaultMaxAttempts      = 3
	DefaultRowLimit         = 1000
	DefaultTopKTables       = 4
	DefaultMinTableScore    = 1.0
	DefaultHistoryWindow    = 6
	DefaultPromptBudget     = 3000
	DefaultSessionTTL       = 30 * time.Minute
	DefaultMaxTurns         = 50
	DefaultQueryTimeout     = 30 * time.Second
	DefaultLLMTimeout       = 60 * time.Second
	DefaultDescriptionsPath = "config/tables.yaml"
)

// Server holds HTTP server settings.
type Server struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Database holds read-only connection settings for the queried database.
type Database struct {
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	RowLimit     int           `yaml:"row_limit"`
}

// LLM holds generation backend settings.
type LLM struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Pipeline holds orchestrator tuning knobs.
type Pipeline struct {
	MaxAttempts   int     `yaml:"max_attempts"`
	TopKTables    int     `yaml:"top_k_tables"`
	MinTableScore float64 `yaml:"min_table_score"`
	HistoryWindow int     `yaml:"history_window"`
	PromptBudget  int     `yaml:"prompt_budget"`
}

// Session holds session store retention settings.
type Session struct {
	TTL      time.Duration `yaml:"ttl"`
	MaxTurns int           `yaml:"max_turns"`
}

// History holds the optional persistent turn archive settings.
type History struct {
	Path string `yaml:"path"`
}

// Config is the root configuration for the service.
type Config struct {
	Server           Server   `yaml:"server"`
	Database         Database `yaml:"database"`
	LLM              LLM      `yaml:"llm"`
	Pipeline         Pipeline `yaml:"pipeline"`
	Session          Session  `yaml:"session"`
	History          History  `yaml:"history"`
	DescriptionsPath string   `yaml:"descriptions_path"`
}

// Default returns the configuration with all defaults applied.
func Default() Config {
	return Config{
		Server: Server{ListenAddr: DefaultListenAddr},
		Database: Database{
			QueryTimeout: DefaultQueryTimeout,
			RowLimit:     DefaultRowLimit,
		},
		LLM: LLM{
			BaseURL: DefaultLLMBaseURL,
			Model:   DefaultLLMModel,
			Timeout: DefaultLLMTimeout,
		},
		Pipeline: Pipeline{
			MaxAttempts:   DefaultMaxAttempts,
			TopKTables:    DefaultTopKTables,
			MinTableScore: DefaultMinTableScore,
			HistoryWindow: DefaultHistoryWindow,
			PromptBudget:  DefaultPromptBudget,
		},
		Session: Session{
			TTL:      DefaultSessionTTL,
			MaxTurns: DefaultMaxTurns,
		},
		DescriptionsPath: DefaultDescriptionsPath,
	}
}

// Load reads the YAML file at path (when non-empty), applies environment
// overrides, and validates the result. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays TXT2SQL_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TXT2SQL_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("TXT2SQL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TXT2SQL_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("TXT2SQL_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("TXT2SQL_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxAttempts = n
		}
	}
	if v := os.Getenv("TXT2SQL_ROW_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.RowLimit = n
		}
	}
	if v := os.Getenv("TXT2SQL_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
}

// Validate checks bounds that would otherwise cause runtime surprises.
func (c Config) Validate() error {
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be >= 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Database.RowLimit < 1 {
		return fmt.Errorf("database.row_limit must be >= 1, got %d", c.Database.RowLimit)
	}
	if c.Pipeline.TopKTables < 1 {
		return fmt.Errorf("pipeline.top_k_tables must be >= 1, got %d", c.Pipeline.TopKTables)
	}
	if c.Session.MaxTurns < 1 {
		return fmt.Errorf("session.max_turns must be >= 1, got %d", c.Session.MaxTurns)
	}
	return nil
}
