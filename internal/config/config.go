// Package config loads the foreman configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all foreman configuration.
type Config struct {
	// Reasoner configures the language-model collaborator.
	Reasoner ReasonerConfig `yaml:"reasoner"`

	// Orchestrator configures the plan/replan controller.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Shell configures the process session manager.
	Shell ShellConfig `yaml:"shell"`

	// KB configures the knowledge base.
	KB KBConfig `yaml:"kb"`

	// Workspace is the default working directory handed to workers.
	Workspace string `yaml:"workspace"`

	// DataDir holds the checkpoint and knowledge-base databases.
	DataDir string `yaml:"data_dir"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ReasonerConfig configures the Gemini-backed reasoner client.
type ReasonerConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	Timeout         string `yaml:"timeout"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// OrchestratorConfig bounds the control loop.
type OrchestratorConfig struct {
	// MaxCycles is the hard Delegate/Replan recursion bound. Exceeding it
	// aborts the run.
	MaxCycles int `yaml:"max_cycles"`

	// MaxToolCallsPerTurn caps tool calls executed from a single reasoner
	// turn inside a worker loop.
	MaxToolCallsPerTurn int `yaml:"max_tool_calls_per_turn"`

	// MaxQueryRewrites bounds the knowledge-base rewrite loop.
	MaxQueryRewrites int `yaml:"max_query_rewrites"`
}

// ShellConfig tunes the process session manager.
type ShellConfig struct {
	// GracePeriod is how long a terminate signal gets before force-kill.
	GracePeriod string `yaml:"grace_period"`

	// SettleDelay is the pause after writing to a process's stdin.
	SettleDelay string `yaml:"settle_delay"`

	// PreviewChars bounds the output preview returned by exec.
	PreviewChars int `yaml:"preview_chars"`
}

// KBConfig configures the knowledge base store and ingestion.
type KBConfig struct {
	// DatabaseFile is the sqlite file name under DataDir.
	DatabaseFile string `yaml:"database_file"`

	// EmbeddingModel is the GenAI embedding model.
	EmbeddingModel string `yaml:"embedding_model"`

	// TopK is how many documents retrieval returns.
	TopK int `yaml:"top_k"`

	// ChunkSize and ChunkOverlap tune the ingest splitter.
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// WatchDir, when set, is ingested automatically on file changes.
	WatchDir string `yaml:"watch_dir"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Reasoner: ReasonerConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "5m",
		},
		Orchestrator: OrchestratorConfig{
			MaxCycles:           100,
			MaxToolCallsPerTurn: 50,
			MaxQueryRewrites:    3,
		},
		Shell: ShellConfig{
			GracePeriod:  "5s",
			SettleDelay:  "500ms",
			PreviewChars: 1000,
		},
		KB: KBConfig{
			DatabaseFile:   "knowledge.db",
			EmbeddingModel: "gemini-embedding-001",
			TopK:           5,
			ChunkSize:      1000,
			ChunkOverlap:   200,
		},
		Workspace: ".",
		DataDir:   "data",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the config file at path, applying defaults for missing fields
// and environment overrides for secrets. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Reasoner.APIKey = key
	}
	return cfg, nil
}

// CheckpointPath returns the checkpoint database path under DataDir.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.DataDir, "checkpoints.db")
}

// KBPath returns the knowledge-base database path under DataDir.
func (c *Config) KBPath() string {
	return filepath.Join(c.DataDir, c.KB.DatabaseFile)
}

// ParseDuration parses s, falling back to def when empty or invalid.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
