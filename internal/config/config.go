// Package config loads and validates the foundry configuration from YAML.
// Configuration errors are fatal at startup; nothing in the decision path
// reads config files.
package config

import (
	"time"

	"github.com/workcell-labs/foundry/internal/actionspace"
	"github.com/workcell-labs/foundry/internal/router"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Database  DatabaseConfig     `yaml:"database" mapstructure:"database"`
	History   HistoryConfig      `yaml:"history" mapstructure:"history"`
	Policy    PolicyConfig       `yaml:"policy" mapstructure:"policy"`
	Tokenizer TokenizerConfig    `yaml:"tokenizer" mapstructure:"tokenizer"`
	Routing   RoutingConfig      `yaml:"routing" mapstructure:"routing"`
	Domains   []actionspace.Spec `yaml:"domains" mapstructure:"domains"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
}

// DatabaseConfig locates the SQLite store backing transitions and archived
// runs.
type DatabaseConfig struct {
	Path            string        `yaml:"path" mapstructure:"path" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
}

// HistoryConfig bounds the history selector's sources.
type HistoryConfig struct {
	// WorldRunsDir holds JSON-lines world-run summaries. Empty disables
	// the file source.
	WorldRunsDir string `yaml:"world_runs_dir" mapstructure:"world_runs_dir"`

	// ArchiveLimit caps rows fetched from the archived-run table per query.
	ArchiveLimit int `yaml:"archive_limit" mapstructure:"archive_limit" validate:"min=1"`

	// MaxSimilarRuns caps the history entries in a planner input.
	MaxSimilarRuns int `yaml:"max_similar_runs" mapstructure:"max_similar_runs" validate:"min=1"`
}

// PolicyConfig parameterizes the decision engine.
type PolicyConfig struct {
	Mode                string        `yaml:"mode" mapstructure:"mode" validate:"oneof=off log enforce"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" mapstructure:"confidence_threshold" validate:"min=0,max=1"`
	PredictTimeout      time.Duration `yaml:"predict_timeout" mapstructure:"predict_timeout"`
	ModelRef            string        `yaml:"model_ref" mapstructure:"model_ref"`

	// BlendWeight is the empirical share in the router's combined score.
	BlendWeight float64 `yaml:"blend_weight" mapstructure:"blend_weight" validate:"min=0,max=1"`
}

// TokenizerConfig enumerates the closed value sets the encoder recognizes.
// Values outside these sets encode as the unknown token.
type TokenizerConfig struct {
	Universes  []string `yaml:"universes" mapstructure:"universes"`
	JobTypes   []string `yaml:"job_types" mapstructure:"job_types"`
	Objectives []string `yaml:"objectives" mapstructure:"objectives"`

	MaxTokensPerHistoryEntry int `yaml:"max_tokens_per_history_entry" mapstructure:"max_tokens_per_history_entry" validate:"min=0"`
	MaxTotalTokens           int `yaml:"max_total_tokens" mapstructure:"max_total_tokens" validate:"min=0"`
}

// RoutingConfig holds the static routing rules and the global toolchain
// priority list.
type RoutingConfig struct {
	Rules    []router.Rule `yaml:"rules" mapstructure:"rules"`
	Priority []string      `yaml:"priority" mapstructure:"priority"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:            "foundry.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			BusyTimeout:     5 * time.Second,
		},
		History: HistoryConfig{
			ArchiveLimit:   256,
			MaxSimilarRuns: 8,
		},
		Policy: PolicyConfig{
			Mode:                "off",
			ConfidenceThreshold: 0.8,
			PredictTimeout:      2 * time.Second,
			BlendWeight:         router.DefaultBlendWeight,
		},
		Tokenizer: TokenizerConfig{
			MaxTokensPerHistoryEntry: 16,
			MaxTotalTokens:           256,
		},
	}
}
