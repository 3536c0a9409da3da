// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional config file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Command-line flags of cmd/recsys are applied on top of the loaded value.
//
// Example - Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	db, err := database.New(&cfg.Database)
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Store     StoreConfig     `koanf:"store"`
	Events    EventsConfig    `koanf:"events"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig holds DuckDB connection settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`   // Number of DuckDB threads (0 = use NumCPU)
	ReadOnly  bool   `koanf:"read_only"` // Open the database read-only (read API only)
}

// PipelineConfig holds the default run request and orchestrator tuning.
//
// Environment Variables:
//   - RECSYS_MODELS: Comma-separated model names (default: random,item_similarity)
//   - RECSYS_TOP_N: Items per recommendation set (default: 5)
//   - RECSYS_SEED: Seed for sampling models (default: 42)
//   - RECSYS_CONCURRENCY: Targets processed at once (default: NumCPU)
//   - RECSYS_EXCLUDE_RATED: Drop rated items from user samples (default: false)
//   - RECSYS_WRITE_RATE_LIMIT: Store writes per second, 0 = unlimited
type PipelineConfig struct {
	Models         []string      `koanf:"models"`
	TopN           int           `koanf:"top_n"`
	Seed           int64         `koanf:"seed"`
	Concurrency    int           `koanf:"concurrency"`
	ExcludeRated   bool          `koanf:"exclude_rated"`
	WriteRateLimit float64       `koanf:"write_rate_limit"`
	ScoreTimeout   time.Duration `koanf:"score_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// EmbeddingConfig selects the text embedder and how vectors are held.
type EmbeddingConfig struct {
	// Provider is "hashing" (local, deterministic) or "openai".
	Provider string `koanf:"provider"`

	// Dimensions is the vector length. Zero lets the provider decide.
	Dimensions int `koanf:"dimensions"`

	// BatchSize is the number of texts per embedder call.
	BatchSize int `koanf:"batch_size"`

	Model   string        `koanf:"model"`
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// Streaming spills vectors to a per-run BadgerDB under SpillDir.
	Streaming bool   `koanf:"streaming"`
	SpillDir  string `koanf:"spill_dir"`
	MemoSize  int    `koanf:"memo_size"`

	// CacheDir enables the persistent embedding cache when set.
	CacheDir string        `koanf:"cache_dir"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// StoreConfig holds the circuit breaker wrapped around store writes.
type StoreConfig struct {
	BreakerEnabled   bool          `koanf:"breaker_enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold"` // Consecutive unreachable errors before opening
	MaxRequests      uint32        `koanf:"max_requests"`      // Probe requests allowed while half-open
	Interval         time.Duration `koanf:"interval"`          // Closed-state counter reset period
	Timeout          time.Duration `koanf:"timeout"`           // Open-state duration before probing
}

// EventsConfig holds run event publishing settings.
type EventsConfig struct {
	// Enabled controls whether run events are published.
	Enabled bool `koanf:"enabled"`

	// Driver is "gochannel" (in-process) or "nats".
	Driver string `koanf:"driver"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server instead of dialling URL.
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedPort   int    `koanf:"embedded_port"`
	TopicPrefix    string `koanf:"topic_prefix"`
	ClientName     string `koanf:"client_name"`
}

// MetricsConfig holds Prometheus Pushgateway settings for batch runs.
type MetricsConfig struct {
	PushURL string `koanf:"push_url"` // Empty disables pushing
	Job     string `koanf:"job"`
}

// ServerConfig holds read API settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"` // Requests per window per client, 0 = disabled
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`

	// ScheduleInterval runs the pipeline periodically inside the server.
	// Zero disables scheduled runs.
	ScheduleInterval time.Duration `koanf:"schedule_interval"`

	// WebSocketEnabled streams run and set events to clients on /ws.
	WebSocketEnabled bool `koanf:"websocket_enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}
