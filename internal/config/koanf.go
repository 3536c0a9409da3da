// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recsys/config.yaml",
	"/etc/recsys/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "data/recsys.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
			ReadOnly:  false,
		},
		Pipeline: PipelineConfig{
			Models:         []string{"random", "item_similarity"},
			TopN:           5,
			Seed:           42,
			Concurrency:    runtime.NumCPU(),
			ExcludeRated:   false,
			WriteRateLimit: 0,
			ScoreTimeout:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Dimensions: 384,
			BatchSize:  32,
			Timeout:    30 * time.Second,
			Streaming:  false,
			MemoSize:   1024,
			CacheTTL:   0, // Cached embeddings never expire
		},
		Store: StoreConfig{
			BreakerEnabled:   true,
			FailureThreshold: 5,
			MaxRequests:      3,
			Interval:         time.Minute,
			Timeout:          2 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:        false,
			Driver:         "gochannel",
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			EmbeddedPort:   4222,
			TopicPrefix:    "recsys",
			ClientName:     "recsys",
		},
		Metrics: MetricsConfig{
			PushURL: "",
			Job:     "recsys",
		},
		Server: ServerConfig{
			Port:             8080,
			Host:             "0.0.0.0",
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			CORSOrigins:      []string{"*"},
			RateLimitReqs:    100,
			RateLimitWindow:  time.Minute,
			CacheTTL:         5 * time.Minute,
			ScheduleInterval: 0,
			WebSocketEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in defaults without reading files or the environment.
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: Override any mapped setting
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file. An empty path skips the file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// RECSYS_TOP_N -> pipeline.top_n
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"pipeline.models",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (defaults or YAML)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if err := k.Set(path, SplitList(strVal)); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// SplitList splits a comma-separated list, trimming blanks and dropping empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Database
	"recsys_db_path":     "database.path",
	"duckdb_path":        "database.path",
	"duckdb_max_memory":  "database.max_memory",
	"duckdb_threads":     "database.threads",
	"recsys_db_readonly": "database.read_only",

	// Pipeline
	"recsys_models":           "pipeline.models",
	"recsys_top_n":            "pipeline.top_n",
	"recsys_seed":             "pipeline.seed",
	"recsys_concurrency":      "pipeline.concurrency",
	"recsys_exclude_rated":    "pipeline.exclude_rated",
	"recsys_write_rate_limit": "pipeline.write_rate_limit",
	"recsys_score_timeout":    "pipeline.score_timeout",
	"recsys_write_timeout":    "pipeline.write_timeout",

	// Embedding
	"embedding_provider":   "embedding.provider",
	"embedding_dimensions": "embedding.dimensions",
	"embedding_batch_size": "embedding.batch_size",
	"embedding_model":      "embedding.model",
	"embedding_api_key":    "embedding.api_key",
	"embedding_base_url":   "embedding.base_url",
	"embedding_timeout":    "embedding.timeout",
	"embedding_streaming":  "embedding.streaming",
	"embedding_spill_dir":  "embedding.spill_dir",
	"embedding_memo_size":  "embedding.memo_size",
	"embedding_cache_dir":  "embedding.cache_dir",
	"embedding_cache_ttl":  "embedding.cache_ttl",

	// Store circuit breaker
	"store_breaker_enabled":   "store.breaker_enabled",
	"store_failure_threshold": "store.failure_threshold",
	"store_max_requests":      "store.max_requests",
	"store_breaker_interval":  "store.interval",
	"store_breaker_timeout":   "store.timeout",

	// Events
	"events_enabled":      "events.enabled",
	"events_driver":       "events.driver",
	"nats_url":            "events.url",
	"nats_embedded":       "events.embedded_server",
	"nats_embedded_port":  "events.embedded_port",
	"events_topic_prefix": "events.topic_prefix",
	"nats_client_name":    "events.client_name",

	// Metrics
	"metrics_push_url": "metrics.push_url",
	"metrics_job":      "metrics.job",

	// Server
	"http_port":                "server.port",
	"http_host":                "server.host",
	"http_read_timeout":        "server.read_timeout",
	"http_write_timeout":       "server.write_timeout",
	"http_idle_timeout":        "server.idle_timeout",
	"http_shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":             "server.cors_origins",
	"rate_limit_requests":      "server.rate_limit_reqs",
	"rate_limit_window":        "server.rate_limit_window",
	"api_cache_ttl":            "server.cache_ttl",
	"recsys_schedule_interval": "server.schedule_interval",
	"websocket_enabled":        "server.websocket_enabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables are skipped so that unrelated environment variables
// cannot pollute the configuration.
//
// Examples:
//   - RECSYS_DB_PATH -> database.path
//   - RECSYS_TOP_N -> pipeline.top_n
//   - NATS_URL -> events.url
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
