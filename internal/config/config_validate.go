// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDatabase,
		c.validatePipeline,
		c.validateEmbedding,
		c.validateStore,
		c.validateEvents,
		c.validateMetrics,
		c.validateServer,
		c.validateLogging,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateDatabase validates DuckDB settings
func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("RECSYS_DB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be non-negative")
	}
	return nil
}

// validatePipeline validates the default run request and orchestrator tuning
func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if len(p.Models) == 0 {
		return fmt.Errorf("RECSYS_MODELS must name at least one model")
	}
	for _, m := range p.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("RECSYS_MODELS contains an empty model name")
		}
	}
	if p.TopN < 1 {
		return fmt.Errorf("RECSYS_TOP_N must be a positive integer")
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("RECSYS_CONCURRENCY must be at least 1")
	}
	if p.WriteRateLimit < 0 {
		return fmt.Errorf("RECSYS_WRITE_RATE_LIMIT must be non-negative")
	}
	if p.ScoreTimeout <= 0 || p.WriteTimeout <= 0 {
		return fmt.Errorf("RECSYS_SCORE_TIMEOUT and RECSYS_WRITE_TIMEOUT must be positive")
	}
	return nil
}

// validEmbeddingProviders are the supported embedding backends
var validEmbeddingProviders = map[string]bool{
	"hashing": true,
	"openai":  true,
}

// validateEmbedding validates embedder settings
func (c *Config) validateEmbedding() error {
	e := c.Embedding
	if !validEmbeddingProviders[e.Provider] {
		return fmt.Errorf("EMBEDDING_PROVIDER must be one of: hashing, openai")
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be non-negative")
	}
	if e.BatchSize < 1 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be at least 1")
	}
	if e.MemoSize < 0 {
		return fmt.Errorf("EMBEDDING_MEMO_SIZE must be non-negative")
	}
	if e.CacheTTL < 0 {
		return fmt.Errorf("EMBEDDING_CACHE_TTL must be non-negative")
	}
	if e.BaseURL != "" {
		if err := validateHTTPURL(e.BaseURL, "EMBEDDING_BASE_URL"); err != nil {
			return err
		}
	}
	return nil
}

// validateStore validates circuit breaker settings (only if enabled)
func (c *Config) validateStore() error {
	if !c.Store.BreakerEnabled {
		return nil
	}
	if c.Store.FailureThreshold < 1 {
		return fmt.Errorf("STORE_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("STORE_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

// validateEvents validates event publishing settings (only if enabled)
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}

	switch c.Events.Driver {
	case "gochannel":
		return nil
	case "nats":
	default:
		return fmt.Errorf("EVENTS_DRIVER must be one of: gochannel, nats")
	}

	if c.Events.EmbeddedServer {
		if c.Events.EmbeddedPort < 0 || c.Events.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 0 and 65535")
		}
		return nil
	}
	if err := validateNATSURL(c.Events.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

// validateMetrics validates the Pushgateway URL when set
func (c *Config) validateMetrics() error {
	if c.Metrics.PushURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Metrics.PushURL, "METRICS_PUSH_URL"); err != nil {
		return err
	}
	if c.Metrics.Job == "" {
		return fmt.Errorf("METRICS_JOB is required when METRICS_PUSH_URL is set")
	}
	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	s := c.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if s.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be non-negative")
	}
	if s.RateLimitReqs > 0 && s.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("API_CACHE_TTL must be non-negative")
	}
	if s.ScheduleInterval < 0 {
		return fmt.Errorf("RECSYS_SCHEDULE_INTERVAL must be non-negative")
	}
	return nil
}

// validLogLevels are the accepted logging.level values
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats are the accepted logging.format values
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
