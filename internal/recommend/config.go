// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"fmt"
	"runtime"
	"time"
)

const (
	// DefaultTopN is the number of items per set when none is requested.
	DefaultTopN = 5

	// DefaultSeed keeps default runs reproducible.
	DefaultSeed int64 = 42
)

// Config contains orchestrator settings.
type Config struct {
	// Concurrency bounds the number of targets scored and written at once.
	// Default: runtime.NumCPU().
	Concurrency int `json:"concurrency"`

	// ExcludeRated removes items a user has already rated from that user's
	// sampling pool. Only sampling models honour it.
	// Default: false.
	ExcludeRated bool `json:"exclude_rated"`

	// WriteRateLimit caps store writes per second. Zero disables pacing.
	// Default: 0.
	WriteRateLimit float64 `json:"write_rate_limit"`

	// ScoreTimeout bounds a single target's scoring call.
	// Default: 30s.
	ScoreTimeout time.Duration `json:"score_timeout"`

	// WriteTimeout bounds a single store write.
	// Default: 10s.
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:    runtime.NumCPU(),
		ExcludeRated:   false,
		WriteRateLimit: 0,
		ScoreTimeout:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.WriteRateLimit < 0 {
		return fmt.Errorf("%w: write_rate_limit must be non-negative, got %f", ErrInvalidConfig, c.WriteRateLimit)
	}
	if c.ScoreTimeout <= 0 {
		return fmt.Errorf("%w: score_timeout must be positive, got %v", ErrInvalidConfig, c.ScoreTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write_timeout must be positive, got %v", ErrInvalidConfig, c.WriteTimeout)
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// RunRequest is the validated input of a single orchestration run.
type RunRequest struct {
	// Models lists the registry names to run, in order. Names are checked
	// against the registry, not a pattern, so any unregistered name is an
	// UnknownModelError.
	Models []string `json:"models" validate:"required,min=1"`

	// TopN is the maximum number of items per set.
	TopN int `json:"top_n" validate:"gt=0"`

	// Seed drives seed-dependent models. Any value is valid.
	Seed int64 `json:"seed"`
}
