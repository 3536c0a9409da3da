// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Concurrency < 1 {
		t.Errorf("Concurrency = %d, want >= 1", cfg.Concurrency)
	}
	if cfg.ExcludeRated {
		t.Error("ExcludeRated should default to false")
	}
	if cfg.WriteRateLimit != 0 {
		t.Errorf("WriteRateLimit = %f, want 0", cfg.WriteRateLimit)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative rate", func(c *Config) { c.WriteRateLimit = -1 }},
		{"zero score timeout", func(c *Config) { c.ScoreTimeout = 0 }},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := DefaultConfig()
	cp := cfg.Clone()
	cp.Concurrency = 99
	if cfg.Concurrency == 99 {
		t.Error("Clone() shares state with the original")
	}
}

func TestRunRequest_JSON(t *testing.T) {
	var req RunRequest
	if err := json.Unmarshal([]byte(`{"models":["random"],"top_n":3,"seed":7}`), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(req.Models) != 1 || req.Models[0] != "random" || req.TopN != 3 || req.Seed != 7 {
		t.Errorf("Unmarshal() = %+v", req)
	}
}
