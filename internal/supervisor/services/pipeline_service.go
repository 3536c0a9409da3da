// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package services provides Suture service wrappers for long-running components.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recsys/internal/recommend"
)

// PipelineRunner runs one pipeline pass with its configured defaults.
type PipelineRunner interface {
	RunOnce(ctx context.Context) (*recommend.RunReport, error)
}

// PipelineServiceConfig holds scheduling for the pipeline service.
type PipelineServiceConfig struct {
	// RunOnStartup triggers a run when the service starts.
	RunOnStartup bool

	// Interval between scheduled runs.
	Interval time.Duration

	// RunTimeout bounds a single run. Zero means no limit beyond ctx.
	RunTimeout time.Duration
}

// PipelineService runs the recommendation pipeline on a schedule under
// Suture supervision.
type PipelineService struct {
	runner PipelineRunner
	config PipelineServiceConfig
	logger zerolog.Logger
	name   string
}

// NewPipelineService creates a new pipeline service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipelineService(runner PipelineRunner, cfg PipelineServiceConfig, logger zerolog.Logger) *PipelineService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &PipelineService{
		runner: runner,
		config: cfg,
		logger: logger.With().Str("service", "pipeline").Logger(),
		name:   "pipeline-scheduler",
	}
}

// Serve implements the suture.Service interface.
func (s *PipelineService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("pipeline scheduler starting")

	if s.config.RunOnStartup {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("pipeline scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.logger.Debug().Msg("scheduled run triggered")
			s.run(ctx)
		}
	}
}

// run performs one pass. Failures are logged and retried on the next tick.
func (s *PipelineService) run(ctx context.Context) {
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	report, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, recommend.ErrRunInProgress):
		s.logger.Debug().Msg("previous run still active; skipping tick")
	case err != nil:
		s.logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("scheduled run failed")
	case report != nil:
		s.logger.Info().
			Str("run_id", report.RunID).
			Int64("written", report.Written).
			Bool("interrupted", report.Interrupted).
			Dur("duration", time.Since(start)).
			Msg("scheduled run complete")
	}
}

// String returns the service name for logging.
func (s *PipelineService) String() string {
	return s.name
}
