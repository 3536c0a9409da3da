// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/recommend"
	"github.com/tomtom215/recsys/internal/recommend/algorithms"
	"github.com/tomtom215/recsys/internal/recommend/storage"
)

// Runner owns one configured orchestrator together with the models and
// caches it needs. It is safe to call Run repeatedly; runs do not overlap.
type Runner struct {
	cfg      *config.Config
	registry *recommend.Registry
	orch     *recommend.Orchestrator
	breaker  *recommend.BreakerStore
	closers  []io.Closer
	logger   zerolog.Logger
}

// New builds the registry, wraps store with the write circuit breaker when
// enabled, and creates the orchestrator.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(ctx context.Context, cfg *config.Config, store recommend.Store, logger zerolog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", recommend.ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", recommend.ErrInvalidConfig)
	}

	r := &Runner{
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}

	registry, closers, err := BuildRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	r.registry = registry
	r.closers = closers

	if cfg.Store.BreakerEnabled {
		r.breaker = recommend.NewBreakerStore(store, breakerConfig(&cfg.Store), logger)
		store = r.breaker
	}

	orch, err := recommend.NewOrchestrator(registry, store, orchestratorConfig(&cfg.Pipeline), logger)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.orch = orch
	return r, nil
}

// BuildRegistry registers the built-in models. Returned closers release
// the similarity index and the embedding cache.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func BuildRegistry(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*recommend.Registry, []io.Closer, error) {
	emb := &cfg.Embedding

	embedder, meta, err := algorithms.NewEmbedder(ctx, algorithms.EmbedderConfig{
		Provider:   emb.Provider,
		Dimensions: emb.Dimensions,
		Model:      emb.Model,
		APIKey:     emb.APIKey,
		BaseURL:    emb.BaseURL,
		Timeout:    emb.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", recommend.ErrInvalidConfig, err)
	}

	var closers []io.Closer
	opts := algorithms.SimilarityOptions{
		BatchSize: emb.BatchSize,
		Streaming: emb.Streaming,
		SpillDir:  emb.SpillDir,
		MemoSize:  emb.MemoSize,
	}
	if emb.CacheDir != "" {
		embCache, err := storage.OpenEmbeddingCache(storage.Options{
			Dir:         emb.CacheDir,
			SyncWrites:  true,
			Compression: true,
		}, emb.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
		opts.Cache = embCache
		closers = append(closers, embCache)
	}

	similarity := algorithms.NewSimilarityModel(embedder, meta, opts)
	// The model closes before the cache it reads from.
	closers = append([]io.Closer{similarity}, closers...)

	registry := recommend.NewRegistry(logger)
	for _, m := range []recommend.Model{
		algorithms.NewSamplingModel(algorithms.ModelRandom, recommend.TargetUser),
		algorithms.NewSamplingModel(algorithms.ModelRandomItem, recommend.TargetItem),
		similarity,
	} {
		if err := registry.Register(m); err != nil {
			closeAll(closers)
			return nil, nil, err
		}
	}
	registry.Seal()

	return registry, closers, nil
}

// SetPublisher attaches a run event publisher.
func (r *Runner) SetPublisher(p recommend.EventPublisher) {
	r.orch.SetPublisher(p)
}

// Registry returns the sealed model registry.
func (r *Runner) Registry() *recommend.Registry {
	return r.registry
}

// DefaultRequest returns the run request configured under pipeline.
func (r *Runner) DefaultRequest() recommend.RunRequest {
	models := make([]string, len(r.cfg.Pipeline.Models))
	copy(models, r.cfg.Pipeline.Models)
	return recommend.RunRequest{
		Models: models,
		TopN:   r.cfg.Pipeline.TopN,
		Seed:   r.cfg.Pipeline.Seed,
	}
}

// Run executes one run.
func (r *Runner) Run(ctx context.Context, req recommend.RunRequest) (*recommend.RunReport, error) {
	start := time.Now()
	report, err := r.orch.Run(ctx, req)
	if report != nil {
		r.logger.Info().
			Str("run_id", report.RunID).
			Str("state", report.State.String()).
			Int64("targets", report.Targets).
			Str("summary", report.Summary()).
			Dur("duration", time.Since(start)).
			Msg("pipeline run finished")
	}
	return report, err
}

// RunOnce executes a run with DefaultRequest. Used by the scheduler.
func (r *Runner) RunOnce(ctx context.Context) (*recommend.RunReport, error) {
	return r.Run(ctx, r.DefaultRequest())
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.orch.Running()
}

// Stop asks the active run to stop dispatching new targets.
func (r *Runner) Stop() {
	r.orch.Stop()
}

// BreakerState returns the write breaker state, or "disabled".
func (r *Runner) BreakerState() string {
	if r.breaker == nil {
		return "disabled"
	}
	return r.breaker.State()
}

// Close releases model indexes and the embedding cache.
func (r *Runner) Close() error {
	return closeAll(r.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func orchestratorConfig(p *config.PipelineConfig) *recommend.Config {
	cfg := recommend.DefaultConfig()
	if p.Concurrency > 0 {
		cfg.Concurrency = p.Concurrency
	}
	cfg.ExcludeRated = p.ExcludeRated
	cfg.WriteRateLimit = p.WriteRateLimit
	if p.ScoreTimeout > 0 {
		cfg.ScoreTimeout = p.ScoreTimeout
	}
	if p.WriteTimeout > 0 {
		cfg.WriteTimeout = p.WriteTimeout
	}
	return cfg
}

func breakerConfig(s *config.StoreConfig) recommend.BreakerConfig {
	cfg := recommend.DefaultBreakerConfig()
	if s.FailureThreshold > 0 {
		cfg.ConsecutiveFailures = s.FailureThreshold
	}
	if s.MaxRequests > 0 {
		cfg.MaxRequests = s.MaxRequests
	}
	if s.Interval > 0 {
		cfg.Interval = s.Interval
	}
	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout
	}
	return cfg
}
