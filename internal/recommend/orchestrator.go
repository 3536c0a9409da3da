// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/metrics"
	"github.com/tomtom215/recsys/internal/validation"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// EventPublisher receives pipeline notifications. Publishing is best effort;
// errors are logged and never change a run's outcome.
type EventPublisher interface {
	PublishSetGenerated(ctx context.Context, set *RecommendationSet) error
	PublishRunCompleted(ctx context.Context, report *RunReport) error
}

// Orchestrator drives a run: resolve models, load the catalog, score every
// target of every model on a bounded worker pool, and persist each set.
type Orchestrator struct {
	registry *Registry
	store    Store
	config   *Config
	logger   zerolog.Logger

	publisher EventPublisher
	limiter   *rate.Limiter
	now       func() time.Time

	running atomic.Bool
	state   atomic.Int32

	mu     sync.Mutex
	active *run
	last   *RunReport
}

// NewOrchestrator creates an orchestrator. cfg is cloned; nil uses defaults.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewOrchestrator(registry *Registry, store Store, cfg *Config, logger zerolog.Logger) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		registry: registry,
		store:    store,
		config:   cfg.Clone(),
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		now:      time.Now,
	}
	if cfg.WriteRateLimit > 0 {
		burst := int(cfg.WriteRateLimit)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.WriteRateLimit), burst)
	}
	return o, nil
}

// SetPublisher attaches an event publisher. Call before Run.
func (o *Orchestrator) SetPublisher(p EventPublisher) {
	o.publisher = p
}

// State returns the state of the active run, or of the last run.
func (o *Orchestrator) State() RunState {
	return RunState(o.state.Load())
}

// Running reports whether a run is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastReport returns the report of the most recent finished run.
func (o *Orchestrator) LastReport() *RunReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Stop asks the active run to stop dispatching targets. In-flight targets
// finish and are persisted; the run then completes as interrupted.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	r := o.active
	o.mu.Unlock()
	if r != nil {
		r.stop()
	}
}

// run holds the per-run mutable state shared by workers.
type run struct {
	id          string
	generatedAt time.Time
	topN        int
	report      *RunReport
	logger      zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}

	haltOnce sync.Once
	haltCh   chan struct{}
	fatal    error

	written atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64

	counters map[string]*modelCounters
}

func (r *run) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *run) halt(err error) {
	r.haltOnce.Do(func() {
		r.fatal = err
		close(r.haltCh)
	})
}

// stopped reports a stop request or a cancelled ctx, and marks the report
// interrupted when either is set.
func (r *run) stopped(ctx context.Context) bool {
	select {
	case <-r.stopCh:
	case <-ctx.Done():
	default:
		return false
	}
	r.report.Interrupted = true
	return true
}

func (r *run) halted() bool {
	select {
	case <-r.haltCh:
		return true
	default:
		return false
	}
}

type job struct {
	model    Model
	targetID int64
}

// Run executes one orchestration run. The returned report is non-nil once
// the request is valid and every model name resolved.
//
// Errors: *validation.RequestValidationError or *UnknownModelError before any
// load; *CatalogUnavailableError from Loading; *StoreUnavailableError when the
// store stops accepting writes mid-run.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, verr)
	}
	models, err := o.registry.Resolve(req.Models)
	if err != nil {
		return nil, err
	}

	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	r := o.newRun(req, models)
	o.mu.Lock()
	o.active = r
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.active = nil
		o.last = r.report
		o.mu.Unlock()
	}()

	ctx = logging.ContextWithRunID(ctx, r.id)
	ctx = logging.ContextWithLogger(ctx, o.logger)

	r.logger.Info().
		Strs("models", r.report.Models).
		Int("top_n", req.TopN).
		Int64("seed", req.Seed).
		Int("concurrency", o.config.Concurrency).
		Msg("run starting")

	o.transition(r, StateLoading)
	catalog, err := o.load(ctx, models, req.Seed)
	if err != nil {
		return o.finish(ctx, r, models, err)
	}

	o.transition(r, StateGenerating)
	for _, m := range models {
		n := int64(len(catalog.TargetIDs(m.Target())))
		r.counters[m.Name()].targets = n
		r.report.Targets += n
	}

	o.generate(ctx, r, models, catalog)

	if r.fatal != nil {
		var su *StoreUnavailableError
		if !errors.As(r.fatal, &su) {
			su = &StoreUnavailableError{Err: r.fatal}
		}
		o.collect(r, models)
		return o.finish(ctx, r, models, &StoreUnavailableError{
			Err:       su.Err,
			Completed: r.report.Written,
			Pending:   r.report.Pending(),
		})
	}
	return o.finish(ctx, r, models, nil)
}

func (o *Orchestrator) newRun(req RunRequest, models []Model) *run {
	id := logging.GenerateRunID()
	names := make([]string, len(models))
	counters := make(map[string]*modelCounters, len(models))
	for i, m := range models {
		names[i] = m.Name()
		counters[m.Name()] = &modelCounters{}
	}
	now := o.now().UTC()

	o.state.Store(int32(StateNotStarted))
	return &run{
		id:          id,
		generatedAt: now,
		topN:        req.TopN,
		logger:      o.logger.With().Str("run_id", id).Logger(),
		stopCh:      make(chan struct{}),
		haltCh:      make(chan struct{}),
		counters:    counters,
		report: &RunReport{
			RunID:     id,
			Models:    names,
			TopN:      req.TopN,
			Seed:      req.Seed,
			StartedAt: now,
			State:     StateNotStarted,
			History:   []RunState{StateNotStarted},
		},
	}
}

func (o *Orchestrator) transition(r *run, to RunState) {
	from := r.report.State
	if !from.CanTransition(to) {
		r.logger.Error().Str("from", from.String()).Str("to", to.String()).Msg("illegal run state transition")
		return
	}
	r.report.State = to
	r.report.History = append(r.report.History, to)
	o.state.Store(int32(to))
	r.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("run state")
}

// load fetches the catalog and prepares every model against it.
func (o *Orchestrator) load(ctx context.Context, models []Model, seed int64) (*Catalog, error) {
	params := RunParams{Seed: seed}

	catalog, err := o.store.GetCatalog(ctx)
	if err != nil {
		var cu *CatalogUnavailableError
		if errors.As(err, &cu) {
			return nil, err
		}
		return nil, &CatalogUnavailableError{Err: err}
	}
	if catalog == nil {
		return nil, &CatalogUnavailableError{Err: errors.New("store returned no catalog")}
	}

	if o.config.ExcludeRated {
		rs, ok := o.store.(RatingSource)
		if !ok {
			return nil, &CatalogUnavailableError{Err: errors.New("exclude_rated requires a store that provides ratings")}
		}
		rated, err := rs.RatedItems(ctx)
		if err != nil {
			return nil, &CatalogUnavailableError{Err: fmt.Errorf("load ratings: %w", err)}
		}
		params.RatedItems = rated
	}

	logging.Ctx(ctx).Info().
		Int("items", len(catalog.Items())).
		Int("users", len(catalog.Users())).
		Msg("catalog loaded")

	for _, m := range models {
		start := time.Now()
		if err := m.Prepare(ctx, catalog, params); err != nil {
			return nil, fmt.Errorf("prepare model %s: %w", m.Name(), err)
		}
		logging.Ctx(ctx).Debug().
			Str("model", m.Name()).
			Dur("duration", time.Since(start)).
			Msg("model prepared")
	}
	return catalog, nil
}

// generate dispatches targets to the worker pool until every target is
// processed, the run is stopped, or the store becomes unavailable.
func (o *Orchestrator) generate(ctx context.Context, r *run, models []Model, catalog *Catalog) {
	jobs := make(chan job)

	// Workers outlive cancellation of ctx so that in-flight targets are
	// persisted; only dispatch observes it.
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < o.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				o.process(workCtx, r, j)
			}
		}()
	}

dispatch:
	for _, m := range models {
		for _, id := range catalog.TargetIDs(m.Target()) {
			if r.halted() || r.stopped(ctx) {
				break dispatch
			}
			select {
			case <-r.haltCh:
				break dispatch
			case <-r.stopCh:
				r.report.Interrupted = true
				break dispatch
			case <-ctx.Done():
				r.report.Interrupted = true
				break dispatch
			case jobs <- job{model: m, targetID: id}:
			}
		}
	}
	close(jobs)
	wg.Wait()

	if r.report.Interrupted {
		r.logger.Warn().Msg("run interrupted; in-flight targets drained")
	}
}

// process scores and persists one target. Per-target failures are counted
// and logged; store unavailability halts the run.
func (o *Orchestrator) process(ctx context.Context, r *run, j job) {
	metrics.TrackInFlight(true)
	defer metrics.TrackInFlight(false)

	m := j.model
	c := r.counters[m.Name()]
	key := TargetKey(m.Target(), j.targetID)
	logger := r.logger.With().Str("model", m.Name()).Str("target", key).Logger()

	scoreCtx, cancel := context.WithTimeout(ctx, o.config.ScoreTimeout)
	items, err := m.Score(scoreCtx, j.targetID, r.topN)
	cancel()
	if err != nil {
		o.skip(r, c, m)
		if IsRecoverable(err) {
			logger.Warn().Err(err).Msg("target skipped")
		} else {
			logger.Error().Err(err).Msg("scoring failed; target skipped")
		}
		return
	}

	set := &RecommendationSet{
		RunID:       r.id,
		TargetType:  m.Target(),
		TargetID:    j.targetID,
		Model:       m.Name(),
		GeneratedAt: r.generatedAt,
		Items:       items,
	}
	if err := set.Validate(r.topN); err != nil {
		o.skip(r, c, m)
		logger.Error().Err(err).Msg("model produced an invalid set; target skipped")
		return
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			logger.Warn().Err(err).Msg("write pacing failed")
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, o.config.WriteTimeout)
	start := time.Now()
	err = o.store.Put(writeCtx, set)
	cancel()

	var unavailable *StoreUnavailableError
	switch {
	case err == nil:
		metrics.RecordStoreWrite(metrics.WriteSuccess, time.Since(start))
		metrics.RecordTarget(m.Name(), metrics.OutcomeWritten)
		c.written.Add(1)
		r.written.Add(1)
		o.publishSet(ctx, logger, set)

	case errors.As(err, &unavailable):
		metrics.RecordStoreWrite(metrics.WriteUnavailable, time.Since(start))
		metrics.RecordTarget(m.Name(), metrics.OutcomeFailed)
		c.failed.Add(1)
		r.failed.Add(1)
		logger.Error().Err(err).Msg("store unavailable; halting run")
		r.halt(unavailable)

	default:
		metrics.RecordStoreWrite(metrics.WritePersistErr, time.Since(start))
		metrics.RecordTarget(m.Name(), metrics.OutcomeFailed)
		c.failed.Add(1)
		r.failed.Add(1)
		perr := &StorePersistError{TargetKey: key, Model: m.Name(), Err: err}
		logger.Error().Err(perr).Msg("write failed; continuing")
	}
}

func (o *Orchestrator) skip(r *run, c *modelCounters, m Model) {
	metrics.RecordTarget(m.Name(), metrics.OutcomeSkipped)
	c.skipped.Add(1)
	r.skipped.Add(1)
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (o *Orchestrator) publishSet(ctx context.Context, logger zerolog.Logger, set *RecommendationSet) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSetGenerated(ctx, set); err != nil {
		logger.Warn().Err(err).Msg("failed to publish set event")
	}
}

// collect copies the atomic counters into the report.
func (o *Orchestrator) collect(r *run, models []Model) {
	r.report.Written = r.written.Load()
	r.report.Skipped = r.skipped.Load()
	r.report.Failed = r.failed.Load()
	r.report.PerModel = r.report.PerModel[:0]
	for _, m := range models {
		r.report.PerModel = append(r.report.PerModel, r.counters[m.Name()].snapshot(m))
	}
}

// finish moves the run to its terminal state, records metrics, and
// publishes the completion event.
func (o *Orchestrator) finish(ctx context.Context, r *run, models []Model, runErr error) (*RunReport, error) {
	o.collect(r, models)
	r.report.FinishedAt = o.now().UTC()

	if runErr != nil {
		o.transition(r, StateFailed)
	} else {
		o.transition(r, StateCompleted)
	}
	metrics.RecordRun(r.report.State.String(), r.report.Duration())

	var event *zerolog.Event
	if runErr != nil {
		event = r.logger.Error().Err(runErr)
	} else {
		event = r.logger.Info()
	}
	event.
		Str("state", r.report.State.String()).
		Int64("targets", r.report.Targets).
		Int64("written", r.report.Written).
		Int64("skipped", r.report.Skipped).
		Int64("failed", r.report.Failed).
		Bool("interrupted", r.report.Interrupted).
		Dur("duration", r.report.Duration()).
		Msg(r.report.Summary())

	if o.publisher != nil {
		if err := o.publisher.PublishRunCompleted(context.WithoutCancel(ctx), r.report); err != nil {
			r.logger.Warn().Err(err).Msg("failed to publish run event")
		}
	}
	return r.report, runErr
}
