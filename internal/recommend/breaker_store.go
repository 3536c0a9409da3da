// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recsys/internal/metrics"
)

// BreakerConfig tunes the write circuit breaker.
type BreakerConfig struct {
	// Name labels the breaker in metrics and logs.
	Name string `json:"name"`

	// ConsecutiveFailures opens the breaker. Only failures that indicate an
	// unreachable store count; rejected rows do not.
	ConsecutiveFailures uint32 `json:"consecutive_failures"`

	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `json:"max_requests"`

	// Interval resets the closed-state counts.
	Interval time.Duration `json:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `json:"timeout"`
}

// DefaultBreakerConfig returns the write breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "recommendation-store",
		ConsecutiveFailures: 5,
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             2 * time.Minute,
	}
}

// BreakerStore wraps a Store so that a store which stops answering is
// reported as *StoreUnavailableError instead of one failed write per target.
type BreakerStore struct {
	next   Store
	cb     *gobreaker.CircuitBreaker[struct{}]
	name   string
	logger zerolog.Logger
}

// NewBreakerStore wraps next with a circuit breaker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreakerStore(next Store, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig().Name
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}

	bs := &BreakerStore{
		next:   next,
		name:   cfg.Name,
		logger: logger.With().Str("component", "breaker").Str("breaker", cfg.Name).Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	bs.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isUnreachable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			bs.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.RecordBreakerTransition(name, from.String(), to.String(), int(to))
		},
	})
	return bs
}

// GetCatalog delegates to the wrapped store.
func (b *BreakerStore) GetCatalog(ctx context.Context) (*Catalog, error) {
	return b.next.GetCatalog(ctx)
}

// RatedItems delegates when the wrapped store also serves ratings.
func (b *BreakerStore) RatedItems(ctx context.Context) (map[int64][]int64, error) {
	rs, ok := b.next.(RatingSource)
	if !ok {
		return nil, errors.New("store does not provide ratings")
	}
	return rs.RatedItems(ctx)
}

// Put writes set through the breaker.
func (b *BreakerStore) Put(ctx context.Context, set *RecommendationSet) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Put(ctx, set)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &StoreUnavailableError{Err: err}
	}
	return err
}

// State returns the breaker state name.
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

// isUnreachable classifies errors that say nothing about the row and
// everything about the connection.
func isUnreachable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded)
}
