// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Target outcomes recorded per model.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Store write results.
const (
	WriteSuccess     = "success"
	WritePersistErr  = "persist_error"
	WriteUnavailable = "unavailable"
)

var (
	// Pipeline Metrics
	PipelineTargets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_pipeline_targets_total",
			Help: "Targets processed by the pipeline, by model and outcome",
		},
		[]string{"model", "outcome"}, // outcome: written, skipped, failed
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_pipeline_runs_total",
			Help: "Pipeline runs by terminal state",
		},
		[]string{"state"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recsys_pipeline_run_duration_seconds",
			Help:    "Wall time of pipeline runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"state"},
	)

	PipelineInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recsys_pipeline_inflight_targets",
			Help: "Targets currently being scored or written",
		},
	)

	PipelineLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recsys_pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last completed pipeline run",
		},
	)

	// Store Metrics
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_store_writes_total",
			Help: "Recommendation set writes by result",
		},
		[]string{"result"},
	)

	StoreWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recsys_store_write_duration_seconds",
			Help:    "Duration of single recommendation set writes",
			Buckets: prometheus.DefBuckets,
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recsys_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Embedding Metrics
	EmbeddingBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recsys_embedding_build_duration_seconds",
			Help:    "Time to embed the full catalog",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"provider", "mode"}, // mode: memory, streaming
	)

	EmbeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_embedding_cache_lookups_total",
			Help: "Persistent embedding cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recsys_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_events_published_total",
			Help: "Events published by topic",
		},
		[]string{"topic"},
	)

	EventsPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_events_publish_errors_total",
			Help: "Event publish failures by topic",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_events_consumed_total",
			Help: "Events consumed by topic",
		},
		[]string{"topic"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recsys_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recsys_api_active_requests",
			Help: "Number of active API requests",
		},
	)

	APICacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recsys_api_cache_lookups_total",
			Help: "API response cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordTarget records the outcome of one target of a model.
func RecordTarget(model, outcome string) {
	PipelineTargets.WithLabelValues(model, outcome).Inc()
}

// RecordRun records a finished run.
func RecordRun(state string, duration time.Duration) {
	PipelineRuns.WithLabelValues(state).Inc()
	PipelineRunDuration.WithLabelValues(state).Observe(duration.Seconds())
	if state == "completed" {
		PipelineLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// TrackInFlight adjusts the in-flight target gauge.
func TrackInFlight(inc bool) {
	if inc {
		PipelineInFlight.Inc()
	} else {
		PipelineInFlight.Dec()
	}
}

// RecordStoreWrite records one store write.
func RecordStoreWrite(result string, duration time.Duration) {
	StoreWrites.WithLabelValues(result).Inc()
	StoreWriteDuration.Observe(duration.Seconds())
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordEmbeddingBuild records the time to embed the catalog.
func RecordEmbeddingBuild(provider, mode string, duration time.Duration) {
	EmbeddingBuildDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
}

// RecordEmbeddingCache records a persistent embedding cache lookup.
func RecordEmbeddingCache(hit bool) {
	EmbeddingCacheLookups.WithLabelValues(hitLabel(hit)).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
// States follow gobreaker's numbering: 0 closed, 1 half-open, 2 open.
func RecordBreakerTransition(name, from, to string, toState int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
}

// RecordEventPublish records a publish attempt.
func RecordEventPublish(topic string, err error) {
	if err != nil {
		EventsPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsume records a consumed event.
func RecordEventConsume(topic string) {
	EventsConsumed.WithLabelValues(topic).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAPICache records an API cache lookup.
func RecordAPICache(hit bool) {
	APICacheLookups.WithLabelValues(hitLabel(hit)).Inc()
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// Push sends the default registry to a Prometheus Pushgateway. Batch runs
// exit before a scrape could happen, so the CLI pushes once at the end.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
