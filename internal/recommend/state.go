// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// RunState is the lifecycle state of one orchestration run.
type RunState int32

const (
	StateNotStarted RunState = iota
	StateLoading
	StateGenerating
	StateCompleted
	StateFailed
)

// String returns the lowercase state name used in logs and metrics.
func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLoading:
		return "loading"
	case StateGenerating:
		return "generating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name in JSON reports.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether s -> to is a legal edge.
// Failed is reachable from Loading and Generating only.
func (s RunState) CanTransition(to RunState) bool {
	switch s {
	case StateNotStarted:
		return to == StateLoading
	case StateLoading:
		return to == StateGenerating || to == StateFailed
	case StateGenerating:
		return to == StateCompleted || to == StateFailed
	default:
		return false
	}
}

// ModelReport counts outcomes for one model of a run.
type ModelReport struct {
	Model   string `json:"model"`
	Target  string `json:"target_type"`
	Targets int64  `json:"targets"`
	Written int64  `json:"written"`
	Skipped int64  `json:"skipped"`
	Failed  int64  `json:"failed"`
}

// RunReport summarises a run. Counters are filled from atomics once the
// worker pool has drained, so a returned report is never written again.
type RunReport struct {
	RunID       string         `json:"run_id"`
	Models      []string       `json:"models"`
	TopN        int            `json:"top_n"`
	Seed        int64          `json:"seed"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	State       RunState       `json:"state"`
	History     []RunState     `json:"-"`
	Targets     int64          `json:"targets"`
	Written     int64          `json:"written"`
	Skipped     int64          `json:"skipped"`
	Failed      int64          `json:"failed"`
	Interrupted bool           `json:"interrupted"`
	PerModel    []*ModelReport `json:"per_model"`
}

// Processed is the number of targets that reached a final outcome.
func (r *RunReport) Processed() int64 {
	return r.Written + r.Skipped + r.Failed
}

// Pending is the number of targets never processed.
func (r *RunReport) Pending() int64 {
	if p := r.Targets - r.Processed(); p > 0 {
		return p
	}
	return 0
}

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders the run-level outcome, e.g. "3 of 120 writes failed".
func (r *RunReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d writes failed", r.Failed, r.Written+r.Failed)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", %d targets skipped", r.Skipped)
	}
	if p := r.Pending(); p > 0 {
		fmt.Fprintf(&b, ", %d pending", p)
	}
	return b.String()
}

// modelCounters is the lock-free accumulator behind a ModelReport.
type modelCounters struct {
	targets int64
	written atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func (c *modelCounters) snapshot(m Model) *ModelReport {
	return &ModelReport{
		Model:   m.Name(),
		Target:  string(m.Target()),
		Targets: c.targets,
		Written: c.written.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
	}
}
