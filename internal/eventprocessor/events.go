// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsys/internal/recommend"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to an event payload.
const SchemaVersion = 1

// Event type suffixes appended to the configured topic prefix.
const (
	// EventTypeSetGenerated is published once per written recommendation set.
	EventTypeSetGenerated = "sets.generated"
	// EventTypeRunCompleted is published when a run reaches a terminal state.
	EventTypeRunCompleted = "runs.completed"
)

// Topics resolves subjects under a common prefix, e.g. "recsys.runs.completed".
type Topics struct {
	Prefix string
}

// SetGenerated returns the subject for set-generated events.
func (t Topics) SetGenerated() string { return t.join(EventTypeSetGenerated) }

// RunCompleted returns the subject for run-completed events.
func (t Topics) RunCompleted() string { return t.join(EventTypeRunCompleted) }

func (t Topics) join(eventType string) string {
	if t.Prefix == "" {
		return eventType
	}
	return t.Prefix + "." + eventType
}

// SetGeneratedEvent announces that one recommendation set was persisted.
// Items are not included; consumers read them through the API.
type SetGeneratedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	RunID         string    `json:"run_id"`
	Model         string    `json:"model"`
	TargetType    string    `json:"target_type"`
	TargetID      int64     `json:"target_id"`
	TargetKey     string    `json:"target_key"`
	ItemCount     int       `json:"item_count"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewSetGeneratedEvent builds the event for a written set.
func NewSetGeneratedEvent(set *recommend.RecommendationSet) *SetGeneratedEvent {
	return &SetGeneratedEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		RunID:         set.RunID,
		Model:         set.Model,
		TargetType:    string(set.TargetType),
		TargetID:      set.TargetID,
		TargetKey:     set.TargetKey(),
		ItemCount:     len(set.Items),
		GeneratedAt:   set.GeneratedAt.UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *SetGeneratedEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.RunID == "" {
		return &ValidationError{Field: "run_id", Message: "required"}
	}
	if e.Model == "" {
		return &ValidationError{Field: "model", Message: "required"}
	}
	if !recommend.TargetType(e.TargetType).Valid() {
		return &ValidationError{Field: "target_type", Message: fmt.Sprintf("invalid value %q", e.TargetType)}
	}
	return nil
}

// RunCompletedEvent summarizes a finished run. The server drops its cached
// responses when it receives one.
type RunCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	RunID         string    `json:"run_id"`
	Models        []string  `json:"models"`
	State         string    `json:"state"`
	Targets       int64     `json:"targets"`
	Written       int64     `json:"written"`
	Skipped       int64     `json:"skipped"`
	Failed        int64     `json:"failed"`
	Interrupted   bool      `json:"interrupted"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Summary       string    `json:"summary"`
}

// NewRunCompletedEvent builds the event for a finished run.
func NewRunCompletedEvent(report *recommend.RunReport) *RunCompletedEvent {
	return &RunCompletedEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		RunID:         report.RunID,
		Models:        append([]string(nil), report.Models...),
		State:         report.State.String(),
		Targets:       report.Targets,
		Written:       report.Written,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		Interrupted:   report.Interrupted,
		StartedAt:     report.StartedAt.UTC(),
		FinishedAt:    report.FinishedAt.UTC(),
		Summary:       report.Summary(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *RunCompletedEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.RunID == "" {
		return &ValidationError{Field: "run_id", Message: "required"}
	}
	if e.State == "" {
		return &ValidationError{Field: "state", Message: "required"}
	}
	return nil
}

// validatable is implemented by every event payload.
type validatable interface {
	Validate() error
}

// marshalEvent validates and encodes an event payload.
func marshalEvent(event validatable) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DecodeRunCompleted decodes and validates a run-completed payload.
func DecodeRunCompleted(data []byte) (*RunCompletedEvent, error) {
	var event RunCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return &event, nil
}

// DecodeSetGenerated decodes and validates a set-generated payload.
func DecodeSetGenerated(data []byte) (*SetGeneratedEvent, error) {
	var event SetGeneratedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return &event, nil
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
