// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestSlogHandler_Levels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "debug"},
		{slog.LevelInfo, "info"},
		{slog.LevelWarn, "warn"},
		{slog.LevelError, "error"},
		{slog.LevelError + 4, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewSlogHandler(zerolog.New(&buf).Level(zerolog.TraceLevel)))
			logger.Log(context.Background(), tt.level, "msg")
			if got := decodeLine(t, &buf)["level"]; got != tt.want {
				t.Errorf("level = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	h := NewSlogHandler(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled on a warn logger")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled on a warn logger")
	}
}

func TestSlogHandler_Attributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(zerolog.New(&buf))).
		With("service", "pipeline").
		WithGroup("supervisor").
		WithGroup("event")

	logger.Info("service restarted",
		"attempt", 3,
		"ok", true,
		"elapsed", time.Second,
		"err", errors.New("boom"),
		slog.Group("detail", "name", "api"),
	)

	m := decodeLine(t, &buf)
	checks := map[string]any{
		"message":                      "service restarted",
		"supervisor.event.service":     "pipeline",
		"supervisor.event.attempt":     float64(3),
		"supervisor.event.ok":          true,
		"supervisor.event.err":         "boom",
		"supervisor.event.detail.name": "api",
	}
	for k, want := range checks {
		if m[k] != want {
			t.Errorf("%s = %v, want %v (line %s)", k, m[k], want, buf.String())
		}
	}
	if _, ok := m["supervisor.event.elapsed"]; !ok {
		t.Errorf("duration attribute missing: %s", buf.String())
	}
}

func TestSlogHandler_ContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(zerolog.New(&buf)))

	ctx := ContextWithRunID(context.Background(), "run-7")
	logger.InfoContext(ctx, "tick")

	if !strings.Contains(buf.String(), `"run_id":"run-7"`) {
		t.Errorf("run_id missing: %s", buf.String())
	}
}

func TestSlogHandler_WithGroupEmpty(t *testing.T) {
	h := NewSlogHandler(zerolog.Nop())
	if h.WithGroup("") != h {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}
