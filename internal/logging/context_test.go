// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateIDs(t *testing.T) {
	t.Parallel()

	for name, gen := range map[string]func() string{
		"run":     GenerateRunID,
		"request": GenerateRequestID,
	} {
		a, b := gen(), gen()
		if len(a) != 36 {
			t.Errorf("%s id %q is not a UUID", name, a)
		}
		if a == b {
			t.Errorf("%s ids are not unique", name)
		}
	}
}

func TestContextIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if RunIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" {
		t.Error("expected empty ids on a bare context")
	}

	ctx = ContextWithRunID(ctx, "run-1")
	ctx = ContextWithRequestID(ctx, "req-1")
	if got := RunIDFromContext(ctx); got != "run-1" {
		t.Errorf("RunIDFromContext() = %q", got)
	}
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
}

func TestCtx(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRunID(ctx, "run-42")

	Ctx(ctx).Info().Msg("scored")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-42"`) {
		t.Errorf("run_id missing: %s", out)
	}
	if strings.Contains(out, "request_id") {
		t.Errorf("unexpected request_id: %s", out)
	}
	if strings.Count(out, "run_id") != 1 {
		t.Errorf("run_id repeated: %s", out)
	}
}

func TestCtxWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-9")

	logger := CtxWith(ctx).Str("model", "random").Logger()
	logger.Info().Msg("served")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-9"`) || !strings.Contains(out, `"model":"random"`) {
		t.Errorf("output = %s", out)
	}
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	buf := withGlobalLogger(t, "info")

	logger := LoggerFromContext(context.Background())
	logger.Info().Msg("global")

	if !strings.Contains(buf.String(), "global") {
		t.Errorf("expected global logger output, got %q", buf.String())
	}
}
