// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package logging

import (
	"sort"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter implements watermill.LoggerAdapter on zerolog.
// Watermill's info messages are chatty per-message lifecycle logs, so they
// are written at debug level.
type WatermillAdapter struct {
	logger zerolog.Logger
}

// NewWatermillAdapter wraps logger for Watermill publishers, subscribers and routers.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatermillAdapter(logger zerolog.Logger) *WatermillAdapter {
	return &WatermillAdapter{logger: logger.With().Str("component", "watermill").Logger()}
}

// Error logs at error level.
func (w *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(w.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs at debug level.
func (w *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	withFields(w.logger.Debug(), fields).Msg(msg)
}

// Debug logs at debug level.
func (w *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(w.logger.Debug(), fields).Msg(msg)
}

// Trace logs at trace level.
func (w *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(w.logger.Trace(), fields).Msg(msg)
}

// With returns an adapter with fields attached to every entry.
func (w *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.logger.With()
	for _, k := range sortedKeys(fields) {
		ctx = ctx.Interface(k, fields[k])
	}
	return &WatermillAdapter{logger: ctx.Logger()}
}

func withFields(event *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	if event == nil {
		return nil
	}
	for _, k := range sortedKeys(fields) {
		event = event.Interface(k, fields[k])
	}
	return event
}

func sortedKeys(fields watermill.LogFields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ watermill.LoggerAdapter = (*WatermillAdapter)(nil)
