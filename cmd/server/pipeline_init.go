// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/recsys/internal/api"
	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/database"
	"github.com/tomtom215/recsys/internal/eventprocessor"
	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/pipeline"
	"github.com/tomtom215/recsys/internal/recommend"
	"github.com/tomtom215/recsys/internal/supervisor"
	"github.com/tomtom215/recsys/internal/supervisor/services"
	"github.com/tomtom215/recsys/internal/websocket"
)

// initPipeline builds the pipeline runner and schedules it in the pipeline
// layer. Run events go through bus when it is set, which also clears this
// server's cache through its own consumer. Without a bus the cache is
// cleared, and websocket clients notified, in-process.
func initPipeline(ctx context.Context, cfg *config.Config, db *database.DB, bus *eventprocessor.Bus, handler *api.Handler, hub *websocket.Hub, tree *supervisor.SupervisorTree) (func(), error) {
	logger := logging.WithComponent("pipeline")

	runner, err := pipeline.New(ctx, cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	if bus != nil {
		runner.SetPublisher(bus.Publisher())
	} else {
		runner.SetPublisher(localInvalidator{handler: handler, hub: hub})
	}

	tree.AddPipelineService(services.NewPipelineService(runner, services.PipelineServiceConfig{
		RunOnStartup: true,
		Interval:     cfg.Server.ScheduleInterval,
	}, logger))

	logging.Info().
		Strs("models", cfg.Pipeline.Models).
		Dur("interval", cfg.Server.ScheduleInterval).
		Msg("Pipeline scheduler added to supervisor tree")

	return func() {
		runner.Stop()
		if err := runner.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing pipeline")
		}
	}, nil
}

// localInvalidator stands in for the event bus when none is configured. It
// clears the response cache after runs and forwards events to the hub when
// one is set.
type localInvalidator struct {
	handler *api.Handler
	hub     *websocket.Hub
}

func (l localInvalidator) PublishSetGenerated(ctx context.Context, set *recommend.RecommendationSet) error {
	if l.hub == nil {
		return nil
	}
	return l.hub.BroadcastSetGenerated(ctx, eventprocessor.NewSetGeneratedEvent(set))
}

func (l localInvalidator) PublishRunCompleted(ctx context.Context, report *recommend.RunReport) error {
	event := eventprocessor.NewRunCompletedEvent(report)
	if err := l.handler.InvalidateCache(ctx, event); err != nil {
		return err
	}
	if l.hub == nil {
		return nil
	}
	return l.hub.BroadcastRunCompleted(ctx, event)
}
