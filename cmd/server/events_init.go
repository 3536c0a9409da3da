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
	"github.com/tomtom215/recsys/internal/eventprocessor"
	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/supervisor"
	"github.com/tomtom215/recsys/internal/websocket"
)

// initWebSocket adds the websocket hub to the API layer and enables GET /ws.
// It returns nil when the stream is disabled.
func initWebSocket(cfg *config.Config, handler *api.Handler, tree *supervisor.SupervisorTree) *websocket.Hub {
	if !cfg.Server.WebSocketEnabled {
		logging.Info().Msg("WebSocket stream disabled (WEBSOCKET_ENABLED=false)")
		return nil
	}
	hub := websocket.NewHub()
	handler.SetHub(hub, cfg.Server.CORSOrigins)
	tree.AddAPIService(hub)
	return hub
}

// initEvents connects the event bus and adds its consumers to the messaging
// layer: run-completed clears the response cache, and with a hub both event
// kinds are forwarded to websocket clients. It returns nil when events are
// disabled.
func initEvents(cfg *config.Config, handler *api.Handler, hub *websocket.Hub, tree *supervisor.SupervisorTree) (*eventprocessor.Bus, error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("Run events disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}

	logger := logging.WithComponent("events")
	bus, err := eventprocessor.NewBus(&cfg.Events, true, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize event bus: %w", err)
	}

	onRun := handler.InvalidateCache
	if hub != nil {
		onRun = func(ctx context.Context, event *eventprocessor.RunCompletedEvent) error {
			if err := handler.InvalidateCache(ctx, event); err != nil {
				return err
			}
			return hub.BroadcastRunCompleted(ctx, event)
		}
		tree.AddMessagingService(eventprocessor.NewSetGeneratedConsumer(bus.Subscriber(), bus.Topics(), hub.BroadcastSetGenerated, logger))
	}
	tree.AddMessagingService(eventprocessor.NewRunCompletedConsumer(bus.Subscriber(), bus.Topics(), onRun, logger))

	logging.Info().
		Str("driver", bus.Driver()).
		Str("url", bus.URL()).
		Str("topic", bus.Topics().RunCompleted()).
		Bool("websocket", hub != nil).
		Msg("Event consumers added to supervisor tree")
	return bus, nil
}
