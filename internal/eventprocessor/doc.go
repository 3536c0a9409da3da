// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package eventprocessor publishes and consumes pipeline events over Watermill.
//
// # Events
//
//   - <prefix>.sets.generated: one per written recommendation set
//   - <prefix>.runs.completed: one per finished run, including failed and
//     interrupted runs
//
// Payloads are JSON (goccy/go-json) and carry a schema_version.
//
// # Drivers
//
//   - gochannel: in-process pub/sub. Used when the server runs the pipeline
//     on a schedule and in tests.
//   - nats: core NATS through watermill-nats. Lets CLI runs notify a running
//     server. With embedded_server the server process hosts the broker
//     itself (nats-server/v2).
//
// Publishing is best effort: the orchestrator logs publish failures and
// never fails a run because of them.
//
// # Usage
//
//	bus, err := eventprocessor.NewBus(&cfg.Events, true, logger)
//	defer bus.Close()
//
//	orch.SetPublisher(bus.Publisher())
//
//	consumer := eventprocessor.NewRunCompletedConsumer(bus.Subscriber(), bus.Topics(),
//	    func(ctx context.Context, e *eventprocessor.RunCompletedEvent) error {
//	        cache.Clear()
//	        return nil
//	    }, logger)
//	tree.Add(consumer)
package eventprocessor
