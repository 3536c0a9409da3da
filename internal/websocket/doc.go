// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package websocket streams pipeline progress to browser clients.
//
// The Hub fans out two message types to every connected client:
//
//   - set_generated: one per written recommendation set
//   - run_completed: one per finished run
//
// Clients may send {"type":"ping"} and receive {"type":"pong"}.
//
// # Lifecycle
//
// The hub runs as a suture service (Serve). On shutdown every client
// connection is closed. Broadcasts never block: when the broadcast buffer is
// full the message is dropped and logged, and a client whose send buffer is
// full is disconnected.
//
// # Usage
//
//	hub := websocket.NewHub()
//	tree.AddAPIService(hub)
//
//	consumer := eventprocessor.NewSetGeneratedConsumer(bus.Subscriber(), bus.Topics(),
//	    hub.BroadcastSetGenerated, logger)
//
//	// in the HTTP handler, after upgrading:
//	client := websocket.NewClient(hub, conn)
//	hub.Register <- client
//	client.Start()
package websocket
