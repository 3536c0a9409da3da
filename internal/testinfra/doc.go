// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package testinfra provides container helpers for integration tests.
//
// It uses testcontainers-go to start a real NATS server so that the run
// event bus can be exercised against the same broker it uses in production,
// instead of the embedded server used by the unit tests.
//
//	func TestRunEvents(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    natsC, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, natsC.Container)
//
//	    bus, err := eventprocessor.NewBus(&config.EventsConfig{
//	        Enabled: true,
//	        Driver:  eventprocessor.DriverNATS,
//	        URL:     natsC.URL,
//	    }, true, logger)
//	    // ...
//	}
//
// Every file except this one is behind the integration build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// Tests skip when Docker is not reachable. The first run may need to pull
// the image.
package testinfra
