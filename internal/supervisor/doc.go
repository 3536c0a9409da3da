// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

/*
Package supervisor provides process supervision for the recsys server using
suture v4.

# Overview

The server's long-running services are organized into three layers:

	RootSupervisor ("recsys")
	├── PipelineSupervisor ("pipeline-layer")
	│   └── PipelineService (if server.schedule_interval > 0)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── run-events-consumer (if events.enabled)
	│   └── set-events-consumer (if events.enabled and the hub runs)
	└── APISupervisor ("api-layer")
	    ├── websocket-hub (if server.websocket_enabled)
	    └── HTTPServerService

Each layer restarts its own services with backoff. A failing scheduled run
or a dropped NATS subscription never stops the read API.

# Logging

Supervisor events go through sutureslog into the zerolog-backed slog
handler, so restarts and panics show up in the same JSON stream as the
rest of the process:

	logger := slog.New(logging.NewSlogHandler(logging.WithComponent("supervisor")))
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}

	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout, zlog))
	tree.AddMessagingService(consumer)
	tree.AddPipelineService(services.NewPipelineService(runner,
	    services.PipelineServiceConfig{Interval: cfg.Server.ScheduleInterval}, zlog))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return tree.Serve(ctx)

# Shutdown

Canceling the context passed to Serve stops every service. Services that do
not return within TreeConfig.ShutdownTimeout are listed by
UnstoppedServiceReport.
*/
package supervisor
