// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package main is the entry point for the recsys read API server.
//
// The server exposes the latest generated recommendations, the item and
// user catalog and the raw ratings over HTTP. It never generates
// recommendations on the request path.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 load (defaults, YAML, environment)
//  2. Logging: global zerolog logger
//  3. Database: DuckDB, read-only unless the pipeline is scheduled in-process
//  4. Response cache and HTTP router
//  5. WebSocket hub (optional): streams run progress on GET /ws
//  6. Events (optional): run-completed subscriber that clears the cache,
//     plus set and run forwarding to the hub
//  7. Pipeline (optional): scheduled runs when server.schedule_interval > 0
//  8. Supervisor tree: api, messaging and pipeline layers
//
// # Example Usage
//
//	export RECSYS_DB_PATH=/data/recsys.duckdb
//	export RECSYS_DB_READONLY=true
//	export EVENTS_ENABLED=true
//	export NATS_URL=nats://nats:4222
//	./recsys-server
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
// within server.shutdown_timeout and the database is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/recsys/internal/api"
	"github.com/tomtom215/recsys/internal/cache"
	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/database"
	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/supervisor"
	"github.com/tomtom215/recsys/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	if err := serve(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func serve(cfg *config.Config) error {
	scheduled := cfg.Server.ScheduleInterval > 0
	if scheduled && cfg.Database.ReadOnly {
		return fmt.Errorf("server.schedule_interval requires a writable database (database.read_only=false)")
	}

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("read_only", cfg.Database.ReadOnly).
		Bool("events_enabled", cfg.Events.Enabled).
		Dur("schedule_interval", cfg.Server.ScheduleInterval).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var respCache *cache.Cache
	if cfg.Server.CacheTTL > 0 {
		respCache = cache.New(cfg.Server.CacheTTL)
		defer respCache.Close()
	}
	handler := api.NewHandler(db, respCache)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server)))

	tree, err := supervisor.NewSupervisorTree(
		logging.NewSlogLogger(),
		supervisor.DefaultTreeConfig(),
	)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	hub := initWebSocket(cfg, handler, tree)

	bus, err := initEvents(cfg, handler, hub, tree)
	if err != nil {
		return err
	}
	if bus != nil {
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
	}

	if scheduled {
		closePipeline, err := initPipeline(ctx, cfg, db, bus, handler, hub, tree)
		if err != nil {
			return err
		}
		defer closePipeline()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logging.WithComponent("http")))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	return nil
}
