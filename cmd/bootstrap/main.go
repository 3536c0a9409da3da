// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package main creates the recsys tables and loads the CSV exports.
//
//	bootstrap --data-dir ./data
//
// items.csv and users.csv are required; ratings.csv is loaded when present.
// Rows are upserted, so running it twice is safe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/database"
	"github.com/tomtom215/recsys/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", "data", "Directory holding items.csv, users.csv and ratings.csv")
	configPath := fs.String("config", "", "Path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: stderr,
	})

	dbCfg := cfg.Database
	dbCfg.ReadOnly = false
	db, err := database.New(&dbCfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	report, err := db.Bootstrap(ctx, *dataDir)
	if err != nil {
		logging.Error().Err(err).Str("data_dir", *dataDir).Msg("Bootstrap failed")
		return 1
	}

	logging.Info().
		Str("db_path", db.Path()).
		Int("items", report.Items).
		Int("users", report.Users).
		Int("ratings", report.Ratings).
		Int("skipped", report.Skipped).
		Msg("Bootstrap complete")

	if err := json.NewEncoder(stdout).Encode(report); err != nil {
		logging.Warn().Err(err).Msg("Failed to write bootstrap report")
	}
	return 0
}
