// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package main runs one offline recommendation generation pass.
//
// Configuration is loaded the same way as the server (defaults, YAML file,
// environment) and command-line flags override it:
//
//	recsys --models random,item_similarity --top-n 5 --seed 42
//	recsys --config /etc/recsys/config.yaml --exclude-rated --streaming
//
// The run report is printed to stdout as JSON. The process exits 0 when
// generation completed, even if individual writes failed, and 1 on a fatal
// failure or an interrupted run.
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
	"github.com/tomtom215/recsys/internal/eventprocessor"
	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/metrics"
	"github.com/tomtom215/recsys/internal/pipeline"
	"github.com/tomtom215/recsys/internal/recommend"
)

const (
	exitOK    = 0
	exitFatal = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the parsed command line. Only flags that were set
// override configuration.
type options struct {
	configPath   string
	models       string
	topN         int
	seed         int64
	concurrency  int
	excludeRated bool
	streaming    bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("recsys", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default: CONFIG_PATH or ./config.yaml)")
	fs.StringVar(&opts.models, "models", "random,item_similarity", "Comma-separated model names to run")
	fs.IntVar(&opts.topN, "top-n", 5, "Maximum items per recommendation set")
	fs.Int64Var(&opts.seed, "seed", 42, "Seed for sampling models")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "Worker pool size (default: number of CPUs)")
	fs.BoolVar(&opts.excludeRated, "exclude-rated", false, "Exclude items a user already rated")
	fs.BoolVar(&opts.streaming, "streaming", false, "Spill embeddings to disk instead of holding them in memory")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// apply copies every explicitly set flag onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["models"] {
		cfg.Pipeline.Models = config.SplitList(o.models)
	}
	if o.set["top-n"] {
		cfg.Pipeline.TopN = o.topN
	}
	if o.set["seed"] {
		cfg.Pipeline.Seed = o.seed
	}
	if o.set["concurrency"] {
		cfg.Pipeline.Concurrency = o.concurrency
	}
	if o.set["exclude-rated"] {
		cfg.Pipeline.ExcludeRated = o.excludeRated
	}
	if o.set["streaming"] {
		cfg.Embedding.Streaming = o.streaming
	}
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: stderr,
	})
	logger := logging.WithComponent("recsys")

	if cfg.Database.ReadOnly {
		logger.Error().Msg("database.read_only is set; the pipeline needs a writable store")
		return exitFatal
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open database")
		return exitFatal
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing database")
		}
	}()

	runner, err := pipeline.New(ctx, cfg, db, logging.Logger())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build pipeline")
		return exitFatal
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing pipeline")
		}
	}()

	if cfg.Events.Enabled {
		bus, err := eventprocessor.NewBus(&cfg.Events, false, logging.WithComponent("events"))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect event bus")
			return exitFatal
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing event bus")
			}
		}()
		runner.SetPublisher(bus.Publisher())
	}

	report, runErr := runner.RunOnce(ctx)

	if cfg.Metrics.PushURL != "" {
		// Push with a fresh context so an interrupted run still reports.
		if err := metrics.Push(context.WithoutCancel(ctx), cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			logger.Warn().Err(err).Str("url", cfg.Metrics.PushURL).Msg("Failed to push metrics")
		}
	}

	if report != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Warn().Err(err).Msg("Failed to write run report")
		}
	}

	return exitCode(report, runErr)
}

// exitCode maps a run outcome onto the process exit status.
func exitCode(report *recommend.RunReport, err error) int {
	if err != nil {
		logging.Error().Err(err).Msg("Run failed")
		return exitFatal
	}
	if report == nil || report.State != recommend.StateCompleted || report.Interrupted {
		return exitFatal
	}
	return exitOK
}
