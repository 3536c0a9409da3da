// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/logging"
)

// defaultQueryTimeout bounds queries issued without a caller deadline.
const defaultQueryTimeout = 30 * time.Second

// DB wraps the DuckDB connection and provides data access methods
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database. It does not create or alter tables; call
// CreateSchema for that (bootstrap only).
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	if cfg.Path != ":memory:" && cfg.Path != "" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	conn, err := sql.Open("duckdb", connectionString(cfg, numThreads))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Debug().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Bool("read_only", cfg.ReadOnly).
		Msg("Database opened")

	return db, nil
}

// connectionString builds the DuckDB DSN with tuning options.
// Auto-install/auto-load stay disabled: the schema needs no extensions.
func connectionString(cfg *config.DatabaseConfig, threads int) string {
	mode := "read_write"
	if cfg.ReadOnly {
		mode = "read_only"
	}
	return fmt.Sprintf("%s?access_mode=%s&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, mode, threads, cfg.MaxMemory)
}

// configureConnectionPool sets connection pool parameters
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the configured database path.
func (db *DB) Path() string {
	return db.cfg.Path
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Checkpoint flushes the WAL into the database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints a writable database and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if !db.cfg.ReadOnly {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

// ensureContext applies the default query timeout when ctx has no deadline.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultQueryTimeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
