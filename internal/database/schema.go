// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

/*
schema.go - Database Schema Management

Tables:
  - items: catalog items (id, title, url, description)
  - users: catalog users with opaque profile fields
  - ratings: user ratings of items, read for rated-item exclusion and the API
  - groups, group_members, group_sizes, group_ratings: study groups, served
    read-only by the API
  - recommendations: versioned recommendation sets, one row per
    (run, model, target); a new run inserts rows, it never updates them

Schema management is only issued by the bootstrap command. The pipeline and
the read API assume the tables exist.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// tableCreationQueries returns the CREATE statements in dependency order.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			title VARCHAR NOT NULL,
			url VARCHAR,
			description VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			gender BIGINT,
			age_range VARCHAR,
			married BIGINT
		)`,
		`CREATE SEQUENCE IF NOT EXISTS ratings_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS ratings (
			id BIGINT PRIMARY KEY DEFAULT nextval('ratings_id_seq'),
			user_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			rating BIGINT,
			app BIGINT,
			data BIGINT,
			ease BIGINT,
			class VARCHAR,
			semester VARCHAR,
			lockdown VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id BIGINT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			PRIMARY KEY (group_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS group_sizes (
			group_id BIGINT PRIMARY KEY,
			size BIGINT NOT NULL
		)`,
		`CREATE SEQUENCE IF NOT EXISTS group_ratings_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS group_ratings (
			id BIGINT PRIMARY KEY DEFAULT nextval('group_ratings_id_seq'),
			group_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			rating BIGINT,
			app BIGINT,
			data BIGINT,
			ease BIGINT,
			class VARCHAR,
			semester VARCHAR,
			lockdown VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id UUID PRIMARY KEY,
			run_id VARCHAR NOT NULL,
			target_type VARCHAR NOT NULL,
			target_id BIGINT NOT NULL,
			target_key VARCHAR NOT NULL,
			model VARCHAR NOT NULL,
			items VARCHAR NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			UNIQUE (run_id, model, target_key)
		)`,
	}
}

// indexQueries returns the secondary indexes.
func indexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_item ON ratings(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_group_ratings_group ON group_ratings(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_target ON recommendations(target_key, model, generated_at)`,
	}
}

// CreateSchema creates every table and index if missing. It is idempotent.
func (db *DB) CreateSchema(ctx context.Context) error {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = schemaContext()
		defer cancel()
	}

	for _, q := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, q := range indexQueries() {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
