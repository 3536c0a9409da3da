// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsys/internal/metrics"
	"github.com/tomtom215/recsys/internal/recommend"
)

// Put inserts one recommendation set as a new row. Rows are never updated:
// each run adds its own version distinguished by run_id and generated_at.
// Connection loss is reported as *recommend.StoreUnavailableError.
func (db *DB) Put(ctx context.Context, set *recommend.RecommendationSet) error {
	if set == nil {
		return errors.New("recommendation set is nil")
	}

	items := set.Items
	if items == nil {
		items = []recommend.ScoredItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items for %s: %w", set.TargetKey(), err)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO recommendations (
			id, run_id, target_type, target_id, target_key, model, items, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		set.RunID,
		string(set.TargetType),
		set.TargetID,
		set.TargetKey(),
		set.Model,
		string(payload),
		set.GeneratedAt.UTC(),
	)
	metrics.RecordDBQuery("insert", "recommendations", time.Since(start), err)
	if err != nil {
		if isConnectionError(err) {
			return &recommend.StoreUnavailableError{Err: err}
		}
		return fmt.Errorf("insert recommendation set %s/%s: %w", set.Model, set.TargetKey(), err)
	}
	return nil
}

// Latest returns, per model, the most recently generated set for the target,
// ordered by model name. An empty model returns every model.
// Implements recommend.SetReader.
func (db *DB) Latest(ctx context.Context, target recommend.TargetType, targetID int64, model string) ([]recommend.RecommendationSet, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("invalid target type %q", target)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	args := []any{recommend.TargetKey(target, targetID)}
	modelFilter := ""
	if model != "" {
		modelFilter = "AND model = ?"
		args = append(args, model)
	}

	query := `
		SELECT run_id, model, items, generated_at
		FROM (
			SELECT
				run_id,
				model,
				items,
				generated_at,
				ROW_NUMBER() OVER (
					PARTITION BY model
					ORDER BY generated_at DESC, run_id DESC
				) AS rn
			FROM recommendations
			WHERE target_key = ? ` + modelFilter + `
		) latest
		WHERE rn = 1
		ORDER BY model`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("latest", "recommendations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var sets []recommend.RecommendationSet
	for rows.Next() {
		var (
			set         recommend.RecommendationSet
			payload     string
			generatedAt time.Time
		)
		if err := rows.Scan(&set.RunID, &set.Model, &payload, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &set.Items); err != nil {
			return nil, fmt.Errorf("decode items for %s/%s: %w", set.Model, recommend.TargetKey(target, targetID), err)
		}
		set.TargetType = target
		set.TargetID = targetID
		set.GeneratedAt = generatedAt.UTC()
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return sets, nil
}

// CountRecommendations returns the number of stored rows, optionally for one run.
func (db *DB) CountRecommendations(ctx context.Context, runID string) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT COUNT(*) FROM recommendations`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}

	var n int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recommendations: %w", err)
	}
	return n, nil
}
