// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Rating is one row of the ratings table. Nullable survey columns are
// pointers so that missing answers stay distinguishable from zero.
type Rating struct {
	UserID   int64   `json:"user_id"`
	ItemID   int64   `json:"item_id"`
	Rating   *int64  `json:"rating"`
	App      *int64  `json:"app"`
	Data     *int64  `json:"data"`
	Ease     *int64  `json:"ease"`
	Class    *string `json:"class"`
	Semester *string `json:"semester"`
	Lockdown *string `json:"lockdown"`
}

// RatingFilter narrows ListRatings. Nil fields do not filter.
type RatingFilter struct {
	UserID *int64
	ItemID *int64
}

// ListRatings returns ratings ordered by user then item.
func (db *DB) ListRatings(ctx context.Context, filter RatingFilter) ([]Rating, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var (
		conditions []string
		args       []any
	)
	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.ItemID != nil {
		conditions = append(conditions, "item_id = ?")
		args = append(args, *filter.ItemID)
	}

	query := `SELECT user_id, item_id, rating, app, data, ease, class, semester, lockdown FROM ratings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY user_id, item_id, id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ratings := []Rating{}
	for rows.Next() {
		var (
			r                         Rating
			rating, app, data, ease   sql.NullInt64
			class, semester, lockdown sql.NullString
		)
		if err := rows.Scan(&r.UserID, &r.ItemID, &rating, &app, &data, &ease, &class, &semester, &lockdown); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.Rating = nullInt(rating)
		r.App = nullInt(app)
		r.Data = nullInt(data)
		r.Ease = nullInt(ease)
		r.Class = nullString(class)
		r.Semester = nullString(semester)
		r.Lockdown = nullString(lockdown)
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return ratings, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

// inClause returns "?,?,?" and the matching args.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func sortedUnique(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
