// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/recsys/internal/metrics"
	"github.com/tomtom215/recsys/internal/recommend"
)

// GetCatalog loads every item and user. Implements recommend.CatalogSource.
func (db *DB) GetCatalog(ctx context.Context) (*recommend.Catalog, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	items, err := db.ListItems(ctx)
	metrics.RecordDBQuery("catalog", "items", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	users, err := db.ListUsers(ctx)
	metrics.RecordDBQuery("catalog", "users", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return recommend.NewCatalog(items, users)
}

// RatedItems returns the item ids each user has rated, ascending and
// deduplicated. Implements recommend.RatingSource.
func (db *DB) RatedItems(ctx context.Context) (map[int64][]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT user_id, item_id
		FROM ratings
		ORDER BY user_id, item_id
	`)
	metrics.RecordDBQuery("rated_items", "ratings", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query rated items: %w", err)
	}
	defer closeWithLog(rows, "rows")

	rated := make(map[int64][]int64)
	for rows.Next() {
		var userID, itemID int64
		if err := rows.Scan(&userID, &itemID); err != nil {
			return nil, fmt.Errorf("scan rated item: %w", err)
		}
		rated[userID] = append(rated[userID], itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rated items: %w", err)
	}
	return rated, nil
}

// ListItems returns all items ordered by id.
func (db *DB) ListItems(ctx context.Context) ([]recommend.Item, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, title, url, description FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer closeWithLog(rows, "rows")
	return scanItems(rows)
}

// GetItems returns the requested items ordered by id, plus the requested ids
// that do not exist (ascending, deduplicated).
func (db *DB) GetItems(ctx context.Context, ids []int64) ([]recommend.Item, []int64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	placeholders, args := inClause(ids)
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, title, url, description FROM items WHERE id IN ("+placeholders+") ORDER BY id",
		args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query items: %w", err)
	}
	defer closeWithLog(rows, "rows")

	items, err := scanItems(rows)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[int64]struct{}, len(items))
	for _, it := range items {
		found[it.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range sortedUnique(ids) {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return items, missing, nil
}

// ItemExists reports whether an item with id exists.
func (db *DB) ItemExists(ctx context.Context, id int64) (bool, error) {
	return db.exists(ctx, "items", id)
}

// UserExists reports whether a user with id exists.
func (db *DB) UserExists(ctx context.Context, id int64) (bool, error) {
	return db.exists(ctx, "users", id)
}

// exists checks a primary key. table is never user input.
func (db *DB) exists(ctx context.Context, table string, id int64) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var one int
	err := db.conn.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return true, nil
}

// ListUsers returns all users ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]recommend.User, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, gender, age_range, married FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var users []recommend.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// GetUser returns a single user or ErrNotFound.
func (db *DB) GetUser(ctx context.Context, id int64) (*recommend.User, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT id, gender, age_range, married FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (recommend.User, error) {
	var (
		u        recommend.User
		gender   sql.NullInt64
		ageRange sql.NullString
		married  sql.NullInt64
	)
	if err := row.Scan(&u.ID, &gender, &ageRange, &married); err != nil {
		if err == sql.ErrNoRows {
			return u, err
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	if gender.Valid {
		g := gender.Int64
		u.Gender = &g
	}
	u.AgeRange = ageRange.String
	if married.Valid {
		m := married.Int64
		u.Married = &m
	}
	return u, nil
}

func scanItems(rows *sql.Rows) ([]recommend.Item, error) {
	var items []recommend.Item
	for rows.Next() {
		var (
			it   recommend.Item
			url  sql.NullString
			desc sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Title, &url, &desc); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.URL = url.String
		it.Description = desc.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}
