// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Group is a study group and its member user ids, ascending.
type Group struct {
	ID      int64   `json:"id"`
	Members []int64 `json:"members"`
}

// GroupSize is the declared size of a group.
type GroupSize struct {
	GroupID int64 `json:"group_id"`
	Size    int64 `json:"size"`
}

// GroupRating is one row of the group_ratings table.
type GroupRating struct {
	GroupID  int64   `json:"group_id"`
	ItemID   int64   `json:"item_id"`
	Rating   *int64  `json:"rating"`
	App      *int64  `json:"app"`
	Data     *int64  `json:"data"`
	Ease     *int64  `json:"ease"`
	Class    *string `json:"class"`
	Semester *string `json:"semester"`
	Lockdown *string `json:"lockdown"`
}

// ListGroups returns every group ordered by id. Groups without members
// have an empty Members list.
func (db *DB) ListGroups(ctx context.Context) ([]Group, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT g.id, m.user_id
		FROM groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		ORDER BY g.id, m.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer closeWithLog(rows, "rows")

	groups := []Group{}
	for rows.Next() {
		var (
			groupID int64
			userID  sql.NullInt64
		)
		if err := rows.Scan(&groupID, &userID); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		if n := len(groups); n == 0 || groups[n-1].ID != groupID {
			groups = append(groups, Group{ID: groupID, Members: []int64{}})
		}
		if userID.Valid {
			last := &groups[len(groups)-1]
			last.Members = append(last.Members, userID.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// ListGroupSizes returns the declared group sizes ordered by group id.
func (db *DB) ListGroupSizes(ctx context.Context) ([]GroupSize, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT group_id, size FROM group_sizes ORDER BY group_id`)
	if err != nil {
		return nil, fmt.Errorf("query group sizes: %w", err)
	}
	defer closeWithLog(rows, "rows")

	sizes := []GroupSize{}
	for rows.Next() {
		var s GroupSize
		if err := rows.Scan(&s.GroupID, &s.Size); err != nil {
			return nil, fmt.Errorf("scan group size: %w", err)
		}
		sizes = append(sizes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group sizes: %w", err)
	}
	return sizes, nil
}

// ListGroupRatings returns group ratings ordered by group then item. A nil
// groupID returns every group.
func (db *DB) ListGroupRatings(ctx context.Context, groupID *int64) ([]GroupRating, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT group_id, item_id, rating, app, data, ease, class, semester, lockdown FROM group_ratings`
	var args []any
	if groupID != nil {
		query += " WHERE group_id = ?"
		args = append(args, *groupID)
	}
	query += " ORDER BY group_id, item_id, id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query group ratings: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ratings := []GroupRating{}
	for rows.Next() {
		var (
			r                         GroupRating
			rating, app, data, ease   sql.NullInt64
			class, semester, lockdown sql.NullString
		)
		if err := rows.Scan(&r.GroupID, &r.ItemID, &rating, &app, &data, &ease, &class, &semester, &lockdown); err != nil {
			return nil, fmt.Errorf("scan group rating: %w", err)
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
		return nil, fmt.Errorf("iterate group ratings: %w", err)
	}
	return ratings, nil
}
