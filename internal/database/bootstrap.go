// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package database

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tomtom215/recsys/internal/logging"
)

// CSV export file names read by Bootstrap.
const (
	ItemsFile   = "items.csv"
	UsersFile   = "users.csv"
	RatingsFile = "ratings.csv"

	GroupSizesFile   = "group_size.csv"
	GroupMembersFile = "group.csv"
	GroupRatingsFile = "group_ratings.csv"
)

// BootstrapReport counts the rows loaded per table.
type BootstrapReport struct {
	Items   int `json:"items"`
	Users   int `json:"users"`
	Ratings int `json:"ratings"`

	GroupSizes   int `json:"group_sizes"`
	GroupMembers int `json:"group_members"`
	GroupRatings int `json:"group_ratings"`

	Skipped int `json:"skipped"`
}

// Bootstrap creates the schema and loads the CSV exports found in dataDir.
// items.csv and users.csv are required; ratings and the group exports are
// optional.
func (db *DB) Bootstrap(ctx context.Context, dataDir string) (*BootstrapReport, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dataDir)
	}

	if err := db.CreateSchema(ctx); err != nil {
		return nil, err
	}

	report := &BootstrapReport{}
	loaders := []struct {
		file     string
		required bool
		load     func(context.Context, io.Reader) (int, int, error)
		count    *int
	}{
		{ItemsFile, true, db.LoadItems, &report.Items},
		{UsersFile, true, db.LoadUsers, &report.Users},
		{RatingsFile, false, db.LoadRatings, &report.Ratings},
		{GroupSizesFile, false, db.LoadGroupSizes, &report.GroupSizes},
		{GroupMembersFile, false, db.LoadGroupMembers, &report.GroupMembers},
		{GroupRatingsFile, false, db.LoadGroupRatings, &report.GroupRatings},
	}

	for _, l := range loaders {
		path := filepath.Join(dataDir, l.file)
		f, err := os.Open(path) //nolint:gosec // path is built from an operator-supplied directory
		if errors.Is(err, os.ErrNotExist) && !l.required {
			logging.Warn().Str("file", path).Msg("Optional CSV export not found, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", l.file, err)
		}

		loaded, skipped, err := l.load(ctx, f)
		closeQuietly(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", l.file, err)
		}
		*l.count = loaded
		report.Skipped += skipped

		logging.Info().
			Str("file", l.file).
			Int("loaded", loaded).
			Int("skipped", skipped).
			Msg("CSV export loaded")
	}

	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after bootstrap")
	}
	return report, nil
}

// LoadItems upserts rows of an items export (Item, Title, URL, Descriptions).
// Rows without an id are skipped.
func (db *DB) LoadItems(ctx context.Context, r io.Reader) (loaded, skipped int, err error) {
	return db.loadCSV(ctx, r,
		`INSERT OR REPLACE INTO items (id, title, url, description) VALUES (?, ?, ?, ?)`,
		func(row csvRow) ([]any, bool, error) {
			id, err := row.integer("Item")
			if err != nil || id == nil {
				return nil, false, err
			}
			return []any{*id, row.str("Title"), row.str("URL"), row.str("Descriptions")}, true, nil
		})
}

// LoadUsers upserts rows of a users export (UserID, Gender, Age, Married).
// Rows without an id are skipped.
func (db *DB) LoadUsers(ctx context.Context, r io.Reader) (loaded, skipped int, err error) {
	return db.loadCSV(ctx, r,
		`INSERT OR REPLACE INTO users (id, gender, age_range, married) VALUES (?, ?, ?, ?)`,
		func(row csvRow) ([]any, bool, error) {
			id, err := row.integer("UserID")
			if err != nil || id == nil {
				return nil, false, err
			}
			gender, err := row.integer("Gender")
			if err != nil {
				return nil, false, err
			}
			married, err := row.integer("Married")
			if err != nil {
				return nil, false, err
			}
			return []any{*id, gender, row.str("Age"), married}, true, nil
		})
}

// LoadRatings appends rows of a ratings export. Rows missing the user or
// item id are skipped.
func (db *DB) LoadRatings(ctx context.Context, r io.Reader) (loaded, skipped int, err error) {
	return db.loadCSV(ctx, r,
		`INSERT INTO ratings (user_id, item_id, rating, app, data, ease, class, semester, lockdown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(row csvRow) ([]any, bool, error) {
			ints := make(map[string]*int64, 6)
			for _, col := range []string{"UserID", "Item", "Rating", "App", "Data", "Ease"} {
				v, err := row.integer(col)
				if err != nil {
					return nil, false, err
				}
				ints[col] = v
			}
			if ints["UserID"] == nil || ints["Item"] == nil {
				return nil, false, nil
			}
			return []any{
				*ints["UserID"], *ints["Item"],
				ints["Rating"], ints["App"], ints["Data"], ints["Ease"],
				row.str("Class"), row.str("Semester"), row.str("Lockdown"),
			}, true, nil
		})
}

// groupRowStmt registers a group id seen in any group export.
const groupRowStmt = `INSERT OR IGNORE INTO groups (id) VALUES (?)`

// LoadGroupSizes reads a group size export (GroupID, Size). Rows without a
// group id are skipped; a missing size still registers the group.
func (db *DB) LoadGroupSizes(ctx context.Context, r io.Reader) (loaded, skipped int, err error) {
	return db.loadCSVMulti(ctx, r,
		[]string{groupRowStmt, `INSERT OR REPLACE INTO group_sizes (group_id, size) VALUES (?, ?)`},
		func(row csvRow) ([][]any, bool, error) {
			groupID, err := row.integer("GroupID")
			if err != nil || groupID == nil {
				return nil, false, err
			}
			size, err := row.integer("Size")
			if err != nil {
				return nil, false, err
			}
			if size == nil {
				return [][]any{{*groupID}, nil}, true, nil
			}
			return [][]any{{*groupID}, {*groupID, *size}}, true, nil
		})
}

// LoadGroupMembers reads a group membership export (GroupID, UserID).
// Duplicate memberships are ignored.
func (db *DB) LoadGroupMembers(ctx context.Context, r io.Reader) (loaded, skipped int, err error) {
	return db.loadCSVMulti(ctx, r,
		[]string{groupRowStmt, `INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`},
		func(row csvRow) ([][]any, bool, error) {
			groupID, err := row.integer("GroupID")
			if err != nil {
				return nil, false, err
			}
			userID, err := row.integer("UserID")
			if err != nil || groupID == nil || userID == nil {
				return nil, false, err
			}
			return [][]any{{*groupID}, {*groupID, *userID}}, true, nil
		})
}

// LoadGroupRatings appends rows of a group ratings export. Rows missing the
// group or item id are skipped.
func (db *DB) LoadGroupRatings(ctx context.Context, r io.Reader) (loaded, skipped int, err error) {
	return db.loadCSVMulti(ctx, r,
		[]string{groupRowStmt, `INSERT INTO group_ratings (group_id, item_id, rating, app, data, ease, class, semester, lockdown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		func(row csvRow) ([][]any, bool, error) {
			ints := make(map[string]*int64, 6)
			for _, col := range []string{"GroupID", "Item", "Rating", "App", "Data", "Ease"} {
				v, err := row.integer(col)
				if err != nil {
					return nil, false, err
				}
				ints[col] = v
			}
			if ints["GroupID"] == nil || ints["Item"] == nil {
				return nil, false, nil
			}
			return [][]any{
				{*ints["GroupID"]},
				{
					*ints["GroupID"], *ints["Item"],
					ints["Rating"], ints["App"], ints["Data"], ints["Ease"],
					row.str("Class"), row.str("Semester"), row.str("Lockdown"),
				},
			}, true, nil
		})
}

// loadCSV reads a header-keyed CSV and executes stmt once per mapped row in
// a single transaction. mapRow returns ok=false to skip a row.
func (db *DB) loadCSV(ctx context.Context, r io.Reader, stmt string, mapRow func(csvRow) ([]any, bool, error)) (loaded, skipped int, err error) {
	return db.loadCSVMulti(ctx, r, []string{stmt}, func(row csvRow) ([][]any, bool, error) {
		args, ok, err := mapRow(row)
		return [][]any{args}, ok, err
	})
}

// loadCSVMulti is loadCSV with several statements per row. mapRow returns
// one argument list per statement, in order; a nil list skips that statement.
func (db *DB) loadCSVMulti(ctx context.Context, r io.Reader, stmts []string, mapRow func(csvRow) ([][]any, bool, error)) (loaded, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Warn().Err(rbErr).Msg("Failed to roll back CSV load")
			}
		}
	}()

	prepared := make([]*sql.Stmt, len(stmts))
	for i, stmt := range stmts {
		if prepared[i], err = tx.PrepareContext(ctx, stmt); err != nil {
			return 0, 0, fmt.Errorf("prepare insert: %w", err)
		}
		defer closeWithLog(prepared[i], "prepared statement")
	}

	for line := 2; ; line++ {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, 0, fmt.Errorf("line %d: %w", line, readErr)
		}

		argLists, ok, mapErr := mapRow(newCSVRow(columns, record))
		if mapErr != nil {
			return 0, 0, fmt.Errorf("line %d: %w", line, mapErr)
		}
		if !ok {
			skipped++
			continue
		}
		for i, args := range argLists {
			if args == nil {
				continue
			}
			if _, execErr := prepared[i].ExecContext(ctx, args...); execErr != nil {
				return 0, 0, fmt.Errorf("line %d: %w", line, execErr)
			}
		}
		loaded++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return loaded, skipped, nil
}

// normalizeHeader trims column names and strips a UTF-8 byte order mark.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = strings.TrimSpace(h)
	}
	return columns
}

// csvRow maps trimmed column names to trimmed values. Empty values are absent.
type csvRow map[string]string

func newCSVRow(columns, record []string) csvRow {
	row := make(csvRow, len(columns))
	for i, col := range columns {
		if col == "" || i >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[i]); v != "" {
			row[col] = v
		}
	}
	return row
}

// str returns the value or nil (SQL NULL) when empty.
func (r csvRow) str(col string) *string {
	v, ok := r[col]
	if !ok {
		return nil
	}
	return &v
}

// integer parses the value as an integer; empty values are nil.
func (r csvRow) integer(col string) (*int64, error) {
	v, ok := r[col]
	if !ok {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: invalid integer %q", col, v)
	}
	return &n, nil
}
