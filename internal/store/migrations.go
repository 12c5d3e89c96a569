package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all rangerd tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS peers (
		handle     INTEGER PRIMARY KEY,
		mac        TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rangings (
		id           TEXT PRIMARY KEY,
		owner        TEXT NOT NULL,
		command_id   INTEGER NOT NULL,
		outcome      TEXT NOT NULL,
		failure_code TEXT NOT NULL DEFAULT '',
		results      TEXT NOT NULL DEFAULT '[]',
		submitted_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_rangings_owner ON rangings(owner)`,
	`CREATE INDEX IF NOT EXISTS idx_rangings_submitted_at ON rangings(submitted_at)`,
}

// migrate applies the schema. Safe to run repeatedly.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// Surface which statement failed; the DDL is short enough.
			head := strings.SplitN(strings.TrimSpace(stmt), "\n", 2)[0]
			return &migrationError{stmt: head, err: err}
		}
	}
	return nil
}

type migrationError struct {
	stmt string
	err  error
}

func (e *migrationError) Error() string {
	return "migrate: " + e.stmt + ": " + e.err.Error()
}

func (e *migrationError) Unwrap() error {
	return e.err
}
