// Package sqlite keeps snapshot history in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"metacore/internal/persistence/core"
	"metacore/internal/persistence/sqlstore"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "./metacore-data/history.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		mode TEXT NOT NULL,
		deployment TEXT NOT NULL,
		types INTEGER NOT NULL,
		blocking INTEGER NOT NULL,
		blob_key TEXT NOT NULL DEFAULT '',
		document BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS snapshots_created_at ON snapshots (created_at)`,
}

// Dialect describes SQLite to sqlstore.
var Dialect = sqlstore.Dialect{
	Driver:      core.DriverSQLite,
	Schema:      schema,
	Placeholder: sqlstore.QuestionMarks,
	IsDuplicate: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	store, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
