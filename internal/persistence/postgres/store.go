// Package postgres keeps snapshot history in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"metacore/internal/persistence/core"
	"metacore/internal/persistence/sqlstore"
)

const (
	driverName = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/metacore?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		fingerprint TEXT NOT NULL,
		mode TEXT NOT NULL,
		deployment TEXT NOT NULL,
		types INTEGER NOT NULL,
		blocking INTEGER NOT NULL,
		blob_key TEXT NOT NULL DEFAULT '',
		document BYTEA NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS snapshots_created_at ON snapshots (created_at DESC)`,
}

// Dialect describes PostgreSQL to sqlstore.
var Dialect = sqlstore.Dialect{
	Driver:      core.DriverPostgres,
	Schema:      schema,
	Placeholder: sqlstore.Numbered,
	IsDuplicate: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
	},
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OverrideSQLOpen swaps the database opener, returning a restore func.
// Tests use it to substitute a stub driver.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
