// Package sqlstore implements the snapshot history on database/sql. The
// sqlite and postgres packages supply the driver and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"metacore/internal/persistence/core"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Driver core.Driver
	// Schema is executed statement by statement when the store opens.
	Schema []string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// IsDuplicate reports whether err is a primary key violation.
	IsDuplicate func(err error) bool
}

// QuestionMarks renders every placeholder as ?.
func QuestionMarks(int) string { return "?" }

// Numbered renders placeholders as $1, $2, ...
func Numbered(n int) string { return fmt.Sprintf("$%d", n) }

// Store implements core.Store over db.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ core.Store = (*Store)(nil)

const columns = "id, created_at, fingerprint, mode, deployment, types, blocking, blob_key"

// New applies the dialect schema and returns a store owning db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply %s schema: %w", dialect.Driver, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying handle for tests and maintenance.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the dialect driver.
func (s *Store) Driver() core.Driver { return s.dialect.Driver }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.dialect.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// Save inserts r.
func (s *Store) Save(ctx context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	query := "INSERT INTO snapshots (" + columns + ", document) VALUES (" + s.placeholders(9) + ")"
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.CreatedAt.UTC().UnixNano(), r.Fingerprint, r.Mode, r.Deployment,
		r.Types, r.Blocking, r.BlobKey, r.Document)
	if err != nil {
		if s.dialect.IsDuplicate != nil && s.dialect.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", core.ErrDuplicate, r.ID)
		}
		return fmt.Errorf("insert snapshot %s: %w", r.ID, err)
	}
	return nil
}

// Get loads the record with id, including its document.
func (s *Store) Get(ctx context.Context, id string) (core.Record, error) {
	query := "SELECT " + columns + ", document FROM snapshots WHERE id = " + s.dialect.Placeholder(1)
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scan(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("select snapshot %s: %w", id, err)
	}
	return r, nil
}

// Latest loads the newest record.
func (s *Store) Latest(ctx context.Context) (core.Record, error) {
	query := "SELECT " + columns + ", document FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1"
	r, err := scan(s.db.QueryRowContext(ctx, query), true)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("select latest snapshot: %w", err)
	}
	return r, nil
}

// List returns records newest first without documents.
func (s *Store) List(ctx context.Context, limit int) ([]core.Record, error) {
	query := "SELECT " + columns + " FROM snapshots ORDER BY created_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT " + s.dialect.Placeholder(1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Record
	for rows.Next() {
		r, err := scan(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner, withDocument bool) (core.Record, error) {
	var (
		r       core.Record
		created int64
	)
	dest := []any{&r.ID, &created, &r.Fingerprint, &r.Mode, &r.Deployment, &r.Types, &r.Blocking, &r.BlobKey}
	if withDocument {
		dest = append(dest, &r.Document)
	}
	if err := row.Scan(dest...); err != nil {
		return core.Record{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}
