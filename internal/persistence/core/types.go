// Package core defines the snapshot history record and the store contract
// implemented by the memory, sqlite and postgres backends.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver identifies a history backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // process memory (tests, ephemeral servers)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file (default)
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// ParseDriver maps a configured driver name, defaulting to sqlite.
func ParseDriver(value string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(value))); d {
	case "":
		return DriverSQLite, nil
	case DriverMemory, DriverSQLite, DriverPostgres:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDriver, value)
	}
}

// Record is one exported metamodel snapshot.
type Record struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Mode        string    `json:"mode"`
	Deployment  string    `json:"deployment"`
	Types       int       `json:"types"`
	Blocking    int       `json:"blocking"`
	// BlobKey locates the full document in the blob store, when exported there.
	BlobKey  string `json:"blob_key,omitempty"`
	Document []byte `json:"-"`
}

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidRecord)
	}
	if len(r.Document) == 0 {
		return fmt.Errorf("%w: document is empty", ErrInvalidRecord)
	}
	return nil
}

// Store keeps the snapshot history. Records are immutable; saving an id
// twice fails with ErrDuplicate.
type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Latest returns the most recent record.
	Latest(ctx context.Context) (Record, error)
	// List returns up to limit records, newest first, without documents.
	// A limit <= 0 returns everything.
	List(ctx context.Context, limit int) ([]Record, error)
	Driver() Driver
	Close() error
}

var (
	ErrNotFound      = errors.New("persistence: snapshot not found")
	ErrDuplicate     = errors.New("persistence: snapshot already recorded")
	ErrInvalidRecord = errors.New("persistence: invalid snapshot record")
	ErrUnknownDriver = errors.New("persistence: unknown driver")
)

// Newer orders records newest first, breaking ties on id.
func Newer(a, b Record) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}
