// Package persistence opens the snapshot history store.
package persistence

import (
	"context"

	"metacore/internal/persistence/core"
	"metacore/internal/persistence/memory"
	"metacore/internal/persistence/postgres"
	"metacore/internal/persistence/sqlite"
)

type (
	Store  = core.Store
	Record = core.Record
)

// Config selects and configures a backend.
type Config struct {
	Driver string `yaml:"driver"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
}

// Open constructs the configured store. An empty driver selects sqlite.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := core.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	default:
		return sqlite.Open(ctx, cfg.Path)
	}
}
