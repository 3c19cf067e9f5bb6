// Package blob opens the document store configured for exported metamodel
// snapshots.
package blob

import (
	"context"

	"metacore/internal/blob/core"
	"metacore/internal/blob/fs"
	"metacore/internal/blob/memory"
	"metacore/internal/blob/s3"
)

type (
	Store      = core.Store
	Info       = core.Info
	PutOptions = core.PutOptions
	Driver     = core.Driver
)

// Config selects and configures a backend.
type Config struct {
	Driver string    `yaml:"driver"`
	Root   string    `yaml:"root"`
	S3     s3.Config `yaml:"s3"`
}

// Open constructs the configured store. An empty driver selects fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := core.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverS3:
		return s3.New(ctx, cfg.S3)
	default:
		return fs.New(cfg.Root)
	}
}
