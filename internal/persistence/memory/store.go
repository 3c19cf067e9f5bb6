// Package memory keeps snapshot history in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"metacore/internal/persistence/core"
)

var _ core.Store = (*Store)(nil)

// Store implements core.Store with a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]core.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]core.Record)}
}

// Driver returns core.DriverMemory.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Save records r.
func (s *Store) Save(ctx context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.records[r.ID]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicate, r.ID)
	}
	r.Document = slices.Clone(r.Document)
	r.CreatedAt = r.CreatedAt.UTC()
	s.records[r.ID] = r
	return nil
}

// Get returns the record with id.
func (s *Store) Get(_ context.Context, id string) (core.Record, error) {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return core.Record{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	r.Document = slices.Clone(r.Document)
	return r, nil
}

// Latest returns the newest record.
func (s *Store) Latest(ctx context.Context) (core.Record, error) {
	list, err := s.List(ctx, 1)
	if err != nil {
		return core.Record{}, err
	}
	if len(list) == 0 {
		return core.Record{}, core.ErrNotFound
	}
	return s.Get(ctx, list[0].ID)
}

// List returns records newest first without documents.
func (s *Store) List(_ context.Context, limit int) ([]core.Record, error) {
	s.mu.RLock()
	out := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		r.Document = nil
		out = append(out, r)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, core.Newer)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
