// Package memory implements an in-memory document store for tests and
// ephemeral servers.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"metacore/internal/blob/core"
)

var _ core.Store = (*Store)(nil)

type document struct {
	info core.Info
	data []byte
}

// Store implements core.Store in process memory.
type Store struct {
	mu   sync.RWMutex
	docs map[string]document
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{docs: make(map[string]document), now: time.Now}
}

// Driver returns core.DriverMemory.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a new document.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	key, err := core.CleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("read %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(data)
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.docs[key]; taken {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	s.docs[key] = document{info: info, data: data}
	return copyInfo(info), nil
}

// Get returns a document and a reader over a private copy of its content.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	doc, err := s.lookup(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	return copyInfo(doc.info), io.NopCloser(bytes.NewReader(slices.Clone(doc.data))), nil
}

// Head returns document metadata.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	doc, err := s.lookup(key)
	if err != nil {
		return core.Info{}, err
	}
	return copyInfo(doc.info), nil
}

// Delete removes a document and reports whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	key, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[key]
	delete(s.docs, key)
	return ok, nil
}

// List returns documents whose key starts with prefix, ordered by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Info, 0, len(s.docs))
	for key, doc := range s.docs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyInfo(doc.info))
		}
	}
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *Store) lookup(key string) (document, error) {
	key, err := core.CleanKey(key)
	if err != nil {
		return document{}, err
	}
	s.mu.RLock()
	doc, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return document{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return doc, nil
}

func copyInfo(info core.Info) core.Info {
	info.Metadata = core.CloneMetadata(info.Metadata)
	return info
}
