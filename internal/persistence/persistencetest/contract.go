// Package persistencetest holds the behaviour every history backend must
// share.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/persistence/core"
)

// Record builds a valid record created at base plus offset minutes.
func Record(id string, offset int) core.Record {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return core.Record{
		ID:          id,
		CreatedAt:   base.Add(time.Duration(offset) * time.Minute),
		Fingerprint: "fp-" + id,
		Mode:        "full",
		Deployment:  "prototyping",
		Types:       3,
		Blocking:    offset % 2,
		BlobKey:     "snapshots/" + id + ".json",
		Document:    []byte(`{"id":"` + id + `"}`),
	}
}

// RunContract saves three records and checks retrieval and ordering. The
// store must start empty.
func RunContract(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)

	for i, id := range []string{"b", "a", "c"} {
		require.NoError(t, store.Save(ctx, Record(id, i)))
	}
	assert.ErrorIs(t, store.Save(ctx, Record("a", 9)), core.ErrDuplicate)
	assert.ErrorIs(t, store.Save(ctx, core.Record{ID: "x"}), core.ErrInvalidRecord)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	want := Record("a", 1)
	assert.Equal(t, want.Document, got.Document)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.Equal(t, want.Blocking, got.Blocking)
	assert.Equal(t, want.BlobKey, got.BlobKey)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
	assert.NotEmpty(t, latest.Document)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
		assert.Nil(t, r.Document)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	list, err = store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
