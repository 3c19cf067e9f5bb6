// Package blobtest holds the behaviour every blob backend must share.
package blobtest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/blob/core"
)

// RunContract exercises store through a put, read, list and delete cycle.
// The store must start empty.
func RunContract(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "snapshots/a.json", strings.NewReader(`{"types":[]}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"fingerprint": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "snapshots/a.json", info.Key)
	assert.EqualValues(t, len(`{"types":[]}`), info.Size)

	_, err = store.Put(ctx, "snapshots/a.json", strings.NewReader("again"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	_, err = store.Put(ctx, "../escape", strings.NewReader("x"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidKey)

	got, body, err := store.Get(ctx, "snapshots/a.json")
	require.NoError(t, err)
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, `{"types":[]}`, string(raw))
	assert.Equal(t, "application/json", got.ContentType)
	assert.Equal(t, "abc", got.Metadata["fingerprint"])

	head, err := store.Head(ctx, "snapshots/a.json")
	require.NoError(t, err)
	assert.Equal(t, got.Size, head.Size)

	_, err = store.Head(ctx, "snapshots/missing.json")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "snapshots/missing.json")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.Put(ctx, "snapshots/b.json", strings.NewReader("{}"), core.PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "other/c.json", strings.NewReader("{}"), core.PutOptions{})
	require.NoError(t, err)

	listed, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	keys := make([]string, 0, len(listed))
	for _, item := range listed {
		keys = append(keys, item.Key)
	}
	assert.Equal(t, []string{"snapshots/a.json", "snapshots/b.json"}, keys)

	removed, err := store.Delete(ctx, "snapshots/a.json")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Delete(ctx, "snapshots/a.json")
	require.NoError(t, err)
	assert.False(t, removed)
}
