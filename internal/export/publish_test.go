package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobcore "metacore/internal/blob/core"
	blobmemory "metacore/internal/blob/memory"
	persistencecore "metacore/internal/persistence/core"
	historymemory "metacore/internal/persistence/memory"
)

func sample(id string) *Snapshot {
	return &Snapshot{
		Schema:      SchemaVersion,
		ID:          id,
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Mode:        "FULL",
		Deployment:  "production",
		Fingerprint: "fp-" + id,
		Types:       []Type{{Key: "app.Customer", Name: "Customer"}},
		Failures:    []Failure{{Identifier: "app.Customer", Severity: "block", Message: "broken"}},
	}
}

func TestPublishWritesBlobAndHistory(t *testing.T) {
	ctx := context.Background()
	blobs, history := blobmemory.New(), historymemory.New()
	p := Publisher{Blob: blobs, History: history}

	out, err := p.Publish(ctx, sample("s1"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/s1.yaml", out.BlobKey)
	require.NotNil(t, out.Blob)
	assert.Equal(t, "application/yaml", out.Blob.ContentType)
	assert.Equal(t, "fp-s1", out.Blob.Metadata["fingerprint"])

	rec, err := history.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Types)
	assert.Equal(t, 1, rec.Blocking)
	assert.Equal(t, "snapshots/s1.yaml", rec.BlobKey)

	loaded, err := p.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "fp-s1", loaded.Fingerprint)

	fetched, err := p.Fetch(ctx, out.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, sample("s1").Types, fetched.Types)

	_, err = p.Publish(ctx, sample("s1"), FormatYAML)
	assert.ErrorIs(t, err, blobcore.ErrExists)
}

func TestPublishHistoryOnly(t *testing.T) {
	ctx := context.Background()
	history := historymemory.New()
	p := Publisher{History: history}

	_, err := p.Publish(ctx, sample("a"), FormatJSON)
	require.NoError(t, err)
	later := sample("b")
	later.CreatedAt = later.CreatedAt.Add(time.Hour)
	_, err = p.Publish(ctx, later, FormatJSON)
	require.NoError(t, err)

	latest, err := p.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	_, err = p.Publish(ctx, sample("a"), FormatJSON)
	assert.ErrorIs(t, err, persistencecore.ErrDuplicate)
	_, err = p.Load(ctx, "zzz")
	assert.ErrorIs(t, err, persistencecore.ErrNotFound)
	_, err = p.Fetch(ctx, "snapshots/a.json")
	assert.Error(t, err)
}

func TestPublisherWithoutHistory(t *testing.T) {
	p := Publisher{}
	_, err := p.Publish(context.Background(), sample("x"), FormatJSON)
	require.NoError(t, err)
	_, err = p.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = p.Load(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoHistory)
}
