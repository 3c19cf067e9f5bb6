package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/blob/blobtest"
	"metacore/internal/blob/core"
)

func TestContract(t *testing.T) {
	blobtest.RunContract(t, New())
}

func TestGetReturnsPrivateCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	meta := map[string]string{"k": "v"}
	_, err := s.Put(ctx, "doc", strings.NewReader("payload"), core.PutOptions{Metadata: meta})
	require.NoError(t, err)
	meta["k"] = "changed"

	info, body, err := s.Get(ctx, "doc")
	require.NoError(t, err)
	info.Metadata["k"] = "mutated"
	raw, _ := io.ReadAll(body)
	assert.Equal(t, "payload", string(raw))

	again, err := s.Head(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
	assert.NotEmpty(t, again.ETag)
}

func TestPutHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Put(ctx, "doc", strings.NewReader("x"), core.PutOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
