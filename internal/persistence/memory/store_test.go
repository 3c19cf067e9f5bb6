package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/persistence/persistencetest"
)

func TestContract(t *testing.T) {
	persistencetest.RunContract(t, New())
}

func TestDocumentsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := persistencetest.Record("one", 0)
	require.NoError(t, s.Save(ctx, r))
	r.Document[0] = 'X'

	got, err := s.Get(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), got.Document[0])
	got.Document[0] = 'Y'

	again, err := s.Get(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again.Document[0])
	require.NoError(t, s.Close())
}
