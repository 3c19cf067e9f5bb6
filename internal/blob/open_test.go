package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/blob/core"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, core.DriverMemory, store.Driver())

	store, err = Open(ctx, Config{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, store.Driver())

	_, err = Open(ctx, Config{Driver: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.ErrorIs(t, err, core.ErrUnknownDriver)
}
