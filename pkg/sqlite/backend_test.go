package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func TestOpen(t *testing.T) {
	b, err := Open(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer b.Detach()

	_, err = b.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(types.Config{Backend: "dolt", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}
