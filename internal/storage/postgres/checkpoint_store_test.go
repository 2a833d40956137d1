package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

func TestCheckpointStore_SetAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCheckpointStore(pool)

	// Get without setting should return ErrNotFound
	_, err := store.GetCursor(ctx, domain.NetworkPublic)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetCursor(ctx, domain.NetworkPublic, "100"))
	require.NoError(t, store.SetCursor(ctx, domain.NetworkPublic, "200"))
	require.NoError(t, store.SetCursor(ctx, domain.NetworkTestnet, "7"))

	cursor, err := store.GetCursor(ctx, domain.NetworkPublic)
	require.NoError(t, err)
	assert.Equal(t, "200", cursor)

	cursor, err = store.GetCursor(ctx, domain.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, "7", cursor)
}
