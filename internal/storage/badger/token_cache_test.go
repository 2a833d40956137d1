package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

func setupCache(t *testing.T) *TokenCache {
	t.Helper()

	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewTokenCache(db)
}

func TestTokenCache_GetPut(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, domain.NetworkPublic, "CABC")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	meta := &domain.TokenMetadata{Name: "USDC:GISSUER", Symbol: "USDC", Decimals: 7}
	require.NoError(t, cache.Put(ctx, domain.NetworkPublic, "CABC", meta))

	got, err := cache.Get(ctx, domain.NetworkPublic, "CABC")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	// Entries are scoped per network.
	_, err = cache.Get(ctx, domain.NetworkTestnet, "CABC")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenCache_FirstWriteWins(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, domain.NetworkTestnet, "CABC", &domain.TokenMetadata{Name: "first", Symbol: "F", Decimals: 7}))
	require.NoError(t, cache.Put(ctx, domain.NetworkTestnet, "CABC", &domain.TokenMetadata{Name: "second", Symbol: "S", Decimals: 2}))

	got, err := cache.Get(ctx, domain.NetworkTestnet, "CABC")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	assert.ErrorIs(t, cache.Put(ctx, domain.NetworkTestnet, "CABC", nil), storage.ErrInvalidInput)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec()

	data, err := codec.Marshal(tokenRecord{Name: "Lumens", Symbol: "XLM", Decimals: 7})
	require.NoError(t, err)

	var rec tokenRecord
	require.NoError(t, codec.Unmarshal(data, &rec))
	assert.Equal(t, tokenRecord{Name: "Lumens", Symbol: "XLM", Decimals: 7}, rec)

	assert.Error(t, codec.Unmarshal([]byte("garbage"), &rec))
}
