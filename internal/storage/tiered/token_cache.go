// Package tiered layers an in-process ristretto cache in front of another TokenCache.
package tiered

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// DefaultSize is the default number of metadata entries kept in memory.
const DefaultSize = 10_000

// TokenCache serves reads from memory and falls through to the backing cache on a miss.
// Metadata never changes, so L1 entries are never invalidated.
type TokenCache struct {
	l1      *ristretto.Cache
	backing storage.TokenCache
}

// Compile-time interface check.
var _ storage.TokenCache = (*TokenCache)(nil)

// New creates a tiered cache holding about size entries in memory.
func New(backing storage.TokenCache, size int64) (*TokenCache, error) {
	if backing == nil {
		backing = storage.NoopTokenCache{}
	}
	if size <= 0 {
		size = DefaultSize
	}

	// Ristretto recommends ten counters per item when the cache is full.
	// Every entry costs 1 and internal cost is ignored, so MaxCost is the entry count.
	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not initialize cache: %w", err)
	}

	return &TokenCache{
		l1:      l1,
		backing: backing,
	}, nil
}

func l1Key(network domain.Network, contractID string) string {
	return string(network) + "|" + contractID
}

// Get returns the L1 copy when present, otherwise reads through and promotes the result.
func (c *TokenCache) Get(ctx context.Context, network domain.Network, contractID string) (*domain.TokenMetadata, error) {
	key := l1Key(network, contractID)
	if v, ok := c.l1.Get(key); ok {
		m := v.(domain.TokenMetadata)
		return &m, nil
	}

	m, err := c.backing.Get(ctx, network, contractID)
	if err != nil {
		return nil, err
	}
	c.l1.Set(key, *m, 1)
	return m, nil
}

// Put writes through to the backing cache, then to L1.
func (c *TokenCache) Put(ctx context.Context, network domain.Network, contractID string, m *domain.TokenMetadata) error {
	if m == nil {
		return storage.ErrInvalidInput
	}
	err := c.backing.Put(ctx, network, contractID, m)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	c.l1.Set(l1Key(network, contractID), *m, 1)
	return nil
}

// Wait blocks until pending L1 writes are visible.
func (c *TokenCache) Wait() {
	c.l1.Wait()
}

// Close releases the L1 cache.
func (c *TokenCache) Close() {
	c.l1.Close()
}
