package memory

import (
	"context"
	"sync"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// TokenCache is an in-memory implementation of storage.TokenCache.
type TokenCache struct {
	mu   sync.RWMutex
	data map[string]domain.TokenMetadata // keyed by network|contract_id
}

// NewTokenCache creates a new in-memory token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		data: make(map[string]domain.TokenMetadata),
	}
}

func tokenKey(network domain.Network, contractID string) string {
	return string(network) + "|" + contractID
}

// Get retrieves metadata for a contract. Returns ErrNotFound if not cached.
func (c *TokenCache) Get(_ context.Context, network domain.Network, contractID string) (*domain.TokenMetadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, exists := c.data[tokenKey(network, contractID)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

// Put stores metadata for a contract.
func (c *TokenCache) Put(_ context.Context, network domain.Network, contractID string, m *domain.TokenMetadata) error {
	if m == nil || contractID == "" {
		return storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[tokenKey(network, contractID)] = *m
	return nil
}

var _ storage.TokenCache = (*TokenCache)(nil)
