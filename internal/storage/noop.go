package storage

import (
	"context"

	"stellar-wallet-core/internal/domain"
)

// NoopTokenCache stands in for a disabled metadata cache: every read misses and
// every write is dropped.
type NoopTokenCache struct{}

// Get always returns ErrNotFound.
func (NoopTokenCache) Get(context.Context, domain.Network, string) (*domain.TokenMetadata, error) {
	return nil, ErrNotFound
}

// Put discards m.
func (NoopTokenCache) Put(context.Context, domain.Network, string, *domain.TokenMetadata) error {
	return nil
}

var _ TokenCache = NoopTokenCache{}
