// Package badger provides an embedded, on-disk TokenCache for single-node deployments.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

const prefixTokenMetadata = "token_details:"

// tokenRecord is the stored form of domain.TokenMetadata.
type tokenRecord struct {
	Name     string `cbor:"1,keyasint"`
	Symbol   string `cbor:"2,keyasint"`
	Decimals int    `cbor:"3,keyasint"`
}

// TokenCache is a badger-backed implementation of storage.TokenCache.
type TokenCache struct {
	db    *badger.DB
	codec *Codec
}

// Open opens (or creates) a badger database at dir. An empty dir opens an in-memory database.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return db, nil
}

// NewTokenCache creates a new badger TokenCache.
func NewTokenCache(db *badger.DB) *TokenCache {
	return &TokenCache{
		db:    db,
		codec: NewCodec(),
	}
}

// Compile-time interface check.
var _ storage.TokenCache = (*TokenCache)(nil)

func tokenKey(network domain.Network, contractID string) []byte {
	return []byte(prefixTokenMetadata + string(network) + ":" + contractID)
}

// Get retrieves metadata for a contract.
func (c *TokenCache) Get(ctx context.Context, network domain.Network, contractID string) (*domain.TokenMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec tokenRecord
	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(tokenKey(network, contractID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return c.codec.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token metadata %s: %w", contractID, err)
	}

	return &domain.TokenMetadata{
		Name:     rec.Name,
		Symbol:   rec.Symbol,
		Decimals: rec.Decimals,
	}, nil
}

// Put stores metadata for a contract. The first write wins; metadata is immutable.
func (c *TokenCache) Put(ctx context.Context, network domain.Network, contractID string, m *domain.TokenMetadata) error {
	if m == nil {
		return storage.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := tokenKey(network, contractID)
	val, err := c.codec.Marshal(tokenRecord{
		Name:     m.Name,
		Symbol:   m.Symbol,
		Decimals: m.Decimals,
	})
	if err != nil {
		return fmt.Errorf("encode token metadata %s: %w", contractID, err)
	}

	err = c.db.Update(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("put token metadata %s: %w", contractID, err)
	}
	return nil
}
