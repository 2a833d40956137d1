package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// TokenCache implements storage.TokenCache using PostgreSQL.
type TokenCache struct {
	pool *Pool
}

// NewTokenCache creates a new TokenCache.
func NewTokenCache(pool *Pool) *TokenCache {
	return &TokenCache{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenCache = (*TokenCache)(nil)

// Get retrieves metadata for a contract. Returns ErrNotFound if not cached.
func (c *TokenCache) Get(ctx context.Context, network domain.Network, contractID string) (*domain.TokenMetadata, error) {
	query := `
		SELECT name, symbol, decimals
		FROM token_metadata
		WHERE network = $1 AND contract_id = $2
	`

	row := c.pool.QueryRow(ctx, query, string(network), contractID)
	m, err := scanTokenMetadata(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata: %w", err)
	}
	return m, nil
}

// Put stores metadata for a contract. Metadata is immutable, so an existing row is kept.
func (c *TokenCache) Put(ctx context.Context, network domain.Network, contractID string, m *domain.TokenMetadata) error {
	if m == nil || contractID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (network, contract_id, name, symbol, decimals, fetched_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (network, contract_id) DO NOTHING
	`

	if _, err := c.pool.Exec(ctx, query, string(network), contractID, m.Name, m.Symbol, m.Decimals); err != nil {
		return fmt.Errorf("insert token metadata: %w", err)
	}
	return nil
}

// scanTokenMetadata scans a single row into TokenMetadata.
func scanTokenMetadata(row pgx.Row) (*domain.TokenMetadata, error) {
	var m domain.TokenMetadata

	if err := row.Scan(&m.Name, &m.Symbol, &m.Decimals); err != nil {
		return nil, err
	}
	return &m, nil
}
