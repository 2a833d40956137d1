package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
// Uses one row per network in verifier_checkpoints.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// GetCursor returns the saved cursor for a network.
func (s *CheckpointStore) GetCursor(ctx context.Context, network domain.Network) (string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT paging_token
		FROM verifier_checkpoints
		WHERE network = $1
	`, string(network))

	var cursor string
	if err := row.Scan(&cursor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return cursor, nil
}

// SetCursor saves the cursor for a network.
// Uses upsert to handle initial insert and subsequent updates.
func (s *CheckpointStore) SetCursor(ctx context.Context, network domain.Network, cursor string) error {
	if cursor == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO verifier_checkpoints (network, paging_token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (network) DO UPDATE
		SET paging_token = EXCLUDED.paging_token,
		    updated_at = NOW()
	`, string(network), cursor)

	return err
}
