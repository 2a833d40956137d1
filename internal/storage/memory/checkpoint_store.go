package memory

import (
	"context"
	"sync"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu      sync.RWMutex
	cursors map[domain.Network]string
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		cursors: make(map[domain.Network]string),
	}
}

// GetCursor returns the saved cursor for a network.
func (s *CheckpointStore) GetCursor(_ context.Context, network domain.Network) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[network]
	if !ok {
		return "", storage.ErrNotFound
	}
	return cursor, nil
}

// SetCursor saves the cursor for a network.
func (s *CheckpointStore) SetCursor(_ context.Context, network domain.Network, cursor string) error {
	if cursor == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[network] = cursor
	return nil
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
