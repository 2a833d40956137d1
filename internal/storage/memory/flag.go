package memory

import (
	"context"
	"sync"

	"stellar-wallet-core/internal/storage"
)

// ConsistencyFlag is an in-memory implementation of storage.ConsistencyFlag.
type ConsistencyFlag struct {
	mu      sync.RWMutex
	set     bool
	trusted bool
}

// NewConsistencyFlag creates an unset flag.
func NewConsistencyFlag() *ConsistencyFlag {
	return &ConsistencyFlag{}
}

// Get returns the flag, or ErrNotFound if it was never set.
func (f *ConsistencyFlag) Get(_ context.Context) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.set {
		return false, storage.ErrNotFound
	}
	return f.trusted, nil
}

// Set overwrites the flag.
func (f *ConsistencyFlag) Set(_ context.Context, trusted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.set = true
	f.trusted = trusted
	return nil
}

var _ storage.ConsistencyFlag = (*ConsistencyFlag)(nil)
