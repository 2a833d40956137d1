package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// ConsistencyFlag implements storage.ConsistencyFlag with a single key.
type ConsistencyFlag struct {
	client *redis.Client
}

// NewConsistencyFlag creates a new Redis backed flag.
func NewConsistencyFlag(client *redis.Client) *ConsistencyFlag {
	return &ConsistencyFlag{client: client}
}

var _ storage.ConsistencyFlag = (*ConsistencyFlag)(nil)

// Get returns the flag. Returns ErrNotFound when it was never written.
func (f *ConsistencyFlag) Get(ctx context.Context) (bool, error) {
	v, err := f.client.Get(ctx, keyFlag).Result()
	if err != nil {
		if isNil(err) {
			return false, storage.ErrNotFound
		}
		return false, fmt.Errorf("get consistency flag: %w", err)
	}
	return v == "true", nil
}

// Set overwrites the flag.
func (f *ConsistencyFlag) Set(ctx context.Context, trusted bool) error {
	v := "false"
	if trusted {
		v = "true"
	}
	if err := f.client.Set(ctx, keyFlag, v, 0).Err(); err != nil {
		return fmt.Errorf("set consistency flag: %w", err)
	}
	return nil
}

// CheckpointStore implements storage.CheckpointStore with one key per network.
type CheckpointStore struct {
	client *redis.Client
}

// NewCheckpointStore creates a new Redis checkpoint store.
func NewCheckpointStore(client *redis.Client) *CheckpointStore {
	return &CheckpointStore{client: client}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// GetCursor returns the saved cursor for a network.
func (s *CheckpointStore) GetCursor(ctx context.Context, network domain.Network) (string, error) {
	v, err := s.client.Get(ctx, keyCursorPrefix+string(network)).Result()
	if err != nil {
		if isNil(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get cursor: %w", err)
	}
	return v, nil
}

// SetCursor saves the cursor for a network.
func (s *CheckpointStore) SetCursor(ctx context.Context, network domain.Network, cursor string) error {
	if cursor == "" {
		return storage.ErrInvalidInput
	}
	if err := s.client.Set(ctx, keyCursorPrefix+string(network), cursor, 0).Err(); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

// TokenCache implements storage.TokenCache with JSON values.
type TokenCache struct {
	client *redis.Client
}

// NewTokenCache creates a new Redis token cache.
func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

var _ storage.TokenCache = (*TokenCache)(nil)

func metadataKey(network domain.Network, contractID string) string {
	return keyMetadataPrefix + string(network) + ":" + contractID
}

// Get retrieves metadata for a contract.
func (c *TokenCache) Get(ctx context.Context, network domain.Network, contractID string) (*domain.TokenMetadata, error) {
	data, err := c.client.Get(ctx, metadataKey(network, contractID)).Result()
	if err != nil {
		if isNil(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata: %w", err)
	}

	var m domain.TokenMetadata
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal token metadata: %w", err)
	}
	return &m, nil
}

// Put stores metadata for a contract without expiry.
func (c *TokenCache) Put(ctx context.Context, network domain.Network, contractID string, m *domain.TokenMetadata) error {
	if m == nil || contractID == "" {
		return storage.ErrInvalidInput
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal token metadata: %w", err)
	}
	if err := c.client.Set(ctx, metadataKey(network, contractID), data, 0).Err(); err != nil {
		return fmt.Errorf("set token metadata: %w", err)
	}
	return nil
}
