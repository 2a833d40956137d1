package storage

import (
	"context"

	"stellar-wallet-core/internal/domain"
)

// TokenCache caches contract token metadata. Metadata is immutable once fetched, so
// entries never expire.
type TokenCache interface {
	// Get retrieves metadata for a contract. Returns ErrNotFound on a miss.
	Get(ctx context.Context, network domain.Network, contractID string) (*domain.TokenMetadata, error)

	// Put stores metadata for a contract. Writing an existing key is not an error.
	Put(ctx context.Context, network domain.Network, contractID string, m *domain.TokenMetadata) error
}

// ConsistencyFlag is the shared "indexer trusted" flag written by the verifier.
type ConsistencyFlag interface {
	// Get returns the flag. Returns ErrNotFound when it was never written.
	Get(ctx context.Context) (bool, error)

	// Set overwrites the flag.
	Set(ctx context.Context, trusted bool) error
}

// PriceStore holds per-token USD price series and the access ranking used to
// prioritize refreshes. Samples older than the store's retention window are dropped
// by the store. A sample written at an existing timestamp replaces the old value.
type PriceStore interface {
	// CreateSeries creates an empty series for token and adds it to the ranking.
	// Creating an existing series is not an error.
	CreateSeries(ctx context.Context, token string) error

	// AddSamples appends samples to their series, creating missing series.
	AddSamples(ctx context.Context, samples []domain.PriceSample) error

	// Latest returns the newest sample. Returns ErrNotFound for a missing or empty series.
	Latest(ctx context.Context, token string) (*domain.PriceSample, error)

	// Oldest returns the oldest retained sample. Returns ErrNotFound for a missing or empty series.
	Oldest(ctx context.Context, token string) (*domain.PriceSample, error)

	// LatestAtOrBefore returns the newest sample with TimestampMs <= tsMs.
	// Returns ErrNotFound if there is none.
	LatestAtOrBefore(ctx context.Context, token string, tsMs int64) (*domain.PriceSample, error)

	// IncrementRank bumps the access counter of token.
	IncrementRank(ctx context.Context, token string) error

	// RankedTokens returns tokens ordered by access count, highest first.
	// A limit <= 0 returns all tokens.
	RankedTokens(ctx context.Context, limit int) ([]string, error)

	// SetInitialized marks the initial crawl as done.
	SetInitialized(ctx context.Context) error

	// IsInitialized reports whether the initial crawl was done.
	IsInitialized(ctx context.Context) (bool, error)
}

// CheckpointStore persists the verifier's last good ledger stream cursor so a
// restarted process resumes where it stopped instead of at the tip.
type CheckpointStore interface {
	// GetCursor returns the saved cursor for a network.
	// Returns ErrNotFound if no cursor has been saved yet.
	GetCursor(ctx context.Context, network domain.Network) (string, error)

	// SetCursor saves the cursor for a network.
	SetCursor(ctx context.Context, network domain.Network, cursor string) error
}
