package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/lookup"
	"stellar-wallet-core/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
// Retention is applied relative to the newest sample of each series on every write.
type PriceStore struct {
	mu          sync.RWMutex
	retentionMs int64
	series      map[string][]domain.PriceSample // sorted by timestamp ASC
	ranks       map[string]float64
	initialized bool
}

// NewPriceStore creates a new in-memory price store. A zero retention keeps every sample.
func NewPriceStore(retention time.Duration) *PriceStore {
	return &PriceStore{
		retentionMs: retention.Milliseconds(),
		series:      make(map[string][]domain.PriceSample),
		ranks:       make(map[string]float64),
	}
}

// CreateSeries creates an empty series and a zero rank for token.
func (s *PriceStore) CreateSeries(_ context.Context, token string) error {
	if token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(token)
	return nil
}

// ensure must be called with the write lock held.
func (s *PriceStore) ensure(token string) {
	if _, ok := s.series[token]; !ok {
		s.series[token] = nil
	}
	if _, ok := s.ranks[token]; !ok {
		s.ranks[token] = 0
	}
}

// AddSamples appends samples. Duplicate timestamps keep the latest value.
func (s *PriceStore) AddSamples(_ context.Context, samples []domain.PriceSample) error {
	for _, p := range samples {
		if p.Token == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{})
	for _, p := range samples {
		s.ensure(p.Token)
		s.series[p.Token] = lookup.Upsert(s.series[p.Token], p)
		touched[p.Token] = struct{}{}
	}
	for token := range touched {
		s.series[token] = lookup.Prune(s.series[token], s.retentionMs)
	}
	return nil
}

// Latest returns the newest sample of token.
func (s *PriceStore) Latest(_ context.Context, token string) (*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.series[token]
	if len(samples) == 0 {
		return nil, storage.ErrNotFound
	}
	latest := samples[len(samples)-1]
	return &latest, nil
}

// Oldest returns the oldest retained sample of token.
func (s *PriceStore) Oldest(_ context.Context, token string) (*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.series[token]
	if len(samples) == 0 {
		return nil, storage.ErrNotFound
	}
	oldest := samples[0]
	return &oldest, nil
}

// LatestAtOrBefore returns the newest sample with TimestampMs <= tsMs.
func (s *PriceStore) LatestAtOrBefore(_ context.Context, token string, tsMs int64) (*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sample, err := lookup.SampleAt(tsMs, s.series[token])
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return &sample, nil
}

// IncrementRank bumps the access counter of token.
func (s *PriceStore) IncrementRank(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ranks[token]++
	return nil
}

// RankedTokens returns tokens by access count, highest first. Ties order by token descending.
func (s *PriceStore) RankedTokens(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]string, 0, len(s.ranks))
	for token := range s.ranks {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		ri, rj := s.ranks[tokens[i]], s.ranks[tokens[j]]
		if ri != rj {
			return ri > rj
		}
		return tokens[i] > tokens[j]
	})

	if limit > 0 && len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

// SetInitialized marks the initial crawl as done.
func (s *PriceStore) SetInitialized(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	return nil
}

// IsInitialized reports whether the initial crawl was done.
func (s *PriceStore) IsInitialized(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.initialized, nil
}

var _ storage.PriceStore = (*PriceStore)(nil)
