package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// PriceStore implements storage.PriceStore with RedisTimeSeries and a sorted set.
// Each token's series is created with RETENTION and DUPLICATE_POLICY LAST, so the
// store drops old samples and keeps the latest value for a repeated timestamp.
type PriceStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewPriceStore creates a new Redis price store.
func NewPriceStore(client *redis.Client, retention time.Duration) *PriceStore {
	return &PriceStore{client: client, retention: retention}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

func seriesKey(token string) string {
	return keySeriesPrefix + token
}

// CreateSeries creates the series and adds token to the ranking with a zero score.
func (s *PriceStore) CreateSeries(ctx context.Context, token string) error {
	if token == "" {
		return storage.ErrInvalidInput
	}

	err := s.client.Do(ctx, "TS.CREATE", seriesKey(token),
		"RETENTION", s.retention.Milliseconds(),
		"DUPLICATE_POLICY", "LAST",
		"LABELS", "token", token,
	).Err()
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create series %s: %w", token, err)
	}

	if err := s.client.ZAddNX(ctx, keyRanks, redis.Z{Score: 0, Member: token}).Err(); err != nil {
		return fmt.Errorf("add rank %s: %w", token, err)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return err != nil && containsFold(err.Error(), "key already exists")
}

// AddSamples appends samples with TS.MADD, creating missing series first.
func (s *PriceStore) AddSamples(ctx context.Context, samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	args := make([]interface{}, 0, 1+3*len(samples))
	args = append(args, "TS.MADD")
	for _, p := range samples {
		if p.Token == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[p.Token]; !ok {
			if err := s.CreateSeries(ctx, p.Token); err != nil {
				return err
			}
			seen[p.Token] = struct{}{}
		}
		args = append(args, seriesKey(p.Token), p.TimestampMs, strconv.FormatFloat(p.PriceUSD, 'f', -1, 64))
	}

	results, err := s.client.Do(ctx, args...).Slice()
	if err != nil {
		return fmt.Errorf("add samples: %w", err)
	}
	// TS.MADD reports per-sample failures inline.
	for i, r := range results {
		if e, ok := r.(error); ok {
			return fmt.Errorf("add sample for %s: %w", samples[i].Token, e)
		}
	}
	return nil
}

// Latest returns the newest sample with TS.GET.
func (s *PriceStore) Latest(ctx context.Context, token string) (*domain.PriceSample, error) {
	reply, err := s.client.Do(ctx, "TS.GET", seriesKey(token)).Slice()
	if err != nil {
		if isMissingKey(err) || isNil(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest %s: %w", token, err)
	}
	if len(reply) < 2 {
		return nil, storage.ErrNotFound
	}
	return parseSample(token, reply)
}

// Oldest returns the oldest retained sample.
func (s *PriceStore) Oldest(ctx context.Context, token string) (*domain.PriceSample, error) {
	return s.rangeOne(ctx, "TS.RANGE", token, "-", "+")
}

// LatestAtOrBefore returns the newest sample with TimestampMs <= tsMs.
func (s *PriceStore) LatestAtOrBefore(ctx context.Context, token string, tsMs int64) (*domain.PriceSample, error) {
	return s.rangeOne(ctx, "TS.REVRANGE", token, "-", strconv.FormatInt(tsMs, 10))
}

func (s *PriceStore) rangeOne(ctx context.Context, cmd, token, from, to string) (*domain.PriceSample, error) {
	reply, err := s.client.Do(ctx, cmd, seriesKey(token), from, to, "COUNT", 1).Slice()
	if err != nil {
		if isMissingKey(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%s %s: %w", cmd, token, err)
	}
	if len(reply) == 0 {
		return nil, storage.ErrNotFound
	}

	pair, ok := reply[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s %s: unexpected reply %T", cmd, token, reply[0])
	}
	return parseSample(token, pair)
}

func parseSample(token string, pair []interface{}) (*domain.PriceSample, error) {
	if len(pair) < 2 {
		return nil, fmt.Errorf("sample for %s: short reply", token)
	}
	ts, err := toInt64(pair[0])
	if err != nil {
		return nil, fmt.Errorf("sample timestamp for %s: %w", token, err)
	}
	price, err := toFloat64(pair[1])
	if err != nil {
		return nil, fmt.Errorf("sample value for %s: %w", token, err)
	}
	return &domain.PriceSample{Token: token, TimestampMs: ts, PriceUSD: price}, nil
}

// IncrementRank bumps the access counter of token.
func (s *PriceStore) IncrementRank(ctx context.Context, token string) error {
	if err := s.client.ZIncrBy(ctx, keyRanks, 1, token).Err(); err != nil {
		return fmt.Errorf("increment rank %s: %w", token, err)
	}
	return nil
}

// RankedTokens returns tokens by access count, highest first.
func (s *PriceStore) RankedTokens(ctx context.Context, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	tokens, err := s.client.ZRevRange(ctx, keyRanks, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("ranked tokens: %w", err)
	}
	return tokens, nil
}

// SetInitialized marks the initial crawl as done.
func (s *PriceStore) SetInitialized(ctx context.Context) error {
	return s.client.Set(ctx, keyInitialized, "true", 0).Err()
}

// IsInitialized reports whether the initial crawl was done.
func (s *PriceStore) IsInitialized(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, keyInitialized).Result()
	if err != nil {
		if isNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("get initialized: %w", err)
	}
	return v == "true", nil
}
