package clickhouse

import (
	"context"
	"fmt"
	"time"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
// price_samples is a ReplacingMergeTree keyed by (token, timestamp_ms), so a repeated
// timestamp keeps the last inserted value once read with FINAL. Its TTL removes old
// rows physically; reads additionally ignore rows outside the retention window of the
// newest sample, since TTL merges run lazily.
type PriceStore struct {
	conn        *Conn
	retentionMs int64
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn, retention time.Duration) *PriceStore {
	return &PriceStore{conn: conn, retentionMs: retention.Milliseconds()}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// chRows is the subset of driver.Rows used by the scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// CreateSeries registers token in the ranking with zero hits.
// Series themselves need no creation in ClickHouse.
func (s *PriceStore) CreateSeries(ctx context.Context, token string) error {
	if token == "" {
		return storage.ErrInvalidInput
	}
	if err := s.conn.Exec(ctx, `INSERT INTO token_ranks (token, hits) VALUES (?, ?)`, token, uint64(0)); err != nil {
		return fmt.Errorf("create series %s: %w", token, err)
	}
	return nil
}

// AddSamples inserts samples in one batch and registers unseen tokens.
func (s *PriceStore) AddSamples(ctx context.Context, samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_samples (token, timestamp_ms, price_usd)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	tokens := make(map[string]struct{})
	for _, p := range samples {
		if p.Token == "" {
			return storage.ErrInvalidInput
		}
		if err := batch.Append(p.Token, p.TimestampMs, p.PriceUSD); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
		tokens[p.Token] = struct{}{}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	for token := range tokens {
		if err := s.CreateSeries(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

// retained is the window predicate appended to sample queries. It takes the token and
// the retention as arguments.
const retained = `
	AND timestamp_ms >= (SELECT max(timestamp_ms) FROM price_samples WHERE token = ?) - ?
`

// Latest returns the newest sample of token.
func (s *PriceStore) Latest(ctx context.Context, token string) (*domain.PriceSample, error) {
	query := `
		SELECT token, timestamp_ms, price_usd
		FROM price_samples FINAL
		WHERE token = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`
	return s.one(ctx, query, token)
}

// Oldest returns the oldest sample inside the retention window.
func (s *PriceStore) Oldest(ctx context.Context, token string) (*domain.PriceSample, error) {
	if s.retentionMs <= 0 {
		return s.one(ctx, `
			SELECT token, timestamp_ms, price_usd
			FROM price_samples FINAL
			WHERE token = ?
			ORDER BY timestamp_ms ASC
			LIMIT 1
		`, token)
	}
	query := `
		SELECT token, timestamp_ms, price_usd
		FROM price_samples FINAL
		WHERE token = ?` + retained + `
		ORDER BY timestamp_ms ASC
		LIMIT 1
	`
	return s.one(ctx, query, token, token, s.retentionMs)
}

// LatestAtOrBefore returns the newest sample with TimestampMs <= tsMs.
func (s *PriceStore) LatestAtOrBefore(ctx context.Context, token string, tsMs int64) (*domain.PriceSample, error) {
	if s.retentionMs <= 0 {
		return s.one(ctx, `
			SELECT token, timestamp_ms, price_usd
			FROM price_samples FINAL
			WHERE token = ? AND timestamp_ms <= ?
			ORDER BY timestamp_ms DESC
			LIMIT 1
		`, token, tsMs)
	}
	query := `
		SELECT token, timestamp_ms, price_usd
		FROM price_samples FINAL
		WHERE token = ? AND timestamp_ms <= ?` + retained + `
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`
	return s.one(ctx, query, token, tsMs, token, s.retentionMs)
}

func (s *PriceStore) one(ctx context.Context, query string, args ...interface{}) (*domain.PriceSample, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price sample: %w", err)
	}
	defer rows.Close()

	samples, err := scanSamples(rows)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, storage.ErrNotFound
	}
	return &samples[0], nil
}

// scanSamples scans multiple rows.
func scanSamples(rows chRows) ([]domain.PriceSample, error) {
	var samples []domain.PriceSample

	for rows.Next() {
		var p domain.PriceSample
		if err := rows.Scan(&p.Token, &p.TimestampMs, &p.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}
		samples = append(samples, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}
	return samples, nil
}

// IncrementRank records one hit for token. SummingMergeTree folds hits per token.
func (s *PriceStore) IncrementRank(ctx context.Context, token string) error {
	if err := s.conn.Exec(ctx, `INSERT INTO token_ranks (token, hits) VALUES (?, ?)`, token, uint64(1)); err != nil {
		return fmt.Errorf("increment rank %s: %w", token, err)
	}
	return nil
}

// RankedTokens returns tokens by access count, highest first.
func (s *PriceStore) RankedTokens(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT token
		FROM token_ranks
		GROUP BY token
		ORDER BY sum(hits) DESC, token DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query ranked tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan ranked token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked tokens: %w", err)
	}
	return tokens, nil
}

// SetInitialized marks the initial crawl as done.
func (s *PriceStore) SetInitialized(ctx context.Context) error {
	if err := s.conn.Exec(ctx, `INSERT INTO price_cache_meta (key, value) VALUES ('initialized', 'true')`); err != nil {
		return fmt.Errorf("set initialized: %w", err)
	}
	return nil
}

// IsInitialized reports whether the initial crawl was done.
func (s *PriceStore) IsInitialized(ctx context.Context) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM price_cache_meta FINAL
		WHERE key = 'initialized' AND value = 'true'
	`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("get initialized: %w", err)
	}
	return count > 0, nil
}
