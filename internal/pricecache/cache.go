// Package pricecache maintains per-token USD price series.
//
// Prices are computed with strict-receive path finding against the reference
// asset, written to a storage.PriceStore and refreshed in rate limited batches
// ordered by how often each token is read. The tracked set is seeded by crawling
// an external top-asset listing.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/storage"
)

// Default configuration values.
const (
	DefaultReferenceAsset = "USDC:GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
	DefaultReceiveAmount  = "500"
	DefaultTimeout        = 10 * time.Second
	DefaultBatchSize      = 150
	DefaultBatchDelay     = 5 * time.Second
	DefaultTargetCount    = 1000
	DefaultPageDelay      = time.Second
	DefaultRetention      = 25 * time.Hour
)

const changeWindow = 24 * time.Hour

// PathFinder finds strict-receive conversion paths. stellar.LedgerAPI satisfies it.
type PathFinder interface {
	StrictReceivePaths(ctx context.Context, req stellar.PathsRequest) ([]stellar.Path, error)
}

// AssetLister pages through the external top-asset listing.
type AssetLister interface {
	TopAssets(ctx context.Context, next string) (*stellar.AssetListPage, error)
}

// Options configures a Cache.
type Options struct {
	Store  storage.PriceStore
	Paths  PathFinder
	Assets AssetLister // only needed by Init

	ReferenceAsset string // CODE:ISSUER of the USD pegged asset
	ReceiveAmount  string // fixed amount of the reference asset to receive
	Timeout        time.Duration
	BatchSize      int
	BatchDelay     time.Duration
	TargetCount    int
	PageDelay      time.Duration

	// OnUpdate receives the samples written by each UpdatePrices cycle.
	OnUpdate func([]domain.PriceSample)

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Cache answers price lookups and keeps the tracked series fresh.
type Cache struct {
	store  storage.PriceStore
	paths  PathFinder
	assets AssetLister

	reference     string
	receiveAmount decimal.Decimal
	timeout       time.Duration
	batchSize     int
	batchDelay    time.Duration
	targetCount   int
	pageDelay     time.Duration
	onUpdate      func([]domain.PriceSample)

	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Cache. Zero option values use the package defaults.
func New(opts Options) (*Cache, error) {
	if opts.Store == nil {
		return nil, errors.New("pricecache: store is required")
	}
	if opts.Paths == nil {
		return nil, errors.New("pricecache: path finder is required")
	}

	c := &Cache{
		store:       opts.Store,
		paths:       opts.Paths,
		assets:      opts.Assets,
		reference:   opts.ReferenceAsset,
		timeout:     opts.Timeout,
		batchSize:   opts.BatchSize,
		batchDelay:  opts.BatchDelay,
		targetCount: opts.TargetCount,
		pageDelay:   opts.PageDelay,
		onUpdate:    opts.OnUpdate,
		metrics:     opts.Metrics,
		log:         opts.Logger.With().Str("component", "pricecache").Logger(),
		now:         time.Now,
	}

	if c.reference == "" {
		c.reference = DefaultReferenceAsset
	}
	if _, _, ok := stellar.ParseClassicKey(c.reference); !ok || c.reference == domain.NativeKey {
		return nil, fmt.Errorf("pricecache: invalid reference asset %q", c.reference)
	}

	amount := opts.ReceiveAmount
	if amount == "" {
		amount = DefaultReceiveAmount
	}
	receive, err := decimal.NewFromString(amount)
	if err != nil || !receive.IsPositive() {
		return nil, fmt.Errorf("pricecache: invalid receive amount %q", amount)
	}
	c.receiveAmount = receive

	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.batchDelay < 0 {
		c.batchDelay = 0
	}
	if c.targetCount <= 0 {
		c.targetCount = DefaultTargetCount
	}
	if c.pageDelay < 0 {
		c.pageDelay = 0
	}
	return c, nil
}

// GetPrice returns the current USD price of token and its change over the last 24h.
// A token without a series is priced on demand and inserted. The change is nil when
// the series spans less than 24h or the old price is zero. Every successful lookup
// bumps the token's rank.
func (c *Cache) GetPrice(ctx context.Context, token string) (*domain.TokenPrice, error) {
	latest, err := c.store.Latest(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return c.insert(ctx, token)
	}
	if err != nil {
		return nil, fmt.Errorf("latest price of %s: %w", token, err)
	}

	price := &domain.TokenPrice{CurrentPriceUSD: latest.PriceUSD}

	oldest, err := c.store.Oldest(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("oldest price of %s: %w", token, err)
	}
	if latest.TimestampMs-oldest.TimestampMs >= changeWindow.Milliseconds() {
		old, err := c.store.LatestAtOrBefore(ctx, token, latest.TimestampMs-changeWindow.Milliseconds())
		switch {
		case err == nil:
			price.PercentagePriceChange24h = percentChange(latest.PriceUSD, old.PriceUSD)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("24h price of %s: %w", token, err)
		}
	}

	c.bumpRank(ctx, token)
	return price, nil
}

// insert prices a token that has no series yet.
func (c *Cache) insert(ctx context.Context, token string) (*domain.TokenPrice, error) {
	usd, err := c.CalculatePriceInUSD(ctx, token)
	if err != nil {
		return nil, err
	}

	sample := domain.PriceSample{Token: token, TimestampMs: c.now().UnixMilli(), PriceUSD: usd}
	if err := c.store.AddSamples(ctx, []domain.PriceSample{sample}); err != nil {
		return nil, fmt.Errorf("insert price of %s: %w", token, err)
	}

	c.bumpRank(ctx, token)
	return &domain.TokenPrice{CurrentPriceUSD: usd}, nil
}

func (c *Cache) bumpRank(ctx context.Context, token string) {
	if err := c.store.IncrementRank(ctx, token); err != nil {
		c.log.Warn().Err(err).Str("token", token).Msg("failed to increment token rank")
	}
}

// percentChange returns (now-old)/old*100, or nil for a zero old price.
func percentChange(now, old float64) *float64 {
	if old == 0 {
		return nil
	}
	change := (now - old) / old * 100
	return &change
}

// GetPrices looks up several tokens. Tokens that fail are left out of the result.
func (c *Cache) GetPrices(ctx context.Context, tokens []string) map[string]domain.TokenPrice {
	out := make(map[string]domain.TokenPrice, len(tokens))
	for _, token := range tokens {
		price, err := c.GetPrice(ctx, token)
		if err != nil {
			c.log.Debug().Err(err).Str("token", token).Msg("price lookup failed")
			continue
		}
		out[token] = *price
	}
	return out
}

// CalculatePriceInUSD prices one unit of token by asking how much of it is needed
// to strictly receive the fixed amount of the reference asset. The query is raced
// against the configured timeout. The reference asset itself is worth exactly 1.
func (c *Cache) CalculatePriceInUSD(ctx context.Context, token string) (float64, error) {
	if token == c.reference {
		return 1, nil
	}

	start := c.now()
	price, err := c.calculate(ctx, token)
	c.metrics.RecordPriceCalculation(c.now().Sub(start).Seconds(), err)
	return price, err
}

type pathsResult struct {
	paths []stellar.Path
	err   error
}

func (c *Cache) calculate(ctx context.Context, token string) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan pathsResult, 1)
	go func() {
		paths, err := c.paths.StrictReceivePaths(qctx, stellar.PathsRequest{
			SourceAsset:       token,
			DestinationAsset:  c.reference,
			DestinationAmount: c.receiveAmount.String(),
		})
		done <- pathsResult{paths: paths, err: err}
	}()

	var res pathsResult
	select {
	case res = <-done:
	case <-qctx.Done():
		res.err = qctx.Err()
	}
	if res.err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if errors.Is(qctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%s: %w", token, domain.ErrPriceCalculationTimeout)
		}
		return 0, fmt.Errorf("find paths for %s: %w", token, res.err)
	}

	var best decimal.Decimal
	for _, p := range res.paths {
		amount, err := decimal.NewFromString(p.SourceAmount)
		if err != nil || !amount.IsPositive() {
			continue
		}
		if best.IsZero() || amount.LessThan(best) {
			best = amount
		}
	}
	if best.IsZero() {
		return 0, fmt.Errorf("%s: %w", token, domain.ErrNoPathFound)
	}

	price, _ := c.receiveAmount.Div(best).Float64()
	return price, nil
}
