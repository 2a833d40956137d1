package pricecache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/stellar/stub"
	"stellar-wallet-core/internal/storage"
	"stellar-wallet-core/internal/storage/memory"
)

const (
	issuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
	btc    = "BTC:" + issuer
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// countingStore counts 24h lookups.
type countingStore struct {
	*memory.PriceStore
	atOrBefore atomic.Int32
}

func (s *countingStore) LatestAtOrBefore(ctx context.Context, token string, tsMs int64) (*domain.PriceSample, error) {
	s.atOrBefore.Add(1)
	return s.PriceStore.LatestAtOrBefore(ctx, token, tsMs)
}

func fixedPaths(amounts ...string) *stub.LedgerAPI {
	return &stub.LedgerAPI{
		StrictReceivePathsFunc: func(context.Context, stellar.PathsRequest) ([]stellar.Path, error) {
			paths := make([]stellar.Path, 0, len(amounts))
			for _, a := range amounts {
				paths = append(paths, stellar.Path{SourceAmount: a, DestinationAmount: DefaultReceiveAmount})
			}
			return paths, nil
		},
	}
}

func newCache(t *testing.T, store storage.PriceStore, paths PathFinder, opts Options) *Cache {
	t.Helper()
	opts.Store = store
	opts.Paths = paths
	opts.Logger = zerolog.Nop()
	c, err := New(opts)
	require.NoError(t, err)
	c.now = func() time.Time { return baseTime }
	return c
}

func sample(token string, at time.Time, price float64) domain.PriceSample {
	return domain.PriceSample{Token: token, TimestampMs: at.UnixMilli(), PriceUSD: price}
}

func TestGetPrice_Change24h(t *testing.T) {
	store := memory.NewPriceStore(0)
	ctx := context.Background()
	require.NoError(t, store.AddSamples(ctx, []domain.PriceSample{
		sample(btc, baseTime.Add(-24*time.Hour), 45000),
		sample(btc, baseTime.Add(-time.Hour), 48000),
		sample(btc, baseTime, 50000),
	}))

	c := newCache(t, store, fixedPaths(), Options{})
	price, err := c.GetPrice(ctx, btc)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, price.CurrentPriceUSD)
	require.NotNil(t, price.PercentagePriceChange24h)
	assert.Equal(t, "11.11", fmt.Sprintf("%.2f", *price.PercentagePriceChange24h))

	ranked, err := store.RankedTokens(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{btc}, ranked)
}

func TestGetPrice_ZeroOldPrice(t *testing.T) {
	store := memory.NewPriceStore(0)
	ctx := context.Background()
	require.NoError(t, store.AddSamples(ctx, []domain.PriceSample{
		sample(btc, baseTime.Add(-25*time.Hour), 0),
		sample(btc, baseTime, 2),
	}))

	c := newCache(t, store, fixedPaths(), Options{})
	price, err := c.GetPrice(ctx, btc)
	require.NoError(t, err)
	assert.Equal(t, 2.0, price.CurrentPriceUSD)
	assert.Nil(t, price.PercentagePriceChange24h)
}

func TestGetPrice_YoungSeriesSkipsLookup(t *testing.T) {
	store := &countingStore{PriceStore: memory.NewPriceStore(0)}
	ctx := context.Background()
	require.NoError(t, store.AddSamples(ctx, []domain.PriceSample{
		sample(btc, baseTime.Add(-23*time.Hour), 1),
		sample(btc, baseTime, 2),
	}))

	c := newCache(t, store, fixedPaths(), Options{})
	price, err := c.GetPrice(ctx, btc)
	require.NoError(t, err)
	assert.Nil(t, price.PercentagePriceChange24h)
	assert.Equal(t, int32(0), store.atOrBefore.Load())
}

func TestGetPrice_CacheAside(t *testing.T) {
	store := memory.NewPriceStore(0)
	ctx := context.Background()

	var calls atomic.Int32
	paths := fixedPaths("4000", "5000")
	inner := paths.StrictReceivePathsFunc
	paths.StrictReceivePathsFunc = func(ctx context.Context, req stellar.PathsRequest) ([]stellar.Path, error) {
		calls.Add(1)
		assert.Equal(t, btc, req.SourceAsset)
		assert.Equal(t, DefaultReferenceAsset, req.DestinationAsset)
		assert.Equal(t, "500", req.DestinationAmount)
		return inner(ctx, req)
	}

	c := newCache(t, store, paths, Options{})
	price, err := c.GetPrice(ctx, btc)
	require.NoError(t, err)
	assert.Equal(t, 0.125, price.CurrentPriceUSD)
	assert.Nil(t, price.PercentagePriceChange24h)

	latest, err := store.Latest(ctx, btc)
	require.NoError(t, err)
	assert.Equal(t, baseTime.UnixMilli(), latest.TimestampMs)

	// The second read is served from the series.
	_, err = c.GetPrice(ctx, btc)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetPrice_CalculationFailure(t *testing.T) {
	store := memory.NewPriceStore(0)
	c := newCache(t, store, fixedPaths(), Options{})

	_, err := c.GetPrice(context.Background(), btc)
	require.ErrorIs(t, err, domain.ErrNoPathFound)

	_, err = store.Latest(context.Background(), btc)
	assert.ErrorIs(t, err, storage.ErrNotFound, "failures never write a zero price")
}

func TestCalculatePriceInUSD(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	t.Run("reference asset", func(t *testing.T) {
		paths := &stub.LedgerAPI{}
		c := newCache(t, memory.NewPriceStore(0), paths, Options{})
		price, err := c.CalculatePriceInUSD(ctx, DefaultReferenceAsset)
		require.NoError(t, err)
		assert.Equal(t, 1.0, price)
	})

	t.Run("cheapest path wins", func(t *testing.T) {
		c := newCache(t, memory.NewPriceStore(0), fixedPaths("5000", "bogus", "0", "2500"), Options{Metrics: metrics})
		price, err := c.CalculatePriceInUSD(ctx, domain.NativeKey)
		require.NoError(t, err)
		assert.Equal(t, 0.2, price)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PriceUpdates.WithLabelValues(observability.OutcomeSuccess)))
	})

	t.Run("no path", func(t *testing.T) {
		c := newCache(t, memory.NewPriceStore(0), fixedPaths(), Options{})
		_, err := c.CalculatePriceInUSD(ctx, btc)
		assert.ErrorIs(t, err, domain.ErrNoPathFound)
	})

	t.Run("timeout", func(t *testing.T) {
		paths := &stub.LedgerAPI{
			StrictReceivePathsFunc: func(ctx context.Context, _ stellar.PathsRequest) ([]stellar.Path, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		c := newCache(t, memory.NewPriceStore(0), paths, Options{Timeout: 10 * time.Millisecond})
		_, err := c.CalculatePriceInUSD(ctx, btc)
		assert.ErrorIs(t, err, domain.ErrPriceCalculationTimeout)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		paths := &stub.LedgerAPI{
			StrictReceivePathsFunc: func(ctx context.Context, _ stellar.PathsRequest) ([]stellar.Path, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		c := newCache(t, memory.NewPriceStore(0), paths, Options{})
		_, err := c.CalculatePriceInUSD(cctx, btc)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Paths: &stub.LedgerAPI{}})
	assert.Error(t, err)

	_, err = New(Options{Store: memory.NewPriceStore(0), Paths: &stub.LedgerAPI{}, ReferenceAsset: "native"})
	assert.Error(t, err)

	_, err = New(Options{Store: memory.NewPriceStore(0), Paths: &stub.LedgerAPI{}, ReceiveAmount: "-1"})
	assert.Error(t, err)
}
