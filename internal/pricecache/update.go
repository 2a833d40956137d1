package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"stellar-wallet-core/internal/domain"
)

// UpdateReport summarizes one refresh cycle.
type UpdateReport struct {
	Tracked int                  // tokens in the ranked set
	Batches int                  // batches processed
	Samples []domain.PriceSample // samples written
	Failed  *multierror.Error    // per-token calculation failures, nil if none
}

// Err returns the aggregated per-token failures.
func (r *UpdateReport) Err() error {
	return r.Failed.ErrorOrNil()
}

// Init crawls the top-asset listing until TargetCount tokens are collected or the
// listing runs out, creates a series for each and marks the cache initialized.
// The native asset is excluded from the crawl and always tracked. The reference
// asset is never tracked.
func (c *Cache) Init(ctx context.Context) (int, error) {
	if c.assets == nil {
		return 0, errors.New("pricecache: no asset lister configured")
	}

	seen := map[string]bool{domain.NativeKey: true, c.reference: true}
	var tokens []string
	next := ""

	for page := 0; len(tokens) < c.targetCount; page++ {
		if page > 0 {
			if err := sleep(ctx, c.pageDelay); err != nil {
				return 0, err
			}
		}

		p, err := c.assets.TopAssets(ctx, next)
		if err != nil {
			return 0, fmt.Errorf("crawl asset list page %d: %w", page, err)
		}
		// A page may carry no usable assets and still link onwards.
		for _, token := range p.Assets {
			if seen[token] {
				continue
			}
			seen[token] = true
			tokens = append(tokens, token)
			if len(tokens) == c.targetCount {
				break
			}
		}

		if p.Next == "" || p.Next == next {
			break
		}
		next = p.Next
	}

	if err := c.store.CreateSeries(ctx, domain.NativeKey); err != nil {
		return 0, fmt.Errorf("create native series: %w", err)
	}
	for _, token := range tokens {
		if err := c.store.CreateSeries(ctx, token); err != nil {
			return 0, fmt.Errorf("create series %s: %w", token, err)
		}
	}
	if err := c.store.SetInitialized(ctx); err != nil {
		return 0, fmt.Errorf("mark initialized: %w", err)
	}

	c.log.Info().Int("tokens", len(tokens)+1).Msg("price cache initialized")
	return len(tokens) + 1, nil
}

// UpdatePrices refreshes every ranked token, most read first, in fixed size
// batches separated by BatchDelay. Tokens within a batch are priced in parallel.
// A token whose price cannot be computed is left out of the write and reported.
func (c *Cache) UpdatePrices(ctx context.Context) (*UpdateReport, error) {
	tokens, err := c.store.RankedTokens(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("ranked tokens: %w", err)
	}

	report := &UpdateReport{Tracked: len(tokens)}

	for start := 0; start < len(tokens); start += c.batchSize {
		if start > 0 {
			if err := sleep(ctx, c.batchDelay); err != nil {
				return report, err
			}
		}

		end := start + c.batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		samples, failed := c.priceBatch(ctx, tokens[start:end])
		report.Batches++
		for _, err := range failed {
			report.Failed = multierror.Append(report.Failed, err)
		}

		if len(samples) == 0 {
			continue
		}
		if err := c.store.AddSamples(ctx, samples); err != nil {
			return report, fmt.Errorf("write batch %d: %w", report.Batches, err)
		}
		report.Samples = append(report.Samples, samples...)
	}

	c.metrics.RecordPriceUpdate(len(tokens), float64(c.now().Unix()))

	evt := c.log.Info()
	if report.Failed != nil {
		evt = evt.Int("failed", report.Failed.Len())
	}
	evt.Int("tracked", report.Tracked).Int("updated", len(report.Samples)).Msg("prices updated")

	if c.onUpdate != nil && len(report.Samples) > 0 {
		c.onUpdate(report.Samples)
	}
	return report, nil
}

func (c *Cache) priceBatch(ctx context.Context, batch []string) ([]domain.PriceSample, []error) {
	prices := make([]float64, len(batch))
	errs := make([]error, len(batch))

	var g errgroup.Group
	for i, token := range batch {
		g.Go(func() error {
			prices[i], errs[i] = c.CalculatePriceInUSD(ctx, token)
			return nil
		})
	}
	_ = g.Wait()

	ts := c.now().UnixMilli()
	samples := make([]domain.PriceSample, 0, len(batch))
	var failed []error
	for i, token := range batch {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		samples = append(samples, domain.PriceSample{Token: token, TimestampMs: ts, PriceUSD: prices[i]})
	}
	return samples, failed
}

// Run initializes the cache if needed and then refreshes prices every interval
// until ctx is done. A failed init is retried on the next tick.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.ensureInitialized(ctx) {
			if _, err := c.UpdatePrices(ctx); err != nil && ctx.Err() == nil {
				c.log.Error().Err(err).Msg("price update failed")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Cache) ensureInitialized(ctx context.Context) bool {
	ok, err := c.store.IsInitialized(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to read init marker")
		return false
	}
	if ok {
		return true
	}
	if _, err := c.Init(ctx); err != nil {
		if ctx.Err() == nil {
			c.log.Error().Err(err).Msg("price cache init failed")
		}
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
