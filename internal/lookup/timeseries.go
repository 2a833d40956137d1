// Package lookup holds helpers for sorted price sample series shared by the price stores.
package lookup

import (
	"errors"
	"sort"

	"stellar-wallet-core/internal/domain"
)

// ErrNoPriceData is returned when no sample satisfies a lookup.
var ErrNoPriceData = errors.New("no price data available")

// SampleAt returns the newest sample at or before target.
// Samples must be sorted by TimestampMs ascending.
// Returns ErrNoPriceData if the slice is empty or every sample is after target.
func SampleAt(target int64, samples []domain.PriceSample) (domain.PriceSample, error) {
	// First index with TimestampMs > target.
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].TimestampMs > target
	})
	if i == 0 {
		return domain.PriceSample{}, ErrNoPriceData
	}
	return samples[i-1], nil
}

// Upsert inserts s keeping the slice sorted. A sample at an existing timestamp
// replaces the stored one.
func Upsert(samples []domain.PriceSample, s domain.PriceSample) []domain.PriceSample {
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].TimestampMs >= s.TimestampMs
	})
	if i < len(samples) && samples[i].TimestampMs == s.TimestampMs {
		samples[i] = s
		return samples
	}
	samples = append(samples, domain.PriceSample{})
	copy(samples[i+1:], samples[i:])
	samples[i] = s
	return samples
}

// Prune drops samples older than retentionMs relative to the newest sample.
// A non-positive retention keeps everything.
func Prune(samples []domain.PriceSample, retentionMs int64) []domain.PriceSample {
	if retentionMs <= 0 || len(samples) == 0 {
		return samples
	}
	cutoff := samples[len(samples)-1].TimestampMs - retentionMs
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].TimestampMs >= cutoff
	})
	return samples[i:]
}
