package domain

import "time"

// PriceSample is one point of a token's USD price series.
type PriceSample struct {
	Token       string  // "native" or CODE:ISSUER
	TimestampMs int64   // Unix timestamp in milliseconds
	PriceUSD    float64 // unit price in USD
}

// Time returns the sample timestamp.
func (p PriceSample) Time() time.Time {
	return time.UnixMilli(p.TimestampMs)
}

// TokenPrice is the answer to a price lookup.
type TokenPrice struct {
	CurrentPriceUSD          float64  `json:"currentPrice"`
	PercentagePriceChange24h *float64 `json:"percentagePriceChange24h"`
}

// LedgerClose is a ledger close notification from the ledger stream.
type LedgerClose struct {
	Sequence       int64
	PagingToken    string
	Hash           string
	ClosedAt       time.Time
	OperationCount int
}
