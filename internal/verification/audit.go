package verification

import (
	"context"
	"fmt"

	"stellar-wallet-core/internal/domain"
)

// EntryResult contains the comparison of a single operation.
type EntryResult struct {
	OperationID string            `json:"operation_id"`
	Match       bool              `json:"match"`                 // true if all fields match
	Divergences []FieldDivergence `json:"divergences,omitempty"` // list of divergent fields
}

// AuditReport contains results for a whole account history.
type AuditReport struct {
	Account          string         `json:"account"`
	Network          domain.Network `json:"network"`
	TotalEntries     int            `json:"total_entries"`     // operations in the ledger API history
	MatchedEntries   int            `json:"matched_entries"`   // operations that matched exactly
	DivergentEntries int            `json:"divergent_entries"` // operations with divergences, including missing ones
	Results          []EntryResult  `json:"results"`           // individual results, in ledger API order
}

// Consistent reports whether every operation matched.
func (r *AuditReport) Consistent() bool {
	return r.DivergentEntries == 0
}

// Audit compares every operation of an account's ledger API history against the
// indexer. Unlike Check it does not touch the consistency flag or subscribe the account.
func (v *Verifier) Audit(ctx context.Context, pubKey string) (*AuditReport, error) {
	expected, err := v.source.LedgerHistory(ctx, pubKey, v.network)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	actual, err := v.source.IndexerHistory(ctx, pubKey, v.network)
	if err != nil {
		return nil, fmt.Errorf("indexer history: %w", err)
	}

	report := &AuditReport{
		Account:      pubKey,
		Network:      v.network,
		TotalEntries: len(expected),
		Results:      make([]EntryResult, 0, len(expected)),
	}

	for _, entry := range expected {
		divergences := CompareEntry(entry.ID, expected, actual)
		report.Results = append(report.Results, EntryResult{
			OperationID: entry.ID,
			Match:       len(divergences) == 0,
			Divergences: divergences,
		})
		if len(divergences) == 0 {
			report.MatchedEntries++
		} else {
			report.DivergentEntries++
		}
	}

	return report, nil
}
