package stub

import (
	"context"

	"stellar-wallet-core/internal/stellar"
)

// ContractRPC implements stellar.ContractRPC for testing.
type ContractRPC struct {
	AccountSequenceFunc     func(ctx context.Context, accountID string) (int64, error)
	SimulateTransactionFunc func(ctx context.Context, envelopeXDR string) (*stellar.SimulateResult, error)
	GetLedgerEntriesFunc    func(ctx context.Context, keys []string) ([]stellar.LedgerEntry, error)
	SendTransactionFunc     func(ctx context.Context, envelopeXDR string) (*stellar.SendResult, error)
}

// Compile-time interface check.
var _ stellar.ContractRPC = (*ContractRPC)(nil)

// AccountSequence calls AccountSequenceFunc, defaulting to sequence 1.
func (c *ContractRPC) AccountSequence(ctx context.Context, accountID string) (int64, error) {
	if c.AccountSequenceFunc == nil {
		return 1, nil
	}
	return c.AccountSequenceFunc(ctx, accountID)
}

// SimulateTransaction calls SimulateTransactionFunc.
func (c *ContractRPC) SimulateTransaction(ctx context.Context, envelopeXDR string) (*stellar.SimulateResult, error) {
	if c.SimulateTransactionFunc == nil {
		return nil, ErrNotConfigured
	}
	return c.SimulateTransactionFunc(ctx, envelopeXDR)
}

// GetLedgerEntries calls GetLedgerEntriesFunc.
func (c *ContractRPC) GetLedgerEntries(ctx context.Context, keys []string) ([]stellar.LedgerEntry, error) {
	if c.GetLedgerEntriesFunc == nil {
		return nil, ErrNotConfigured
	}
	return c.GetLedgerEntriesFunc(ctx, keys)
}

// SendTransaction calls SendTransactionFunc.
func (c *ContractRPC) SendTransaction(ctx context.Context, envelopeXDR string) (*stellar.SendResult, error) {
	if c.SendTransactionFunc == nil {
		return nil, ErrNotConfigured
	}
	return c.SendTransactionFunc(ctx, envelopeXDR)
}
