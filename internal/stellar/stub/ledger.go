// Package stub provides programmable stand-ins for the stellar boundary clients.
// Unset funcs return zero values, which lets tests configure only what they exercise.
package stub

import (
	"context"
	"errors"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/stellar"
)

// ErrNotConfigured is returned by stub methods whose func is not set.
var ErrNotConfigured = errors.New("stub: not configured")

// LedgerAPI implements stellar.LedgerAPI for testing.
type LedgerAPI struct {
	AccountDetailFunc      func(ctx context.Context, accountID string) (*stellar.Account, error)
	AccountOperationsFunc  func(ctx context.Context, accountID string, opts *stellar.OperationsOpts) ([]stellar.OperationRecord, error)
	LedgerOperationsFunc   func(ctx context.Context, sequence int64, limit int) ([]stellar.OperationRecord, error)
	StreamLedgersFunc      func(ctx context.Context, cursor string, handler func(domain.LedgerClose) error) error
	LiquidityPoolFunc      func(ctx context.Context, poolID string) (*domain.LiquidityPool, error)
	StrictReceivePathsFunc func(ctx context.Context, req stellar.PathsRequest) ([]stellar.Path, error)
	SubmitTransactionFunc  func(ctx context.Context, envelopeXDR string) (*stellar.SubmitResult, error)
}

// Compile-time interface check.
var _ stellar.LedgerAPI = (*LedgerAPI)(nil)

// AccountDetail calls AccountDetailFunc.
func (l *LedgerAPI) AccountDetail(ctx context.Context, accountID string) (*stellar.Account, error) {
	if l.AccountDetailFunc == nil {
		return nil, ErrNotConfigured
	}
	return l.AccountDetailFunc(ctx, accountID)
}

// AccountOperations calls AccountOperationsFunc.
func (l *LedgerAPI) AccountOperations(ctx context.Context, accountID string, opts *stellar.OperationsOpts) ([]stellar.OperationRecord, error) {
	if l.AccountOperationsFunc == nil {
		return nil, ErrNotConfigured
	}
	return l.AccountOperationsFunc(ctx, accountID, opts)
}

// LedgerOperations calls LedgerOperationsFunc.
func (l *LedgerAPI) LedgerOperations(ctx context.Context, sequence int64, limit int) ([]stellar.OperationRecord, error) {
	if l.LedgerOperationsFunc == nil {
		return nil, ErrNotConfigured
	}
	return l.LedgerOperationsFunc(ctx, sequence, limit)
}

// StreamLedgers calls StreamLedgersFunc. Without one it blocks until ctx is done.
func (l *LedgerAPI) StreamLedgers(ctx context.Context, cursor string, handler func(domain.LedgerClose) error) error {
	if l.StreamLedgersFunc == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return l.StreamLedgersFunc(ctx, cursor, handler)
}

// LiquidityPool calls LiquidityPoolFunc.
func (l *LedgerAPI) LiquidityPool(ctx context.Context, poolID string) (*domain.LiquidityPool, error) {
	if l.LiquidityPoolFunc == nil {
		return nil, ErrNotConfigured
	}
	return l.LiquidityPoolFunc(ctx, poolID)
}

// StrictReceivePaths calls StrictReceivePathsFunc.
func (l *LedgerAPI) StrictReceivePaths(ctx context.Context, req stellar.PathsRequest) ([]stellar.Path, error) {
	if l.StrictReceivePathsFunc == nil {
		return nil, ErrNotConfigured
	}
	return l.StrictReceivePathsFunc(ctx, req)
}

// SubmitTransaction calls SubmitTransactionFunc.
func (l *LedgerAPI) SubmitTransaction(ctx context.Context, envelopeXDR string) (*stellar.SubmitResult, error) {
	if l.SubmitTransactionFunc == nil {
		return nil, ErrNotConfigured
	}
	return l.SubmitTransactionFunc(ctx, envelopeXDR)
}
