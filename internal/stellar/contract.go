package stellar

import "context"

// ContractRPC defines the Soroban RPC operations used by the wallet core.
type ContractRPC interface {
	// AccountSequence returns the current sequence number of an account.
	// Returns domain.ErrAccountNotFound if the account does not exist.
	AccountSequence(ctx context.Context, accountID string) (int64, error)

	// SimulateTransaction simulates a single-operation invocation envelope.
	SimulateTransaction(ctx context.Context, envelopeXDR string) (*SimulateResult, error)

	// GetLedgerEntries loads raw ledger entries by base64 LedgerKey.
	GetLedgerEntries(ctx context.Context, keys []string) ([]LedgerEntry, error)

	// SendTransaction submits a signed envelope.
	SendTransaction(ctx context.Context, envelopeXDR string) (*SendResult, error)
}

// SimulateResult is the outcome of a successful simulation.
type SimulateResult struct {
	ResultXDR       string // base64 ScVal returned by the invoked function
	LatestLedger    int64
	MinResourceFee  string
	TransactionData string
}

// LedgerEntry is a raw ledger entry.
type LedgerEntry struct {
	Key                string `json:"key"`
	XDR                string `json:"xdr"`
	LastModifiedLedger int64  `json:"lastModifiedLedgerSeq"`
}

// SendResult is the response of sendTransaction.
type SendResult struct {
	Hash           string `json:"hash"`
	Status         string `json:"status"`
	LatestLedger   int64  `json:"latestLedger"`
	ErrorResultXDR string `json:"errorResultXdr"`
}
