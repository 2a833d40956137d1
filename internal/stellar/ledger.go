package stellar

import (
	"context"

	"stellar-wallet-core/internal/domain"
)

// LedgerAPI defines the Horizon operations used by the wallet core.
type LedgerAPI interface {
	// AccountDetail loads an account. Returns domain.ErrAccountNotFound for unfunded accounts.
	AccountDetail(ctx context.Context, accountID string) (*Account, error)

	// AccountOperations returns raw operation records for an account.
	// Returns domain.ErrAccountNotFound for unfunded accounts.
	AccountOperations(ctx context.Context, accountID string, opts *OperationsOpts) ([]OperationRecord, error)

	// LedgerOperations returns raw operation records included in a ledger.
	LedgerOperations(ctx context.Context, sequence int64, limit int) ([]OperationRecord, error)

	// StreamLedgers streams ledger closes starting at cursor ("now" or a paging token).
	// It blocks until the stream fails, the handler returns an error or ctx is done.
	StreamLedgers(ctx context.Context, cursor string, handler func(domain.LedgerClose) error) error

	// LiquidityPool loads a liquidity pool by id.
	LiquidityPool(ctx context.Context, poolID string) (*domain.LiquidityPool, error)

	// StrictReceivePaths finds paths that deliver exactly DestinationAmount of the destination asset.
	StrictReceivePaths(ctx context.Context, req PathsRequest) ([]Path, error)

	// SubmitTransaction submits a signed envelope. Never retried by the client.
	SubmitTransaction(ctx context.Context, envelopeXDR string) (*SubmitResult, error)
}

// OperationRecord is an operation as returned by the ledger API, before normalization.
type OperationRecord map[string]any

// ID returns the operation id.
func (r OperationRecord) ID() string {
	s, _ := r["id"].(string)
	return s
}

// SourceAccount returns the operation source account.
func (r OperationRecord) SourceAccount() string {
	s, _ := r["source_account"].(string)
	return s
}

// OperationsOpts contains options for AccountOperations.
type OperationsOpts struct {
	Cursor        string
	Limit         int
	Order         string // "asc" or "desc"
	IncludeFailed bool
}

// Account is a ledger account with its classic balances.
type Account struct {
	ID            string
	Sequence      int64
	SubentryCount int
	NumSponsoring int
	NumSponsored  int
	Balances      []AccountBalance
}

// AccountBalance is a classic balance line as reported by the ledger API.
type AccountBalance struct {
	Balance            string `json:"balance"`
	Limit              string `json:"limit"`
	BuyingLiabilities  string `json:"buying_liabilities"`
	SellingLiabilities string `json:"selling_liabilities"`
	AssetType          string `json:"asset_type"`
	AssetCode          string `json:"asset_code"`
	AssetIssuer        string `json:"asset_issuer"`
	LiquidityPoolID    string `json:"liquidity_pool_id"`
}

// PathsRequest describes a strict-receive path query.
type PathsRequest struct {
	SourceAsset       string // "native" or CODE:ISSUER
	DestinationAsset  string // CODE:ISSUER
	DestinationAmount string
}

// Path is one candidate conversion path.
type Path struct {
	SourceAmount      string
	DestinationAmount string
	Hops              []string
}

// SubmitResult is a successful submission.
type SubmitResult struct {
	Hash        string `json:"hash"`
	Ledger      int64  `json:"ledger"`
	Successful  bool   `json:"successful"`
	EnvelopeXDR string `json:"envelope_xdr"`
	ResultXDR   string `json:"result_xdr"`
}
