package stellar

import "context"

// Indexer defines the Mercury operations used by the wallet core.
// Every call except Authenticate takes the bearer token of the caller's session; an
// expired token surfaces as domain.ErrAuthExpired.
type Indexer interface {
	// Authenticate exchanges credentials for a bearer token.
	Authenticate(ctx context.Context, email, password string) (string, error)

	// AccountHistory returns the indexed operations involving an account.
	AccountHistory(ctx context.Context, token, accountID string) (*IndexerHistory, error)

	// AccountBalances returns classic and contract token balances in one query.
	AccountBalances(ctx context.Context, token, accountID string, contractIDs []string) (*IndexerBalances, error)

	// SubscribeAccount registers a full account watch.
	SubscribeAccount(ctx context.Context, token, accountID string) error

	// SubscribeTokenEvents registers a watch on transfer events of a token for an account.
	SubscribeTokenEvents(ctx context.Context, token, accountID, contractID string) error

	// SubscribeTokenBalance registers a watch on the balance entry of a token for an account.
	SubscribeTokenBalance(ctx context.Context, token, accountID, contractID string) error

	// AccountSubscriptions lists the accounts with a registered account watch.
	AccountSubscriptions(ctx context.Context, token string) ([]string, error)

	// TokenBalanceSubscriptions lists the registered balance entry watches.
	TokenBalanceSubscriptions(ctx context.Context, token string) ([]EntrySubscription, error)
}

// EntrySubscription is a registered contract ledger entry watch.
type EntrySubscription struct {
	ContractID string `json:"contractId"`
	KeyXDR     string `json:"keyXdr"`
}

// IndexedAsset is a classic asset as stored by the indexer (code base64 encoded).
type IndexedAsset struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer"`
}

// IndexedTx carries the transaction context of an indexed operation.
type IndexedTx struct {
	Ledger struct {
		CloseTime int64 `json:"closeTime"` // unix seconds
	} `json:"ledgerByLedger"`
	Successful bool `json:"successful"`
}

// IndexedOperation holds the columns shared by all indexed operation kinds.
type IndexedOperation struct {
	OpID   string    `json:"opId"`
	TxHash string    `json:"txHash"`
	Source string    `json:"source"`
	Tx     IndexedTx `json:"txInfoByTx"`
}

// IndexedPayment is an indexed payment.
type IndexedPayment struct {
	IndexedOperation
	From        string        `json:"from"`
	To          string        `json:"to"`
	Amount      string        `json:"amount"` // stroops
	AssetNative bool          `json:"assetNative"`
	Asset       *IndexedAsset `json:"assetByAsset"`
}

// IndexedCreateAccount is an indexed account creation.
type IndexedCreateAccount struct {
	IndexedOperation
	Destination     string `json:"destination"`
	StartingBalance string `json:"startingBalance"` // stroops
}

// IndexedChangeTrust is an indexed trustline change.
type IndexedChangeTrust struct {
	IndexedOperation
	Limit string        `json:"limit"` // stroops
	Asset *IndexedAsset `json:"assetByLineAsset"`
}

// IndexedPathPayment is an indexed path payment of either direction.
type IndexedPathPayment struct {
	IndexedOperation
	From              string        `json:"from"`
	To                string        `json:"to"`
	Amount            string        `json:"amount"`       // destination amount, stroops
	SourceAmount      string        `json:"sourceAmount"` // stroops
	AssetNative       bool          `json:"assetNative"`
	Asset             *IndexedAsset `json:"assetByAsset"`
	SourceAssetNative bool          `json:"sourceAssetNative"`
	SourceAsset       *IndexedAsset `json:"assetBySourceAsset"`
}

// IndexedInvokeHostFn is an indexed contract invocation.
type IndexedInvokeHostFn struct {
	IndexedOperation
	ContractID   string `json:"contractId"`
	FunctionName string `json:"functionName"`
}

// IndexerHistory groups indexed operations by kind.
type IndexerHistory struct {
	CreateAccount          []IndexedCreateAccount
	Payments               []IndexedPayment
	ChangeTrust            []IndexedChangeTrust
	PathPaymentsStrictSend []IndexedPathPayment
	PathPaymentsStrictRecv []IndexedPathPayment
	InvokeHostFunctions    []IndexedInvokeHostFn
}

// IndexedAccount is the indexed account object.
type IndexedAccount struct {
	NativeBalance      string `json:"nativeBalance"` // stroops
	NumSubEntries      int    `json:"numSubEntries"`
	NumSponsored       int    `json:"numSponsored"`
	NumSponsoring      int    `json:"numSponsoring"`
	BuyingLiabilities  string `json:"buyingLiabilities"`
	SellingLiabilities string `json:"sellingLiabilities"`
}

// IndexedTrustline is an indexed classic balance.
type IndexedTrustline struct {
	Asset              IndexedAsset `json:"assetByAsset"`
	Balance            string       `json:"balance"` // stroops
	Limit              string       `json:"limit"`   // stroops
	BuyingLiabilities  string       `json:"buyingLiabilities"`
	SellingLiabilities string       `json:"sellingLiabilities"`
}

// IndexerBalances is the combined balance query result.
type IndexerBalances struct {
	Account       *IndexedAccount   // nil when the account is not indexed or unfunded
	Trustlines    []IndexedTrustline
	TokenBalances map[string]string // contract id -> base64 ScVal balance entry value
}
