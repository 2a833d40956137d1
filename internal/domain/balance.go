package domain

import "github.com/shopspring/decimal"

// Asset types as reported by the ledger API, plus contract tokens.
const (
	AssetTypeNative              = "native"
	AssetTypeCreditAlphanum4     = "credit_alphanum4"
	AssetTypeCreditAlphanum12    = "credit_alphanum12"
	AssetTypeLiquidityPoolShares = "liquidity_pool_shares"
	AssetTypeContract            = "contract"
)

// NativeKey is the balance key of the native asset.
const NativeKey = "native"

// Asset identifies what a balance is denominated in.
type Asset struct {
	Type       string // one of the AssetType* constants
	Code       string // classic asset code or contract symbol
	Issuer     string // classic issuer account
	ContractID string // contract tokens only
	PoolID     string // liquidity pool shares only
}

// LiquidityPoolReserve is one side of a constant-product pool.
type LiquidityPoolReserve struct {
	Asset  string // "native" or CODE:ISSUER
	Amount decimal.Decimal
}

// LiquidityPool describes the pool behind a pool share balance.
type LiquidityPool struct {
	ID          string
	FeeBP       int
	TotalShares decimal.Decimal
	Reserves    []LiquidityPoolReserve
}

// Balance is one entry of an account balance set.
type Balance struct {
	Token              Asset
	Total              decimal.Decimal
	Available          decimal.Decimal
	BuyingLiabilities  decimal.Decimal
	SellingLiabilities decimal.Decimal
	Limit              *decimal.Decimal // trustline limit (nullable)
	Decimals           *int             // contract tokens only
	Name               string           // contract tokens only
	Symbol             string           // contract tokens only
	LiquidityPool      *LiquidityPool   // pool shares only
}

// BalanceSet maps a balance key to its balance. At most one entry per key.
type BalanceSet map[string]Balance

// MergeBalances returns classic ∪ (tokens \ classic). Classic entries win on key collision
// because classic ledger state is authoritative for wrapped classic assets.
func MergeBalances(classic, tokens BalanceSet) BalanceSet {
	merged := make(BalanceSet, len(classic)+len(tokens))
	for k, b := range tokens {
		merged[k] = b
	}
	for k, b := range classic {
		merged[k] = b
	}
	return merged
}
