package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
)

// baseReserve is the per-entry reserve of the network, in lumens.
var baseReserve = decimal.New(5, -1)

// errNotIndexed is returned when the indexer has no account object yet.
var errNotIndexed = errors.New("account not indexed")

// BalanceErrors carries the independent failures of the two balance sources.
// Partial success is the common case, so both fields may be set, one, or none.
type BalanceErrors struct {
	LedgerAPI   error
	ContractRPC error
}

// Err combines both failures, or returns nil when both sources succeeded.
func (e BalanceErrors) Err() error {
	var merr *multierror.Error
	if e.LedgerAPI != nil {
		merr = multierror.Append(merr, fmt.Errorf("ledger api: %w", e.LedgerAPI))
	}
	if e.ContractRPC != nil {
		merr = multierror.Append(merr, fmt.Errorf("contract rpc: %w", e.ContractRPC))
	}
	return merr.ErrorOrNil()
}

// BalancesResult is the answer to GetAccountBalances.
type BalancesResult struct {
	Balances      domain.BalanceSet
	IsFunded      bool
	SubentryCount int
	Error         BalanceErrors
}

// GetAccountBalances returns the classic and contract token balances of an account.
//
// When the indexer is enabled and trusted its combined answer is returned as is.
// Otherwise classic balances (ledger API) and token balances (contract RPC) are
// fetched concurrently, each failure isolated in its own error field, and merged
// with classic entries winning on key collisions.
func (o *Orchestrator) GetAccountBalances(ctx context.Context, pubKey string, contractIDs []string, network domain.Network, useIndexer bool) *BalancesResult {
	if err := stellar.ValidatePublicKey(pubKey); err != nil {
		return &BalancesResult{Balances: domain.BalanceSet{}, Error: BalanceErrors{LedgerAPI: err}}
	}
	c, err := o.clients(network)
	if err != nil {
		return &BalancesResult{Balances: domain.BalanceSet{}, Error: BalanceErrors{LedgerAPI: err, ContractRPC: err}}
	}

	if o.IndexerEnabled(ctx, network, useIndexer) {
		res, err := o.indexerBalances(ctx, c, pubKey, contractIDs, network)
		switch {
		case err == nil:
			return res
		case errors.Is(err, errNotIndexed):
			o.log.Debug().Str("account", pubKey).Str("network", network.String()).Msg("account not indexed, using rpc")
		default:
			o.indexerFailed(network, "balances", err)
		}
	}

	var (
		classic domain.BalanceSet
		account *stellar.Account
		tokens  domain.BalanceSet
		errs    BalanceErrors
		g       errgroup.Group
	)
	g.Go(func() error {
		classic, account, errs.LedgerAPI = o.classicBalances(ctx, c, pubKey)
		return nil
	})
	g.Go(func() error {
		tokens, errs.ContractRPC = o.tokenBalances(ctx, pubKey, contractIDs, network)
		return nil
	})
	_ = g.Wait()

	res := &BalancesResult{
		Balances: domain.MergeBalances(classic, tokens),
		Error:    errs,
	}
	if account != nil {
		res.IsFunded = true
		res.SubentryCount = account.SubentryCount
	}
	if errors.Is(errs.LedgerAPI, domain.ErrAccountNotFound) {
		o.log.Debug().Str("account", pubKey).Str("network", network.String()).Msg("account not funded")
	}
	return res
}

func (o *Orchestrator) classicBalances(ctx context.Context, c NetworkClients, pubKey string) (domain.BalanceSet, *stellar.Account, error) {
	acc, err := c.Ledger.AccountDetail(ctx, pubKey)
	if err != nil {
		return nil, nil, err
	}

	set := make(domain.BalanceSet, len(acc.Balances))
	for _, line := range acc.Balances {
		total, err := parseAmount(line.Balance)
		if err != nil {
			return nil, nil, fmt.Errorf("balance of %s: %w", line.AssetCode, err)
		}
		buying, _ := parseAmount(line.BuyingLiabilities)
		selling, _ := parseAmount(line.SellingLiabilities)

		switch line.AssetType {
		case domain.AssetTypeNative:
			set[domain.NativeKey] = nativeBalance(total, buying, selling, acc.SubentryCount, acc.NumSponsoring, acc.NumSponsored)

		case domain.AssetTypeLiquidityPoolShares:
			b := creditBalance(domain.Asset{Type: line.AssetType, PoolID: line.LiquidityPoolID}, total, buying, selling, line.Limit)
			pool, err := c.Ledger.LiquidityPool(ctx, line.LiquidityPoolID)
			if err != nil {
				o.log.Warn().Err(err).Str("pool", line.LiquidityPoolID).Msg("could not load liquidity pool")
			} else {
				b.LiquidityPool = pool
			}
			set[PoolShareKey(line.LiquidityPoolID)] = b

		default:
			asset := domain.Asset{Type: line.AssetType, Code: line.AssetCode, Issuer: line.AssetIssuer}
			set[ClassicAssetKey(line.AssetType, line.AssetCode, line.AssetIssuer)] = creditBalance(asset, total, buying, selling, line.Limit)
		}
	}
	return set, acc, nil
}

// tokenBalances simulates the balance of every contract. Failing contracts are
// left out and reported together; the others are still returned.
func (o *Orchestrator) tokenBalances(ctx context.Context, pubKey string, contractIDs []string, network domain.Network) (domain.BalanceSet, error) {
	set := make(domain.BalanceSet, len(contractIDs))
	if len(contractIDs) == 0 {
		return set, nil
	}

	var (
		mu   sync.Mutex
		merr *multierror.Error
		g    errgroup.Group
	)
	g.SetLimit(defaultTokenConcurrency)

	passphrase := o.networks[network].Passphrase
	if passphrase == "" {
		passphrase = network.Passphrase()
	}

	for _, id := range contractIDs {
		g.Go(func() error {
			details, err := o.TokenDetails(ctx, pubKey, id, network, true)
			if err == nil && details.Balance == nil {
				err = errors.New("no balance returned")
			}
			var raw decimal.Decimal
			if err == nil {
				raw, err = decimal.NewFromString(*details.Balance)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("token %s: %w", id, err))
				return nil
			}
			set[ContractTokenKey(details.TokenMetadata, id, passphrase)] = tokenBalance(id, details.TokenMetadata, raw.Shift(-int32(details.Decimals)))
			return nil
		})
	}
	_ = g.Wait()

	return set, merr.ErrorOrNil()
}

func (o *Orchestrator) indexerBalances(ctx context.Context, c NetworkClients, pubKey string, contractIDs []string, network domain.Network) (*BalancesResult, error) {
	idx := c.Indexer
	b, err := session.WithAuth(ctx, o.sessions, network, func(ctx context.Context, token string) (*stellar.IndexerBalances, error) {
		return idx.AccountBalances(ctx, token, pubKey, contractIDs)
	})
	if err != nil {
		return nil, err
	}
	if b.Account == nil {
		return nil, errNotIndexed
	}

	acc := b.Account
	classic := make(domain.BalanceSet, len(b.Trustlines)+1)
	classic[domain.NativeKey] = nativeBalance(
		stroops(acc.NativeBalance), stroops(acc.BuyingLiabilities), stroops(acc.SellingLiabilities),
		acc.NumSubEntries, acc.NumSponsoring, acc.NumSponsored,
	)
	for _, tl := range b.Trustlines {
		code := stellar.DecodeAssetCode(tl.Asset.Code)
		asset := domain.Asset{Type: stellar.AssetType(code), Code: code, Issuer: tl.Asset.Issuer}
		limit := ""
		if tl.Limit != "" {
			limit = stroops(tl.Limit).String()
		}
		classic[stellar.ClassicKey(code, tl.Asset.Issuer)] = creditBalance(asset, stroops(tl.Balance), stroops(tl.BuyingLiabilities), stroops(tl.SellingLiabilities), limit)
	}

	var merr *multierror.Error
	tokens := make(domain.BalanceSet, len(b.TokenBalances))
	for id, valueXDR := range b.TokenBalances {
		meta, err := o.tokenMetadata(ctx, c, pubKey, id, network)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("token %s: %w", id, err))
			continue
		}
		v, err := stellar.DecodeScVal(valueXDR)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("token %s: %w", id, err))
			continue
		}
		amount, err := stellar.ScValAmount(v)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("token %s: %w", id, err))
			continue
		}
		total := decimal.NewFromBigInt(amount, -int32(meta.Decimals))
		tokens[ContractTokenKey(*meta, id, c.Passphrase)] = tokenBalance(id, *meta, total)
	}

	return &BalancesResult{
		Balances:      domain.MergeBalances(classic, tokens),
		IsFunded:      true,
		SubentryCount: acc.NumSubEntries,
		Error:         BalanceErrors{ContractRPC: merr.ErrorOrNil()},
	}, nil
}

// nativeBalance computes the spendable native balance:
// available = total - (2 + subentries + sponsoring - sponsored) * baseReserve - selling.
func nativeBalance(total, buying, selling decimal.Decimal, subentries, sponsoring, sponsored int) domain.Balance {
	entries := decimal.NewFromInt(int64(2 + subentries + sponsoring - sponsored))
	available := total.Sub(entries.Mul(baseReserve)).Sub(selling)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return domain.Balance{
		Token:              domain.Asset{Type: domain.AssetTypeNative, Code: domain.NativeKey},
		Total:              total,
		Available:          available,
		BuyingLiabilities:  buying,
		SellingLiabilities: selling,
	}
}

func creditBalance(asset domain.Asset, total, buying, selling decimal.Decimal, limit string) domain.Balance {
	b := domain.Balance{
		Token:              asset,
		Total:              total,
		Available:          total.Sub(selling),
		BuyingLiabilities:  buying,
		SellingLiabilities: selling,
	}
	if l, err := decimal.NewFromString(limit); err == nil {
		b.Limit = &l
	}
	return b
}

func tokenBalance(contractID string, meta domain.TokenMetadata, total decimal.Decimal) domain.Balance {
	decimals := meta.Decimals
	return domain.Balance{
		Token:     domain.Asset{Type: domain.AssetTypeContract, Code: meta.Symbol, ContractID: contractID},
		Total:     total,
		Available: total,
		Decimals:  &decimals,
		Name:      meta.Name,
		Symbol:    meta.Symbol,
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// stroops converts an integer stroop amount; malformed input reads as zero.
func stroops(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(-amountDecimals)
}
