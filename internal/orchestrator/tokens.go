package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/stellar/go/xdr"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/storage"
)

// TokenDetails returns the metadata of a contract token, from cache when possible.
// With fetchBalance the token balance of pubKey is attached; balances are never cached.
func (o *Orchestrator) TokenDetails(ctx context.Context, pubKey, contractID string, network domain.Network, fetchBalance bool) (*domain.TokenDetails, error) {
	if err := stellar.ValidatePublicKey(pubKey); err != nil {
		return nil, err
	}
	if !stellar.IsContractID(contractID) {
		return nil, fmt.Errorf("%w: contract %q", domain.ErrInvalidPublicKey, contractID)
	}
	c, err := o.clients(network)
	if err != nil {
		return nil, err
	}

	meta, err := o.tokenMetadata(ctx, c, pubKey, contractID, network)
	if err != nil {
		return nil, err
	}
	details := &domain.TokenDetails{TokenMetadata: *meta}

	if fetchBalance {
		amount, err := o.tokenBalance(ctx, c, pubKey, contractID)
		if err != nil {
			return nil, err
		}
		s := amount.String()
		details.Balance = &s
	}
	return details, nil
}

func (o *Orchestrator) tokenMetadata(ctx context.Context, c NetworkClients, pubKey, contractID string, network domain.Network) (*domain.TokenMetadata, error) {
	cached, err := o.cache.Get(ctx, network, contractID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		o.log.Warn().Err(err).Str("contract", contractID).Msg("token cache read failed")
	}

	seq, err := c.Contracts.AccountSequence(ctx, pubKey)
	if err != nil {
		return nil, fmt.Errorf("load source account %s: %w", pubKey, err)
	}

	// Each call is simulated as its own single operation transaction.
	name, err := o.simulate(ctx, c, pubKey, seq, contractID, "name")
	if err != nil {
		return nil, err
	}
	symbol, err := o.simulate(ctx, c, pubKey, seq, contractID, "symbol")
	if err != nil {
		return nil, err
	}
	decimals, err := o.simulate(ctx, c, pubKey, seq, contractID, "decimals")
	if err != nil {
		return nil, err
	}

	meta := &domain.TokenMetadata{}
	if meta.Name, err = stellar.ScValString(name); err != nil {
		return nil, fmt.Errorf("token %s name: %w", contractID, err)
	}
	if meta.Symbol, err = stellar.ScValString(symbol); err != nil {
		return nil, fmt.Errorf("token %s symbol: %w", contractID, err)
	}
	d, err := stellar.ScValUint(decimals)
	if err != nil {
		return nil, fmt.Errorf("token %s decimals: %w", contractID, err)
	}
	if d > math.MaxInt32 {
		return nil, fmt.Errorf("token %s decimals out of range: %d", contractID, d)
	}
	meta.Decimals = int(d)

	if err := o.cache.Put(ctx, network, contractID, meta); err != nil {
		o.log.Warn().Err(err).Str("contract", contractID).Msg("token cache write failed")
	}
	return meta, nil
}

func (o *Orchestrator) tokenBalance(ctx context.Context, c NetworkClients, pubKey, contractID string) (*big.Int, error) {
	seq, err := c.Contracts.AccountSequence(ctx, pubKey)
	if err != nil {
		return nil, fmt.Errorf("load source account %s: %w", pubKey, err)
	}
	owner, err := stellar.AddressArg(pubKey)
	if err != nil {
		return nil, err
	}
	v, err := o.simulate(ctx, c, pubKey, seq, contractID, "balance", owner)
	if err != nil {
		return nil, err
	}
	amount, err := stellar.ScValAmount(v)
	if err != nil {
		return nil, fmt.Errorf("token %s balance: %w", contractID, err)
	}
	return amount, nil
}

func (o *Orchestrator) simulate(ctx context.Context, c NetworkClients, source string, seq int64, contractID, fn string, args ...xdr.ScVal) (xdr.ScVal, error) {
	envelope, err := stellar.NewInvocationBuilder(source, seq).Build(contractID, fn, args...)
	if err != nil {
		return xdr.ScVal{}, err
	}
	res, err := c.Contracts.SimulateTransaction(ctx, envelope)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("simulate %s on %s: %w", fn, contractID, err)
	}
	return stellar.DecodeScVal(res.ResultXDR)
}
