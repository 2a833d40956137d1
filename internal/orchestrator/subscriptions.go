package orchestrator

import (
	"context"
	"fmt"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
)

// SubscriptionResult is the answer to a subscription registration.
type SubscriptionResult struct {
	Data  bool
	Error error
}

// AccountSubscription registers a full account watch so indexer reads for the
// account stay fresh. Registering twice is not an error.
func (o *Orchestrator) AccountSubscription(ctx context.Context, pubKey string, network domain.Network) SubscriptionResult {
	return o.subscribe(ctx, pubKey, "", network, func(ctx context.Context, idx stellar.Indexer, token string) error {
		return idx.SubscribeAccount(ctx, token, pubKey)
	})
}

// TokenSubscription registers a watch on the transfer events of a token for an account.
func (o *Orchestrator) TokenSubscription(ctx context.Context, pubKey, contractID string, network domain.Network) SubscriptionResult {
	return o.subscribe(ctx, pubKey, contractID, network, func(ctx context.Context, idx stellar.Indexer, token string) error {
		return idx.SubscribeTokenEvents(ctx, token, pubKey, contractID)
	})
}

// TokenBalanceSubscription registers a watch on the balance entry of a token for an account.
func (o *Orchestrator) TokenBalanceSubscription(ctx context.Context, pubKey, contractID string, network domain.Network) SubscriptionResult {
	return o.subscribe(ctx, pubKey, contractID, network, func(ctx context.Context, idx stellar.Indexer, token string) error {
		return idx.SubscribeTokenBalance(ctx, token, pubKey, contractID)
	})
}

func (o *Orchestrator) subscribe(ctx context.Context, pubKey, contractID string, network domain.Network, register func(ctx context.Context, idx stellar.Indexer, token string) error) SubscriptionResult {
	if err := stellar.ValidatePublicKey(pubKey); err != nil {
		return SubscriptionResult{Error: err}
	}
	if contractID != "" && !stellar.IsContractID(contractID) {
		return SubscriptionResult{Error: fmt.Errorf("%w: contract %q", domain.ErrInvalidPublicKey, contractID)}
	}
	idx, err := o.indexer(network)
	if err != nil {
		return SubscriptionResult{Error: err}
	}

	err = o.sessions.Do(ctx, network, func(ctx context.Context, token string) error {
		return register(ctx, idx, token)
	})
	if err != nil {
		return SubscriptionResult{Error: err}
	}
	return SubscriptionResult{Data: true}
}

// HasSubForPublicKey reports whether an account watch is registered for pubKey.
func (o *Orchestrator) HasSubForPublicKey(ctx context.Context, pubKey string, network domain.Network) (bool, error) {
	idx, err := o.indexer(network)
	if err != nil {
		return false, err
	}
	accounts, err := session.WithAuth(ctx, o.sessions, network, func(ctx context.Context, token string) ([]string, error) {
		return idx.AccountSubscriptions(ctx, token)
	})
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if a == pubKey {
			return true, nil
		}
	}
	return false, nil
}

// HasSubForTokenBalance reports whether a balance entry watch is registered for
// the token balance of pubKey.
func (o *Orchestrator) HasSubForTokenBalance(ctx context.Context, pubKey, contractID string, network domain.Network) (bool, error) {
	idx, err := o.indexer(network)
	if err != nil {
		return false, err
	}
	key, err := stellar.BalanceKeyXDR(pubKey)
	if err != nil {
		return false, err
	}
	entries, err := session.WithAuth(ctx, o.sessions, network, func(ctx context.Context, token string) ([]stellar.EntrySubscription, error) {
		return idx.TokenBalanceSubscriptions(ctx, token)
	})
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ContractID == contractID && e.KeyXDR == key {
			return true, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) indexer(network domain.Network) (stellar.Indexer, error) {
	if !o.IndexerSupported(network) {
		return nil, fmt.Errorf("%w: no indexer for %s", domain.ErrUnsupportedNetwork, network)
	}
	return o.networks[network].Indexer, nil
}
