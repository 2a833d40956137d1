package stub

import (
	"context"

	"stellar-wallet-core/internal/stellar"
)

// Indexer implements stellar.Indexer for testing.
type Indexer struct {
	AuthenticateFunc              func(ctx context.Context, email, password string) (string, error)
	AccountHistoryFunc            func(ctx context.Context, token, accountID string) (*stellar.IndexerHistory, error)
	AccountBalancesFunc           func(ctx context.Context, token, accountID string, contractIDs []string) (*stellar.IndexerBalances, error)
	SubscribeAccountFunc          func(ctx context.Context, token, accountID string) error
	SubscribeTokenEventsFunc      func(ctx context.Context, token, accountID, contractID string) error
	SubscribeTokenBalanceFunc     func(ctx context.Context, token, accountID, contractID string) error
	AccountSubscriptionsFunc      func(ctx context.Context, token string) ([]string, error)
	TokenBalanceSubscriptionsFunc func(ctx context.Context, token string) ([]stellar.EntrySubscription, error)
}

// Compile-time interface check.
var _ stellar.Indexer = (*Indexer)(nil)

// Authenticate calls AuthenticateFunc, defaulting to a fixed token.
func (i *Indexer) Authenticate(ctx context.Context, email, password string) (string, error) {
	if i.AuthenticateFunc == nil {
		return "token", nil
	}
	return i.AuthenticateFunc(ctx, email, password)
}

// AccountHistory calls AccountHistoryFunc.
func (i *Indexer) AccountHistory(ctx context.Context, token, accountID string) (*stellar.IndexerHistory, error) {
	if i.AccountHistoryFunc == nil {
		return nil, ErrNotConfigured
	}
	return i.AccountHistoryFunc(ctx, token, accountID)
}

// AccountBalances calls AccountBalancesFunc.
func (i *Indexer) AccountBalances(ctx context.Context, token, accountID string, contractIDs []string) (*stellar.IndexerBalances, error) {
	if i.AccountBalancesFunc == nil {
		return nil, ErrNotConfigured
	}
	return i.AccountBalancesFunc(ctx, token, accountID, contractIDs)
}

// SubscribeAccount calls SubscribeAccountFunc.
func (i *Indexer) SubscribeAccount(ctx context.Context, token, accountID string) error {
	if i.SubscribeAccountFunc == nil {
		return nil
	}
	return i.SubscribeAccountFunc(ctx, token, accountID)
}

// SubscribeTokenEvents calls SubscribeTokenEventsFunc.
func (i *Indexer) SubscribeTokenEvents(ctx context.Context, token, accountID, contractID string) error {
	if i.SubscribeTokenEventsFunc == nil {
		return nil
	}
	return i.SubscribeTokenEventsFunc(ctx, token, accountID, contractID)
}

// SubscribeTokenBalance calls SubscribeTokenBalanceFunc.
func (i *Indexer) SubscribeTokenBalance(ctx context.Context, token, accountID, contractID string) error {
	if i.SubscribeTokenBalanceFunc == nil {
		return nil
	}
	return i.SubscribeTokenBalanceFunc(ctx, token, accountID, contractID)
}

// AccountSubscriptions calls AccountSubscriptionsFunc.
func (i *Indexer) AccountSubscriptions(ctx context.Context, token string) ([]string, error) {
	if i.AccountSubscriptionsFunc == nil {
		return nil, nil
	}
	return i.AccountSubscriptionsFunc(ctx, token)
}

// TokenBalanceSubscriptions calls TokenBalanceSubscriptionsFunc.
func (i *Indexer) TokenBalanceSubscriptions(ctx context.Context, token string) ([]stellar.EntrySubscription, error) {
	if i.TokenBalanceSubscriptionsFunc == nil {
		return nil, nil
	}
	return i.TokenBalanceSubscriptionsFunc(ctx, token)
}
