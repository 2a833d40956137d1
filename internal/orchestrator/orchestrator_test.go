package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/stellar/stub"
	"stellar-wallet-core/internal/storage/memory"
)

const testNetwork = domain.NetworkTestnet

type fixture struct {
	ledger    *stub.LedgerAPI
	contracts *stub.ContractRPC
	indexer   *stub.Indexer
	flag      *memory.ConsistencyFlag
	cache     *memory.TokenCache
	metrics   *observability.Metrics
	orch      *Orchestrator
}

func newFixture(t *testing.T, useIndexer bool) *fixture {
	t.Helper()

	f := &fixture{
		ledger:    &stub.LedgerAPI{},
		contracts: &stub.ContractRPC{},
		indexer:   &stub.Indexer{},
		flag:      memory.NewConsistencyFlag(),
		cache:     memory.NewTokenCache(),
		metrics:   observability.NewMetrics("test", prometheus.NewRegistry()),
	}
	sessions := session.New(session.Options{
		Endpoints:  map[domain.Network]session.Endpoint{testNetwork: {Indexer: f.indexer}},
		MaxRetries: 0,
		Metrics:    f.metrics,
		Logger:     zerolog.Nop(),
	})
	f.orch = New(Options{
		Networks: map[domain.Network]NetworkClients{
			testNetwork: {Ledger: f.ledger, Contracts: f.contracts, Indexer: f.indexer},
		},
		Sessions:              sessions,
		Flag:                  f.flag,
		TokenCache:            f.cache,
		UseIndexer:            useIndexer,
		TrustIndexerByDefault: true,
		SubmitMaxRetries:      3,
		Metrics:               f.metrics,
		Logger:                zerolog.Nop(),
	})
	return f
}

func (f *fixture) indexerErrors(op string) float64 {
	return testutil.ToFloat64(f.metrics.IndexerErrors.WithLabelValues(testNetwork.String(), op))
}

func contractID(t *testing.T, fill byte) string {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = fill
	}
	id, err := strkey.Encode(strkey.VersionByteContract, raw)
	require.NoError(t, err)
	return id
}

type token struct {
	name     string
	symbol   string
	decimals uint32
	balance  int64
}

// simulator answers simulated token calls for the given contracts and counts them.
type simulator struct {
	mu     sync.Mutex
	tokens map[string]token
	calls  map[string]int // fn -> count
}

func newSimulator(tokens map[string]token) *simulator {
	return &simulator{tokens: tokens, calls: make(map[string]int)}
}

func (s *simulator) simulate(t *testing.T) func(ctx context.Context, envelope string) (*stellar.SimulateResult, error) {
	return func(_ context.Context, envelope string) (*stellar.SimulateResult, error) {
		var env xdr.TransactionEnvelope
		require.NoError(t, xdr.SafeUnmarshalBase64(envelope, &env))
		ops := env.Operations()
		require.Len(t, ops, 1, "one operation per simulated transaction")
		invoke := ops[0].Body.InvokeHostFunctionOp.HostFunction.InvokeContract
		id, err := invoke.ContractAddress.String()
		require.NoError(t, err)
		fn := string(invoke.FunctionName)

		s.mu.Lock()
		s.calls[fn]++
		s.mu.Unlock()

		tok, ok := s.tokens[id]
		if !ok {
			return nil, stellar.ErrSimulationFailed
		}
		var v xdr.ScVal
		switch fn {
		case "name":
			v = stellar.StringArg(tok.name)
		case "symbol":
			v = stellar.StringArg(tok.symbol)
		case "decimals":
			v = stellar.U32Arg(tok.decimals)
		case "balance":
			v = stellar.I128Arg(big.NewInt(tok.balance))
		}
		out, err := stellar.EncodeScVal(v)
		require.NoError(t, err)
		return &stellar.SimulateResult{ResultXDR: out}, nil
	}
}

func (s *simulator) count(fn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[fn]
}

func TestGetAccountBalances_ClassicWinsOverSAC(t *testing.T) {
	f := newFixture(t, false)
	account := keypair.MustRandom().Address()
	issuer := keypair.MustRandom().Address()

	sac, err := stellar.SACContractID("USD", issuer, testNetwork.Passphrase())
	require.NoError(t, err)
	other := contractID(t, 4)

	f.ledger.AccountDetailFunc = func(context.Context, string) (*stellar.Account, error) {
		return &stellar.Account{
			ID:            account,
			SubentryCount: 1,
			Balances: []stellar.AccountBalance{
				{Balance: "10.0000000", AssetType: domain.AssetTypeNative},
				{Balance: "25.0000000", Limit: "1000.0000000", AssetType: domain.AssetTypeCreditAlphanum4, AssetCode: "USD", AssetIssuer: issuer},
			},
		}, nil
	}
	sim := newSimulator(map[string]token{
		sac:   {name: "USD:" + issuer, symbol: "USD", decimals: 7, balance: 999_0000000},
		other: {name: "Other", symbol: "OTH", decimals: 2, balance: 1234},
	})
	f.contracts.SimulateTransactionFunc = sim.simulate(t)

	res := f.orch.GetAccountBalances(context.Background(), account, []string{sac, other}, testNetwork, false)
	require.NoError(t, res.Error.Err())
	assert.True(t, res.IsFunded)
	assert.Equal(t, 1, res.SubentryCount)

	require.Len(t, res.Balances, 3)
	usd := res.Balances["USD:"+issuer]
	assert.Equal(t, domain.AssetTypeCreditAlphanum4, usd.Token.Type, "classic entry wins")
	assert.Equal(t, "25", usd.Total.String())
	require.NotNil(t, usd.Limit)

	oth := res.Balances["OTH:"+other]
	assert.Equal(t, "12.34", oth.Total.String())
	require.NotNil(t, oth.Decimals)
	assert.Equal(t, 2, *oth.Decimals)
}

func TestGetAccountBalances_NativeAvailable(t *testing.T) {
	f := newFixture(t, false)
	account := keypair.MustRandom().Address()

	f.ledger.AccountDetailFunc = func(context.Context, string) (*stellar.Account, error) {
		return &stellar.Account{
			SubentryCount: 2,
			NumSponsoring: 1,
			Balances: []stellar.AccountBalance{
				{Balance: "100.0000000", SellingLiabilities: "1.0000000", AssetType: domain.AssetTypeNative},
			},
		}, nil
	}

	res := f.orch.GetAccountBalances(context.Background(), account, nil, testNetwork, false)
	require.NoError(t, res.Error.Err())

	// (2 + 2 subentries + 1 sponsoring) * 0.5 reserve + 1 selling liability
	native := res.Balances[domain.NativeKey]
	assert.Equal(t, "100", native.Total.String())
	assert.Equal(t, "96.5", native.Available.String())
}

func TestGetAccountBalances_PartialFailure(t *testing.T) {
	f := newFixture(t, false)
	account := keypair.MustRandom().Address()

	f.ledger.AccountDetailFunc = func(context.Context, string) (*stellar.Account, error) {
		return &stellar.Account{Balances: []stellar.AccountBalance{{Balance: "5.0000000", AssetType: domain.AssetTypeNative}}}, nil
	}
	f.contracts.SimulateTransactionFunc = func(context.Context, string) (*stellar.SimulateResult, error) {
		return nil, domain.NewUpstreamError(stellar.SourceContractRPC, 503, "down", nil)
	}

	res := f.orch.GetAccountBalances(context.Background(), account, []string{contractID(t, 1)}, testNetwork, false)
	assert.NoError(t, res.Error.LedgerAPI)
	require.Error(t, res.Error.ContractRPC)
	assert.ErrorIs(t, res.Error.ContractRPC, domain.ErrTransientUpstream)
	assert.Contains(t, res.Balances, domain.NativeKey)
	assert.True(t, res.IsFunded)
}

func TestGetAccountBalances_Unfunded(t *testing.T) {
	f := newFixture(t, false)

	f.ledger.AccountDetailFunc = func(context.Context, string) (*stellar.Account, error) {
		return nil, domain.ErrAccountNotFound
	}

	res := f.orch.GetAccountBalances(context.Background(), keypair.MustRandom().Address(), nil, testNetwork, false)
	assert.False(t, res.IsFunded)
	assert.ErrorIs(t, res.Error.LedgerAPI, domain.ErrAccountNotFound)
	assert.NoError(t, res.Error.ContractRPC)
	assert.Empty(t, res.Balances)
}

func TestGetAccountBalances_IndexerFallback(t *testing.T) {
	f := newFixture(t, true)
	account := keypair.MustRandom().Address()

	f.indexer.AccountBalancesFunc = func(context.Context, string, string, []string) (*stellar.IndexerBalances, error) {
		return nil, errors.New("indexer down")
	}
	f.ledger.AccountDetailFunc = func(context.Context, string) (*stellar.Account, error) {
		return &stellar.Account{Balances: []stellar.AccountBalance{{Balance: "5.0000000", AssetType: domain.AssetTypeNative}}}, nil
	}

	res := f.orch.GetAccountBalances(context.Background(), account, nil, testNetwork, true)
	require.NotNil(t, res)
	require.NoError(t, res.Error.Err())
	assert.Equal(t, "5", res.Balances[domain.NativeKey].Total.String())
	assert.Equal(t, 1.0, f.indexerErrors("balances"))
}

func TestGetAccountBalances_Indexer(t *testing.T) {
	f := newFixture(t, true)
	account := keypair.MustRandom().Address()
	issuer := keypair.MustRandom().Address()
	tok := contractID(t, 5)

	balance, err := stellar.EncodeScVal(stellar.I128Arg(big.NewInt(50_000)))
	require.NoError(t, err)

	f.indexer.AccountBalancesFunc = func(_ context.Context, _, id string, contracts []string) (*stellar.IndexerBalances, error) {
		assert.Equal(t, account, id)
		assert.Equal(t, []string{tok}, contracts)
		return &stellar.IndexerBalances{
			Account: &stellar.IndexedAccount{NativeBalance: "1000000000", NumSubEntries: 1},
			Trustlines: []stellar.IndexedTrustline{
				{Asset: stellar.IndexedAsset{Code: "VVNEQw==", Issuer: issuer}, Balance: "25000000", Limit: "100000000"},
			},
			TokenBalances: map[string]string{tok: balance},
		}, nil
	}
	f.ledger.AccountDetailFunc = func(context.Context, string) (*stellar.Account, error) {
		t.Fatal("ledger api must not be called when the indexer answers")
		return nil, nil
	}
	sim := newSimulator(map[string]token{tok: {name: "Token", symbol: "TKN", decimals: 3}})
	f.contracts.SimulateTransactionFunc = sim.simulate(t)

	res := f.orch.GetAccountBalances(context.Background(), account, []string{tok}, testNetwork, true)
	require.NoError(t, res.Error.Err())
	assert.True(t, res.IsFunded)
	assert.Equal(t, "100", res.Balances[domain.NativeKey].Total.String())
	assert.Equal(t, "2.5", res.Balances["USDC:"+issuer].Total.String())
	assert.Equal(t, "50", res.Balances["TKN:"+tok].Total.String())
	assert.Zero(t, sim.count("balance"), "balances come from the indexer")
	assert.Zero(t, f.indexerErrors("balances"))
}

func TestIndexerEnabled(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, true)
	assert.True(t, f.orch.IndexerEnabled(ctx, testNetwork, true), "unset flag uses the default")
	assert.False(t, f.orch.IndexerEnabled(ctx, testNetwork, false))
	assert.False(t, f.orch.IndexerEnabled(ctx, domain.NetworkPublic, true), "no indexer configured")

	require.NoError(t, f.flag.Set(ctx, false))
	assert.False(t, f.orch.IndexerEnabled(ctx, testNetwork, true))

	require.NoError(t, f.flag.Set(ctx, true))
	assert.True(t, f.orch.IndexerEnabled(ctx, testNetwork, true))

	disabled := newFixture(t, false)
	assert.False(t, disabled.orch.IndexerEnabled(ctx, testNetwork, true))
}

func TestGetAccountHistory_Ledger(t *testing.T) {
	f := newFixture(t, false)
	account := keypair.MustRandom().Address()

	f.ledger.AccountOperationsFunc = func(_ context.Context, id string, opts *stellar.OperationsOpts) ([]stellar.OperationRecord, error) {
		assert.Equal(t, "desc", opts.Order)
		assert.True(t, opts.IncludeFailed)
		assert.Equal(t, DefaultHistoryLimit, opts.Limit)
		return []stellar.OperationRecord{
			{"id": "100", "type": "payment", "created_at": "2024-01-01T00:00:00Z", "source_account": account, "amount": "1.0000000", "paging_token": "100"},
			{"id": "200", "type": "create_account", "created_at": "2024-01-02T00:00:00Z", "source_account": account},
		}, nil
	}

	res := f.orch.GetAccountHistory(context.Background(), account, testNetwork, false)
	require.NoError(t, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "200", res.Data[0].ID, "newest first")
	assert.Equal(t, "1.0000000", res.Data[1].Fields["amount"])
	assert.NotContains(t, res.Data[1].Fields, "paging_token")
}

func TestGetAccountHistory_NotFoundVsEmpty(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.ledger.AccountOperationsFunc = func(context.Context, string, *stellar.OperationsOpts) ([]stellar.OperationRecord, error) {
		return nil, domain.ErrAccountNotFound
	}
	res := f.orch.GetAccountHistory(ctx, keypair.MustRandom().Address(), testNetwork, false)
	assert.Nil(t, res.Data)
	assert.ErrorIs(t, res.Error, domain.ErrAccountNotFound)

	f.ledger.AccountOperationsFunc = func(context.Context, string, *stellar.OperationsOpts) ([]stellar.OperationRecord, error) {
		return nil, nil
	}
	res = f.orch.GetAccountHistory(ctx, keypair.MustRandom().Address(), testNetwork, false)
	require.NoError(t, res.Error)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestGetAccountHistory_IndexerFallback(t *testing.T) {
	f := newFixture(t, true)
	account := keypair.MustRandom().Address()

	f.indexer.AccountHistoryFunc = func(context.Context, string, string) (*stellar.IndexerHistory, error) {
		return nil, domain.NewUpstreamError(stellar.SourceIndexer, 500, "boom", nil)
	}
	f.ledger.AccountOperationsFunc = func(context.Context, string, *stellar.OperationsOpts) ([]stellar.OperationRecord, error) {
		return []stellar.OperationRecord{{"id": "1", "type": "payment"}}, nil
	}

	res := f.orch.GetAccountHistory(context.Background(), account, testNetwork, true)
	require.NoError(t, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 1.0, f.indexerErrors("history"))
}

func TestHistory_SourcesNormalizeAlike(t *testing.T) {
	from := keypair.MustRandom().Address()
	to := keypair.MustRandom().Address()
	issuer := keypair.MustRandom().Address()

	ledger := NormalizeLedgerRecord(stellar.OperationRecord{
		"id":                     "4294967297",
		"paging_token":           "4294967297",
		"type":                   "payment",
		"type_i":                 float64(1),
		"created_at":             "2024-01-01T00:00:00Z",
		"source_account":         from,
		"transaction_hash":       "abc",
		"transaction_successful": true,
		"from":                   from,
		"to":                     to,
		"amount":                 "12.5000000",
		"asset_type":             "credit_alphanum4",
		"asset_code":             "USDC",
		"asset_issuer":           issuer,
	})

	var payment stellar.IndexedPayment
	payment.OpID = "4294967297"
	payment.TxHash = "abc"
	payment.Source = from
	payment.Tx.Successful = true
	payment.Tx.Ledger.CloseTime = 1704067200
	payment.From = from
	payment.To = to
	payment.Amount = "125000000"
	payment.Asset = &stellar.IndexedAsset{Code: "VVNEQw==", Issuer: issuer}

	indexed := normalizeIndexerHistory(&stellar.IndexerHistory{Payments: []stellar.IndexedPayment{payment}})
	require.Len(t, indexed, 1)
	assert.Equal(t, ledger.Record(), indexed[0].Record())
}

func TestTokenDetails_CacheFirst(t *testing.T) {
	f := newFixture(t, false)
	account := keypair.MustRandom().Address()
	tok := contractID(t, 8)

	sim := newSimulator(map[string]token{tok: {name: "Token", symbol: "TKN", decimals: 7, balance: 42}})
	f.contracts.SimulateTransactionFunc = sim.simulate(t)
	ctx := context.Background()

	details, err := f.orch.TokenDetails(ctx, account, tok, testNetwork, false)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenMetadata{Name: "Token", Symbol: "TKN", Decimals: 7}, details.TokenMetadata)
	assert.Nil(t, details.Balance)
	assert.Equal(t, 1, sim.count("name"))
	assert.Equal(t, 1, sim.count("symbol"))
	assert.Equal(t, 1, sim.count("decimals"))

	details, err = f.orch.TokenDetails(ctx, account, tok, testNetwork, true)
	require.NoError(t, err)
	require.NotNil(t, details.Balance)
	assert.Equal(t, "42", *details.Balance)
	assert.Equal(t, 1, sim.count("name"), "metadata served from cache")
	assert.Equal(t, 1, sim.count("balance"))

	cached, err := f.cache.Get(ctx, testNetwork, tok)
	require.NoError(t, err)
	assert.Equal(t, "Token", cached.Name)
}

func TestTokenDetails_InvalidInput(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.orch.TokenDetails(ctx, "GBAD", contractID(t, 1), testNetwork, false)
	assert.ErrorIs(t, err, domain.ErrInvalidPublicKey)

	_, err = f.orch.TokenDetails(ctx, keypair.MustRandom().Address(), "CBAD", testNetwork, false)
	assert.ErrorIs(t, err, domain.ErrInvalidPublicKey)

	_, err = f.orch.TokenDetails(ctx, keypair.MustRandom().Address(), contractID(t, 1), domain.NetworkFuturenet, false)
	assert.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
}

func TestContractTokenKey(t *testing.T) {
	issuer := keypair.MustRandom().Address()
	passphrase := testNetwork.Passphrase()
	sac, err := stellar.SACContractID("USD", issuer, passphrase)
	require.NoError(t, err)
	nativeSAC, err := stellar.SACContractID("native", "", passphrase)
	require.NoError(t, err)
	impostor := contractID(t, 3)

	assert.Equal(t, "USD:"+issuer, ContractTokenKey(domain.TokenMetadata{Name: "USD:" + issuer, Symbol: "USD"}, sac, passphrase))
	assert.Equal(t, domain.NativeKey, ContractTokenKey(domain.TokenMetadata{Name: "native", Symbol: "native"}, nativeSAC, passphrase))
	assert.Equal(t, "USD:"+impostor, ContractTokenKey(domain.TokenMetadata{Name: "USD:" + issuer, Symbol: "USD"}, impostor, passphrase))
	assert.Equal(t, "USD:"+sac, ContractTokenKey(domain.TokenMetadata{Name: "USD:" + issuer, Symbol: "USD"}, sac, "Other Network"))
}

func TestClassicAssetKey(t *testing.T) {
	assert.Equal(t, domain.NativeKey, ClassicAssetKey(domain.AssetTypeNative, "", ""))
	assert.Equal(t, "USDC:GISSUER", ClassicAssetKey(domain.AssetTypeCreditAlphanum4, "VVNEQw==", "GISSUER"))
	assert.Equal(t, "AQUA:GISSUER", ClassicAssetKey(domain.AssetTypeCreditAlphanum4, "AQUA", "GISSUER"))
	assert.Equal(t, "pool:lp", PoolShareKey("pool"))
}

func TestSubmitTransaction_RetriesGatewayTimeout(t *testing.T) {
	f := newFixture(t, false)

	attempts := 0
	f.ledger.SubmitTransactionFunc = func(context.Context, string) (*stellar.SubmitResult, error) {
		attempts++
		if attempts <= 3 {
			return nil, domain.NewUpstreamError(stellar.SourceLedgerAPI, 504, "timeout", []byte(`{"status":504}`))
		}
		return &stellar.SubmitResult{Hash: "h", Successful: true}, nil
	}

	res, err := f.orch.SubmitTransaction(context.Background(), "AAAA", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, "h", res.Hash)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SubmitAttempts.WithLabelValues(testNetwork.String(), observability.OutcomeFailure)))
}

func TestSubmitTransaction_RetryCap(t *testing.T) {
	f := newFixture(t, false)

	attempts := 0
	f.ledger.SubmitTransactionFunc = func(context.Context, string) (*stellar.SubmitResult, error) {
		attempts++
		return nil, domain.NewUpstreamError(stellar.SourceLedgerAPI, 504, "timeout", []byte{byte(attempts)})
	}

	_, err := f.orch.SubmitTransaction(context.Background(), "AAAA", testNetwork)
	require.ErrorIs(t, err, domain.ErrServiceTimeout)
	assert.Equal(t, 4, attempts)

	var uerr *domain.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, []byte{4}, uerr.Body, "last observed payload")
}

func TestSubmitTransaction_OtherErrorsNotRetried(t *testing.T) {
	f := newFixture(t, false)

	attempts := 0
	f.ledger.SubmitTransactionFunc = func(context.Context, string) (*stellar.SubmitResult, error) {
		attempts++
		return nil, domain.NewUpstreamError(stellar.SourceLedgerAPI, 503, "unavailable", nil)
	}

	_, err := f.orch.SubmitTransaction(context.Background(), "AAAA", testNetwork)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestSubscriptions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	account := keypair.MustRandom().Address()
	tok := contractID(t, 6)
	key, err := stellar.BalanceKeyXDR(account)
	require.NoError(t, err)

	var registered []string
	f.indexer.SubscribeAccountFunc = func(_ context.Context, _, id string) error {
		registered = append(registered, "account:"+id)
		return nil
	}
	f.indexer.SubscribeTokenEventsFunc = func(_ context.Context, _, id, contract string) error {
		registered = append(registered, "events:"+contract)
		return nil
	}
	f.indexer.SubscribeTokenBalanceFunc = func(_ context.Context, _, id, contract string) error {
		registered = append(registered, "balance:"+contract)
		return nil
	}
	f.indexer.AccountSubscriptionsFunc = func(context.Context, string) ([]string, error) {
		return []string{account}, nil
	}
	f.indexer.TokenBalanceSubscriptionsFunc = func(context.Context, string) ([]stellar.EntrySubscription, error) {
		return []stellar.EntrySubscription{{ContractID: tok, KeyXDR: key}}, nil
	}

	assert.Equal(t, SubscriptionResult{Data: true}, f.orch.AccountSubscription(ctx, account, testNetwork))
	assert.Equal(t, SubscriptionResult{Data: true}, f.orch.TokenSubscription(ctx, account, tok, testNetwork))
	assert.Equal(t, SubscriptionResult{Data: true}, f.orch.TokenBalanceSubscription(ctx, account, tok, testNetwork))
	assert.Equal(t, []string{"account:" + account, "events:" + tok, "balance:" + tok}, registered)

	ok, err := f.orch.HasSubForPublicKey(ctx, account, testNetwork)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.orch.HasSubForPublicKey(ctx, keypair.MustRandom().Address(), testNetwork)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.orch.HasSubForTokenBalance(ctx, account, tok, testNetwork)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.orch.HasSubForTokenBalance(ctx, account, contractID(t, 7), testNetwork)
	require.NoError(t, err)
	assert.False(t, ok)

	res := f.orch.AccountSubscription(ctx, account, domain.NetworkPublic)
	assert.False(t, res.Data)
	assert.ErrorIs(t, res.Error, domain.ErrUnsupportedNetwork)
}

func TestSubscriptions_RenewOnExpiry(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	account := keypair.MustRandom().Address()

	auths := 0
	f.indexer.AuthenticateFunc = func(context.Context, string, string) (string, error) {
		auths++
		if auths == 1 {
			return "stale", nil
		}
		return "fresh", nil
	}
	var tokens []string
	f.indexer.SubscribeAccountFunc = func(_ context.Context, token, _ string) error {
		tokens = append(tokens, token)
		if token == "stale" {
			return domain.ErrAuthExpired
		}
		return nil
	}

	res := f.orch.AccountSubscription(ctx, account, testNetwork)
	require.NoError(t, res.Error)
	assert.True(t, res.Data)
	assert.Equal(t, []string{"stale", "fresh"}, tokens)
}
