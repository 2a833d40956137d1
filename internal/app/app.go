// Package app wires configured stores, clients and components together. It is
// shared by the service and the operator commands.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stellar-wallet-core/internal/config"
	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/orchestrator"
	"stellar-wallet-core/internal/pricecache"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/storage"
	badgerstore "stellar-wallet-core/internal/storage/badger"
	chstore "stellar-wallet-core/internal/storage/clickhouse"
	"stellar-wallet-core/internal/storage/memory"
	pgstore "stellar-wallet-core/internal/storage/postgres"
	redisstore "stellar-wallet-core/internal/storage/redis"
	"stellar-wallet-core/internal/storage/tiered"
	"stellar-wallet-core/internal/verification"
)

// App holds everything built from a Config.
type App struct {
	cfg     *config.Config
	metrics *observability.Metrics
	log     zerolog.Logger

	Networks     map[domain.Network]orchestrator.NetworkClients
	Sessions     *session.Manager
	Orchestrator *orchestrator.Orchestrator
	Flag         storage.ConsistencyFlag
	Checkpoints  storage.CheckpointStore
	TokenCache   storage.TokenCache

	redis   *goredis.Client
	pg      *pgstore.Pool
	closers []io.Closer
}

// New connects the configured backends, runs migrations and builds the
// data access components. Close releases every connection.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, metrics: metrics, log: log}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildStores(); err != nil {
		a.Close()
		return nil, err
	}
	a.buildClients()

	a.Orchestrator = orchestrator.New(orchestrator.Options{
		Networks:              a.Networks,
		Sessions:              a.Sessions,
		Flag:                  a.Flag,
		TokenCache:            a.TokenCache,
		UseIndexer:            cfg.Indexer.Enabled,
		TrustIndexerByDefault: cfg.Indexer.TrustDefault,
		SubmitMaxRetries:      cfg.Submit.MaxRetries,
		Metrics:               metrics,
		Logger:                log,
	})
	return a, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (a *App) connect(ctx context.Context) error {
	cfg := a.cfg
	if cfg.Cache.Backend == config.BackendRedis || cfg.Flag.Backend == config.BackendRedis ||
		(cfg.Prices.Enabled && cfg.Prices.Backend == config.BackendRedis) {
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.redis = client
		a.closers = append(a.closers, client)
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		a.pg = pool
		a.closers = append(a.closers, closerFunc(func() error { pool.Close(); return nil }))
		if err := pool.Migrate(ctx, a.log); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) buildStores() error {
	cfg := a.cfg

	switch cfg.Flag.Backend {
	case config.BackendRedis:
		a.Flag = redisstore.NewConsistencyFlag(a.redis)
	default:
		a.Flag = memory.NewConsistencyFlag()
	}

	// Checkpoints prefer the durable SQL store when one is configured.
	switch {
	case a.pg != nil:
		a.Checkpoints = pgstore.NewCheckpointStore(a.pg)
	case a.redis != nil:
		a.Checkpoints = redisstore.NewCheckpointStore(a.redis)
	default:
		a.Checkpoints = memory.NewCheckpointStore()
	}

	var backing storage.TokenCache
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return nil
	case config.BackendRedis:
		backing = redisstore.NewTokenCache(a.redis)
	case config.BackendPostgres:
		backing = pgstore.NewTokenCache(a.pg)
	case config.BackendBadger:
		db, err := badgerstore.Open(cfg.Badger.Dir)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closerFunc(db.Close))
		backing = badgerstore.NewTokenCache(db)
	default:
		a.TokenCache = memory.NewTokenCache()
		return nil
	}

	l1, err := tiered.New(backing, cfg.Cache.L1Size)
	if err != nil {
		return err
	}
	a.TokenCache = l1
	return nil
}

func (a *App) buildClients() {
	cfg := a.cfg
	opts := []stellar.ClientOption{stellar.WithTimeout(cfg.HTTP.Timeout)}

	a.Networks = make(map[domain.Network]orchestrator.NetworkClients)
	endpoints := make(map[domain.Network]session.Endpoint)
	for _, n := range domain.Networks {
		nc, ok := cfg.Network(n)
		if !ok {
			continue
		}
		clients := orchestrator.NetworkClients{
			Ledger:     stellar.NewHorizonClient(nc.HorizonURL, opts...),
			Contracts:  stellar.NewSorobanClient(nc.RPCURL, opts...),
			Passphrase: n.Passphrase(),
		}
		if nc.IndexerConfigured() {
			mercury := stellar.NewMercuryClient(nc.IndexerURL, opts...)
			clients.Indexer = mercury
			endpoints[n] = session.Endpoint{
				Indexer:  mercury,
				Email:    nc.IndexerEmail,
				Password: nc.IndexerPassword,
			}
		}
		a.Networks[n] = clients
		a.log.Debug().Str("network", string(n)).Bool("indexer", clients.Indexer != nil).Msg("network configured")
	}

	a.Sessions = session.New(session.Options{
		Endpoints:  endpoints,
		MaxRetries: cfg.Session.MaxRetries,
		Metrics:    a.metrics,
		Logger:     a.log,
	})
}

// Verifier builds the consistency verifier of the configured network.
func (a *App) Verifier(onResult func(verification.CheckResult)) (*verification.Verifier, error) {
	network, err := domain.ParseNetwork(a.cfg.Verifier.Network)
	if err != nil {
		return nil, err
	}
	clients, ok := a.Networks[network]
	if !ok {
		return nil, fmt.Errorf("verifier: %w: %s", domain.ErrUnsupportedNetwork, network)
	}

	return verification.New(verification.Options{
		Network:           network,
		Ledger:            clients.Ledger,
		Source:            a.Orchestrator,
		Flag:              a.Flag,
		Checkpoints:       a.Checkpoints,
		Interval:          a.cfg.Verifier.Interval,
		Cursor:            a.cfg.Verifier.Cursor,
		ReconnectDelay:    a.cfg.Verifier.ReconnectDelay,
		MaxReconnectDelay: a.cfg.Verifier.MaxReconnectDelay,
		OnResult:          onResult,
		Metrics:           a.metrics,
		Logger:            a.log,
	}), nil
}

// PriceCache builds the price cache on the public network. onUpdate may be nil.
func (a *App) PriceCache(ctx context.Context, onUpdate func([]domain.PriceSample)) (*pricecache.Cache, error) {
	cfg := a.cfg.Prices
	public, ok := a.Networks[domain.NetworkPublic]
	if !ok {
		return nil, fmt.Errorf("prices: %w: %s", domain.ErrUnsupportedNetwork, domain.NetworkPublic)
	}
	paths, ok := public.Ledger.(pricecache.PathFinder)
	if !ok {
		return nil, fmt.Errorf("prices: ledger client of %s cannot find paths", domain.NetworkPublic)
	}

	var store storage.PriceStore
	switch cfg.Backend {
	case config.BackendRedis:
		store = redisstore.NewPriceStore(a.redis, cfg.Retention)
	case config.BackendClickHouse:
		conn, err := chstore.Open(ctx, a.cfg.ClickHouse.DSN, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closerFunc(conn.Close))
		store = chstore.NewPriceStore(conn, cfg.Retention)
	default:
		store = memory.NewPriceStore(cfg.Retention)
	}

	assets, err := stellar.NewAssetListClient(cfg.TopAssetsURL, stellar.WithTimeout(a.cfg.HTTP.Timeout))
	if err != nil {
		return nil, err
	}

	return pricecache.New(pricecache.Options{
		Store:          store,
		Paths:          paths,
		Assets:         assets,
		ReferenceAsset: cfg.ReferenceAsset,
		ReceiveAmount:  cfg.ReceiveAmount,
		Timeout:        cfg.Timeout,
		BatchSize:      cfg.BatchSize,
		BatchDelay:     cfg.BatchDelay,
		TargetCount:    cfg.TargetCount,
		PageDelay:      cfg.PageDelay,
		OnUpdate:       onUpdate,
		Metrics:        a.metrics,
		Logger:         a.log,
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var merr *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	a.closers = nil
	return merr.ErrorOrNil()
}
