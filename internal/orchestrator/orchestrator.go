// Package orchestrator answers balance, history and token questions for wallet
// accounts. It prefers the indexer when it is enabled and trusted, and degrades to
// the ledger API and contract RPC whenever the indexer fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/storage"
)

// Defaults.
const (
	DefaultHistoryLimit     = 100
	DefaultSubmitMaxRetries = 3
	defaultTokenConcurrency = 4
)

// NetworkClients holds the boundary clients of one network.
type NetworkClients struct {
	Ledger     stellar.LedgerAPI
	Contracts  stellar.ContractRPC
	Indexer    stellar.Indexer // nil when the network has no indexer
	Passphrase string
}

// Orchestrator coordinates the indexer and the direct RPC sources.
type Orchestrator struct {
	networks map[domain.Network]NetworkClients
	sessions *session.Manager
	flag     storage.ConsistencyFlag
	cache    storage.TokenCache

	useIndexer            bool
	trustIndexerByDefault bool
	historyLimit          int
	submitMaxRetries      int

	metrics *observability.Metrics
	log     zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Networks map[domain.Network]NetworkClients
	Sessions *session.Manager
	Flag     storage.ConsistencyFlag

	// Optional; nil disables metadata caching
	TokenCache storage.TokenCache

	// Indexer policy
	UseIndexer            bool // static switch, ANDed with the per-call flag and the verifier verdict
	TrustIndexerByDefault bool // verdict used before the verifier has written the flag

	HistoryLimit     int // page size of the ledger API history query
	SubmitMaxRetries int // extra submission attempts on a gateway timeout

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	cache := opts.TokenCache
	if cache == nil {
		cache = storage.NoopTokenCache{}
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	submitMaxRetries := opts.SubmitMaxRetries
	if submitMaxRetries < 0 {
		submitMaxRetries = 0
	}

	return &Orchestrator{
		networks:              opts.Networks,
		sessions:              opts.Sessions,
		flag:                  opts.Flag,
		cache:                 cache,
		useIndexer:            opts.UseIndexer,
		trustIndexerByDefault: opts.TrustIndexerByDefault,
		historyLimit:          historyLimit,
		submitMaxRetries:      submitMaxRetries,
		metrics:               opts.Metrics,
		log:                   opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

func (o *Orchestrator) clients(network domain.Network) (NetworkClients, error) {
	c, ok := o.networks[network]
	if !ok || c.Ledger == nil || c.Contracts == nil {
		return NetworkClients{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
	}
	if c.Passphrase == "" {
		c.Passphrase = network.Passphrase()
	}
	return c, nil
}

// IndexerSupported reports whether network has an indexer with credentials.
func (o *Orchestrator) IndexerSupported(network domain.Network) bool {
	c, ok := o.networks[network]
	return ok && c.Indexer != nil && o.sessions != nil && o.sessions.Supported(network)
}

// IndexerTrusted returns the verifier's last verdict. An unset flag falls back to the
// configured default; a flag that cannot be read is treated as untrusted.
func (o *Orchestrator) IndexerTrusted(ctx context.Context) bool {
	if o.flag == nil {
		return o.trustIndexerByDefault
	}
	trusted, err := o.flag.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return o.trustIndexerByDefault
	}
	if err != nil {
		o.log.Warn().Err(err).Msg("could not read consistency flag")
		return false
	}
	return trusted
}

// IndexerEnabled reports whether a read for network should try the indexer first.
func (o *Orchestrator) IndexerEnabled(ctx context.Context, network domain.Network, useIndexer bool) bool {
	return o.useIndexer && useIndexer && o.IndexerSupported(network) && o.IndexerTrusted(ctx)
}

// indexerFailed records an indexer failure that is about to degrade to RPC.
func (o *Orchestrator) indexerFailed(network domain.Network, operation string, err error) {
	o.metrics.RecordIndexerError(network.String(), operation)
	o.log.Warn().
		Err(err).
		Str("network", network.String()).
		Str("operation", operation).
		Msg("indexer failed, falling back to rpc")
}
