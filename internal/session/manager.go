// Package session manages per-network indexer authentication tokens.
//
// Tokens are obtained lazily on the first authenticated call and renewed only
// reactively, when a call reports an expired token. There are no refresh timers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/stellar"
)

// DefaultMaxRetries is the number of extra attempts for non-auth failures.
const DefaultMaxRetries = 2

// renewTimeout bounds a shared authentication call, which outlives its callers.
const renewTimeout = 30 * time.Second

// Authenticator exchanges static credentials for a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// Endpoint holds the indexer and credentials of one network.
type Endpoint struct {
	Indexer  Authenticator
	Email    string
	Password string
}

// Options for creating a Manager.
type Options struct {
	Endpoints  map[domain.Network]Endpoint
	MaxRetries int // retries for non-auth failures
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Manager holds the current session of every network.
type Manager struct {
	mu       sync.RWMutex
	sessions map[domain.Network]domain.Session

	endpoints  map[domain.Network]Endpoint
	maxRetries int
	renewals   singleflight.Group
	metrics    *observability.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a new Manager.
func New(opts Options) *Manager {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	endpoints := make(map[domain.Network]Endpoint, len(opts.Endpoints))
	for n, ep := range opts.Endpoints {
		if ep.Indexer != nil {
			endpoints[n] = ep
		}
	}

	return &Manager{
		sessions:   make(map[domain.Network]domain.Session),
		endpoints:  endpoints,
		maxRetries: maxRetries,
		metrics:    opts.Metrics,
		log:        opts.Logger.With().Str("component", "session").Logger(),
		now:        time.Now,
	}
}

// Supported reports whether an indexer is configured for network.
func (m *Manager) Supported(network domain.Network) bool {
	_, ok := m.endpoints[network]
	return ok
}

// Current returns the stored session for network.
func (m *Manager) Current(network domain.Network) (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[network]
	return s, ok
}

// Invalidate drops the stored session for network.
func (m *Manager) Invalidate(network domain.Network) {
	m.mu.Lock()
	delete(m.sessions, network)
	m.mu.Unlock()
}

// RenewToken authenticates against the network's indexer and replaces the stored
// session. On failure the stored session is removed, so callers must re-check.
// Concurrent renewals of the same network share one authentication call.
func (m *Manager) RenewToken(ctx context.Context, network domain.Network) (domain.Session, error) {
	ep, ok := m.endpoints[network]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: no indexer for %s", domain.ErrUnsupportedNetwork, network)
	}

	// The shared call ignores the cancellation of whichever caller started it.
	ch := m.renewals.DoChan(string(network), func() (interface{}, error) {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renewTimeout)
		defer cancel()

		token, err := ep.Indexer.Authenticate(actx, ep.Email, ep.Password)
		m.metrics.RecordRenewal(network.String(), err)
		if err != nil {
			m.Invalidate(network)
			return nil, err
		}

		s := domain.Session{
			Token:             token,
			ExpiresImplicitly: true,
			IssuedAt:          m.now(),
		}
		m.mu.Lock()
		m.sessions[network] = s
		m.mu.Unlock()

		m.log.Debug().Str("network", network.String()).Msg("indexer token renewed")
		return s, nil
	})

	select {
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Session{}, fmt.Errorf("renew %s indexer token: %w", network, res.Err)
		}
		return res.Val.(domain.Session), nil
	}
}

func (m *Manager) session(ctx context.Context, network domain.Network) (domain.Session, error) {
	if s, ok := m.Current(network); ok {
		return s, nil
	}
	return m.RenewToken(ctx, network)
}

// WithAuth runs op with the current token of network.
//
// An expired token is renewed at most once per call and op is retried with the new
// token; a second expiry is returned to the caller. Any other failure is retried up
// to the manager's retry bound, without delay. Context cancellation and unsupported
// networks stop immediately.
func WithAuth[T any](ctx context.Context, m *Manager, network domain.Network, op func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T
	renewed := false
	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		s, err := m.session(ctx, network)
		if err == nil {
			var out T
			out, err = op(ctx, s.Token)
			if err == nil {
				return out, nil
			}
		}

		switch {
		case errors.Is(err, domain.ErrUnsupportedNetwork), ctx.Err() != nil:
			return zero, err

		case errors.Is(err, domain.ErrAuthExpired):
			if renewed {
				return zero, err
			}
			renewed = true
			if _, rerr := m.RenewToken(ctx, network); rerr != nil {
				return zero, rerr
			}
			continue
		}

		if retries >= m.maxRetries {
			return zero, err
		}
		retries++
		m.metrics.RecordRetry(stellar.SourceIndexer)
		m.log.Debug().
			Err(err).
			Str("network", network.String()).
			Int("retry", retries).
			Msg("retrying indexer call")
	}
}

// Do is WithAuth for operations without a result.
func (m *Manager) Do(ctx context.Context, network domain.Network, op func(ctx context.Context, token string) error) error {
	_, err := WithAuth(ctx, m, network, func(ctx context.Context, token string) (struct{}, error) {
		return struct{}{}, op(ctx, token)
	})
	return err
}
