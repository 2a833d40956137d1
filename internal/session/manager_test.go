package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/stellar/stub"
)

func newManager(t *testing.T, auth func(ctx context.Context, email, password string) (string, error), maxRetries int) (*Manager, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	m := New(Options{
		Endpoints: map[domain.Network]Endpoint{
			domain.NetworkTestnet: {
				Indexer:  &stub.Indexer{AuthenticateFunc: auth},
				Email:    "ops@example.com",
				Password: "secret",
			},
		},
		MaxRetries: maxRetries,
		Metrics:    metrics,
		Logger:     zerolog.Nop(),
	})
	return m, metrics
}

// tokenSequence returns an authenticator handing out tok-1, tok-2, ...
func tokenSequence(calls *atomic.Int32) func(context.Context, string, string) (string, error) {
	return func(_ context.Context, email, password string) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("tok-%d", n), nil
	}
}

func TestRenewToken(t *testing.T) {
	var calls atomic.Int32
	m, metrics := newManager(t, tokenSequence(&calls), 0)

	s, err := m.RenewToken(context.Background(), domain.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.Token)
	assert.True(t, s.ExpiresImplicitly)

	current, ok := m.Current(domain.NetworkTestnet)
	require.True(t, ok)
	assert.Equal(t, s, current)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionRenewals.WithLabelValues("TESTNET", observability.OutcomeSuccess)))
}

func TestRenewToken_FailureUnsetsSession(t *testing.T) {
	fail := false
	m, _ := newManager(t, func(context.Context, string, string) (string, error) {
		if fail {
			return "", errors.New("bad credentials")
		}
		return "tok", nil
	}, 0)
	ctx := context.Background()

	_, err := m.RenewToken(ctx, domain.NetworkTestnet)
	require.NoError(t, err)

	fail = true
	_, err = m.RenewToken(ctx, domain.NetworkTestnet)
	require.Error(t, err)

	_, ok := m.Current(domain.NetworkTestnet)
	assert.False(t, ok)
}

func TestRenewToken_CallerCancelDoesNotAbortSharedRenewal(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	authErr := make(chan error, 1)
	m, _ := newManager(t, func(ctx context.Context, _, _ string) (string, error) {
		close(started)
		<-release
		authErr <- ctx.Err()
		return "tok-shared", ctx.Err()
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := m.RenewToken(ctx, domain.NetworkTestnet)
		first <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-authErr)
	assert.Eventually(t, func() bool {
		s, ok := m.Current(domain.NetworkTestnet)
		return ok && s.Token == "tok-shared"
	}, time.Second, 10*time.Millisecond)
}

func TestRenewToken_UnsupportedNetwork(t *testing.T) {
	m, _ := newManager(t, nil, 0)

	_, err := m.RenewToken(context.Background(), domain.NetworkPublic)
	assert.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
	assert.False(t, m.Supported(domain.NetworkPublic))
	assert.True(t, m.Supported(domain.NetworkTestnet))
}

func TestWithAuth_LazySession(t *testing.T) {
	var calls atomic.Int32
	m, _ := newManager(t, tokenSequence(&calls), 0)

	got, err := WithAuth(context.Background(), m, domain.NetworkTestnet, func(_ context.Context, token string) (string, error) {
		return token, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
	assert.Equal(t, int32(1), calls.Load())

	// The session is reused.
	_, err = WithAuth(context.Background(), m, domain.NetworkTestnet, func(_ context.Context, token string) (string, error) {
		return token, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWithAuth_RenewsOnceOnExpiry(t *testing.T) {
	var auths atomic.Int32
	m, _ := newManager(t, tokenSequence(&auths), 3)
	ctx := context.Background()
	_, err := m.RenewToken(ctx, domain.NetworkTestnet)
	require.NoError(t, err)

	var tokens []string
	got, err := WithAuth(ctx, m, domain.NetworkTestnet, func(_ context.Context, token string) (int, error) {
		tokens = append(tokens, token)
		if token == "tok-1" {
			return 0, domain.ErrAuthExpired
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, []string{"tok-1", "tok-2"}, tokens)
	assert.Equal(t, int32(2), auths.Load(), "exactly one renewal")
}

func TestWithAuth_SecondExpiryIsReturned(t *testing.T) {
	var auths atomic.Int32
	m, _ := newManager(t, tokenSequence(&auths), 5)
	ctx := context.Background()
	_, err := m.RenewToken(ctx, domain.NetworkTestnet)
	require.NoError(t, err)

	var ops int
	_, err = WithAuth(ctx, m, domain.NetworkTestnet, func(context.Context, string) (int, error) {
		ops++
		return 0, domain.ErrAuthExpired
	})
	require.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, 2, ops, "original call plus one retry")
	assert.Equal(t, int32(2), auths.Load())
}

func TestWithAuth_BoundedRetry(t *testing.T) {
	var auths atomic.Int32
	m, metrics := newManager(t, tokenSequence(&auths), 2)

	transient := domain.NewUpstreamError("indexer", 503, "unavailable", nil)
	var ops int
	err := m.Do(context.Background(), domain.NetworkTestnet, func(context.Context, string) error {
		ops++
		return transient
	})
	require.ErrorIs(t, err, domain.ErrTransientUpstream)
	assert.Equal(t, 3, ops)
	assert.Equal(t, int32(1), auths.Load(), "non-auth errors never renew")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.UpstreamRetries.WithLabelValues("indexer")))
}

func TestWithAuth_RetryThenSuccess(t *testing.T) {
	var auths atomic.Int32
	m, _ := newManager(t, tokenSequence(&auths), 2)

	var ops int
	err := m.Do(context.Background(), domain.NetworkTestnet, func(context.Context, string) error {
		ops++
		if ops == 1 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ops)
}

func TestWithAuth_Cancelled(t *testing.T) {
	var auths atomic.Int32
	m, _ := newManager(t, tokenSequence(&auths), 5)

	ctx, cancel := context.WithCancel(context.Background())
	var ops int
	err := m.Do(ctx, domain.NetworkTestnet, func(context.Context, string) error {
		ops++
		cancel()
		return errors.New("aborted")
	})
	require.Error(t, err)
	assert.Equal(t, 1, ops)
}

func TestWithAuth_UnsupportedNetwork(t *testing.T) {
	m, _ := newManager(t, nil, 5)

	var ops int
	err := m.Do(context.Background(), domain.NetworkFuturenet, func(context.Context, string) error {
		ops++
		return nil
	})
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
	assert.Zero(t, ops)
}
