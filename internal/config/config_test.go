package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/pricecache"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.True(t, cfg.Indexer.Enabled)
	assert.Equal(t, 2, cfg.Session.MaxRetries)
	assert.Equal(t, 3, cfg.Submit.MaxRetries)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, pricecache.DefaultRetention, cfg.Prices.Retention)
	assert.Equal(t, int64(10), cfg.Verifier.Interval)

	public, ok := cfg.Network(domain.NetworkPublic)
	require.True(t, ok)
	assert.Equal(t, "https://horizon.stellar.org", public.HorizonURL)
	assert.False(t, public.IndexerConfigured())

	futurenet, ok := cfg.Network(domain.NetworkFuturenet)
	require.True(t, ok)
	assert.Empty(t, futurenet.IndexerURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WALLET_HTTP_ADDR", ":9999")
	t.Setenv("WALLET_NETWORKS_TESTNET_INDEXER_EMAIL", "ops@example.com")
	t.Setenv("WALLET_PRICES_BATCH_DELAY", "250ms")
	t.Setenv("WALLET_INDEXER_TRUST_DEFAULT", "false")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Prices.BatchDelay)
	assert.False(t, cfg.Indexer.TrustDefault)

	testnet, ok := cfg.Network(domain.NetworkTestnet)
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", testnet.IndexerEmail)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
cache:
  backend: badger
  l1_size: 500
networks:
  testnet:
    indexer_email: ops@example.com
    indexer_password: secret
verifier:
  enabled: true
  network: testnet
  interval: 5
`), 0o600))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, BackendBadger, cfg.Cache.Backend)
	assert.Equal(t, int64(500), cfg.Cache.L1Size)
	assert.Equal(t, int64(5), cfg.Verifier.Interval)

	testnet, ok := cfg.Network(domain.NetworkTestnet)
	require.True(t, ok)
	assert.True(t, testnet.IndexerConfigured())
	assert.Equal(t, "https://horizon-testnet.stellar.org", testnet.HorizonURL, "file values merge with defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "unknown cache backend",
			env:    map[string]string{"WALLET_CACHE_BACKEND": "memcached"},
			errMsg: "cache.backend",
		},
		{
			name:   "postgres without dsn",
			env:    map[string]string{"WALLET_CACHE_BACKEND": "postgres"},
			errMsg: "postgres.dsn",
		},
		{
			name:   "clickhouse without dsn",
			env:    map[string]string{"WALLET_PRICES_BACKEND": "clickhouse"},
			errMsg: "clickhouse.dsn",
		},
		{
			name:   "verifier without indexer credentials",
			env:    map[string]string{"WALLET_VERIFIER_ENABLED": "true"},
			errMsg: "indexer_email",
		},
		{
			name:   "verifier on unknown network",
			env:    map[string]string{"WALLET_VERIFIER_ENABLED": "true", "WALLET_VERIFIER_NETWORK": "devnet"},
			errMsg: "verifier.network",
		},
		{
			name:   "non-positive price interval",
			env:    map[string]string{"WALLET_PRICES_ENABLED": "true", "WALLET_PRICES_UPDATE_INTERVAL": "0s"},
			errMsg: "prices.update_interval",
		},
		{
			name:   "short retention",
			env:    map[string]string{"WALLET_PRICES_ENABLED": "true", "WALLET_PRICES_RETENTION": "1h"},
			errMsg: "prices.retention",
		},
		{
			name:   "bad log level",
			env:    map[string]string{"WALLET_LOG_LEVEL": "loud"},
			errMsg: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(NewViper(), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
