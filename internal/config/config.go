// Package config loads service configuration from defaults, an optional config
// file and WALLET_ prefixed environment variables, in increasing precedence.
// A .env file in the working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/orchestrator"
	"stellar-wallet-core/internal/pricecache"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/verification"
)

// EnvPrefix is the prefix of environment overrides, e.g. WALLET_HTTP_ADDR.
const EnvPrefix = "WALLET"

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendBadger     = "badger"
	BackendNone       = "none"
)

var (
	cacheBackends  = []string{BackendRedis, BackendPostgres, BackendBadger, BackendMemory, BackendNone}
	priceBackends  = []string{BackendRedis, BackendClickHouse, BackendMemory}
	flagBackends   = []string{BackendRedis, BackendMemory}
	networkConfigs = map[domain.Network]NetworkConfig{
		domain.NetworkPublic: {
			HorizonURL: "https://horizon.stellar.org",
			RPCURL:     "https://mainnet.sorobanrpc.com",
			IndexerURL: "https://mainnet.mercurydata.app",
		},
		domain.NetworkTestnet: {
			HorizonURL: "https://horizon-testnet.stellar.org",
			RPCURL:     "https://soroban-testnet.stellar.org",
			IndexerURL: "https://api.mercurydata.app",
		},
		domain.NetworkFuturenet: {
			HorizonURL: "https://horizon-futurenet.stellar.org",
			RPCURL:     "https://rpc-futurenet.stellar.org",
		},
	}
)

// Config is the full service configuration.
type Config struct {
	HTTP       HTTPConfig               `mapstructure:"http"`
	Log        LogConfig                `mapstructure:"log"`
	Indexer    IndexerConfig            `mapstructure:"indexer"`
	Session    SessionConfig            `mapstructure:"session"`
	Submit     SubmitConfig             `mapstructure:"submit"`
	Networks   map[string]NetworkConfig `mapstructure:"networks"`
	Redis      RedisConfig              `mapstructure:"redis"`
	Postgres   DSNConfig                `mapstructure:"postgres"`
	ClickHouse DSNConfig                `mapstructure:"clickhouse"`
	Badger     BadgerConfig             `mapstructure:"badger"`
	Cache      CacheConfig              `mapstructure:"cache"`
	Flag       FlagConfig               `mapstructure:"flag"`
	Verifier   VerifierConfig           `mapstructure:"verifier"`
	Prices     PricesConfig             `mapstructure:"prices"`
}

// HTTPConfig configures the API server and outbound HTTP clients.
type HTTPConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// IndexerConfig is the static part of the indexer gate.
type IndexerConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	TrustDefault bool `mapstructure:"trust_default"`
}

// SessionConfig configures indexer session retries.
type SessionConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// SubmitConfig configures transaction submission.
type SubmitConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// NetworkConfig holds the endpoints and indexer credentials of one network.
type NetworkConfig struct {
	HorizonURL      string `mapstructure:"horizon_url"`
	RPCURL          string `mapstructure:"rpc_url"`
	IndexerURL      string `mapstructure:"indexer_url"`
	IndexerEmail    string `mapstructure:"indexer_email"`
	IndexerPassword string `mapstructure:"indexer_password"`
}

// IndexerConfigured reports whether the network has a usable indexer.
func (n NetworkConfig) IndexerConfigured() bool {
	return n.IndexerURL != "" && n.IndexerEmail != "" && n.IndexerPassword != ""
}

// RedisConfig configures the shared Redis store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DSNConfig configures a SQL store.
type DSNConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BadgerConfig configures the embedded metadata cache. An empty dir runs in memory.
type BadgerConfig struct {
	Dir string `mapstructure:"dir"`
}

// CacheConfig selects the token metadata cache.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	L1Size  int64  `mapstructure:"l1_size"`
}

// FlagConfig selects where the consistency flag lives.
type FlagConfig struct {
	Backend string `mapstructure:"backend"`
}

// VerifierConfig configures the consistency verifier.
type VerifierConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Network           string        `mapstructure:"network"`
	Interval          int64         `mapstructure:"interval"`
	Cursor            string        `mapstructure:"cursor"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
}

// PricesConfig configures the price cache.
type PricesConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Backend        string        `mapstructure:"backend"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchDelay     time.Duration `mapstructure:"batch_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ReceiveAmount  string        `mapstructure:"receive_amount"`
	ReferenceAsset string        `mapstructure:"reference_asset"`
	TargetCount    int           `mapstructure:"target_count"`
	PageDelay      time.Duration `mapstructure:"page_delay"`
	Retention      time.Duration `mapstructure:"retention"`
	TopAssetsURL   string        `mapstructure:"top_assets_url"`
}

// NewViper returns a viper instance with defaults and environment binding set up.
// Callers may bind command line flags into it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.timeout", stellar.DefaultTimeout)
	v.SetDefault("log.level", "info")

	v.SetDefault("indexer.enabled", true)
	v.SetDefault("indexer.trust_default", true)
	v.SetDefault("session.max_retries", session.DefaultMaxRetries)
	v.SetDefault("submit.max_retries", orchestrator.DefaultSubmitMaxRetries)

	for network, nc := range networkConfigs {
		prefix := "networks." + networkKey(network) + "."
		v.SetDefault(prefix+"horizon_url", nc.HorizonURL)
		v.SetDefault(prefix+"rpc_url", nc.RPCURL)
		v.SetDefault(prefix+"indexer_url", nc.IndexerURL)
		v.SetDefault(prefix+"indexer_email", "")
		v.SetDefault(prefix+"indexer_password", "")
	}

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("badger.dir", "")

	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.l1_size", 10_000)
	v.SetDefault("flag.backend", BackendMemory)

	v.SetDefault("verifier.enabled", false)
	v.SetDefault("verifier.network", string(domain.NetworkPublic))
	v.SetDefault("verifier.interval", verification.DefaultInterval)
	v.SetDefault("verifier.cursor", verification.CursorNow)
	v.SetDefault("verifier.reconnect_delay", verification.DefaultReconnectDelay)
	v.SetDefault("verifier.max_reconnect_delay", verification.DefaultMaxReconnectDelay)

	v.SetDefault("prices.enabled", false)
	v.SetDefault("prices.backend", BackendMemory)
	v.SetDefault("prices.update_interval", time.Minute)
	v.SetDefault("prices.batch_size", pricecache.DefaultBatchSize)
	v.SetDefault("prices.batch_delay", pricecache.DefaultBatchDelay)
	v.SetDefault("prices.timeout", pricecache.DefaultTimeout)
	v.SetDefault("prices.receive_amount", pricecache.DefaultReceiveAmount)
	v.SetDefault("prices.reference_asset", pricecache.DefaultReferenceAsset)
	v.SetDefault("prices.target_count", pricecache.DefaultTargetCount)
	v.SetDefault("prices.page_delay", pricecache.DefaultPageDelay)
	v.SetDefault("prices.retention", pricecache.DefaultRetention)
	v.SetDefault("prices.top_assets_url", stellar.DefaultAssetListURL)
}

// Load reads the optional .env file and config file into v and returns the validated config.
func Load(v *viper.Viper, file string) (*Config, error) {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Network returns the configuration of a network.
func (c *Config) Network(n domain.Network) (NetworkConfig, bool) {
	nc, ok := c.Networks[networkKey(n)]
	if !ok || nc.HorizonURL == "" {
		return NetworkConfig{}, false
	}
	return nc, true
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Validate rejects unknown backends, non-positive intervals and missing
// endpoints for enabled components.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.Session.MaxRetries < 0 {
		errs = append(errs, errors.New("session.max_retries must not be negative"))
	}
	if c.Submit.MaxRetries < 0 {
		errs = append(errs, errors.New("submit.max_retries must not be negative"))
	}
	for key := range c.Networks {
		if _, err := domain.ParseNetwork(key); err != nil {
			errs = append(errs, fmt.Errorf("networks.%s: %w", key, err))
		}
	}

	if !oneOf(c.Cache.Backend, cacheBackends) {
		errs = append(errs, fmt.Errorf("cache.backend %q: want one of %v", c.Cache.Backend, cacheBackends))
	}
	if !oneOf(c.Flag.Backend, flagBackends) {
		errs = append(errs, fmt.Errorf("flag.backend %q: want one of %v", c.Flag.Backend, flagBackends))
	}
	if !oneOf(c.Prices.Backend, priceBackends) {
		errs = append(errs, fmt.Errorf("prices.backend %q: want one of %v", c.Prices.Backend, priceBackends))
	}
	if c.usesBackend(BackendRedis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the selected backends"))
	}
	if c.Cache.Backend == BackendPostgres && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required for cache.backend=postgres"))
	}
	if c.Prices.Backend == BackendClickHouse && c.ClickHouse.DSN == "" {
		errs = append(errs, errors.New("clickhouse.dsn is required for prices.backend=clickhouse"))
	}

	if c.Verifier.Enabled {
		errs = append(errs, c.validateVerifier()...)
	}
	if c.Prices.Enabled {
		errs = append(errs, c.validatePrices()...)
	}

	return errors.Join(errs...)
}

func (c *Config) validateVerifier() []error {
	var errs []error
	network, err := domain.ParseNetwork(c.Verifier.Network)
	if err != nil {
		return []error{fmt.Errorf("verifier.network: %w", err)}
	}
	nc, ok := c.Network(network)
	if !ok {
		errs = append(errs, fmt.Errorf("verifier: network %s has no horizon_url", network))
	} else if !nc.IndexerConfigured() {
		errs = append(errs, fmt.Errorf("verifier: network %s needs indexer_url, indexer_email and indexer_password", network))
	}
	if c.Verifier.Interval <= 0 {
		errs = append(errs, errors.New("verifier.interval must be positive"))
	}
	if c.Verifier.ReconnectDelay <= 0 || c.Verifier.MaxReconnectDelay < c.Verifier.ReconnectDelay {
		errs = append(errs, errors.New("verifier: reconnect_delay must be positive and not above max_reconnect_delay"))
	}
	return errs
}

func (c *Config) validatePrices() []error {
	var errs []error
	if _, ok := c.Network(domain.NetworkPublic); !ok {
		errs = append(errs, errors.New("prices: networks.public.horizon_url is required"))
	}
	if c.Prices.UpdateInterval <= 0 {
		errs = append(errs, errors.New("prices.update_interval must be positive"))
	}
	if c.Prices.BatchSize <= 0 {
		errs = append(errs, errors.New("prices.batch_size must be positive"))
	}
	if c.Prices.Timeout <= 0 {
		errs = append(errs, errors.New("prices.timeout must be positive"))
	}
	if c.Prices.TargetCount <= 0 {
		errs = append(errs, errors.New("prices.target_count must be positive"))
	}
	if c.Prices.BatchDelay < 0 || c.Prices.PageDelay < 0 {
		errs = append(errs, errors.New("prices: batch_delay and page_delay must not be negative"))
	}
	if c.Prices.Retention < 24*time.Hour {
		errs = append(errs, errors.New("prices.retention must cover at least 24h"))
	}
	if c.Prices.TopAssetsURL == "" {
		errs = append(errs, errors.New("prices.top_assets_url is required"))
	}
	return errs
}

func (c *Config) usesBackend(b string) bool {
	return c.Cache.Backend == b || c.Flag.Backend == b || c.Prices.Backend == b
}

func networkKey(n domain.Network) string {
	return strings.ToLower(string(n))
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
