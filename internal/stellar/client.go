package stellar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stellar-wallet-core/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Upstream source names used in errors, logs and metrics.
const (
	SourceLedgerAPI   = "ledger_api"
	SourceContractRPC = "contract_rpc"
	SourceIndexer     = "indexer"
	SourceAssetList   = "asset_list"
)

// clientConfig is shared by the HTTP clients of this package.
type clientConfig struct {
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures an HTTP client.
type ClientOption func(*clientConfig)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for idempotent calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.client = client
	}
}

func newClientConfig(opts []ClientOption) clientConfig {
	c := clientConfig{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// do performs a request. Idempotent requests are retried on transient failures with
// exponential backoff. Non-2xx responses are classified into *domain.UpstreamError.
func (c *clientConfig) do(ctx context.Context, source string, newReq func() (*http.Request, error), idempotent bool) ([]byte, error) {
	attempts := 1
	if idempotent {
		attempts += c.maxRetries
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = domain.NewUpstreamError(source, 0, err.Error(), nil)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = domain.NewUpstreamError(source, 0, fmt.Sprintf("read response: %v", err), nil)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		uerr := domain.NewUpstreamError(source, resp.StatusCode, upstreamMessage(body), body)
		if !domain.IsTransient(uerr) {
			return nil, uerr
		}
		lastErr = uerr
	}

	return nil, lastErr
}

// upstreamMessage extracts a readable message from an error payload.
func upstreamMessage(body []byte) string {
	var problem struct {
		Title   string `json:"title"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &problem); err == nil {
		switch {
		case problem.Title != "":
			return problem.Title
		case problem.Message != "":
			return problem.Message
		case problem.Error != "":
			return problem.Error
		case problem.Detail != "":
			return problem.Detail
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
