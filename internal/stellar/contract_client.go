package stellar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/stellar/go/xdr"

	"stellar-wallet-core/internal/domain"
)

// ErrSimulationFailed is returned when the contract RPC reports a simulation error.
var ErrSimulationFailed = errors.New("simulation failed")

// SorobanClient implements ContractRPC using HTTP JSON-RPC 2.0.
type SorobanClient struct {
	endpoint  string
	cfg       clientConfig
	requestID atomic.Uint64
}

// Compile-time interface check.
var _ ContractRPC = (*SorobanClient)(nil)

// NewSorobanClient creates a new Soroban RPC HTTP client.
func NewSorobanClient(endpoint string, opts ...ClientOption) *SorobanClient {
	return &SorobanClient{
		endpoint: endpoint,
		cfg:      newClientConfig(opts),
	}
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call. Transport failures, 429 and 5xx are retried with
// exponential backoff when idempotent is set. RPC errors are not retried.
func (c *SorobanClient) call(ctx context.Context, method string, params interface{}, result interface{}, idempotent bool) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.cfg.do(ctx, SourceContractRPC, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, idempotent)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// AccountSequence returns the current sequence number of an account.
func (c *SorobanClient) AccountSequence(ctx context.Context, accountID string) (int64, error) {
	var aid xdr.AccountId
	if err := aid.SetAddress(accountID); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidPublicKey, err)
	}

	key, err := xdr.MarshalBase64(xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: aid},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal account key: %w", err)
	}

	entries, err := c.GetLedgerEntries(ctx, []string{key})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, domain.NewUpstreamErrorKind(SourceContractRPC, 0, "account "+accountID+" not found", domain.ErrAccountNotFound)
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(entries[0].XDR, &data); err != nil {
		return 0, fmt.Errorf("decode account entry: %w", err)
	}
	if data.Account == nil {
		return 0, fmt.Errorf("ledger entry for %s is not an account", accountID)
	}
	return int64(data.Account.SeqNum), nil
}

type simulateResult struct {
	Error           string `json:"error"`
	LatestLedger    int64  `json:"latestLedger"`
	MinResourceFee  string `json:"minResourceFee"`
	TransactionData string `json:"transactionData"`
	Results         []struct {
		XDR string `json:"xdr"`
	} `json:"results"`
}

// SimulateTransaction simulates a single-operation invocation envelope.
func (c *SorobanClient) SimulateTransaction(ctx context.Context, envelopeXDR string) (*SimulateResult, error) {
	params := map[string]interface{}{"transaction": envelopeXDR}

	var result simulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result, true); err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrSimulationFailed, result.Error)
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("%w: no results", ErrSimulationFailed)
	}

	return &SimulateResult{
		ResultXDR:       result.Results[0].XDR,
		LatestLedger:    result.LatestLedger,
		MinResourceFee:  result.MinResourceFee,
		TransactionData: result.TransactionData,
	}, nil
}

type getLedgerEntriesResult struct {
	Entries      []LedgerEntry `json:"entries"`
	LatestLedger int64         `json:"latestLedger"`
}

// GetLedgerEntries loads raw ledger entries by base64 LedgerKey.
func (c *SorobanClient) GetLedgerEntries(ctx context.Context, keys []string) ([]LedgerEntry, error) {
	params := map[string]interface{}{"keys": keys}

	var result getLedgerEntriesResult
	if err := c.call(ctx, "getLedgerEntries", params, &result, true); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// SendTransaction submits a signed envelope.
func (c *SorobanClient) SendTransaction(ctx context.Context, envelopeXDR string) (*SendResult, error) {
	params := map[string]interface{}{"transaction": envelopeXDR}

	var result SendResult
	if err := c.call(ctx, "sendTransaction", params, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}
