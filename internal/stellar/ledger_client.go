package stellar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stellar-wallet-core/internal/domain"
)

// HorizonClient implements LedgerAPI over the Horizon REST API.
type HorizonClient struct {
	baseURL string
	cfg     clientConfig
	stream  *http.Client
}

// Compile-time interface check.
var _ LedgerAPI = (*HorizonClient)(nil)

// NewHorizonClient creates a new Horizon client.
func NewHorizonClient(baseURL string, opts ...ClientOption) *HorizonClient {
	return &HorizonClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     newClientConfig(opts),
		// The ledger stream is long lived and must not inherit the request timeout.
		stream: &http.Client{},
	}
}

func (c *HorizonClient) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	body, err := c.cfg.do(ctx, SourceLedgerAPI, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, true)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

// accountNotFound maps a 404 into the typed unfunded error.
func accountNotFound(err error) error {
	var uerr *domain.UpstreamError
	if errors.As(err, &uerr) && uerr.Status == http.StatusNotFound {
		return domain.NewUpstreamErrorKind(SourceLedgerAPI, uerr.Status, uerr.Message, domain.ErrAccountNotFound)
	}
	return err
}

type horizonAccount struct {
	ID            string           `json:"id"`
	Sequence      string           `json:"sequence"`
	SubentryCount int              `json:"subentry_count"`
	NumSponsoring int              `json:"num_sponsoring"`
	NumSponsored  int              `json:"num_sponsored"`
	Balances      []AccountBalance `json:"balances"`
}

// AccountDetail loads an account.
func (c *HorizonClient) AccountDetail(ctx context.Context, accountID string) (*Account, error) {
	var result horizonAccount
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountID), nil, &result); err != nil {
		return nil, accountNotFound(err)
	}

	seq, err := strconv.ParseInt(result.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sequence %q: %w", result.Sequence, err)
	}

	return &Account{
		ID:            result.ID,
		Sequence:      seq,
		SubentryCount: result.SubentryCount,
		NumSponsoring: result.NumSponsoring,
		NumSponsored:  result.NumSponsored,
		Balances:      result.Balances,
	}, nil
}

type horizonPage[T any] struct {
	Embedded struct {
		Records []T `json:"records"`
	} `json:"_embedded"`
}

// AccountOperations returns raw operation records for an account.
func (c *HorizonClient) AccountOperations(ctx context.Context, accountID string, opts *OperationsOpts) ([]OperationRecord, error) {
	q := url.Values{}
	if opts != nil {
		if opts.Cursor != "" {
			q.Set("cursor", opts.Cursor)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Order != "" {
			q.Set("order", opts.Order)
		}
		if opts.IncludeFailed {
			q.Set("include_failed", "true")
		}
	}

	var page horizonPage[OperationRecord]
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountID)+"/operations", q, &page); err != nil {
		return nil, accountNotFound(err)
	}
	return page.Embedded.Records, nil
}

// LedgerOperations returns raw operation records included in a ledger.
func (c *HorizonClient) LedgerOperations(ctx context.Context, sequence int64, limit int) ([]OperationRecord, error) {
	q := url.Values{}
	q.Set("order", "asc")
	q.Set("include_failed", "true")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var page horizonPage[OperationRecord]
	if err := c.get(ctx, "/ledgers/"+strconv.FormatInt(sequence, 10)+"/operations", q, &page); err != nil {
		return nil, err
	}
	return page.Embedded.Records, nil
}

type horizonPool struct {
	ID          string `json:"id"`
	FeeBP       int    `json:"fee_bp"`
	TotalShares string `json:"total_shares"`
	Reserves    []struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	} `json:"reserves"`
}

// LiquidityPool loads a liquidity pool by id.
func (c *HorizonClient) LiquidityPool(ctx context.Context, poolID string) (*domain.LiquidityPool, error) {
	var result horizonPool
	if err := c.get(ctx, "/liquidity_pools/"+url.PathEscape(poolID), nil, &result); err != nil {
		return nil, err
	}

	shares, err := decimal.NewFromString(result.TotalShares)
	if err != nil {
		return nil, fmt.Errorf("parse total shares: %w", err)
	}

	pool := &domain.LiquidityPool{
		ID:          result.ID,
		FeeBP:       result.FeeBP,
		TotalShares: shares,
	}
	for _, r := range result.Reserves {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse reserve amount: %w", err)
		}
		pool.Reserves = append(pool.Reserves, domain.LiquidityPoolReserve{Asset: r.Asset, Amount: amount})
	}
	return pool, nil
}

type horizonPath struct {
	SourceAmount      string `json:"source_amount"`
	DestinationAmount string `json:"destination_amount"`
	Path              []struct {
		AssetType   string `json:"asset_type"`
		AssetCode   string `json:"asset_code"`
		AssetIssuer string `json:"asset_issuer"`
	} `json:"path"`
}

// StrictReceivePaths finds paths that deliver exactly DestinationAmount of the destination asset.
func (c *HorizonClient) StrictReceivePaths(ctx context.Context, req PathsRequest) ([]Path, error) {
	code, issuer, ok := strings.Cut(req.DestinationAsset, ":")
	if !ok {
		return nil, fmt.Errorf("destination asset %q: expected CODE:ISSUER", req.DestinationAsset)
	}

	q := url.Values{}
	q.Set("source_assets", req.SourceAsset)
	q.Set("destination_asset_type", AssetType(code))
	q.Set("destination_asset_code", code)
	q.Set("destination_asset_issuer", issuer)
	q.Set("destination_amount", req.DestinationAmount)

	var page horizonPage[horizonPath]
	if err := c.get(ctx, "/paths/strict-receive", q, &page); err != nil {
		return nil, err
	}

	paths := make([]Path, 0, len(page.Embedded.Records))
	for _, r := range page.Embedded.Records {
		p := Path{SourceAmount: r.SourceAmount, DestinationAmount: r.DestinationAmount}
		for _, hop := range r.Path {
			p.Hops = append(p.Hops, ClassicKey(hop.AssetCode, hop.AssetIssuer))
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type horizonSubmitProblem struct {
	Extras struct {
		ResultCodes struct {
			Transaction string `json:"transaction"`
		} `json:"result_codes"`
	} `json:"extras"`
}

// SubmitTransaction submits a signed envelope.
func (c *HorizonClient) SubmitTransaction(ctx context.Context, envelopeXDR string) (*SubmitResult, error) {
	form := url.Values{}
	form.Set("tx", envelopeXDR)
	encoded := form.Encode()

	body, err := c.cfg.do(ctx, SourceLedgerAPI, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, false)
	if err != nil {
		var uerr *domain.UpstreamError
		if errors.As(err, &uerr) && len(uerr.Body) > 0 {
			var problem horizonSubmitProblem
			if json.Unmarshal(uerr.Body, &problem) == nil {
				uerr.Code = problem.Extras.ResultCodes.Transaction
			}
		}
		return nil, err
	}

	var result SubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal submit result: %w", err)
	}
	return &result, nil
}
