package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/orchestrator"
)

type accountRequest struct {
	PubKey     string `param:"pubKey" validate:"required,stellar_account"`
	Network    string `query:"network" validate:"required,network"`
	UseIndexer string `query:"use_indexer" validate:"omitempty,oneof=true false"`
}

// The binder skips embedded unexported structs, so the account fields are repeated.
type balancesRequest struct {
	PubKey     string `param:"pubKey" validate:"required,stellar_account"`
	Network    string `query:"network" validate:"required,network"`
	UseIndexer string `query:"use_indexer" validate:"omitempty,oneof=true false"`
	Contracts  string `query:"contract_ids"`
}

type tokenDetailsRequest struct {
	ContractID   string `param:"contractId" validate:"required,stellar_contract"`
	PubKey       string `query:"pub_key" validate:"required,stellar_account"`
	Network      string `query:"network" validate:"required,network"`
	FetchBalance bool   `query:"fetch_balance"`
}

type tokenPricesRequest struct {
	Tokens string `query:"tokens" validate:"required"`
}

type subscriptionRequest struct {
	PubKey     string `json:"pub_key" validate:"required,stellar_account"`
	ContractID string `json:"contract_id" validate:"omitempty,stellar_contract"`
	Network    string `json:"network" validate:"required,network"`
}

type submitRequest struct {
	SignedXDR string `json:"signed_xdr" validate:"required,base64"`
	Network   string `json:"network" validate:"required,network"`
}

// bind decodes and validates a request.
func bind(ctx echo.Context, req interface{}) error {
	if err := ctx.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctx.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func network(s string) domain.Network {
	n, _ := domain.ParseNetwork(s)
	return n
}

// useIndexer defaults to true when the query parameter is absent.
func useIndexer(s string) bool {
	return s != "false"
}

// AccountHistory returns the normalized operation history of an account.
func (s *Server) AccountHistory(ctx echo.Context) error {
	var req accountRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	res := s.data.GetAccountHistory(ctx.Request().Context(), req.PubKey, network(req.Network), useIndexer(req.UseIndexer))
	return ctx.JSON(http.StatusOK, newHistoryResponse(res))
}

// AccountBalances returns classic and contract token balances of an account.
func (s *Server) AccountBalances(ctx echo.Context) error {
	var req balancesRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	var contracts []string
	for _, id := range strings.Split(req.Contracts, ",") {
		if id = strings.TrimSpace(id); id != "" {
			contracts = append(contracts, id)
		}
	}

	res := s.data.GetAccountBalances(ctx.Request().Context(), req.PubKey, contracts, network(req.Network), useIndexer(req.UseIndexer))
	return ctx.JSON(http.StatusOK, newBalancesResponse(res))
}

// TokenDetails returns contract token metadata.
func (s *Server) TokenDetails(ctx echo.Context) error {
	var req tokenDetailsRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	details, err := s.data.TokenDetails(ctx.Request().Context(), req.PubKey, req.ContractID, network(req.Network), req.FetchBalance)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, details)
}

// TokenPrices returns current prices for a comma separated token list.
// Tokens without a price are omitted.
func (s *Server) TokenPrices(ctx echo.Context) error {
	if s.prices == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "price cache disabled")
	}
	var req tokenPricesRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	tokens := strings.Split(req.Tokens, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	return ctx.JSON(http.StatusOK, s.prices.GetPrices(ctx.Request().Context(), tokens))
}

// Consistency compares an account's history across the indexer and the ledger API.
func (s *Server) Consistency(ctx echo.Context) error {
	if s.auditor == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "verifier disabled")
	}
	pubKey := ctx.Param("pubKey")
	if err := ctx.Validate(&struct {
		PubKey string `validate:"required,stellar_account"`
	}{pubKey}); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := s.auditor.Audit(ctx.Request().Context(), pubKey)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

// SubscribeAccount registers an indexer account watch.
func (s *Server) SubscribeAccount(ctx echo.Context) error {
	var req subscriptionRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res := s.data.AccountSubscription(ctx.Request().Context(), req.PubKey, network(req.Network))
	return ctx.JSON(http.StatusOK, newSubscriptionResponse(res))
}

// SubscribeToken registers an indexer token transfer watch.
func (s *Server) SubscribeToken(ctx echo.Context) error {
	var req subscriptionRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	if req.ContractID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contract_id is required")
	}
	res := s.data.TokenSubscription(ctx.Request().Context(), req.PubKey, req.ContractID, network(req.Network))
	return ctx.JSON(http.StatusOK, newSubscriptionResponse(res))
}

// SubscribeTokenBalance registers an indexer token balance watch.
func (s *Server) SubscribeTokenBalance(ctx echo.Context) error {
	var req subscriptionRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	if req.ContractID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contract_id is required")
	}
	res := s.data.TokenBalanceSubscription(ctx.Request().Context(), req.PubKey, req.ContractID, network(req.Network))
	return ctx.JSON(http.StatusOK, newSubscriptionResponse(res))
}

// SubmitTransaction submits a signed envelope. Upstream rejections are returned
// with the upstream status and payload.
func (s *Server) SubmitTransaction(ctx echo.Context) error {
	var req submitRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	res, err := s.data.SubmitTransaction(ctx.Request().Context(), req.SignedXDR, network(req.Network))
	var uerr *domain.UpstreamError
	if errors.As(err, &uerr) && len(uerr.Body) > 0 && uerr.Status >= 400 {
		return ctx.JSONBlob(uerr.Status, uerr.Body)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

type historyResponse struct {
	Data  []map[string]any `json:"data"`
	Error *string          `json:"error"`
}

func newHistoryResponse(res *orchestrator.HistoryResult) historyResponse {
	out := historyResponse{Error: errString(res.Error)}
	if res.Data != nil {
		out.Data = make([]map[string]any, 0, len(res.Data))
		for _, e := range res.Data {
			out.Data = append(out.Data, e.Record())
		}
	}
	return out
}

type balanceJSON struct {
	Token              assetJSON      `json:"token"`
	Total              string         `json:"total"`
	Available          string         `json:"available"`
	BuyingLiabilities  string         `json:"buyingLiabilities"`
	SellingLiabilities string         `json:"sellingLiabilities"`
	Limit              *string        `json:"limit,omitempty"`
	Decimals           *int           `json:"decimals,omitempty"`
	Name               string         `json:"name,omitempty"`
	Symbol             string         `json:"symbol,omitempty"`
	LiquidityPool      *liquidityJSON `json:"liquidityPool,omitempty"`
}

type assetJSON struct {
	Type       string `json:"type"`
	Code       string `json:"code,omitempty"`
	Issuer     string `json:"issuer,omitempty"`
	ContractID string `json:"contractId,omitempty"`
	PoolID     string `json:"poolId,omitempty"`
}

type liquidityJSON struct {
	ID          string            `json:"id"`
	FeeBP       int               `json:"feeBp"`
	TotalShares string            `json:"totalShares"`
	Reserves    map[string]string `json:"reserves"`
}

type balancesResponse struct {
	Balances      map[string]balanceJSON `json:"balances"`
	IsFunded      bool                   `json:"isFunded"`
	SubentryCount int                    `json:"subentryCount"`
	Error         balanceErrorsJSON      `json:"error"`
}

type balanceErrorsJSON struct {
	LedgerAPI   *string `json:"ledgerApi"`
	ContractRPC *string `json:"contractRpc"`
}

func newBalancesResponse(res *orchestrator.BalancesResult) balancesResponse {
	out := balancesResponse{
		Balances:      make(map[string]balanceJSON, len(res.Balances)),
		IsFunded:      res.IsFunded,
		SubentryCount: res.SubentryCount,
		Error: balanceErrorsJSON{
			LedgerAPI:   errString(res.Error.LedgerAPI),
			ContractRPC: errString(res.Error.ContractRPC),
		},
	}
	for key, b := range res.Balances {
		out.Balances[key] = newBalanceJSON(b)
	}
	return out
}

func newBalanceJSON(b domain.Balance) balanceJSON {
	out := balanceJSON{
		Token: assetJSON{
			Type:       b.Token.Type,
			Code:       b.Token.Code,
			Issuer:     b.Token.Issuer,
			ContractID: b.Token.ContractID,
			PoolID:     b.Token.PoolID,
		},
		Total:              b.Total.String(),
		Available:          b.Available.String(),
		BuyingLiabilities:  b.BuyingLiabilities.String(),
		SellingLiabilities: b.SellingLiabilities.String(),
		Decimals:           b.Decimals,
		Name:               b.Name,
		Symbol:             b.Symbol,
	}
	if b.Limit != nil {
		limit := b.Limit.String()
		out.Limit = &limit
	}
	if p := b.LiquidityPool; p != nil {
		lp := &liquidityJSON{
			ID:          p.ID,
			FeeBP:       p.FeeBP,
			TotalShares: p.TotalShares.String(),
			Reserves:    make(map[string]string, len(p.Reserves)),
		}
		for _, r := range p.Reserves {
			lp.Reserves[r.Asset] = r.Amount.String()
		}
		out.LiquidityPool = lp
	}
	return out
}

type subscriptionResponse struct {
	Data  bool    `json:"data"`
	Error *string `json:"error"`
}

func newSubscriptionResponse(res orchestrator.SubscriptionResult) subscriptionResponse {
	return subscriptionResponse{Data: res.Data, Error: errString(res.Error)}
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
