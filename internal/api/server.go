// Package api exposes the wallet core over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v2"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/orchestrator"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/verification"
)

// DataAccess is the orchestrator surface served by the API.
type DataAccess interface {
	GetAccountHistory(ctx context.Context, pubKey string, network domain.Network, useIndexer bool) *orchestrator.HistoryResult
	GetAccountBalances(ctx context.Context, pubKey string, contractIDs []string, network domain.Network, useIndexer bool) *orchestrator.BalancesResult
	TokenDetails(ctx context.Context, pubKey, contractID string, network domain.Network, fetchBalance bool) (*domain.TokenDetails, error)
	AccountSubscription(ctx context.Context, pubKey string, network domain.Network) orchestrator.SubscriptionResult
	TokenSubscription(ctx context.Context, pubKey, contractID string, network domain.Network) orchestrator.SubscriptionResult
	TokenBalanceSubscription(ctx context.Context, pubKey, contractID string, network domain.Network) orchestrator.SubscriptionResult
	SubmitTransaction(ctx context.Context, envelopeXDR string, network domain.Network) (*stellar.SubmitResult, error)
}

// Prices answers token price lookups.
type Prices interface {
	GetPrices(ctx context.Context, tokens []string) map[string]domain.TokenPrice
}

// Auditor compares a whole account history across sources.
type Auditor interface {
	Audit(ctx context.Context, pubKey string) (*verification.AuditReport, error)
}

// Options configures a Server. Prices, Auditor and Feed are optional; their
// routes answer 503 when unset.
type Options struct {
	Data     DataAccess
	Prices   Prices
	Auditor  Auditor
	Feed     *PriceFeed
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server is the HTTP surface.
type Server struct {
	echo    *echo.Echo
	data    DataAccess
	prices  Prices
	auditor Auditor
	feed    *PriceFeed
	log     zerolog.Logger
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	log := opts.Logger.With().Str("component", "api").Logger()
	elog := lecho.From(log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = elog
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler(e)
	e.Use(lecho.Middleware(lecho.Config{Logger: elog}))

	s := &Server{
		echo:    e,
		data:    opts.Data,
		prices:  opts.Prices,
		auditor: opts.Auditor,
		feed:    opts.Feed,
		log:     log,
	}

	e.GET("/health", s.Health)
	e.GET("/metrics", echo.WrapHandler(observability.Handler(opts.Gatherer)))

	v1 := e.Group("/api/v1")
	v1.GET("/account-history/:pubKey", s.AccountHistory)
	v1.GET("/account-balances/:pubKey", s.AccountBalances)
	v1.GET("/token-details/:contractId", s.TokenDetails)
	v1.GET("/token-prices", s.TokenPrices)
	v1.GET("/consistency/:pubKey", s.Consistency)
	v1.POST("/subscription/account", s.SubscribeAccount)
	v1.POST("/subscription/token", s.SubscribeToken)
	v1.POST("/subscription/token-balance", s.SubscribeTokenBalance)
	v1.POST("/submit-tx", s.SubmitTransaction)
	v1.GET("/ws/prices", s.PriceStream)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health reports liveness.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}
