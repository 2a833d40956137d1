package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"stellar-wallet-core/internal/domain"
)

// statusFor maps an error to an HTTP status by its taxonomy kind.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPublicKey), errors.Is(err, domain.ErrUnsupportedNetwork):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrNoPathFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrServiceTimeout), errors.Is(err, domain.ErrPriceCalculationTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrTransientUpstream), errors.Is(err, domain.ErrAuthExpired):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders handler errors as {"error": "..."}.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		status := statusFor(err)
		msg := err.Error()
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			status = herr.Code
			if m, ok := herr.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(herr.Code)
			}
		}

		if status >= http.StatusInternalServerError {
			e.Logger.Error(err)
		}
		if ctx.Request().Method == http.MethodHead {
			_ = ctx.NoContent(status)
			return
		}
		_ = ctx.JSON(status, map[string]string{"error": msg})
	}
}
