package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps an engine error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, dexengine.ErrOperationPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, dexengine.ErrRiskRejected):
		return http.StatusForbidden
	case errors.Is(err, dexengine.ErrWalletNotConnected):
		return http.StatusConflict
	case dexengine.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, dexengine.ErrApprovalFailed),
		errors.Is(err, dexengine.ErrTransactionReverted),
		errors.Is(err, dexengine.ErrSigningRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dexengine.ErrNetwork),
		errors.Is(err, dexengine.ErrSubmission):
		return http.StatusBadGateway
	case errors.Is(err, dexengine.ErrQuoterUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
