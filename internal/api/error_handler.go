package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. The
// optional fields let the client render lockout countdowns and rate-limit
// notices with actionable timing information.
type errorResponse struct {
	Error            string `json:"error"`
	Locked           bool   `json:"locked,omitempty"`
	LockoutRemaining int    `json:"lockout_remaining,omitempty"`
	Attempts         int    `json:"attempts,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps the domain error taxonomy to deterministic HTTP status codes.
//   - Keeps transport failures generic: the client gets "try again", not
//     technical detail.
//   - Logs unexpected errors internally without leaking details.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, errorResponse{Error: validation.Error()}
	}
	var invalidCode *domain.InvalidCodeError
	if errors.As(err, &invalidCode) {
		return http.StatusBadRequest, errorResponse{Error: invalidCode.Error()}
	}
	var locked *domain.LockedError
	if errors.As(err, &locked) {
		return http.StatusForbidden, errorResponse{
			Error:            locked.Error(),
			Locked:           true,
			LockoutRemaining: int(locked.Duration.Seconds()),
		}
	}
	var limited *domain.RateLimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, errorResponse{
			Error:    limited.Error(),
			Attempts: limited.Attempts,
		}
	}
	var transport *domain.TransportError
	if errors.As(err, &transport) {
		// Degrade to a generic message without technical detail.
		log.Warn().Err(transport).Msg("identity service unreachable")
		return http.StatusBadGateway, errorResponse{Error: "service temporarily unavailable, please try again"}
	}

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrSessionInvalid):
		return http.StatusUnauthorized, errorResponse{Error: "not authenticated"}
	case errors.Is(err, domain.ErrFlowLocked):
		return http.StatusForbidden, errorResponse{Error: "account is temporarily locked", Locked: true}
	case errors.Is(err, domain.ErrCooldownActive):
		return http.StatusBadRequest, errorResponse{Error: "resend is not available yet"}
	case errors.Is(err, domain.ErrRequestInFlight), errors.Is(err, domain.ErrFlowPhase):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUnknownPurpose):
		return http.StatusNotFound, errorResponse{Error: "unknown flow"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
