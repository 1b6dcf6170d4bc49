package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/middleware"
	"github.com/iliyamo/promptvault/internal/service"
)

// errorResponder turns service errors into JSON responses. Every kind gets
// its own error code; internal failures are logged and reported without
// detail.
type errorResponder struct {
	log     *zap.Logger
	metrics *middleware.Metrics
}

func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password"
	case errors.Is(err, apperr.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "Token is not valid"
	case errors.Is(err, apperr.ErrExpired):
		return http.StatusUnauthorized, "expired", "Token has expired"
	case errors.Is(err, apperr.ErrRevoked):
		return http.StatusUnauthorized, "revoked", "Session has been revoked"
	case errors.Is(err, apperr.ErrMalformedClaims):
		return http.StatusUnauthorized, "malformed_claims", "Token is missing required claims"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "already_exists", "User already exists"
	case errors.Is(err, apperr.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please slow down."
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable", "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again later."
	}
}

func (r errorResponder) write(c echo.Context, err error) error {
	status, code, msg := statusFor(err)
	if !errors.Is(err, service.ErrInvalidInput) {
		r.metrics.ObserveError(err)
	}
	if status >= http.StatusInternalServerError {
		r.log.Error("request failed",
			zap.String("path", c.Request().URL.Path),
			zap.String("kind", code),
			zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}
