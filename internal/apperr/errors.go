// Package apperr defines the error kinds shared by the session manager, the
// token codec and the admission controller. Handlers branch on them with
// errors.Is and translate each kind into an HTTP response; nothing in this
// package knows about HTTP.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by login for an unknown email or a
	// wrong password. Both cases share this single value.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyExists is returned by signup when the email is registered.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidToken covers bad signatures, wrong algorithms, garbage input
	// and refresh tokens that match no session.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired is returned for lapsed access tokens and expired sessions.
	ErrExpired = errors.New("expired")
	// ErrRevoked is returned when a refresh token's session was revoked.
	ErrRevoked = errors.New("revoked")
	// ErrMalformedClaims is returned when a signed token carries no subject.
	ErrMalformedClaims = errors.New("malformed claims")
	// ErrStoreUnavailable wraps failures of the durable or counter store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRateLimitExceeded is the admission controller's denial.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// StoreUnavailable wraps cause so that errors.Is matches both
// ErrStoreUnavailable and the original driver error.
func StoreUnavailable(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, cause)
}

// KindOf returns a stable snake_case name for err, used in JSON bodies,
// log fields and metric labels. Unknown errors report "internal".
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrMalformedClaims):
		return "malformed_claims"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limit_exceeded"
	default:
		return "internal"
	}
}

// IsDomain reports whether err is one of the caller-actionable kinds, as
// opposed to an infrastructure or programming failure.
func IsDomain(err error) bool {
	switch KindOf(err) {
	case "", "internal", "store_unavailable":
		return false
	}
	return true
}
