package apperr

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreUnavailableKeepsCause(t *testing.T) {
	err := StoreUnavailable("find session", sql.ErrConnDone)

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "find session")
	assert.Nil(t, StoreUnavailable("noop", nil))
}

func TestKindOf(t *testing.T) {
	cases := map[string]error{
		"invalid_credentials": ErrInvalidCredentials,
		"already_exists":      ErrAlreadyExists,
		"invalid_token":       ErrInvalidToken,
		"expired":             ErrExpired,
		"revoked":             ErrRevoked,
		"malformed_claims":    ErrMalformedClaims,
		"store_unavailable":   StoreUnavailable("x", errors.New("dial tcp")),
		"rate_limit_exceeded": ErrRateLimitExceeded,
		"internal":            errors.New("boom"),
		"":                    nil,
	}
	for want, err := range cases {
		assert.Equal(t, want, KindOf(err))
	}
}

func TestIsDomain(t *testing.T) {
	assert.True(t, IsDomain(ErrRevoked))
	assert.True(t, IsDomain(ErrInvalidCredentials))
	assert.False(t, IsDomain(StoreUnavailable("x", errors.New("down"))))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.False(t, IsDomain(nil))
}
