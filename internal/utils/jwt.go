package utils // package utils provides helpers for credential hashing and token creation

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens

	"github.com/iliyamo/promptvault/internal/apperr"
)

// DefaultAccessTTL is used when no lifetime is configured.
const DefaultAccessTTL = 30 * time.Minute

// signingMethod is the only algorithm this service signs with or accepts.
var signingMethod = jwt.SigningMethodHS256

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and travel in the Authorization header.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenCodec mints and verifies access tokens. It is stateless apart from
// its configuration and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec returns a codec signing with secret. A non-positive ttl
// selects DefaultAccessTTL.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source used for iat/exp and for expiry checks.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL reports the lifetime given to minted tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Mint builds and signs an HS256 JWT whose subject is the caller identity.
func (c *TokenCodec) Mint(subject string) (AccessToken, error) {
	if subject == "" {
		return AccessToken{}, apperr.ErrMalformedClaims
	}
	now := c.now().UTC()
	exp := now.Add(c.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature, algorithm and expiry and returns the subject.
// It never consults a store, so a token stays valid until it expires.
func (c *TokenCodec) Verify(raw string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	tok, err := parser.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		// WithValidMethods already filters; the second check keeps the pin
		// explicit if the parser options ever change.
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.ErrExpired
		}
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return "", apperr.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", apperr.ErrMalformedClaims
	}
	return claims.Subject, nil
}

// BestEffortSubject returns the subject of a valid token, or false. Every
// decode failure is swallowed: callers use it where an unresolved identity
// simply means "anonymous".
func (c *TokenCodec) BestEffortSubject(raw string) (string, bool) {
	if c == nil || raw == "" {
		return "", false
	}
	sub, err := c.Verify(raw)
	if err != nil {
		return "", false
	}
	return sub, true
}
