package utils // package utils provides helpers for credential hashing and token creation

import (
	"crypto/rand"     // secure random number generation
	"crypto/sha256"   // SHA-256 hashing for refresh tokens
	"encoding/base64" // URL-safe encoding of opaque tokens
	"encoding/hex"    // hex encoding of token digests
	"time"
)

// opaqueTokenBytes is the entropy of a refresh token: 32 bytes (256 bits)
// encode to 43 URL-safe characters.
const opaqueTokenBytes = 32

// RefreshToken represents a long-lived token used to obtain new access tokens.
// Raw is handed to the client exactly once; only HashToken(Raw) is stored.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// GenerateOpaqueToken returns a random, URL-safe token read from crypto/rand.
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewRefreshToken returns a fresh opaque token that expires ttl after now.
func NewRefreshToken(now time.Time, ttl time.Duration) (RefreshToken, error) {
	raw, err := GenerateOpaqueToken()
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: raw, Exp: now.UTC().Add(ttl)}, nil
}

// HashToken returns the SHA-256 hash of a raw refresh token as a hex string.
// There is no salt: refresh tokens are already high-entropy and are looked
// up by exact match.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
