package ratelimit

import "strings"

// SubjectResolver decodes a bearer token into a caller identity, reporting
// false for anything it cannot verify. utils.TokenCodec implements it.
type SubjectResolver interface {
	BestEffortSubject(token string) (string, bool)
}

// KeyBuilder derives the counter key for a request.
type KeyBuilder struct {
	resolver SubjectResolver
}

// NewKeyBuilder returns a builder. A nil resolver keys every request by
// network origin.
func NewKeyBuilder(r SubjectResolver) KeyBuilder { return KeyBuilder{resolver: r} }

// Build returns rate:<category>:user:<subject> for a request carrying a
// valid bearer token and rate:<category>:ip:<addr> otherwise. An invalid or
// expired token silently falls back to the address.
func (b KeyBuilder) Build(category, authorization, remoteAddr string) string {
	if sub, ok := b.subject(authorization); ok {
		return "rate:" + category + ":user:" + sub
	}
	if remoteAddr == "" {
		remoteAddr = "unknown"
	}
	return "rate:" + category + ":ip:" + remoteAddr
}

func (b KeyBuilder) subject(authorization string) (string, bool) {
	if b.resolver == nil {
		return "", false
	}
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return b.resolver.BestEffortSubject(token)
}
