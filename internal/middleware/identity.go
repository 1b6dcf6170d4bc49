package middleware

// identity.go holds the context keys and header helpers shared by the
// middleware in this package and by the handlers.

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys set by the middleware.
const (
	ContextUserEmail = "user_email"
	ContextRequestID = "request_id"
)

// SubjectResolver decodes a bearer token without failing the request.
type SubjectResolver interface {
	BestEffortSubject(token string) (string, bool)
}

// BearerToken returns the token from an "Authorization: Bearer <token>"
// header, or false when the header is missing or uses another scheme.
func BearerToken(c echo.Context) (string, bool) {
	raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

// callerLabel names the caller for logs: the verified email when JWTAuth
// ran, otherwise the best-effort token subject, otherwise "anonymous".
func callerLabel(c echo.Context, r SubjectResolver) string {
	if v, ok := c.Get(ContextUserEmail).(string); ok && v != "" {
		return v
	}
	if r != nil {
		if tok, ok := BearerToken(c); ok {
			if sub, ok := r.BestEffortSubject(tok); ok {
				return sub
			}
		}
	}
	return "anonymous"
}
