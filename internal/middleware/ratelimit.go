package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/promptvault/internal/ratelimit"
)

// RateLimit admits or rejects every request before it reaches a handler.
// The path picks the policy, the bearer subject or client address picks
// the counter. A nil limiter disables the check entirely.
func RateLimit(table *ratelimit.PolicyTable, keys ratelimit.KeyBuilder, lim *ratelimit.Limiter, m *Metrics) echo.MiddlewareFunc {
	if lim == nil || table == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			policy := table.Classify(req.URL.Path)
			key := keys.Build(policy.Category, req.Header.Get(echo.HeaderAuthorization), c.RealIP())

			d := lim.Admit(req.Context(), policy, key)
			m.ObserveAdmission(policy.Category, d)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))

			if !d.Allowed {
				secs := int(d.RetryAfter.Seconds())
				h.Set(echo.HeaderRetryAfter, strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":               "rate_limit_exceeded",
					"message":             "Too many requests. Please slow down.",
					"retry_after_seconds": secs,
					"limit":               d.Limit,
					"window_seconds":      int(d.Window.Seconds()),
				})
			}
			return next(c)
		}
	}
}
