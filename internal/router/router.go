package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/promptvault/internal/handler"    // handlers for auth and caller endpoints
	"github.com/iliyamo/promptvault/internal/middleware" // JWT, admission, logging and metrics middleware
	"github.com/iliyamo/promptvault/internal/ratelimit"
	"github.com/iliyamo/promptvault/internal/utils"
)

// Options carries everything New needs to assemble the server.
type Options struct {
	Auth     *handler.AuthHandler
	Codec    *utils.TokenCodec
	Policies *ratelimit.PolicyTable
	Limiter  *ratelimit.Limiter // nil disables admission control
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
	// TrustProxy reads the client address from X-Forwarded-For. Leave it
	// off unless a trusted proxy sets that header, or callers can pick
	// their own rate limit key.
	TrustProxy bool
}

// New builds the Echo instance with the global middleware chain and every
// route registered.  Order matters: metrics see the final status written
// by the request logger, and admission runs before any handler.
func New(o Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	if o.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(o.Metrics.Middleware())
	e.Use(middleware.RequestLogger(o.Log, o.Codec))
	e.Use(middleware.RateLimit(o.Policies, ratelimit.NewKeyBuilder(o.Codec), o.Limiter, o.Metrics))

	RegisterRoutes(e, o.Gatherer)
	RegisterAuth(e, o.Auth, o.Codec)
	return e
}

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, g prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	if g != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}
}

// RegisterAuth registers all authentication-related routes.  Session
// operations live under /api/v1/auth and authenticate with the refresh
// token; caller endpoints live under /api/v1 behind JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec *utils.TokenCodec) {
	g := e.Group("/api/v1/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	// Rotates the refresh token; the old one stops working.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/api/v1", middleware.JWTAuth(codec))
	auth.GET("/profile", a.Profile)
	auth.GET("/sessions", a.ListSessions)
	auth.DELETE("/sessions", a.RevokeAllSessions)
}
