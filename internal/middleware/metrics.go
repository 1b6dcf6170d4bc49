package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/ratelimit"
)

// Metrics holds the HTTP and admission collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	admissions *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptvault_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_errors_total",
			Help: "Errors returned to clients by kind; class is domain or internal.",
		}, []string{"class", "kind"}),
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_rate_limit_decisions_total",
			Help: "Admission decisions by category and outcome.",
		}, []string{"category", "outcome"}),
	}
}

// Middleware records the count and latency of every request.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m == nil {
			return next
		}
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveError counts an error answered by a handler.
func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	class := "internal"
	if apperr.IsDomain(err) {
		class = "domain"
	}
	m.errors.WithLabelValues(class, apperr.KindOf(err)).Inc()
}

// ObserveAdmission counts one admission decision.
func (m *Metrics) ObserveAdmission(category string, d ratelimit.Decision) {
	if m == nil {
		return
	}
	outcome := "allowed"
	switch {
	case d.FailedOpen:
		outcome = "failed_open"
	case !d.Allowed:
		outcome = "denied"
	}
	m.admissions.WithLabelValues(category, outcome).Inc()
}
