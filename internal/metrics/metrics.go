// Package metrics defines the Prometheus metrics for VPanel.
//
// Metric naming follows Prometheus conventions:
//   - vpanel_ prefix for all custom metrics
//   - _total suffix for counters
//
// A *Metrics is registered against an injected registry so tests can use a
// fresh one. Every method is safe to call on a nil *Metrics, which lets
// packages accept metrics as an optional dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the application records into.
type Metrics struct {
	registry *prometheus.Registry

	// LoginsTotal counts login attempts by outcome
	// (success, invalid_credentials, inactive, error).
	LoginsTotal *prometheus.CounterVec

	// SessionResolutionsTotal counts session lookups by resolution
	// (valid, not_found, expired, revoked, inactive, error).
	SessionResolutionsTotal *prometheus.CounterVec

	// RateLimitRejectionsTotal counts 429s by limiter name.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// SessionsReapedTotal counts expired session rows deleted by the reaper.
	SessionsReapedTotal prometheus.Counter
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, with a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpanel_logins_total",
				Help: "Total login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		SessionResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpanel_session_resolutions_total",
				Help: "Total session token resolutions by result.",
			},
			[]string{"result"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpanel_rate_limit_rejections_total",
				Help: "Total requests rejected by a rate limiter.",
			},
			[]string{"limiter"},
		),
		SessionsReapedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vpanel_sessions_reaped_total",
				Help: "Total expired sessions deleted by the hygiene job.",
			},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoginsTotal,
		m.SessionResolutionsTotal,
		m.RateLimitRejectionsTotal,
		m.SessionsReapedTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLogin increments the login counter.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolution increments the session resolution counter.
func (m *Metrics) ObserveResolution(result string) {
	if m == nil {
		return
	}
	m.SessionResolutionsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimited increments the rejection counter for limiter.
func (m *Metrics) ObserveRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(limiter).Inc()
}

// ObserveReaped adds n reaped sessions.
func (m *Metrics) ObserveReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsReapedTotal.Add(float64(n))
}
