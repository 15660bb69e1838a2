// ABOUTME: Prometheus metrics for fieldbook on a private registry
// ABOUTME: Records gate decisions, account outcomes, rate limiting and HTTP requests; serves the scrape handler

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/fieldbook/internal/auth"
)

const namespace = "fieldbook"

// Metrics holds the fieldbook collectors.
type Metrics struct {
	registry *prometheus.Registry

	GateDecisions   *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	Logins          *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var (
	_ auth.GateRecorder    = (*Metrics)(nil)
	_ auth.AccountRecorder = (*Metrics)(nil)
)

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_gate_decisions_total",
				Help:      "Requests seen by the authentication gate, by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Account registration attempts, by outcome",
			},
			[]string{"outcome"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts, by outcome",
			},
			[]string{"outcome"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_rate_limited_total",
				Help:      "Register and login requests refused by the per-IP rate limit, by path",
			},
			[]string{"path"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests, by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency, by method and route pattern",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.registry.MustRegister(
		m.GateDecisions,
		m.Registrations,
		m.Logins,
		m.RateLimited,
		m.RequestsTotal,
		m.RequestDuration,
	)

	return m
}

// ObserveGate implements auth.GateRecorder.
func (m *Metrics) ObserveGate(outcome string) {
	m.GateDecisions.WithLabelValues(outcome).Inc()
}

// ObserveRegistration implements auth.AccountRecorder.
func (m *Metrics) ObserveRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

// ObserveLogin implements auth.AccountRecorder.
func (m *Metrics) ObserveLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

// ObserveRateLimited counts a request refused by the auth rate limit.
func (m *Metrics) ObserveRateLimited(path string) {
	m.RateLimited.WithLabelValues(path).Inc()
}

// ObserveRequest records one completed HTTP request. route should be the
// router pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry so callers can add their own
// collectors, such as database pool stats.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
