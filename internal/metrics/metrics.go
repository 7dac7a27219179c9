// Package metrics counts flow outcomes and dashboard requests for /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "oauth_playground"

// Metrics owns its registry so several instances can live side by side in tests.
type Metrics struct {
	registry *prometheus.Registry

	exchanges     *prometheus.CounterVec
	profiles      *prometheus.CounterVec
	persists      *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Token exchanges by provider and result",
		}, []string{"provider", "result"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_fetches_total",
			Help:      "Profile fetches by provider and result",
		}, []string{"provider", "result"}),
		persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Credential persist attempts by platform and result",
		}, []string{"platform", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard requests",
		}, []string{"method", "route", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.exchanges, m.profiles, m.persists, m.httpRequests, m.httpDurations,
	)
	return m
}

func (m *Metrics) ObserveExchange(provider, result string) {
	m.exchanges.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) ObserveProfileFetch(provider, result string) {
	m.profiles.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) ObservePersist(platform, result string) {
	m.persists.WithLabelValues(platform, result).Inc()
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by chi route pattern, never by raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

var Module = fx.Module("metrics",
	fx.Provide(
		New,
		func(m *Metrics) flow.Observer { return m },
		func(m *Metrics) persistence.Observer { return m },
	),
)
