// Package observability wires Prometheus metrics for the HTTP surface
// and the authorization core.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authzDecisions   *prometheus.CounterVec
	reconcileTicks   *prometheus.CounterVec
	reconcileChanges *prometheus.CounterVec
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridscape_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridscape_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridscape_authz_decisions_total",
		Help: "Authorization decisions by operation and outcome.",
	}, []string{"operation", "outcome"})
	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridscape_reconcile_ticks_total",
		Help: "Expiry reconciler sweeps by result.",
	}, []string{"result"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridscape_reconcile_region_changes_total",
		Help: "Region access changes detected by the reconciler.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, decisions, ticks, changes)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		authzDecisions:   decisions,
		reconcileTicks:   ticks,
		reconcileChanges: changes,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveDecision counts one authorization decision.
func (m *Metrics) ObserveDecision(operation string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.authzDecisions.WithLabelValues(operation, outcome).Inc()
}

// ObserveReconcileTick counts one reconciler sweep.
func (m *Metrics) ObserveReconcileTick(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconcileTicks.WithLabelValues(result).Inc()
}

// ObserveRegionChanges counts detected region additions and removals.
func (m *Metrics) ObserveRegionChanges(added, removed int) {
	if m == nil {
		return
	}
	if added > 0 {
		m.reconcileChanges.WithLabelValues("added").Add(float64(added))
	}
	if removed > 0 {
		m.reconcileChanges.WithLabelValues("removed").Add(float64(removed))
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
