package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	transitionsTotal    *prometheus.CounterVec
	quotesExpiredTotal  prometheus.Counter
	optimisticConfirms  prometheus.Counter
	optimisticRollbacks prometheus.Counter
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentra_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_order_transitions_total",
		Help: "Order stage transitions by severity of the confirmation rule.",
	}, []string{"severity"})
	quotesExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentra_quotes_expired_total",
		Help: "Quotes reclassified expired by the sweep.",
	})
	confirms := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentra_optimistic_confirms_total",
		Help: "Optimistic updates confirmed with server state.",
	})
	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentra_optimistic_rollbacks_total",
		Help: "Optimistic updates rolled back.",
	})
	registry.MustRegister(requests, duration, transitions, quotesExpired, confirms, rollbacks)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		transitionsTotal:    transitions,
		quotesExpiredTotal:  quotesExpired,
		optimisticConfirms:  confirms,
		optimisticRollbacks: rollbacks,
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

// ObserveTransition counts a committed stage transition.
func (m *Metrics) ObserveTransition(severity string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(severity).Inc()
}

// ObserveQuotesExpired counts quotes flipped by one sweep pass.
func (m *Metrics) ObserveQuotesExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.quotesExpiredTotal.Add(float64(n))
}

// ObserveOptimisticConfirm counts a confirmed optimistic update.
func (m *Metrics) ObserveOptimisticConfirm() {
	if m != nil {
		m.optimisticConfirms.Inc()
	}
}

// ObserveOptimisticRollback counts a rolled-back optimistic update.
func (m *Metrics) ObserveOptimisticRollback() {
	if m != nil {
		m.optimisticRollbacks.Inc()
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
