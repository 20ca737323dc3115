package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics exposed by the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	invoiceSMS      *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
}

// NewMetrics builds a private registry with the base metrics registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Number of HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	invoiceSMS := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_invoice_sms_total",
		Help: "Invoice SMS attempts by outcome.",
	}, []string{"status"})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_upstream_errors_total",
		Help: "Failed calls to the backoffice API by operation.",
	}, []string{"operation"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_total",
		Help: "Background jobs processed by type and outcome.",
	}, []string{"type", "outcome"})
	registry.MustRegister(requests, duration, invoiceSMS, upstream, jobs)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		invoiceSMS:      invoiceSMS,
		upstreamErrors:  upstream,
		jobsTotal:       jobs,
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
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

// ObserveInvoiceSMS counts an invoice SMS outcome.
func (m *Metrics) ObserveInvoiceSMS(status string) {
	if m == nil {
		return
	}
	m.invoiceSMS.WithLabelValues(status).Inc()
}

// ObserveUpstreamError counts a failed backoffice call.
func (m *Metrics) ObserveUpstreamError(operation string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(operation).Inc()
}

// ObserveJob counts a processed background job.
func (m *Metrics) ObserveJob(taskType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.jobsTotal.WithLabelValues(taskType, outcome).Inc()
}

// Registerer exposes the registry for additional collectors.
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
