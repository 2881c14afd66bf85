package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the aging service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reportsTotal    *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	ledgerRows      *prometheus.HistogramVec
}

// NewMetrics initialises the registry with HTTP and report metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_aging_reports_total",
		Help: "Aging reports generated by ledger source and outcome.",
	}, []string{"source", "status"})
	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_aging_report_duration_seconds",
		Help:    "Time spent loading the ledger and building an aging report.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	rows := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_aging_ledger_rows",
		Help:    "Ledger rows read per report run.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"source"})
	registry.MustRegister(requests, duration, reports, reportDuration, rows)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		reportsTotal:    reports,
		reportDuration:  reportDuration,
		ledgerRows:      rows,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
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

// ObserveReport records one report generation run.
func (m *Metrics) ObserveReport(source string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.reportsTotal.WithLabelValues(source, status).Inc()
	m.reportDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err == nil {
		m.ledgerRows.WithLabelValues(source).Observe(float64(rows))
	}
}

// Registerer exposes the registry for custom collectors.
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
