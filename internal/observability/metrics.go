package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	feesGenerated   prometheus.Counter
	allocationsRun  prometheus.Counter
	overdueFees     *prometheus.GaugeVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "centerdesk_http_requests_total",
		Help: "HTTP request count by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "centerdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	feesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "centerdesk_fees_generated_total",
		Help: "Fee obligations created by the generator.",
	})
	allocationsRun := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "centerdesk_payment_allocations_total",
		Help: "Payment allocation runs completed.",
	})
	overdueFees := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "centerdesk_overdue_fees",
		Help: "Unsettled fee obligations past their due date, per center.",
	}, []string{"center"})
	registry.MustRegister(requests, duration, feesGenerated, allocationsRun, overdueFees)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		feesGenerated:   feesGenerated,
		allocationsRun:  allocationsRun,
		overdueFees:     overdueFees,
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

// AddFeesGenerated increments the generated-fees counter.
func (m *Metrics) AddFeesGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.feesGenerated.Add(float64(n))
}

// IncAllocations increments the allocation-run counter.
func (m *Metrics) IncAllocations() {
	if m == nil {
		return
	}
	m.allocationsRun.Inc()
}

// SetOverdueFees records the overdue obligation count for a center.
func (m *Metrics) SetOverdueFees(centerID int64, count int) {
	if m == nil {
		return
	}
	m.overdueFees.WithLabelValues(strconv.FormatInt(centerID, 10)).Set(float64(count))
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
