package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_leads_created_total",
			Help: "Total number of leads stored",
		},
		[]string{"source"},
	)

	paymentConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_payment_confirmations_total",
			Help: "Payment confirmations by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	leadSyncFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funnel_lead_sync_failures_total",
			Help: "Lead syncs that ended in the dead-letter queue",
		},
	)

	previewLimits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_preview_limit_reached_total",
			Help: "Preview plays stopped at the free listening limit",
		},
		[]string{"origin"},
	)

	abandonedCartNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funnel_abandoned_cart_notified_total",
			Help: "Recovery emails queued by the abandoned cart sweeper",
		},
	)

	abandonedCartErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funnel_abandoned_cart_errors_total",
			Help: "Per-lead errors reported by the abandoned cart sweeper",
		},
	)

	emailsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_emails_dispatched_total",
			Help: "Queued emails processed by the dispatcher",
		},
		[]string{"template", "status"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern keeps label cardinality bounded to the registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordLeadCreated(source string) {
	leadsCreated.WithLabelValues(source).Inc()
}

func RecordPaymentConfirmation(provider, outcome string) {
	paymentConfirmations.WithLabelValues(provider, outcome).Inc()
}

func RecordLeadSyncFailure() {
	leadSyncFailures.Inc()
}

func RecordPreviewLimit(origin string) {
	previewLimits.WithLabelValues(origin).Inc()
}

func RecordAbandonedCartSweep(notified, errors int) {
	abandonedCartNotified.Add(float64(notified))
	abandonedCartErrors.Add(float64(errors))
}

func RecordEmail(template, status string) {
	emailsDispatched.WithLabelValues(template, status).Inc()
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
