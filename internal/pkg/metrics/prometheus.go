package metrics

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
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of admin API requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skuprice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin API request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// Pipeline metrics
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	pipelineRunsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "pipeline",
			Name:      "runs_skipped_total",
			Help:      "Triggers skipped because a run was already active",
		},
	)

	stageResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "pipeline",
			Name:      "stage_results_total",
			Help:      "Stage outcomes by stage and status",
		},
		[]string{"stage", "status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skuprice",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	rowsRefreshed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "skuprice",
			Subsystem: "store",
			Name:      "rows_refreshed",
			Help:      "Rows written by the last successful refresh of each table",
		},
		[]string{"table"},
	)

	fieldCoercionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "extractor",
			Name:      "coercion_errors_total",
			Help:      "Capability values that did not fit their declared type",
		},
		[]string{"resource_type"},
	)

	// Retail prices API metrics
	pricingPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "pricing",
			Name:      "pages_fetched_total",
			Help:      "Retail price pages fetched successfully",
		},
	)

	pricingRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "pricing",
			Name:      "page_retries_total",
			Help:      "Retail price page requests that needed a retry",
		},
	)

	pricingAmbiguousMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skuprice",
			Subsystem: "pricing",
			Name:      "ambiguous_matches_total",
			Help:      "Price columns with more than one matching rate for a (name, location) key",
		},
		[]string{"column"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skuprice",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records a finished pipeline run
func RecordRun(trigger, status string) {
	pipelineRunsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordRunSkipped records a trigger that found a run already active
func RecordRunSkipped() {
	pipelineRunsSkipped.Inc()
}

// RecordStage records the outcome and duration of one pipeline stage
func RecordStage(stage, status string, duration time.Duration) {
	stageResultsTotal.WithLabelValues(stage, status).Inc()
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetRowsRefreshed sets the row count of the last committed refresh of table
func SetRowsRefreshed(table string, rows int) {
	rowsRefreshed.WithLabelValues(table).Set(float64(rows))
}

// RecordCoercionError counts one capability coercion failure
func RecordCoercionError(resourceType string) {
	fieldCoercionErrors.WithLabelValues(resourceType).Inc()
}

// RecordPricingPage counts a fetched retail price page
func RecordPricingPage() {
	pricingPagesTotal.Inc()
}

// RecordPricingRetry counts a retried retail price page request
func RecordPricingRetry() {
	pricingRetriesTotal.Inc()
}

// RecordAmbiguousMatch counts a price column resolved from several candidate rates
func RecordAmbiguousMatch(column string) {
	pricingAmbiguousMatches.WithLabelValues(column).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
