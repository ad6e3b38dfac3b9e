// Package metrics provides Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesRecorded counts ledger events, partitioned by action and origin.
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polytrack_trades_recorded_total",
		Help: "Total trade events appended to the paper ledger",
	}, []string{"action", "origin"})

	// SnapshotsInserted counts new price snapshots persisted per cycle.
	SnapshotsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polytrack_snapshots_inserted_total",
		Help: "Price snapshots inserted (duplicates excluded)",
	})

	// MarketsTracked is the number of live markets in the catalog.
	MarketsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polytrack_markets_tracked",
		Help: "Markets currently tracked by the collector",
	})

	// CollectorCycles counts completed collector cycles.
	CollectorCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polytrack_collector_cycles_total",
		Help: "Completed market discovery and snapshot cycles",
	})

	// CollectorErrors counts cycles that finished with partial failures.
	CollectorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polytrack_collector_errors_total",
		Help: "Collector cycles with at least one provider error",
	})

	// CollectorCycleDuration tracks how long a full cycle takes.
	CollectorCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polytrack_collector_cycle_duration_seconds",
		Help:    "Duration of a collector cycle in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// RecurringRuns counts daily recurring-order placement runs.
	RecurringRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polytrack_recurring_runs_total",
		Help: "Daily recurring order placement runs",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polytrack_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polytrack_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
