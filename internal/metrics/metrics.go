package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// iocOperationsTotal tracks repository operations by operation and result
	iocOperationsTotal *prometheus.CounterVec

	// authLoginsTotal tracks login attempts by result
	authLoginsTotal *prometheus.CounterVec

	// exportsTotal tracks rendered exports by format
	exportsTotal *prometheus.CounterVec

	// dashboardRefreshDuration tracks how long a stats recomputation takes
	dashboardRefreshDuration prometheus.Histogram

	// iocsByStatus mirrors the latest dashboard snapshot
	iocsByStatus *prometheus.GaugeVec

	// httpClientErrorsTotal tracks outbound HTTP errors by type
	httpClientErrorsTotal *prometheus.CounterVec

	// notificationsTotal tracks outbound notifications by result
	notificationsTotal *prometheus.CounterVec
)

// InitMetrics registers all Prometheus metrics for the console.
// This should be called once at application startup
func InitMetrics() {
	metricsOnce.Do(func() {
		iocOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ioc_operations_total",
				Help: "Total number of IoC repository operations by operation and result",
			},
			[]string{"operation", "result"},
		)

		authLoginsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ioc_auth_logins_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		)

		exportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ioc_exports_total",
				Help: "Total number of IoC exports by format",
			},
			[]string{"format"},
		)

		dashboardRefreshDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ioc_dashboard_refresh_duration_seconds",
				Help:    "Duration of dashboard statistics computation in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		)

		iocsByStatus = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ioc_collection_size",
				Help: "Number of IoCs in the collection by status, as of the last dashboard refresh",
			},
			[]string{"status"},
		)

		httpClientErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ioc_http_client_errors_total",
				Help: "Total number of outbound HTTP errors by error type",
			},
			[]string{"error_type"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ioc_notifications_total",
				Help: "Total number of outbound notifications by result",
			},
			[]string{"result"},
		)
	})
}

// RecordOperation records a repository operation
// operation: "list", "get", "create", "update", "delete"
// result: "success", "not_found", "invalid", "error"
func RecordOperation(operation, result string) {
	if iocOperationsTotal != nil {
		iocOperationsTotal.WithLabelValues(operation, result).Inc()
	}
}

// RecordLogin records a login attempt ("success", "failure")
func RecordLogin(result string) {
	if authLoginsTotal != nil {
		authLoginsTotal.WithLabelValues(result).Inc()
	}
}

func RecordExport(format string) {
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(format).Inc()
	}
}

// RecordCollectionSize publishes per-status counts from a dashboard snapshot.
func RecordCollectionSize(byStatus map[string]int) {
	if iocsByStatus == nil {
		return
	}
	iocsByStatus.Reset()
	for status, n := range byStatus {
		iocsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordHTTPClientError records an outbound HTTP error by type
// errorType: "timeout", "auth", "rate_limit", "server_error", "connection", "circuit_open", "http_error"
func RecordHTTPClientError(errorType string) {
	if httpClientErrorsTotal != nil {
		httpClientErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

func RecordNotification(result string) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result).Inc()
	}
}

// RefreshTimer is a helper for timing dashboard refreshes
type RefreshTimer struct {
	start time.Time
}

func StartRefreshTimer() *RefreshTimer {
	return &RefreshTimer{start: time.Now()}
}

// ObserveDuration records the elapsed time since the timer started
func (t *RefreshTimer) ObserveDuration() {
	if t != nil && dashboardRefreshDuration != nil {
		dashboardRefreshDuration.Observe(time.Since(t.start).Seconds())
	}
}
