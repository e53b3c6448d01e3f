package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Database metrics
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Credential lifecycle metrics
	credentialEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_events_total",
			Help: "Total number of credential lifecycle events",
		},
		[]string{"proof_type", "action", "status", "service"},
	)

	signingOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signing_operations_total",
			Help: "Total number of credential signing operations",
		},
		[]string{"status", "service"},
	)

	// Blockchain metrics
	chainTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_transactions_total",
			Help: "Total number of blockchain transactions",
		},
		[]string{"function", "status", "service"},
	)

	chainTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_transaction_duration_seconds",
			Help:    "Duration of blockchain transactions in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
		},
		[]string{"function", "service"},
	)

	// Storage gateway metrics
	storageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of content storage operations",
		},
		[]string{"operation", "status", "service"},
	)

	storageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of content storage operations in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"operation", "service"},
	)

	// Record access metrics
	recordAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_access_total",
			Help: "Total number of medical record access attempts",
		},
		[]string{"access_type", "status", "service"},
	)

	integrityViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integrity_violations_total",
			Help: "Total number of content hash mismatches detected on download",
		},
		[]string{"service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		dbQueryDuration,
		credentialEventsTotal,
		signingOperationsTotal,
		chainTransactionsTotal,
		chainTransactionDuration,
		storageOperationsTotal,
		storageOperationDuration,
		recordAccessTotal,
		integrityViolationsTotal,
		systemErrors,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordCredentialEvent records credential lifecycle metrics
func (m *MetricsCollector) RecordCredentialEvent(proofType, action, status string) {
	credentialEventsTotal.WithLabelValues(proofType, action, status, m.serviceName).Inc()
}

// RecordSigningOperation records credential signing metrics
func (m *MetricsCollector) RecordSigningOperation(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	signingOperationsTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordChainTransaction records blockchain transaction metrics
func (m *MetricsCollector) RecordChainTransaction(function, status string, duration time.Duration) {
	chainTransactionsTotal.WithLabelValues(function, status, m.serviceName).Inc()
	chainTransactionDuration.WithLabelValues(function, m.serviceName).Observe(duration.Seconds())
}

// RecordStorageOperation records content storage metrics
func (m *MetricsCollector) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperationsTotal.WithLabelValues(operation, status, m.serviceName).Inc()
	storageOperationDuration.WithLabelValues(operation, m.serviceName).Observe(duration.Seconds())
}

// RecordRecordAccess records medical record access metrics
func (m *MetricsCollector) RecordRecordAccess(accessType, status string) {
	recordAccessTotal.WithLabelValues(accessType, status, m.serviceName).Inc()
}

// RecordIntegrityViolation records a content hash mismatch
func (m *MetricsCollector) RecordIntegrityViolation() {
	integrityViolationsTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
