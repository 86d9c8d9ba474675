// Package metrics provides Prometheus metrics for the ingestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportsTotal tracks finished imports by schema and outcome
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmingest",
			Subsystem: "import",
			Name:      "imports_total",
			Help:      "Total number of imports by schema and outcome",
		},
		[]string{"schema", "outcome"},
	)

	// ImportDuration tracks import duration in seconds
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmingest",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Duration of imports in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"schema"},
	)

	// RowsTotal tracks processed rows by final status
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmingest",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total number of processed rows by status",
		},
		[]string{"schema", "status"},
	)

	// DialectsDetected tracks detected encodings and delimiters
	DialectsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmingest",
			Subsystem: "detect",
			Name:      "dialects_total",
			Help:      "Total number of detected dialects by encoding and delimiter",
		},
		[]string{"encoding", "delimiter", "confident"},
	)

	// DecodeFailures tracks uploads no candidate encoding could decode
	DecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crmingest",
			Subsystem: "detect",
			Name:      "decode_failures_total",
			Help:      "Total number of uploads that could not be decoded",
		},
	)

	// MappingConfidence tracks the share of headers mapped per batch
	MappingConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmingest",
			Subsystem: "mapping",
			Name:      "confidence_ratio",
			Help:      "Share of source headers mapped onto canonical fields",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"schema"},
	)

	// ImportsInFlight tracks imports currently holding a limiter slot
	ImportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crmingest",
			Subsystem: "import",
			Name:      "in_flight",
			Help:      "Number of imports currently running",
		},
	)

	// HTTPRequestsTotal tracks inbound API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmingest",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmingest",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
)

// RecordImport records a finished import
func RecordImport(schema, outcome string, durationSeconds float64) {
	ImportsTotal.WithLabelValues(schema, outcome).Inc()
	ImportDuration.WithLabelValues(schema).Observe(durationSeconds)
}

// RecordRows adds n rows with the given status
func RecordRows(schema, status string, n int) {
	if n <= 0 {
		return
	}
	RowsTotal.WithLabelValues(schema, status).Add(float64(n))
}

// RecordDialect records a detected dialect
func RecordDialect(encoding, delimiter string, confident bool) {
	c := "true"
	if !confident {
		c = "false"
	}
	DialectsDetected.WithLabelValues(encoding, delimiter, c).Inc()
}

// RecordDecodeFailure records an undecodable upload
func RecordDecodeFailure() {
	DecodeFailures.Inc()
}

// RecordMapping records the mapping confidence of a batch
func RecordMapping(schema string, confidence float64) {
	MappingConfidence.WithLabelValues(schema).Observe(confidence)
}

// RecordHTTPRequest records an API request
func RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
