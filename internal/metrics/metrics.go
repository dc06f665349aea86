// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Intake results
const (
	IntakeCreated        = "created"
	IntakeConflict       = "conflict"
	IntakeMalformed      = "malformed"
	IntakeClassification = "classification_error"
	IntakeStorage        = "storage_error"
)

var (
	// HTTP request counter
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heart_intake_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heart_intake_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Active HTTP connections gauge
	HTTPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heart_intake_http_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	IntakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heart_intake_intakes_total",
			Help: "Patient intake attempts by result",
		},
		[]string{"result"},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heart_intake_predictions_total",
			Help: "Diagnostic predictions by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordIntake records the result of one intake attempt
func RecordIntake(result string) {
	IntakesTotal.WithLabelValues(result).Inc()
}

// RecordPrediction records a classifier outcome
func RecordPrediction(outcome int) {
	PredictionsTotal.WithLabelValues(strconv.Itoa(outcome)).Inc()
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	HTTPActiveConnections.Dec()
}
