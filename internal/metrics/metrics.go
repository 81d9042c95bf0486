// Package metrics provides Prometheus metrics for time-zone conversions and
// meeting resolutions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// conversionsTotal records calls to the conversion service.
	// Labels:
	//   - status: "success" or "error"
	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzmeet_conversions_total",
			Help: "Total number of time zone conversion calls",
		},
		[]string{"status"},
	)

	// conversionDuration records the latency of conversion calls.
	// Buckets: 50ms to 10s
	conversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tzmeet_conversion_duration_seconds",
			Help:    "Duration of time zone conversion calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// resolutionsTotal records meeting resolutions.
	// Labels:
	//   - outcome: "success" or "degraded"
	//   - kind: error kind for degraded outcomes ("invalid_input", "conversion_service"), empty on success
	//   - step: name of the step that failed ("user_zone"), empty on success
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzmeet_resolutions_total",
			Help: "Total number of meeting time resolutions",
		},
		[]string{"outcome", "kind", "step"},
	)
)

func init() {
	prometheus.MustRegister(conversionsTotal)
	prometheus.MustRegister(conversionDuration)
	prometheus.MustRegister(resolutionsTotal)
}

// RecordConversion records one conversion call with its status and duration.
func RecordConversion(status string, durationSeconds float64) {
	conversionsTotal.WithLabelValues(status).Inc()
	conversionDuration.Observe(durationSeconds)
}

// RecordResolution records a successful resolution.
func RecordResolution() {
	resolutionsTotal.WithLabelValues("success", "", "").Inc()
}

// RecordDegradedResolution records a resolution that collapsed to error markers.
func RecordDegradedResolution(kind, step string) {
	resolutionsTotal.WithLabelValues("degraded", kind, step).Inc()
}
