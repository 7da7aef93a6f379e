// Package metrics exposes Prometheus instrumentation for evidence computations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// estimatesTotal counts evidence estimates by unit and result
	estimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_estimates_total",
		Help: "Total harmonic-mean evidence estimates by unit and result",
	}, []string{"unit", "result"})

	// estimateDuration tracks how long decimal estimation takes
	estimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evidence_estimate_duration_seconds",
		Help:    "Evidence estimate duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
	}, []string{"unit"})

	// estimateSamples tracks how many samples feed each estimate
	estimateSamples = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evidence_estimate_samples",
		Help:    "Number of post-burn-in samples per evidence estimate",
		Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
	})

	// comparisonsTotal counts Bayes-factor classifications by outcome
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_comparisons_total",
		Help: "Total Bayes-factor comparisons by favored model and strength",
	}, []string{"favored", "strength"})

	// errorsTotal counts failures by error code
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_errors_total",
		Help: "Total evidence computation errors by code",
	}, []string{"operation", "code"})
)

// ObserveEstimate records a finished estimate
func ObserveEstimate(unit string, samples int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	estimatesTotal.WithLabelValues(unit, result).Inc()
	estimateDuration.WithLabelValues(unit).Observe(elapsed.Seconds())
	if err == nil {
		estimateSamples.Observe(float64(samples))
	}
}

// ObserveComparison records a classification outcome
func ObserveComparison(favored, strength string) {
	comparisonsTotal.WithLabelValues(favored, strength).Inc()
}

// ObserveError records a failed operation by error code
func ObserveError(operation, code string) {
	errorsTotal.WithLabelValues(operation, code).Inc()
}
