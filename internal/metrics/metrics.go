// Package metrics registers and records the Prometheus instrumentation for
// extraction, bulk jobs, enrichment and the learning engine. All record
// helpers are safe to call before InitMetrics; they become no-ops.
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

	// iocExtractedTotal tracks extracted indicators by type and confidence
	iocExtractedTotal *prometheus.CounterVec

	// extractionDuration tracks latency of a full extraction pass
	extractionDuration prometheus.Histogram

	// jobsTotal tracks job terminations by final status
	jobsTotal *prometheus.CounterVec

	// jobsActive tracks jobs currently occupying an engine slot
	jobsActive prometheus.Gauge

	// jobItemsTotal tracks per-record outcomes across all jobs
	jobItemsTotal *prometheus.CounterVec

	// jobItemDuration tracks per-record processing latency
	jobItemDuration prometheus.Histogram

	// jobErrorsTotal tracks accumulated job errors by error type
	jobErrorsTotal *prometheus.CounterVec

	// enrichmentErrorsTotal tracks upstream enrichment failures by type
	enrichmentErrorsTotal *prometheus.CounterVec

	// feedbackTotal tracks feedback submissions by type and validation outcome
	feedbackTotal *prometheus.CounterVec

	// modelVersion exposes the active learning model version
	modelVersion prometheus.Gauge
)

// InitMetrics registers all Prometheus metrics.
// This should be called once at application startup
func InitMetrics() {
	metricsOnce.Do(func() {
		iocExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_iocs_extracted_total",
				Help: "Total number of extracted indicators by type and confidence",
			},
			[]string{"type", "confidence"},
		)

		extractionDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harrier_extraction_duration_seconds",
				Help:    "Duration of a full extraction pass in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_jobs_total",
				Help: "Total number of bulk jobs by final status",
			},
			[]string{"status"},
		)

		jobsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harrier_jobs_active",
				Help: "Number of jobs currently holding an engine slot",
			},
		)

		jobItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_job_items_total",
				Help: "Total number of processed records by outcome",
			},
			[]string{"status"},
		)

		jobItemDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harrier_job_item_duration_seconds",
				Help:    "Per-record processing duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
		)

		jobErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_job_errors_total",
				Help: "Total number of job errors by error type",
			},
			[]string{"error_type"},
		)

		enrichmentErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_enrichment_errors_total",
				Help: "Total number of enrichment failures by error type",
			},
			[]string{"error_type"},
		)

		feedbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_feedback_total",
				Help: "Total number of feedback submissions by type and validation outcome",
			},
			[]string{"type", "validated"},
		)

		modelVersion = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harrier_model_version",
				Help: "Version of the active learning model",
			},
		)
	})
}

// RecordExtraction records one extracted indicator
func RecordExtraction(iocType, confidence string) {
	if iocExtractedTotal != nil {
		iocExtractedTotal.WithLabelValues(iocType, confidence).Inc()
	}
}

// RecordExtractionDuration records the duration of one extraction pass
func RecordExtractionDuration(duration time.Duration) {
	if extractionDuration != nil {
		extractionDuration.Observe(duration.Seconds())
	}
}

// RecordJobFinished records a job reaching a terminal status
// status: "completed", "failed", "cancelled"
func RecordJobFinished(status string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
}

// RecordJobSlot adjusts the active-jobs gauge; pass +1 on start, -1 on finish
func RecordJobSlot(delta float64) {
	if jobsActive != nil {
		jobsActive.Add(delta)
	}
}

// RecordJobItem records one per-record outcome
// status: "success", "failed", "skipped", "duplicate"
func RecordJobItem(status string, duration time.Duration) {
	if jobItemsTotal != nil {
		jobItemsTotal.WithLabelValues(status).Inc()
	}
	if jobItemDuration != nil {
		jobItemDuration.Observe(duration.Seconds())
	}
}

// RecordJobError records one accumulated job error by type
func RecordJobError(errorType string) {
	if jobErrorsTotal != nil {
		jobErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

// RecordEnrichmentError records one upstream enrichment failure
// errorType: a taxonomy type such as "timeout_error" or "rate_limit_error",
// plus "circuit_open" when the breaker trips
func RecordEnrichmentError(errorType string) {
	if enrichmentErrorsTotal != nil {
		enrichmentErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

// RecordFeedback records one feedback submission
func RecordFeedback(feedbackType string, validated bool) {
	if feedbackTotal != nil {
		v := "false"
		if validated {
			v = "true"
		}
		feedbackTotal.WithLabelValues(feedbackType, v).Inc()
	}
}

// SetModelVersion publishes the active model version
func SetModelVersion(version int) {
	if modelVersion != nil {
		modelVersion.Set(float64(version))
	}
}

// Timer is a helper for timing extraction and per-record operations
type Timer struct {
	start   time.Time
	observe func(time.Duration)
}

// StartExtractionTimer creates a timer that feeds the extraction histogram
func StartExtractionTimer() *Timer {
	return &Timer{start: time.Now(), observe: RecordExtractionDuration}
}

// ObserveDuration records the elapsed time since the timer started
func (t *Timer) ObserveDuration() {
	if t != nil {
		t.observe(time.Since(t.start))
	}
}
