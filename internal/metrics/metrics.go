// Package metrics provides Prometheus metrics collection for the analysis
// pipeline: dataset ingestion, feature assembly, model training and
// selection, and the word-count job.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Dataset metrics
	RowsLoaded     prometheus.Counter // Total number of dataset rows loaded
	RowsDropped    prometheus.Counter // Total number of duplicate rows dropped
	AuditNullCells prometheus.Gauge   // Null cells found by the last audit
	DatasetFetches prometheus.Counter // Total number of dataset downloads

	// Feature metrics
	FeatureVectors prometheus.Counter // Total number of feature vectors assembled
	FeatureErrors  prometheus.Counter // Total number of feature assembly errors

	// Training and selection metrics
	TrainingDuration prometheus.Histogram // Duration of forest training in seconds
	CVFolds          prometheus.Counter   // Total number of cross-validation folds evaluated
	Predictions      prometheus.Counter   // Total number of predictions made
	PredictionFails  prometheus.Counter   // Total number of prediction failures
	TestAccuracy     prometheus.Gauge     // Held-out accuracy of the last run

	// Word-count metrics
	WordcountRuns     prometheus.Counter   // Total number of word-count jobs run
	WordcountDuration prometheus.Histogram // Duration of word-count jobs in seconds

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_rows_loaded_total",
			Help: "Total number of dataset rows loaded",
		}),
		RowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_rows_dropped_total",
			Help: "Total number of duplicate rows dropped",
		}),
		AuditNullCells: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_audit_null_cells",
			Help: "Null cells found by the last dataset audit",
		}),
		DatasetFetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_fetches_total",
			Help: "Total number of dataset downloads",
		}),
		FeatureVectors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_vectors_total",
			Help: "Total number of feature vectors assembled",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature assembly errors",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of forest training in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CVFolds: factory.NewCounter(prometheus.CounterOpts{
			Name: "cv_folds_total",
			Help: "Total number of cross-validation folds evaluated",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions made",
		}),
		PredictionFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of prediction failures",
		}),
		TestAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "test_accuracy",
			Help: "Held-out accuracy of the last experiment run",
		}),
		WordcountRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "wordcount_runs_total",
			Help: "Total number of word-count jobs run",
		}),
		WordcountDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wordcount_duration_seconds",
			Help:    "Duration of word-count jobs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// The methods below satisfy the metrics interfaces declared by the feature
// and classify packages.

func (m *Metrics) FeatureVectorsInc(n int) { m.FeatureVectors.Add(float64(n)) }
func (m *Metrics) FeatureErrorsInc()       { m.FeatureErrors.Inc() }

func (m *Metrics) TrainingDurationObserve(seconds float64) { m.TrainingDuration.Observe(seconds) }
func (m *Metrics) CVFoldsInc()                             { m.CVFolds.Inc() }
func (m *Metrics) PredictionsInc(n int)                    { m.Predictions.Add(float64(n)) }
func (m *Metrics) PredictionFailuresInc()                  { m.PredictionFails.Inc() }
