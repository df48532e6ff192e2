package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// blending pipeline.
type Metrics struct {
	ArtifactsPublished prometheus.Counter
	ArtifactsSkipped   prometheus.Counter
	ItemErrors         *prometheus.CounterVec // labels: stage={load,derive,compute,blend,publish}
	BatchRunning       prometheus.Gauge

	// Batch processing metrics.
	BatchDuration prometheus.Histogram
	RunAge        *prometheus.GaugeVec // labels: model

	// Remote delivery metrics.
	UploadDuration prometheus.Histogram
	UploadRetries  prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ArtifactsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwp_blend",
			Name:      "artifacts_published_total",
			Help:      "Total forecast artifacts written locally and transmitted.",
		}),
		ArtifactsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwp_blend",
			Name:      "artifacts_skipped_total",
			Help:      "Total artifacts skipped because they were already published.",
		}),
		ItemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_blend",
			Name:      "item_errors_total",
			Help:      "Per-item failures by pipeline stage.",
		}, []string{"stage"}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nwp_blend",
			Name:      "batch_running",
			Help:      "1 while a batch is being processed, 0 otherwise.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwp_blend",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete discover-blend-publish batch.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		RunAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nwp_blend",
			Name:      "run_age_hours",
			Help:      "Age of the newest complete model run, per model.",
		}, []string{"model"}),
		UploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwp_blend",
			Name:      "remote_upload_duration_seconds",
			Help:      "Duration of one remote upload including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		UploadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwp_blend",
			Name:      "remote_upload_retries_total",
			Help:      "Total upload attempts beyond the first.",
		}),
	}

	prometheus.MustRegister(
		m.ArtifactsPublished,
		m.ArtifactsSkipped,
		m.ItemErrors,
		m.BatchRunning,
		m.BatchDuration,
		m.RunAge,
		m.UploadDuration,
		m.UploadRetries,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ArtifactsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwp_blend", Name: "artifacts_published_total"}),
		ArtifactsSkipped:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwp_blend", Name: "artifacts_skipped_total"}),
		ItemErrors:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "nwp_blend", Name: "item_errors_total"}, []string{"stage"}),
		BatchRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "nwp_blend", Name: "batch_running"}),
		BatchDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwp_blend", Name: "batch_duration_seconds"}),
		RunAge:             prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "nwp_blend", Name: "run_age_hours"}, []string{"model"}),
		UploadDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwp_blend", Name: "remote_upload_duration_seconds"}),
		UploadRetries:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwp_blend", Name: "remote_upload_retries_total"}),
	}
}
