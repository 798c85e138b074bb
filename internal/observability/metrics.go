package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RastersProcessed prometheus.Counter
	PointsExtracted  prometheus.Counter
	FilesWritten     prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchUnits          prometheus.Histogram
	BatchRunDuration    prometheus.Histogram
	UnitFailures        *prometheus.CounterVec   // labels: stage={read,clip,extract,write}
	SitePointsPerRaster *prometheus.HistogramVec // labels: site
	FetchRequests       *prometheus.CounterVec   // labels: product, outcome={success,error,skipped}
	FetchDuration       prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RastersProcessed,
		m.PointsExtracted,
		m.FilesWritten,
		m.PipelineRunning,
		m.BatchUnits,
		m.BatchRunDuration,
		m.UnitFailures,
		m.SitePointsPerRaster,
		m.FetchRequests,
		m.FetchDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RastersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coral_etl",
			Name:      "rasters_processed_total",
			Help:      "Total daily raster files read and clipped.",
		}),
		PointsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coral_etl",
			Name:      "points_extracted_total",
			Help:      "Total valid grid points extracted across all sites.",
		}),
		FilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coral_etl",
			Name:      "files_written_total",
			Help:      "Total output files stored.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coral_etl",
			Name:      "pipeline_running",
			Help:      "1 when a batch run is active, 0 otherwise.",
		}),
		BatchUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coral_etl",
			Name:      "batch_units",
			Help:      "Number of raster-site units per batch run.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		BatchRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coral_etl",
			Name:      "batch_run_duration_seconds",
			Help:      "Duration of a complete batch run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}),
		UnitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coral_etl",
			Name:      "unit_failures_total",
			Help:      "Failed raster-site units by pipeline stage.",
		}, []string{"stage"}),
		SitePointsPerRaster: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coral_etl",
			Name:      "site_points_per_raster",
			Help:      "Valid points extracted for a site from one raster.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"site"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coral_etl",
			Name:      "fetch_requests_total",
			Help:      "Archive download attempts by product and outcome.",
		}, []string{"product", "outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coral_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Archive download duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
