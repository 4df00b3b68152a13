package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "usgs_fetch"

// Metrics holds the Prometheus counters, histograms, and gauges for a fetch run.
type Metrics struct {
	RunInProgress prometheus.Gauge

	// Search metrics.
	SearchRequests        *prometheus.CounterVec // labels: outcome={success,error}
	SearchRequestDuration prometheus.Histogram
	SearchPages           prometheus.Counter
	SearchResults         prometheus.Counter
	MalformedRecords      prometheus.Counter
	SearchCache           *prometheus.CounterVec // labels: result={hit,miss}

	// Download metrics.
	Downloads        *prometheus.CounterVec // labels: status={downloaded,skipped,failed,cancelled}
	DownloadRetries  prometheus.Counter
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunInProgress,
		m.SearchRequests,
		m.SearchRequestDuration,
		m.SearchPages,
		m.SearchResults,
		m.MalformedRecords,
		m.SearchCache,
		m.Downloads,
		m.DownloadRetries,
		m.DownloadBytes,
		m.DownloadDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a fetch run is active, 0 otherwise.",
		}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Products API page requests by outcome.",
		}, []string{"outcome"}),
		SearchRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_request_duration_seconds",
			Help:      "Products API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SearchPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_pages_total",
			Help:      "Result pages consumed across all queries.",
		}),
		SearchResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Valid search results yielded across all queries.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_malformed_records_total",
			Help:      "Search records skipped because they could not be downloaded.",
		}),
		SearchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search page cache lookups by result.",
		}, []string{"result"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "File outcomes by status.",
		}, []string{"status"}),
		DownloadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Download attempts beyond the first.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written to completed files.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of a single file download including retries.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}
