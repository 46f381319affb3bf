// Package metrics exposes Prometheus collectors for the mirror pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal           *prometheus.CounterVec
	httpRetriesTotal     prometheus.Counter
	runsTotal            *prometheus.CounterVec
	downloadDurationSecs prometheus.Histogram
	inflightDownloads    prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdmirror_pages_total",
				Help: "Total number of page downloads, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mdmirror_http_retries_total",
				Help: "Total number of transient-failure retries issued by the session client.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdmirror_runs_total",
				Help: "Total number of mirror runs, labeled by status.",
			},
			[]string{"status"},
		)

		downloadDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mdmirror_download_duration_seconds",
				Help:    "Histogram of per-document download latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		inflightDownloads = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mdmirror_inflight_downloads",
				Help: "Number of document downloads currently in flight.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for the given outcome.
func ObservePage(outcome string, duration time.Duration) {
	if pagesTotal == nil {
		return
	}
	pagesTotal.WithLabelValues(outcome).Inc()
	downloadDurationSecs.Observe(duration.Seconds())
}

// ObserveRetry increments the session retry counter.
func ObserveRetry() {
	if httpRetriesTotal == nil {
		return
	}
	httpRetriesTotal.Inc()
}

// ObserveRun increments the run counter for the given status.
func ObserveRun(status string) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(status).Inc()
}

// IncInflight increments the in-flight download gauge.
func IncInflight() {
	if inflightDownloads == nil {
		return
	}
	inflightDownloads.Inc()
}

// DecInflight decrements the in-flight download gauge.
func DecInflight() {
	if inflightDownloads == nil {
		return
	}
	inflightDownloads.Dec()
}
