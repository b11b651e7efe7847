// Package metrics holds the process's prometheus collectors: standard HTTP
// request instrumentation plus three gauges specific to this proxy — the
// current running cost, how stale the price catalogue is, and how many
// entries the last catalogue sync upserted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_http_requests_total",
		Help: "Total HTTP requests processed, by method/path/status.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds, by method/path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	RunningCost = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_running_cost",
		Help: "Current process-wide running cost, in display-currency units.",
	})

	CatalogueSyncAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_catalogue_sync_age_seconds",
		Help: "Seconds since the price catalogue last completed a sync cycle.",
	})

	CatalogueEntriesSynced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_catalogue_entries_synced",
		Help: "Number of price entries upserted in the last sync cycle.",
	})
)
