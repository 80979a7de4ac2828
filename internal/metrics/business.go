// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus metrics of the price tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog metrics
	catalogItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bba_catalog_items",
		Help: "Catalog items stored per collection (last sync)",
	}, []string{"collection"})

	syncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bba_sync_duration_seconds",
		Help:    "Duration of catalog sync runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 12), // 10ms .. ~20s
	})

	lastSyncTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bba_last_sync_timestamp",
		Help: "Timestamp of the last successful catalog sync (Unix timestamp)",
	})

	syncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bba_sync_failures_total",
		Help: "Total number of catalog sync failures by stage",
	}, []string{"stage"}) // stage=read catalog dir|decode catalog|check references|store catalog|export catalog

	// Scrape metrics
	scrapeResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bba_scrape_results_total",
		Help: "Scrape results processed by outcome",
	}, []string{"outcome"}) // outcome=accepted|dropped

	pricePointsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bba_price_points_written_total",
		Help: "Total number of price points written to the price database",
	})

	scrapeTargetsPlanned = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bba_scrape_targets_planned",
		Help: "Scrape targets produced per shop by the last plan",
	}, []string{"shop"})

	// Operational metrics
	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bba_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})
)

// RecordCollectionCount records the stored item count of one collection.
func RecordCollectionCount(collection string, n int) {
	catalogItems.WithLabelValues(collection).Set(float64(n))
}

// RecordSyncDuration records a successful sync run.
func RecordSyncDuration(seconds float64) {
	syncDurationSeconds.Observe(seconds)
	lastSyncTimestamp.Set(float64(time.Now().Unix()))
}

func IncSyncFailure(stage string) { syncFailuresTotal.WithLabelValues(stage).Inc() }

// RecordIngestReport records the outcome of one scrape-results ingest.
func RecordIngestReport(accepted, dropped, pointsWritten int) {
	scrapeResultsTotal.WithLabelValues("accepted").Add(float64(accepted))
	scrapeResultsTotal.WithLabelValues("dropped").Add(float64(dropped))
	pricePointsWrittenTotal.Add(float64(pointsWritten))
}

// RecordPlannedTargets records how many scrape targets a shop's plan holds.
func RecordPlannedTargets(shop string, n int) {
	scrapeTargetsPlanned.WithLabelValues(shop).Set(float64(n))
}

func IncConfigValidationError() { configValidationErrors.Inc() }

// SyncRecorder adapts the package functions to the recorder interface the
// jobs package consumes.
type SyncRecorder struct{}

func (SyncRecorder) RecordCollectionCount(collection string, n int) {
	RecordCollectionCount(collection, n)
}

func (SyncRecorder) RecordSyncDuration(seconds float64) { RecordSyncDuration(seconds) }

func (SyncRecorder) IncSyncFailure(stage string) { IncSyncFailure(stage) }
