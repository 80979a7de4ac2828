// SPDX-License-Identifier: MIT

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bba_api_cache_hits_total",
		Help: "Number of API responses served from the read cache",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bba_api_cache_misses_total",
		Help: "Number of API responses built from the stores",
	})

	itemWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bba_api_item_writes_total",
		Help: "Number of catalog items written through the API",
	}, []string{"collection"})
)

func recordCacheHit() {
	cacheHitsTotal.Inc()
}

func recordCacheMiss() {
	cacheMissesTotal.Inc()
}

func recordItemWrite(collection string) {
	itemWritesTotal.WithLabelValues(collection).Inc()
}
