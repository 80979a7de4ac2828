// SPDX-License-Identifier: MIT

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestCollectionGaugeValue(t *testing.T) {
	RecordCollectionCount("cranksets", 7)
	assert.Equal(t, 7.0, gaugeValue(t, catalogItems.WithLabelValues("cranksets")))

	// Gauges track the latest sync, not a running total.
	RecordCollectionCount("cranksets", 3)
	assert.Equal(t, 3.0, gaugeValue(t, catalogItems.WithLabelValues("cranksets")))
}

func TestIngestCountersAccumulate(t *testing.T) {
	before := counterValue(t, scrapeResultsTotal.WithLabelValues("accepted"))
	beforeWritten := counterValue(t, pricePointsWrittenTotal)

	RecordIngestReport(4, 1, 3)
	RecordIngestReport(2, 0, 2)

	assert.Equal(t, before+6, counterValue(t, scrapeResultsTotal.WithLabelValues("accepted")))
	assert.Equal(t, beforeWritten+5, counterValue(t, pricePointsWrittenTotal))
}

func TestPlannedTargetsGauge(t *testing.T) {
	RecordPlannedTargets("starbike", 11)
	assert.Equal(t, 11.0, gaugeValue(t, scrapeTargetsPlanned.WithLabelValues("starbike")))
}

func TestSyncFailureCounter(t *testing.T) {
	before := counterValue(t, syncFailuresTotal.WithLabelValues("export catalog"))
	IncSyncFailure("export catalog")
	assert.Equal(t, before+1, counterValue(t, syncFailuresTotal.WithLabelValues("export catalog")))
}

func TestLastSyncTimestampSetOnDuration(t *testing.T) {
	RecordSyncDuration(0.05)
	assert.Greater(t, gaugeValue(t, lastSyncTimestamp), 0.0)
}
