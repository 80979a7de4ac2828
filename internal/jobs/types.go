// SPDX-License-Identifier: MIT

package jobs

import (
	"time"

	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/model"
)

// Status reports the outcome of a catalog sync.
type Status struct {
	JobID      string                       `json:"job_id"`
	LastRun    time.Time                    `json:"last_run"`
	DurationMS int64                        `json:"duration_ms"`
	Files      int                          `json:"files"`
	Items      int                          `json:"items"`
	Counts     map[model.CollectionName]int `json:"counts"`
	Error      string                       `json:"error,omitempty"`
}

// Config carries the inputs of a catalog sync.
type Config struct {
	// CatalogDir holds the catalog documents (*.yaml, *.yml, *.json). The
	// filename stem names the collection a document belongs to.
	CatalogDir string

	// DataDir receives the exported catalog.json.
	DataDir string

	Store catalog.Store

	// Metrics receives sync outcomes. Nil disables recording.
	Metrics MetricsRecorder
}

// MetricsRecorder defines the interface for recording sync metrics
type MetricsRecorder interface {
	RecordCollectionCount(collection string, count int)
	RecordSyncDuration(seconds float64)
	IncSyncFailure(stage string)
}

func (c Config) metrics() MetricsRecorder {
	if c.Metrics == nil {
		return noopMetrics{}
	}
	return c.Metrics
}

type noopMetrics struct{}

func (noopMetrics) RecordCollectionCount(string, int) {}
func (noopMetrics) RecordSyncDuration(float64)        {}
func (noopMetrics) IncSyncFailure(string)             {}
