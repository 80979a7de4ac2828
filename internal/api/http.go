// SPDX-License-Identifier: MIT

// Package api implements the HTTP surface of the catalog service: CRUD on
// catalog collections, price history queries, scrape planning and result
// ingest, and the sync job trigger.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eardbi/bike-builds-api/internal/cache"
	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/config"
	"github.com/eardbi/bike-builds-api/internal/health"
	"github.com/eardbi/bike-builds-api/internal/jobs"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
	"github.com/eardbi/bike-builds-api/internal/scrape"
)

// Server carries the wiring for all HTTP handlers.
type Server struct {
	mu       sync.RWMutex
	syncing  atomic.Bool
	scraping atomic.Bool

	cfg    config.AppConfig
	store  catalog.Store
	prices *pricedb.DB
	cache  cache.Cache
	health *health.Manager

	// scraper drives worker-backed scrape passes. Nil when no worker URL
	// is configured; the run endpoint then answers SCRAPER_DISABLED.
	scraper *scrape.Runner

	// status holds the outcome of the most recent catalog sync. Guarded by mu.
	status jobs.Status

	// syncFn runs a catalog sync. Tests swap it for a stub.
	syncFn func(ctx context.Context, cfg jobs.Config) (*jobs.Status, error)

	startTime time.Time
}

// Handler returns the fully wired HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
