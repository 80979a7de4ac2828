// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"time"

	"github.com/eardbi/bike-builds-api/internal/cache"
	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/config"
	"github.com/eardbi/bike-builds-api/internal/health"
	"github.com/eardbi/bike-builds-api/internal/jobs"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
	"github.com/eardbi/bike-builds-api/internal/scrape"
)

// Deps bundles the stateful dependencies of the API server. Store and
// Prices are required; Cache and Health fall back to no-op implementations
// so tests and minimal deployments can omit them.
type Deps struct {
	Store  catalog.Store
	Prices *pricedb.DB
	Cache  cache.Cache
	Health *health.Manager

	// Scraper is optional; without it POST /api/v1/scrape/run is disabled.
	Scraper *scrape.Runner
}

// New constructs the API server.
func New(cfg config.AppConfig, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("api: catalog store is required")
	}
	if deps.Prices == nil {
		return nil, fmt.Errorf("api: price database is required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoop()
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version)
	}

	return &Server{
		cfg:       cfg,
		store:     deps.Store,
		prices:    deps.Prices,
		cache:     deps.Cache,
		health:    deps.Health,
		scraper:   deps.Scraper,
		syncFn:    jobs.Sync,
		startTime: time.Now(),
	}, nil
}
