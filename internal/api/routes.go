// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eardbi/bike-builds-api/internal/api/middleware"
)

// routes builds the complete router: the middleware stack from the config,
// the public probe endpoints, and the authenticated /api/v1 surface.
func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.LogService,
		EnableLogging:         true,
		RateLimitEnabled:      s.cfg.RateLimit.Enabled,
		RateLimitRPS:          s.cfg.RateLimit.RPS,
		RateLimitBurst:        s.cfg.RateLimit.Burst,
	})

	// Probes stay public so orchestrators can poll without credentials.
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/status", s.handleStatus)
		r.Post("/sync", s.handleSync)

		r.Get("/collections", s.handleListCollections)
		r.Post("/items", s.handleUpsertMixed)

		r.Post("/scrape-results", s.handleIngestScrapeResults)
		r.Post("/scrape/run", s.handleScrapeRun)
		r.Get("/shops/{id}/plan", s.handleScrapePlan)
		r.Get("/shops/{id}/search", s.handleSearchURL)

		r.Get("/parts/{id}/prices", s.handlePriceHistory)
		r.Get("/parts/{id}/prices/latest", s.handleLatestPrice)

		// The static routes above win over the collection wildcards, so
		// /parts/{id}/prices and /parts/{id} coexist.
		r.Get("/{collection}", s.handleListItems)
		r.Post("/{collection}", s.handleUpsertItems)
		r.Get("/{collection}/{id}", s.handleGetItem)
		r.Put("/{collection}/{id}", s.handlePutItem)
		r.Delete("/{collection}/{id}", s.handleDeleteItem)
	})

	return r
}
