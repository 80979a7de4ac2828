// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/metrics"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/scrape"
)

// handleIngestScrapeResults implements POST /api/v1/scrape-results. Workers
// report either a keyed envelope or a bare result/list; the bare forms need
// the part (and optionally variant) query parameters for attribution.
func (s *Server) handleIngestScrapeResults(w http.ResponseWriter, r *http.Request) {
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	body, err := readBody(w, r)
	if err != nil {
		respondBodyError(w, r, err)
		return
	}

	results, err := model.DecodeScrapeResults(body)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, err.Error())
		return
	}

	// Attribute the unkeyed envelope forms before ingest drops them.
	if list, ok := results[""]; ok {
		partID := model.ID(r.URL.Query().Get("part"))
		if partID == "" {
			RespondError(w, r, http.StatusBadRequest, ErrValidationFailed,
				"results without keys need the part query parameter")
			return
		}
		variantID := model.ID(r.URL.Query().Get("variant"))
		key := model.ResultKey(partID, variantID)
		if _, _, err := model.ParseResultKey(key); err != nil {
			RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, err.Error())
			return
		}
		delete(results, "")
		results[key] = append(results[key], list...)
	}

	report, err := scrape.Ingest(r.Context(), s.store, s.prices, results, time.Now().UTC())
	if err != nil {
		logger.Error().
			Err(err).
			Str(bblog.FieldEvent, "ingest.failed").
			Msg("scrape result ingest failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	metrics.RecordIngestReport(report.Accepted, report.Dropped, report.PointsWritten)
	if report.PointsWritten > 0 {
		s.cache.Clear()
	}

	writeJSON(w, r, http.StatusOK, report)
}

// resolveShop loads the shop named by the {id} path segment, or responds.
func (s *Server) resolveShop(w http.ResponseWriter, r *http.Request) (*model.Shop, bool) {
	id := model.ID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
		return nil, false
	}

	item, err := s.store.Get(r.Context(), model.CollectionShops, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
			return nil, false
		}
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldShopID, string(id)).
			Msg("loading shop failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return nil, false
	}

	shop, ok := item.(*model.Shop)
	if !ok {
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return nil, false
	}
	return shop, true
}

// ScrapePlanResponse is the GET /shops/{id}/plan contract.
type ScrapePlanResponse struct {
	ShopID  model.ID        `json:"shop_id"`
	Targets []scrape.Target `json:"targets"`
}

// handleScrapePlan implements GET /api/v1/shops/{id}/plan: every page a
// worker should visit for the shop, resolved from the current catalog.
func (s *Server) handleScrapePlan(w http.ResponseWriter, r *http.Request) {
	shop, ok := s.resolveShop(w, r)
	if !ok {
		return
	}
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	items, err := s.store.List(r.Context(), model.CollectionParts)
	if err != nil {
		logger.Error().Err(err).Str(bblog.FieldEvent, "plan.list_failed").Msg("listing parts failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}
	parts := make([]*model.Part, 0, len(items))
	for _, item := range items {
		if part, ok := item.(*model.Part); ok {
			parts = append(parts, part)
		}
	}

	targets, err := scrape.Plan(shop, parts)
	if err != nil {
		// Planning fails when catalog data and scraper config disagree;
		// that is a data problem the caller can fix, not a server fault.
		if model.IsHandled(err) {
			RespondError(w, r, http.StatusUnprocessableEntity, ErrValidationFailed, err.Error())
			return
		}
		logger.Error().
			Err(err).
			Str(bblog.FieldEvent, "plan.failed").
			Str(bblog.FieldShopID, string(shop.ID)).
			Msg("planning scrape targets failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	metrics.RecordPlannedTargets(string(shop.ID), len(targets))

	writeJSON(w, r, http.StatusOK, ScrapePlanResponse{ShopID: shop.ID, Targets: targets})
}

// handleSearchURL implements GET /api/v1/shops/{id}/search: resolve the
// shop's search page URL for a query.
func (s *Server) handleSearchURL(w http.ResponseWriter, r *http.Request) {
	shop, ok := s.resolveShop(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed,
			map[string]string{"query": "query parameter is required"})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"url": scrape.SearchURL(shop, query)})
}

// scrapeRunTimeout bounds one worker-driven scrape pass.
const scrapeRunTimeout = 10 * time.Minute

// handleScrapeRun implements POST /api/v1/scrape/run: one full scrape pass
// through the configured worker, synchronous because the caller wants the
// report. Passes are serialized; a second trigger gets 409.
func (s *Server) handleScrapeRun(w http.ResponseWriter, r *http.Request) {
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	if s.scraper == nil {
		RespondError(w, r, http.StatusServiceUnavailable, ErrScraperDisabled)
		return
	}

	if !s.scraping.CompareAndSwap(false, true) {
		w.Header().Set("Retry-After", "60")
		RespondError(w, r, http.StatusConflict, ErrScrapeInProgress)
		return
	}
	defer s.scraping.Store(false)

	ctx, cancel := context.WithTimeout(r.Context(), scrapeRunTimeout)
	defer cancel()

	report, err := s.scraper.Run(ctx)
	if err != nil {
		logger.Error().
			Err(err).
			Str(bblog.FieldEvent, "scrape.run_failed").
			Msg("scrape pass failed")
		RespondError(w, r, http.StatusBadGateway, ErrScrapeFailed)
		return
	}

	if report.Ingest.PointsWritten > 0 {
		s.cache.Clear()
	}

	writeJSON(w, r, http.StatusOK, report)
}
