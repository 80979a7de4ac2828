// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eardbi/bike-builds-api/internal/cache"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

// PriceHistoryResponse is the contract of the price query endpoints.
type PriceHistoryResponse struct {
	PartID model.ID             `json:"part_id"`
	Points []pricedb.PricePoint `json:"points"`
}

// resolvePart loads the part named by the {id} path segment, or responds.
func (s *Server) resolvePart(w http.ResponseWriter, r *http.Request) (model.ID, bool) {
	id := model.ID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
		return "", false
	}

	if _, err := s.store.Get(r.Context(), model.CollectionParts, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
			return "", false
		}
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldPartID, string(id)).
			Msg("loading part failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return "", false
	}
	return id, true
}

// handlePriceHistory implements GET /api/v1/parts/{id}/prices. The optional
// since query parameter (RFC 3339) bounds the history.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	partID, ok := s.resolvePart(w, r)
	if !ok {
		return
	}

	rawSince := r.URL.Query().Get("since")
	var since time.Time
	if rawSince != "" {
		parsed, err := time.Parse(time.RFC3339, rawSince)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, ErrValidationFailed,
				map[string]string{"since": "must be an RFC 3339 timestamp"})
			return
		}
		since = parsed
	}

	key := cache.HistoryKey(partID, rawSince)
	if payload, hit := s.cache.Get(key); hit {
		recordCacheHit()
		writeCached(w, payload, true)
		return
	}
	recordCacheMiss()

	points, err := s.prices.History(r.Context(), partID, since)
	if err != nil {
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldEvent, "prices.history_failed").
			Str(bblog.FieldPartID, string(partID)).
			Msg("loading price history failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	s.respondPoints(w, r, key, partID, points)
}

// handleLatestPrice implements GET /api/v1/parts/{id}/prices/latest: the
// most recent observation per shop and variant.
func (s *Server) handleLatestPrice(w http.ResponseWriter, r *http.Request) {
	partID, ok := s.resolvePart(w, r)
	if !ok {
		return
	}

	key := cache.LatestKey(partID)
	if payload, hit := s.cache.Get(key); hit {
		recordCacheHit()
		writeCached(w, payload, true)
		return
	}
	recordCacheMiss()

	points, err := s.prices.Latest(r.Context(), partID)
	if err != nil {
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldEvent, "prices.latest_failed").
			Str(bblog.FieldPartID, string(partID)).
			Msg("loading latest prices failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	s.respondPoints(w, r, key, partID, points)
}

// respondPoints serializes a price response once, caches it, and writes it.
func (s *Server) respondPoints(w http.ResponseWriter, r *http.Request, key string, partID model.ID, points []pricedb.PricePoint) {
	if points == nil {
		points = []pricedb.PricePoint{}
	}
	payload, err := json.Marshal(PriceHistoryResponse{PartID: partID, Points: points})
	if err != nil {
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldPartID, string(partID)).
			Msg("encoding price response failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	s.cache.Set(key, payload, s.currentConfig().Cache.TTL)
	writeCached(w, payload, false)
}
