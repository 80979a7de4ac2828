// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eardbi/bike-builds-api/internal/cache"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
)

// maxBodyBytes caps request bodies. Catalog uploads carry whole collections,
// so the limit is generous.
const maxBodyBytes = 10 << 20

// readBody drains the request body under the size cap.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return io.ReadAll(r.Body)
}

// respondBodyError maps a body read failure to the right client error.
func respondBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		RespondError(w, r, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge)
		return
	}
	RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, "request body unreadable")
}

// resolveCollection parses the {collection} path segment. Collections
// without an item model (the price stream) reject item operations.
func (s *Server) resolveCollection(w http.ResponseWriter, r *http.Request) (model.CollectionName, bool) {
	raw := chi.URLParam(r, "collection")
	collection, err := model.ParseCollection(raw)
	if err != nil {
		RespondError(w, r, http.StatusNotFound, ErrCollectionUnknown, map[string]string{"collection": raw})
		return "", false
	}
	if !collection.HasItems() {
		RespondError(w, r, http.StatusMethodNotAllowed, ErrCollectionReadOnly, map[string]string{"collection": raw})
		return "", false
	}
	return collection, true
}

// CollectionStatus describes one collection in the GET /collections response.
// Items is omitted for collections that are observation streams.
type CollectionStatus struct {
	Name     model.CollectionName `json:"name"`
	Items    *int                 `json:"items,omitempty"`
	Writable bool                 `json:"writable"`
}

// handleListCollections implements GET /api/v1/collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	counts, err := s.store.Counts(r.Context())
	if err != nil {
		logger.Error().Err(err).Str(bblog.FieldEvent, "collections.count_failed").Msg("counting collections failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	out := make([]CollectionStatus, 0, len(model.CollectionNames()))
	for _, c := range model.CollectionNames() {
		status := CollectionStatus{Name: c, Writable: c.HasItems()}
		if c.HasItems() {
			n := counts[c]
			status.Items = &n
		}
		out = append(out, status)
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"collections": out})
}

// handleListItems implements GET /api/v1/{collection}. Responses are cached
// as serialized payloads; any catalog write clears the cache.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.resolveCollection(w, r)
	if !ok {
		return
	}
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	key := cache.ListKey(collection)
	if payload, hit := s.cache.Get(key); hit {
		recordCacheHit()
		writeCached(w, payload, true)
		return
	}
	recordCacheMiss()

	items, err := s.store.List(r.Context(), collection)
	if err != nil {
		logger.Error().
			Err(err).
			Str(bblog.FieldEvent, "items.list_failed").
			Str(bblog.FieldCollection, string(collection)).
			Msg("listing items failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	payload, err := model.EncodeItems(items)
	if err != nil {
		logger.Error().Err(err).Str(bblog.FieldCollection, string(collection)).Msg("encoding items failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	s.cache.Set(key, payload, s.currentConfig().Cache.TTL)
	writeCached(w, payload, false)
}

// writeCached writes a serialized JSON payload with the cache disposition.
func writeCached(w http.ResponseWriter, payload []byte, hit bool) {
	disposition := "MISS"
	if hit {
		disposition = "HIT"
	}
	w.Header().Set("X-Cache", disposition)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// handleUpsertItems implements POST /api/v1/{collection}: upsert a single
// item or a list of items into one collection.
func (s *Server) handleUpsertItems(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.resolveCollection(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondBodyError(w, r, err)
		return
	}

	items, err := model.DecodeItems(collection, body)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, err.Error())
		return
	}

	s.upsertItems(w, r, items)
}

// handleUpsertMixed implements POST /api/v1/items: upsert items of mixed
// collections in one request. The collection of each item is inferred from
// its shape.
func (s *Server) handleUpsertMixed(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondBodyError(w, r, err)
		return
	}

	items, err := model.DecodeAnyItems(body)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, err.Error())
		return
	}

	s.upsertItems(w, r, items)
}

func (s *Server) upsertItems(w http.ResponseWriter, r *http.Request, items []model.Item) {
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	for _, item := range items {
		if err := s.store.Put(r.Context(), item); err != nil {
			logger.Error().
				Err(err).
				Str(bblog.FieldEvent, "items.put_failed").
				Str(bblog.FieldCollection, string(item.Kind())).
				Str(bblog.FieldItemID, string(item.ItemID())).
				Msg("storing item failed")
			RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
			return
		}
		recordItemWrite(string(item.Kind()))
	}

	s.cache.Clear()

	logger.Info().
		Str(bblog.FieldEvent, "items.upserted").
		Int(bblog.FieldCount, len(items)).
		Msg("items upserted")
	writeJSON(w, r, http.StatusOK, map[string]int{"upserted": len(items)})
}

// handleGetItem implements GET /api/v1/{collection}/{id}.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.resolveCollection(w, r)
	if !ok {
		return
	}

	id := model.ID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		// Invalid IDs cannot name a stored item.
		RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
		return
	}

	item, err := s.store.Get(r.Context(), collection, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
			return
		}
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldCollection, string(collection)).
			Str(bblog.FieldItemID, string(id)).
			Msg("loading item failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	writeJSON(w, r, http.StatusOK, item)
}

// handlePutItem implements PUT /api/v1/{collection}/{id}: create or replace
// the item at the path ID. The path is authoritative; a body carrying a
// different explicit ID is rejected.
func (s *Server) handlePutItem(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.resolveCollection(w, r)
	if !ok {
		return
	}

	id := model.ID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, err.Error())
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondBodyError(w, r, err)
		return
	}

	// The probe fails harmlessly on non-object bodies; DecodeItems rejects
	// those below.
	var probe struct {
		ID *model.ID `json:"id"`
	}
	_ = json.Unmarshal(body, &probe)
	if probe.ID != nil && *probe.ID != id {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed,
			map[string]string{"body_id": string(*probe.ID), "path_id": string(id)})
		return
	}

	items, err := model.DecodeItems(collection, body)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, err.Error())
		return
	}
	if len(items) != 1 {
		RespondError(w, r, http.StatusBadRequest, ErrValidationFailed, "PUT accepts exactly one item")
		return
	}

	item := items[0]
	setItemID(item, id)

	if err := s.store.Put(r.Context(), item); err != nil {
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldCollection, string(collection)).
			Str(bblog.FieldItemID, string(id)).
			Msg("storing item failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}
	recordItemWrite(string(collection))
	s.cache.Clear()

	writeJSON(w, r, http.StatusOK, item)
}

// setItemID overrides the item ID with the request path ID.
func setItemID(item model.Item, id model.ID) {
	switch it := item.(type) {
	case *model.Part:
		it.ID = id
	case *model.Manufacturer:
		it.ID = id
	case *model.Shop:
		it.ID = id
	}
}

// handleDeleteItem implements DELETE /api/v1/{collection}/{id}.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.resolveCollection(w, r)
	if !ok {
		return
	}

	id := model.ID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
		return
	}

	if err := s.store.Delete(r.Context(), collection, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, ErrItemNotFound)
			return
		}
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str(bblog.FieldCollection, string(collection)).
			Str(bblog.FieldItemID, string(id)).
			Msg("deleting item failed")
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	s.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}
