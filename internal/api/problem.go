// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"

	"github.com/eardbi/bike-builds-api/internal/api/middleware"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
)

// jsonKeyRequestID is the canonical JSON key for request correlation.
// Must stay consistent across the problem writer and the OpenAPI contract.
const jsonKeyRequestID = "requestId"

// writeProblem writes an RFC 7807 problem details response.
//
// Semantics:
//   - type: canonical machine identifier (e.g. "error/item_not_found")
//   - title: human-readable short label
//   - code: stable machine-readable short code (e.g. "ITEM_NOT_FOUND")
//   - detail: human-readable explanation of the specific error
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	// Request ID from context, falling back to the response header the
	// middleware set. Every error response carries one.
	reqID := bblog.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}

	res := map[string]any{
		"type":   problemType,
		"title":  title,
		"status": status,
		"code":   code,
	}
	if reqID != "" {
		res[jsonKeyRequestID] = reqID
		w.Header().Set(middleware.HeaderRequestID, reqID)
	}
	if detail != "" {
		res["detail"] = detail
	}
	if instance := r.URL.EscapedPath(); instance != "" {
		res["instance"] = instance
	}

	// Extensions land at the top level; reserved keys win.
	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code", jsonKeyRequestID:
			l := bblog.WithComponentFromContext(r.Context(), "api")
			l.Warn().
				Str("key", k).
				Str("problem_type", problemType).
				Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}
