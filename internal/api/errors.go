// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	bblog "github.com/eardbi/bike-builds-api/internal/log"
)

// APIError pairs a stable machine-readable code with a human-readable
// message. The code never changes once published; clients branch on it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common API error definitions
var (
	// Authentication errors
	ErrUnauthorized = &APIError{
		Code:    "UNAUTHORIZED",
		Message: "Authentication required",
	}
	ErrInvalidToken = &APIError{
		Code:    "INVALID_TOKEN",
		Message: "Invalid API token",
	}

	// Resource errors
	ErrCollectionUnknown = &APIError{
		Code:    "COLLECTION_UNKNOWN",
		Message: "Unknown catalog collection",
	}
	ErrCollectionReadOnly = &APIError{
		Code:    "COLLECTION_READONLY",
		Message: "Collection does not accept item writes",
	}
	ErrItemNotFound = &APIError{
		Code:    "ITEM_NOT_FOUND",
		Message: "Catalog item not found",
	}

	// Operation errors
	ErrSyncInProgress = &APIError{
		Code:    "SYNC_IN_PROGRESS",
		Message: "A catalog sync is already in progress",
	}
	ErrSyncFailed = &APIError{
		Code:    "SYNC_FAILED",
		Message: "Catalog sync failed",
	}
	ErrScraperDisabled = &APIError{
		Code:    "SCRAPER_DISABLED",
		Message: "No scrape worker is configured",
	}
	ErrScrapeInProgress = &APIError{
		Code:    "SCRAPE_IN_PROGRESS",
		Message: "A scrape pass is already in progress",
	}
	ErrScrapeFailed = &APIError{
		Code:    "SCRAPE_FAILED",
		Message: "Scrape pass failed",
	}

	// Validation errors
	ErrValidationFailed = &APIError{
		Code:    "VALIDATION_FAILED",
		Message: "Request validation failed",
	}
	ErrPayloadTooLarge = &APIError{
		Code:    "PAYLOAD_TOO_LARGE",
		Message: "Request body exceeds the size limit",
	}

	// Generic errors
	ErrInternalServer = &APIError{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "An internal error occurred",
	}
)

// writeJSON writes a JSON response with the given status code. If encoding
// fails the headers are already sent, so the failure is only logged.
func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		l := bblog.WithComponentFromContext(r.Context(), "api")
		l.Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}

// RespondError sends an RFC 7807 problem response for the given APIError.
// Optional details land under the "details" extension key.
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError, details ...any) {
	extra := make(map[string]any)
	if len(details) > 0 && details[0] != nil {
		extra["details"] = details[0]
	}

	// type carries the prefixed lowercase code, title the human message,
	// code the stable machine token.
	problemType := "error/" + strings.ToLower(apiErr.Code)

	writeProblem(w, r, statusCode, problemType, apiErr.Message, apiErr.Code, "", extra)
}
