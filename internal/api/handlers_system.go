// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/eardbi/bike-builds-api/internal/jobs"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
)

// StatusResponse is the GET /api/v1/status contract. The structure is
// stable; fields are only ever added.
type StatusResponse struct {
	Status        string      `json:"status"`
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Syncing       bool        `json:"syncing"`
	LastSync      jobs.Status `json:"last_sync"`
}

// handleStatus implements GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	cfg := s.currentConfig()
	status := s.GetStatus()

	resp := StatusResponse{
		Status:        "ok",
		Version:       cfg.Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Syncing:       s.syncing.Load(),
		LastSync:      status,
	}

	writeJSON(w, r, http.StatusOK, resp)

	logger.Debug().
		Str(bblog.FieldEvent, "status.served").
		Str("version", cfg.Version).
		Time("last_run", status.LastRun).
		Msg("status request handled")
}
