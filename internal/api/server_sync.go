// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/eardbi/bike-builds-api/internal/jobs"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/metrics"
)

// syncTimeout bounds one catalog sync run.
const syncTimeout = 5 * time.Minute

// handleSync triggers a catalog sync in the background and returns 202.
// A second trigger while one runs gets 409 with a Retry-After hint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	logger := bblog.WithComponentFromContext(r.Context(), "api")

	if !s.syncing.CompareAndSwap(false, true) {
		logger.Warn().
			Str(bblog.FieldEvent, "sync.conflict").
			Str("method", r.Method).
			Msg("sync already in progress")

		w.Header().Set("Retry-After", "30")
		RespondError(w, r, http.StatusConflict, ErrSyncInProgress)
		return
	}

	// The job must survive the request: it gets its own context with the
	// sync timeout instead of the request context.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		defer s.syncing.Store(false)

		s.runSync(ctx)
	}()

	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SyncNow runs one catalog sync synchronously. The daemon uses it for the
// startup sync. It reports false when another sync is already running.
func (s *Server) SyncNow(ctx context.Context) bool {
	if !s.syncing.CompareAndSwap(false, true) {
		return false
	}
	defer s.syncing.Store(false)

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	s.runSync(ctx)
	return true
}

// runSync executes one catalog sync and records the outcome in the server
// status. Internal error details stay in the log, never in the status.
func (s *Server) runSync(ctx context.Context) {
	logger := bblog.WithComponent("jobs")
	start := time.Now()

	st, err := s.syncFn(ctx, s.jobsConfig())
	duration := time.Since(start)

	if err != nil {
		s.mu.Lock()
		s.status.Error = "sync operation failed"
		s.mu.Unlock()

		logger.Error().
			Err(err).
			Str(bblog.FieldEvent, "sync.failed").
			Int64(bblog.FieldDurationMS, duration.Milliseconds()).
			Msg("catalog sync failed")
		return
	}

	s.mu.Lock()
	s.status = *st
	s.mu.Unlock()

	// Invalidate cached reads; the sync may have rewritten any collection.
	s.cache.Clear()

	logger.Info().
		Str(bblog.FieldEvent, "sync.success").
		Str("job_id", st.JobID).
		Int("items", st.Items).
		Int64(bblog.FieldDurationMS, duration.Milliseconds()).
		Msg("catalog sync completed")
}

// jobsConfig assembles the sync job inputs from the server configuration.
func (s *Server) jobsConfig() jobs.Config {
	cfg := s.currentConfig()
	return jobs.Config{
		CatalogDir: cfg.CatalogDir,
		DataDir:    cfg.DataDir,
		Store:      s.store,
		Metrics:    metrics.SyncRecorder{},
	}
}
