// SPDX-License-Identifier: MIT

package api

import (
	"github.com/eardbi/bike-builds-api/internal/config"
	"github.com/eardbi/bike-builds-api/internal/health"
	"github.com/eardbi/bike-builds-api/internal/jobs"
)

// ApplyConfig swaps the server's runtime configuration after a reload.
// Listener-level fields (addresses, TLS, timeouts) and the middleware stack
// take effect on restart only.
func (s *Server) ApplyConfig(cfg config.AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// currentConfig returns the active configuration (thread-safe).
func (s *Server) currentConfig() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// HealthManager returns the health check manager for checker registration.
func (s *Server) HealthManager() *health.Manager {
	return s.health
}

// GetStatus returns the last sync status (thread-safe).
func (s *Server) GetStatus() jobs.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdateStatus replaces the last sync status (thread-safe).
func (s *Server) UpdateStatus(status jobs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Syncing reports whether a catalog sync is currently running.
func (s *Server) Syncing() bool {
	return s.syncing.Load()
}
