// SPDX-License-Identifier: MIT

package api

import (
	"context"

	"github.com/eardbi/bike-builds-api/internal/jobs"
)

// SetStatus sets the server status for testing purposes.
func (s *Server) SetStatus(status jobs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetSyncFunc stubs the sync operation for testing.
func (s *Server) SetSyncFunc(fn func(context.Context, jobs.Config) (*jobs.Status, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncFn = fn
}
