// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eardbi/bike-builds-api/internal/config"
)

// Deps contains the dependencies required by the daemon Manager. Injecting
// them keeps the manager testable without real stores or listeners.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// Config is the resolved application configuration.
	Config config.AppConfig

	// APIHandler serves the HTTP API.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics. Nil or an empty
	// Config.MetricsAddr disables the metrics listener.
	MetricsHandler http.Handler
}

// Validate checks that the required dependencies are present.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
