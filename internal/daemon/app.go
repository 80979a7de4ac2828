// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eardbi/bike-builds-api/internal/api"
	"github.com/eardbi/bike-builds-api/internal/config"
)

// App owns the long-lived runtime lifecycle (config watcher, reload wiring)
// and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	apiServer    *api.Server
	reloadSignal os.Signal
}

// NewApp creates the app orchestrator. cfgHolder and apiServer may be nil;
// reload wiring is skipped for the parts that are missing.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, apiServer *api.Server) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		apiServer:    apiServer,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts the background subsystems and blocks until ctx is cancelled or
// a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// The watcher is best-effort: startup does not fail when the config
	// file cannot be watched.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().
				Err(err).
				Str("event", "config.watcher_start_failed").
				Msg("failed to start config watcher")
		}
	}

	// Apply every config swap to the API server.
	if a.cfgHolder != nil && a.apiServer != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apiServer.ApplyConfig(cfg)
				}
			}
		})
	}

	// SIGHUP triggers a manual reload.
	if a.cfgHolder != nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, a.reloadSignal)

		g.Go(func() error {
			defer signal.Stop(sigCh)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sigCh:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Msg("reload signal received")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Error().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed, keeping previous config")
					}
				}
			}
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	err := g.Wait()

	if a.cfgHolder != nil {
		a.cfgHolder.Stop()
	}
	return err
}
