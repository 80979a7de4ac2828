// SPDX-License-Identifier: MIT

// bikebuildsd is the bike-builds-api daemon: it owns the parts catalog, the
// price history and the scrape-worker contract, and serves them over a JSON
// HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/eardbi/bike-builds-api/internal/api"
	"github.com/eardbi/bike-builds-api/internal/cache"
	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/config"
	"github.com/eardbi/bike-builds-api/internal/daemon"
	"github.com/eardbi/bike-builds-api/internal/health"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
	"github.com/eardbi/bike-builds-api/internal/scrape"
	"github.com/eardbi/bike-builds-api/internal/telemetry"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

// lastSyncMaxAge is how stale the last successful sync may get before the
// readiness probe degrades.
const lastSyncMaxAge = 24 * time.Hour

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	bblog.Configure(bblog.Config{
		Level:   "info",
		Service: "bike-builds-api",
	})
	logger := bblog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit flag, otherwise ${BIKEAPI_DATA}/config.yaml when
	// it exists.
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString(config.EnvDataDir, "./data"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure with the loaded settings.
	bblog.Configure(bblog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
	})

	switch {
	case explicitConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	case effectiveConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	default:
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := performStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	serverCfg := config.ServerConfigFor(cfg)

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting bike-builds-api")

	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Catalog dir: %s", cfg.CatalogDir)
	logger.Info().Msgf("→ Cache: %s", cfg.Cache.Backend)
	if cfg.Worker.URL != "" {
		logger.Info().Msgf("→ Scrape worker: %s (rate: %.2f/s)", cfg.Worker.URL, cfg.Worker.Rate)
	} else {
		logger.Info().Msg("→ Scrape worker: not configured (push ingest only)")
	}
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else if cfg.AllowAnonymous {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured, anonymous access enabled")
	} else {
		logger.Warn().Msgf("→ API token: NOT configured, API is fail-closed; set %s", config.EnvAPIToken)
	}
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		logger.Info().Msgf("→ TLS: enabled (cert: %s)", cfg.TLSCert)
	}

	// Tracing first so the HTTP middleware has a provider to talk to.
	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		ExporterType:   exporterType(cfg),
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialise tracing")
	}

	store, err := catalog.OpenBadgerStore(filepath.Join(cfg.DataDir, "catalog"))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "store.open_failed").
			Msg("failed to open catalog store")
	}

	prices, err := pricedb.Open(filepath.Join(cfg.DataDir, "prices.db"), pricedb.DefaultConfig())
	if err != nil {
		_ = store.Close()
		logger.Fatal().
			Err(err).
			Str("event", "pricedb.open_failed").
			Msg("failed to open price database")
	}

	readCache, err := cache.New(cache.Options{
		Backend:  cfg.Cache.Backend,
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}, bblog.WithComponent("cache"))
	if err != nil {
		_ = prices.Close()
		_ = store.Close()
		logger.Fatal().
			Err(err).
			Str("event", "cache.init_failed").
			Msg("failed to initialise cache")
	}

	// Optional scrape runner: only when a worker URL is configured.
	var runner *scrape.Runner
	if cfg.Worker.URL != "" {
		client := scrape.NewClient(cfg.Worker.URL, scrape.ClientOptions{
			Timeout: cfg.Worker.Timeout,
			Rate:    rate.Limit(cfg.Worker.Rate),
		})
		runner, err = scrape.NewRunner(store, prices, client)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "scrape.init_failed").
				Msg("failed to initialise scrape runner")
		}
	}

	healthMgr := health.NewManager(version)

	server, err := api.New(cfg, api.Deps{
		Store:   store,
		Prices:  prices,
		Cache:   readCache,
		Health:  healthMgr,
		Scraper: runner,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "api.init_failed").
			Msg("failed to construct API server")
	}

	healthMgr.RegisterChecker(health.NewStoreChecker(store))
	healthMgr.RegisterChecker(health.NewPriceDBChecker(prices))
	if cfg.Cache.Backend != config.CacheBackendOff {
		healthMgr.RegisterChecker(health.NewCacheChecker(readCache))
	}
	healthMgr.RegisterChecker(health.NewLastSyncChecker(lastSyncMaxAge, func() (time.Time, string) {
		st := server.GetStatus()
		return st.LastRun, st.Error
	}))

	// Initial catalog sync so the API starts populated.
	if cfg.SyncOnStart {
		logger.Info().Msg("performing initial catalog sync")
		if !server.SyncNow(ctx) {
			logger.Warn().Msg("initial sync skipped, another sync is running")
		}
	} else {
		logger.Warn().Msgf("initial sync disabled (%s=false); trigger one via POST /api/v1/sync", config.EnvSyncOnStart)
	}

	cfgHolder := config.NewConfigHolder(cfg, config.NewLoader(effectiveConfigPath, version), effectiveConfigPath)

	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		APIHandler:     server.Handler(),
		MetricsHandler: promhttp.Handler(),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation_failed").
			Msg("failed to create daemon manager")
	}

	// LIFO: telemetry flushes last, stores close before it.
	mgr.RegisterShutdownHook("telemetry", tracing.Shutdown)
	mgr.RegisterShutdownHook("catalog-store", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("price-db", func(context.Context) error { return prices.Close() })
	mgr.RegisterShutdownHook("cache", func(context.Context) error { return readCache.Close() })

	app := daemon.NewApp(logger, mgr, cfgHolder, server)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}

// exporterType maps the config exporter names onto the telemetry package's.
func exporterType(cfg config.AppConfig) string {
	switch cfg.Tracing.Exporter {
	case config.TracingExporterOTLPGRPC:
		return "grpc"
	case config.TracingExporterOTLPHTTP:
		return "http"
	default:
		return "noop"
	}
}

// performStartupChecks fails fast on unusable directories.
func performStartupChecks(cfg config.AppConfig) error {
	for _, dir := range []string{cfg.DataDir, cfg.CatalogDir} {
		if err := checkWritableDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// checkWritableDir verifies the directory exists and accepts writes by
// creating and removing a probe file.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
