// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. ENV wins over file values.
const (
	EnvDataDir       = "BIKEAPI_DATA"
	EnvCatalogDir    = "BIKEAPI_CATALOG"
	EnvListen        = "BIKEAPI_LISTEN"
	EnvMetricsListen = "BIKEAPI_METRICS_LISTEN"

	EnvAPIToken       = "BIKEAPI_API_TOKEN" // #nosec G101 -- variable name, not a credential
	EnvAllowAnonymous = "BIKEAPI_ALLOW_ANONYMOUS"
	EnvCORSOrigins    = "BIKEAPI_CORS_ORIGINS"

	EnvTLSCert = "BIKEAPI_TLS_CERT"
	EnvTLSKey  = "BIKEAPI_TLS_KEY"

	EnvRateLimitEnabled = "BIKEAPI_RATE_LIMIT_ENABLED"
	EnvRateLimitRPS     = "BIKEAPI_RATE_LIMIT_RPS"
	EnvRateLimitBurst   = "BIKEAPI_RATE_LIMIT_BURST"

	EnvCacheBackend  = "BIKEAPI_CACHE_BACKEND"
	EnvRedisAddr     = "BIKEAPI_REDIS_ADDR"
	EnvRedisPassword = "BIKEAPI_REDIS_PASSWORD" // #nosec G101 -- variable name, not a credential
	EnvRedisDB       = "BIKEAPI_REDIS_DB"
	EnvCacheTTL      = "BIKEAPI_CACHE_TTL"

	EnvWorkerURL     = "BIKEAPI_WORKER_URL"
	EnvWorkerRate    = "BIKEAPI_WORKER_RATE"
	EnvWorkerTimeout = "BIKEAPI_WORKER_TIMEOUT"

	EnvTracingEnabled     = "BIKEAPI_TRACING_ENABLED"
	EnvTracingExporter    = "BIKEAPI_TRACING_EXPORTER"
	EnvTracingEndpoint    = "BIKEAPI_TRACING_ENDPOINT"
	EnvTracingSampleRatio = "BIKEAPI_TRACING_SAMPLE_RATIO"
	EnvTracingInsecure    = "BIKEAPI_TRACING_INSECURE"

	EnvSyncOnStart = "BIKEAPI_SYNC_ON_START"

	EnvLogLevel   = "BIKEAPI_LOG_LEVEL"
	EnvLogService = "BIKEAPI_LOG_SERVICE"

	EnvReadTimeout     = "BIKEAPI_READ_TIMEOUT"
	EnvWriteTimeout    = "BIKEAPI_WRITE_TIMEOUT"
	EnvIdleTimeout     = "BIKEAPI_IDLE_TIMEOUT"
	EnvMaxHeaderBytes  = "BIKEAPI_MAX_HEADER_BYTES"
	EnvShutdownTimeout = "BIKEAPI_SHUTDOWN_TIMEOUT"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envStringSlice(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringSlice(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}

	// 1. Set defaults
	l.setDefaults(&cfg)

	// 2. Load from file (if provided)
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	// 3. Override with environment variables (highest priority)
	l.mergeEnvConfig(&cfg)

	// SAFETY: Ensure directories are absolute to prevent path surprises when
	// the daemon changes its working directory.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if abs, err := filepath.Abs(cfg.CatalogDir); err == nil {
		cfg.CatalogDir = abs
	}

	// 4. Version from binary
	cfg.Version = l.version

	// 5. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.DataDir = "./data"
	cfg.CatalogDir = "./catalog"
	cfg.ListenAddr = defaultListenAddr
	cfg.MetricsAddr = defaultMetricsAddr
	cfg.AllowedOrigins = []string{"*"}
	cfg.RateLimit = RateLimitConfig{Enabled: true, RPS: 10, Burst: 20}
	cfg.Cache = CacheConfig{Backend: CacheBackendMemory, TTL: 5 * time.Minute}
	cfg.Worker = WorkerConfig{Rate: 1, Timeout: 30 * time.Second}
	cfg.Tracing = TracingConfig{Exporter: TracingExporterOTLPGRPC, SampleRatio: 0.1}
	cfg.SyncOnStart = true
	cfg.LogLevel = "info"
	cfg.LogService = "bike-builds-api"
}

func mergeFileConfig(cfg *AppConfig, file *FileConfig) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *time.Duration) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&cfg.DataDir, file.DataDir)
	setString(&cfg.CatalogDir, file.CatalogDir)
	setString(&cfg.ListenAddr, file.Listen)
	setString(&cfg.MetricsAddr, file.MetricsListen)
	setString(&cfg.APIToken, file.APIToken)
	setBool(&cfg.AllowAnonymous, file.AllowAnonymous)
	if file.AllowedOrigins != nil {
		cfg.AllowedOrigins = file.AllowedOrigins
	}
	setString(&cfg.TLSCert, file.TLSCert)
	setString(&cfg.TLSKey, file.TLSKey)

	if file.RateLimit != nil {
		setBool(&cfg.RateLimit.Enabled, file.RateLimit.Enabled)
		setInt(&cfg.RateLimit.RPS, file.RateLimit.RPS)
		setInt(&cfg.RateLimit.Burst, file.RateLimit.Burst)
	}
	if file.Cache != nil {
		setString(&cfg.Cache.Backend, file.Cache.Backend)
		setString(&cfg.Cache.RedisAddr, file.Cache.RedisAddr)
		setString(&cfg.Cache.RedisPassword, file.Cache.RedisPassword)
		setInt(&cfg.Cache.RedisDB, file.Cache.RedisDB)
		setDuration(&cfg.Cache.TTL, file.Cache.TTL)
	}
	if file.Worker != nil {
		setString(&cfg.Worker.URL, file.Worker.URL)
		setFloat(&cfg.Worker.Rate, file.Worker.Rate)
		setDuration(&cfg.Worker.Timeout, file.Worker.Timeout)
	}
	if file.Tracing != nil {
		setBool(&cfg.Tracing.Enabled, file.Tracing.Enabled)
		setString(&cfg.Tracing.Exporter, file.Tracing.Exporter)
		setString(&cfg.Tracing.Endpoint, file.Tracing.Endpoint)
		setFloat(&cfg.Tracing.SampleRatio, file.Tracing.SampleRatio)
		setBool(&cfg.Tracing.Insecure, file.Tracing.Insecure)
	}
	if file.Server != nil {
		setDuration(&cfg.Server.ReadTimeout, file.Server.ReadTimeout)
		setDuration(&cfg.Server.WriteTimeout, file.Server.WriteTimeout)
		setDuration(&cfg.Server.IdleTimeout, file.Server.IdleTimeout)
		setInt(&cfg.Server.MaxHeaderBytes, file.Server.MaxHeaderBytes)
		setDuration(&cfg.Server.ShutdownTimeout, file.Server.ShutdownTimeout)
	}

	setBool(&cfg.SyncOnStart, file.SyncOnStart)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.LogService, file.LogService)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)
	cfg.CatalogDir = l.envString(EnvCatalogDir, cfg.CatalogDir)
	cfg.ListenAddr = l.envString(EnvListen, cfg.ListenAddr)
	cfg.MetricsAddr = l.envString(EnvMetricsListen, cfg.MetricsAddr)

	cfg.APIToken = l.envString(EnvAPIToken, cfg.APIToken)
	cfg.AllowAnonymous = l.envBool(EnvAllowAnonymous, cfg.AllowAnonymous)
	cfg.AllowedOrigins = l.envStringSlice(EnvCORSOrigins, cfg.AllowedOrigins)

	cfg.TLSCert = l.envString(EnvTLSCert, cfg.TLSCert)
	cfg.TLSKey = l.envString(EnvTLSKey, cfg.TLSKey)

	cfg.RateLimit.Enabled = l.envBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.RPS = l.envInt(EnvRateLimitRPS, cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = l.envInt(EnvRateLimitBurst, cfg.RateLimit.Burst)

	cfg.Cache.Backend = l.envString(EnvCacheBackend, cfg.Cache.Backend)
	cfg.Cache.RedisAddr = l.envString(EnvRedisAddr, cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString(EnvRedisPassword, cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt(EnvRedisDB, cfg.Cache.RedisDB)
	cfg.Cache.TTL = l.envDuration(EnvCacheTTL, cfg.Cache.TTL)

	cfg.Worker.URL = l.envString(EnvWorkerURL, cfg.Worker.URL)
	cfg.Worker.Rate = l.envFloat(EnvWorkerRate, cfg.Worker.Rate)
	cfg.Worker.Timeout = l.envDuration(EnvWorkerTimeout, cfg.Worker.Timeout)

	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRatio = l.envFloat(EnvTracingSampleRatio, cfg.Tracing.SampleRatio)
	cfg.Tracing.Insecure = l.envBool(EnvTracingInsecure, cfg.Tracing.Insecure)

	cfg.SyncOnStart = l.envBool(EnvSyncOnStart, cfg.SyncOnStart)

	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)

	cfg.Server.ReadTimeout = l.envDuration(EnvReadTimeout, cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration(EnvWriteTimeout, cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration(EnvIdleTimeout, cfg.Server.IdleTimeout)
	cfg.Server.MaxHeaderBytes = l.envInt(EnvMaxHeaderBytes, cfg.Server.MaxHeaderBytes)
	cfg.Server.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.Server.ShutdownTimeout)
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	// Check file extension
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// Read file
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	// Parse YAML with strict mode (unknown fields cause errors)
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}
