// SPDX-License-Identifier: MIT

// Package config loads and validates the application configuration with the
// precedence ENV > file > defaults.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/eardbi/bike-builds-api/internal/validate"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendOff    = "off"
)

// Tracing exporters.
const (
	TracingExporterOTLPGRPC = "otlp-grpc"
	TracingExporterOTLPHTTP = "otlp-http"
)

// RateLimitConfig bounds the request rate of the API.
type RateLimitConfig struct {
	Enabled bool
	RPS     int
	Burst   int
}

// CacheConfig selects and tunes the read cache.
type CacheConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// WorkerConfig points at the external scrape worker service.
type WorkerConfig struct {
	URL     string
	Rate    float64
	Timeout time.Duration
}

// TracingConfig tunes the OpenTelemetry trace exporter.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	SampleRatio float64
	Insecure    bool
}

// ServerRuntimeConfig holds the HTTP server runtime knobs.
type ServerRuntimeConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// AppConfig is the fully resolved application configuration.
type AppConfig struct {
	DataDir    string
	CatalogDir string

	ListenAddr  string
	MetricsAddr string

	APIToken       string
	AllowAnonymous bool
	AllowedOrigins []string

	TLSCert string
	TLSKey  string

	RateLimit RateLimitConfig
	Cache     CacheConfig
	Worker    WorkerConfig
	Tracing   TracingConfig
	Server    ServerRuntimeConfig

	SyncOnStart bool

	LogLevel   string
	LogService string

	Version string
}

// FileConfig mirrors the YAML configuration file. Pointer fields distinguish
// omitted keys from zero values.
type FileConfig struct {
	DataDir    *string `yaml:"dataDir"`
	CatalogDir *string `yaml:"catalogDir"`

	Listen        *string `yaml:"listen"`
	MetricsListen *string `yaml:"metricsListen"`

	APIToken       *string  `yaml:"apiToken"`
	AllowAnonymous *bool    `yaml:"allowAnonymous"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	TLSCert *string `yaml:"tlsCert"`
	TLSKey  *string `yaml:"tlsKey"`

	RateLimit *struct {
		Enabled *bool `yaml:"enabled"`
		RPS     *int  `yaml:"rps"`
		Burst   *int  `yaml:"burst"`
	} `yaml:"rateLimit"`

	Cache *struct {
		Backend       *string        `yaml:"backend"`
		RedisAddr     *string        `yaml:"redisAddr"`
		RedisPassword *string        `yaml:"redisPassword"`
		RedisDB       *int           `yaml:"redisDB"`
		TTL           *time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Worker *struct {
		URL     *string        `yaml:"url"`
		Rate    *float64       `yaml:"rate"`
		Timeout *time.Duration `yaml:"timeout"`
	} `yaml:"worker"`

	Tracing *struct {
		Enabled     *bool    `yaml:"enabled"`
		Exporter    *string  `yaml:"exporter"`
		Endpoint    *string  `yaml:"endpoint"`
		SampleRatio *float64 `yaml:"sampleRatio"`
		Insecure    *bool    `yaml:"insecure"`
	} `yaml:"tracing"`

	Server *struct {
		ReadTimeout     *time.Duration `yaml:"readTimeout"`
		WriteTimeout    *time.Duration `yaml:"writeTimeout"`
		IdleTimeout     *time.Duration `yaml:"idleTimeout"`
		MaxHeaderBytes  *int           `yaml:"maxHeaderBytes"`
		ShutdownTimeout *time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	SyncOnStart *bool `yaml:"syncOnStart"`

	LogLevel   *string `yaml:"logLevel"`
	LogService *string `yaml:"logService"`
}

// Defaults.
const (
	defaultListenAddr      = ":8080"
	defaultMetricsAddr     = ":9091"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 15 * time.Second
)

// Validate checks the resolved configuration. It creates the data and
// catalog directories when missing.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	v.Directory("catalogDir", cfg.CatalogDir, false)

	validateListenAddr(v, "listen", cfg.ListenAddr, false)
	validateListenAddr(v, "metricsListen", cfg.MetricsAddr, true)

	v.OneOf("logLevel", cfg.LogLevel, []string{"trace", "debug", "info", "warn", "error"})

	if cfg.RateLimit.Enabled {
		v.Positive("rateLimit.rps", cfg.RateLimit.RPS)
		v.Positive("rateLimit.burst", cfg.RateLimit.Burst)
	}

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{CacheBackendMemory, CacheBackendRedis, CacheBackendOff})
	if cfg.Cache.Backend == CacheBackendRedis {
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
	}
	if cfg.Cache.Backend != CacheBackendOff && cfg.Cache.TTL <= 0 {
		v.AddError("cache.ttl", "ttl must be positive", cfg.Cache.TTL.String())
	}

	if cfg.Worker.URL != "" {
		v.URL("worker.url", cfg.Worker.URL, []string{"http", "https"})
		if cfg.Worker.Rate <= 0 {
			v.AddError("worker.rate", "rate must be positive", strconv.FormatFloat(cfg.Worker.Rate, 'f', -1, 64))
		}
		if cfg.Worker.Timeout <= 0 {
			v.AddError("worker.timeout", "timeout must be positive", cfg.Worker.Timeout.String())
		}
	}

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{TracingExporterOTLPGRPC, TracingExporterOTLPHTTP})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			v.AddError("tracing.sampleRatio", "ratio must be between 0 and 1", strconv.FormatFloat(cfg.Tracing.SampleRatio, 'f', -1, 64))
		}
	}

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		v.AddError("tls", "tlsCert and tlsKey must be set together", nil)
	}

	return v.Err()
}

func validateListenAddr(v *validate.Validator, field, addr string, allowEmpty bool) {
	if addr == "" {
		if !allowEmpty {
			v.AddError(field, "listen address cannot be empty", addr)
		}
		return
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid port %q", port), addr)
		return
	}
	// Port 0 binds an ephemeral port, useful in tests.
	v.Range(field, p, 0, 65535)
}

// ServerConfig holds the listener-level HTTP server configuration handed to
// the daemon.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// ServerConfigFor resolves the listener configuration from the resolved app
// config.
func ServerConfigFor(cfg AppConfig) ServerConfig {
	out := ServerConfig{
		ListenAddr:      cfg.ListenAddr,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		IdleTimeout:     defaultIdleTimeout,
		MaxHeaderBytes:  defaultMaxHeaderBytes,
		ShutdownTimeout: defaultShutdownTimeout,
	}
	if cfg.Server.ReadTimeout > 0 {
		out.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		out.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout > 0 {
		out.IdleTimeout = cfg.Server.IdleTimeout
	}
	if cfg.Server.MaxHeaderBytes > 0 {
		out.MaxHeaderBytes = cfg.Server.MaxHeaderBytes
	}
	if cfg.Server.ShutdownTimeout > 0 {
		out.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	return out
}
