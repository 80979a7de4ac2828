// SPDX-License-Identifier: MIT

// Package cache holds serialized API responses with TTL expiry. Payloads
// are stored as raw JSON bytes so backends never re-encode them.
package cache

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Cache is the read-cache contract shared by all backends.
type Cache interface {
	// Get retrieves a payload. The second return is false when the key is
	// missing or expired.
	Get(key string) ([]byte, bool)
	// Set stores a payload with the given TTL. Non-positive TTLs are ignored.
	Set(key string, payload []byte, ttl time.Duration)
	// Delete removes one key.
	Delete(key string)
	// Clear removes all keys. Catalog writes call this instead of tracking
	// per-key dependencies.
	Clear()
	// Stats returns counters for the metrics endpoint.
	Stats() Stats
	// Close releases backend resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendOff    = "off"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend         string
	Addr            string // Redis address (host:port)
	Password        string
	DB              int
	CleanupInterval time.Duration // memory janitor interval, default 1m
}

// New builds the backend named in opts.
func New(opts Options, logger zerolog.Logger) (Cache, error) {
	switch opts.Backend {
	case BackendMemory, "":
		interval := opts.CleanupInterval
		if interval <= 0 {
			interval = time.Minute
		}
		return NewMemory(interval), nil
	case BackendRedis:
		return NewRedis(RedisConfig{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}, logger)
	case BackendOff:
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", opts.Backend)
	}
}

// noop satisfies Cache without storing anything.
type noop struct{}

// NewNoop returns a cache that never stores.
func NewNoop() Cache { return noop{} }

func (noop) Get(string) ([]byte, bool)         { return nil, false }
func (noop) Set(string, []byte, time.Duration) {}
func (noop) Delete(string)                     {}
func (noop) Clear()                            {}
func (noop) Stats() Stats                      { return Stats{} }
func (noop) Close() error                      { return nil }
