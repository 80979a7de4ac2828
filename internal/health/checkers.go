// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eardbi/bike-builds-api/internal/cache"
	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

// StoreChecker probes the catalog store with a cheap read.
type StoreChecker struct {
	store catalog.Store
}

// NewStoreChecker creates a checker for the catalog store.
func NewStoreChecker(store catalog.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Name() string {
	return "catalog_store"
}

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	counts, err := c.store.Counts(ctx)
	if err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "catalog is empty",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d items stored", total),
	}
}

// PriceDBChecker pings the price database.
type PriceDBChecker struct {
	db *pricedb.DB
}

// NewPriceDBChecker creates a checker for the price database.
func NewPriceDBChecker(db *pricedb.DB) *PriceDBChecker {
	return &PriceDBChecker{db: db}
}

func (c *PriceDBChecker) Name() string {
	return "price_db"
}

func (c *PriceDBChecker) Check(ctx context.Context) CheckResult {
	if err := c.db.Ping(ctx); err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "database reachable",
	}
}

// CacheChecker probes the response cache. Backends without a health probe,
// like the in-memory cache, are always healthy.
type CacheChecker struct {
	cache cache.Cache
}

// NewCacheChecker creates a checker for the response cache.
func NewCacheChecker(c cache.Cache) *CacheChecker {
	return &CacheChecker{cache: c}
}

func (c *CacheChecker) Name() string {
	return "cache"
}

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	probe, ok := c.cache.(interface {
		HealthCheck(ctx context.Context) error
	})
	if !ok {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "backend has no probe",
		}
	}

	if err := probe.HealthCheck(ctx); err != nil {
		// A dead cache degrades latency, the API still serves from the
		// stores.
		return CheckResult{
			Status:  StatusDegraded,
			Error:   err.Error(),
			Message: "cache unreachable",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "cache reachable",
	}
}

// LastSyncChecker reports on the most recent catalog sync. It never turns
// the service unready: a failed or stale sync leaves the stored catalog
// serveable.
type LastSyncChecker struct {
	maxAge      time.Duration
	getLastSync func() (time.Time, string)
}

// NewLastSyncChecker creates a checker for the last sync outcome. A
// non-positive maxAge falls back to 24h.
func NewLastSyncChecker(maxAge time.Duration, getLastSync func() (time.Time, string)) *LastSyncChecker {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &LastSyncChecker{maxAge: maxAge, getLastSync: getLastSync}
}

func (c *LastSyncChecker) Name() string {
	return "last_sync"
}

func (c *LastSyncChecker) Check(ctx context.Context) CheckResult {
	lastSync, lastError := c.getLastSync()

	if lastSync.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no sync has completed yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last sync failed",
		}
	}

	if age := time.Since(lastSync); age > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last successful sync over %s ago", c.maxAge),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last sync successful",
	}
}

// FileChecker checks that a file exists and carries content. Wired onto the
// exported catalog.json.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence.
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{
		name: name,
		path: path,
	}
}

func (c *FileChecker) Name() string {
	return c.name
}

func (c *FileChecker) Check(ctx context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusDegraded,
				Error:   "file not found",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if info.IsDir() {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "expected file, got directory",
		}
	}

	if info.Size() == 0 {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "file is empty",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "file exists and readable",
	}
}
