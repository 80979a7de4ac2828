// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/eardbi/bike-builds-api/internal/cache"
	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

type stubChecker struct {
	name   string
	result CheckResult
}

func (c stubChecker) Name() string                        { return c.name }
func (c stubChecker) Check(_ context.Context) CheckResult { return c.result }

type failingStore struct{ catalog.Store }

func (failingStore) Counts(_ context.Context) (map[model.CollectionName]int, error) {
	return nil, errors.New("store is down")
}

func TestManagerHealth(t *testing.T) {
	m := NewManager("1.2.3")
	m.RegisterChecker(stubChecker{name: "a", result: CheckResult{Status: StatusUnhealthy}})

	resp := m.Health(context.Background(), false)
	if resp.Status != StatusHealthy {
		t.Errorf("non-verbose health must stay healthy, got %s", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("expected version in response, got %q", resp.Version)
	}

	resp = m.Health(context.Background(), true)
	if resp.Status != StatusUnhealthy {
		t.Errorf("verbose health must aggregate checks, got %s", resp.Status)
	}
	if len(resp.Checks) != 1 {
		t.Errorf("expected 1 check result, got %d", len(resp.Checks))
	}
}

func TestManagerReady(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantReady  bool
		wantStatus Status
	}{
		{
			name:       "no_checkers",
			wantReady:  true,
			wantStatus: StatusHealthy,
		},
		{
			name: "all_healthy",
			checkers: []Checker{
				stubChecker{name: "a", result: CheckResult{Status: StatusHealthy}},
				stubChecker{name: "b", result: CheckResult{Status: StatusHealthy}},
			},
			wantReady:  true,
			wantStatus: StatusHealthy,
		},
		{
			name: "degraded_stays_ready",
			checkers: []Checker{
				stubChecker{name: "a", result: CheckResult{Status: StatusHealthy}},
				stubChecker{name: "b", result: CheckResult{Status: StatusDegraded}},
			},
			wantReady:  true,
			wantStatus: StatusDegraded,
		},
		{
			name: "unhealthy_not_ready",
			checkers: []Checker{
				stubChecker{name: "a", result: CheckResult{Status: StatusDegraded}},
				stubChecker{name: "b", result: CheckResult{Status: StatusUnhealthy}},
			},
			wantReady:  false,
			wantStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			if resp.Ready != tt.wantReady {
				t.Errorf("Ready = %v, want %v", resp.Ready, tt.wantReady)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestServeHealth(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(stubChecker{name: "a", result: CheckResult{Status: StatusUnhealthy, Error: "boom"}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness must return 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy verbose response, got %s", resp.Status)
	}
}

func TestServeReady(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(stubChecker{name: "a", result: CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when unready, got %d", rec.Code)
	}

	var resp ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ready {
		t.Error("expected ready=false in response body")
	}
}

func TestStoreChecker(t *testing.T) {
	store := catalog.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	checker := NewStoreChecker(store)

	if got := checker.Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("empty catalog should degrade, got %s", got.Status)
	}

	manufacturer := &model.Manufacturer{Name: "SRAM"}
	manufacturer.Normalize()
	if err := store.Put(context.Background(), manufacturer); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("stocked catalog should be healthy, got %s: %s", got.Status, got.Error)
	}

	failing := NewStoreChecker(failingStore{})
	if got := failing.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("failing store should be unhealthy, got %s", got.Status)
	}
}

func TestPriceDBChecker(t *testing.T) {
	db, err := pricedb.Open(filepath.Join(t.TempDir(), "prices.db"), pricedb.DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	checker := NewPriceDBChecker(db)

	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("open database should be healthy, got %s: %s", got.Status, got.Error)
	}

	_ = db.Close()
	if got := checker.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("closed database should be unhealthy, got %s", got.Status)
	}
}

func TestCacheChecker(t *testing.T) {
	memory := cache.NewMemory(0)
	t.Cleanup(func() { _ = memory.Close() })
	if got := NewCacheChecker(memory).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("memory cache should be healthy, got %s", got.Status)
	}

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	redisCache, err := cache.NewRedis(cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() { _ = redisCache.Close() })

	checker := NewCacheChecker(redisCache)
	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("reachable redis should be healthy, got %s: %s", got.Status, got.Error)
	}

	mr.Close()
	if got := checker.Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("unreachable redis should degrade, got %s", got.Status)
	}
}

func TestLastSyncChecker(t *testing.T) {
	tests := []struct {
		name      string
		lastSync  time.Time
		lastError string
		want      Status
	}{
		{
			name: "never_synced",
			want: StatusDegraded,
		},
		{
			name:      "last_sync_failed",
			lastSync:  time.Now(),
			lastError: "decode catalog: boom",
			want:      StatusDegraded,
		},
		{
			name:     "stale_sync",
			lastSync: time.Now().Add(-48 * time.Hour),
			want:     StatusDegraded,
		},
		{
			name:     "fresh_sync",
			lastSync: time.Now().Add(-time.Minute),
			want:     StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewLastSyncChecker(0, func() (time.Time, string) {
				return tt.lastSync, tt.lastError
			})
			if got := checker.Check(context.Background()); got.Status != tt.want {
				t.Errorf("Check() = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(full, []byte(`{"parts": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		path string
		want Status
	}{
		{name: "exists", path: full, want: StatusHealthy},
		{name: "empty_file", path: empty, want: StatusDegraded},
		{name: "missing", path: filepath.Join(dir, "missing.json"), want: StatusDegraded},
		{name: "directory", path: dir, want: StatusUnhealthy},
		{name: "unconfigured", path: "", want: StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewFileChecker("catalog_export", tt.path)
			if got := checker.Check(context.Background()); got.Status != tt.want {
				t.Errorf("Check() = %s, want %s", got.Status, tt.want)
			}
		})
	}
}
