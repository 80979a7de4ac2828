// SPDX-License-Identifier: MIT

package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/eardbi/bike-builds-api/internal/model"
)

func testTarget() Target {
	return Target{
		PartID:    "gx_eagle_derailleur",
		VariantID: "12_speed",
		ShopID:    "bike_components",
		ConfigKey: "default",
		Mode:      model.ScraperModeBrowser,
		URL:       "https://www.bike-components.de/en/p/gx-eagle",
		Fields: map[model.ScrapeTargetName]model.ScrapeField{
			model.TargetPrice: {Selector: ".price"},
		},
	}
}

func fastOptions() ClientOptions {
	return ClientOptions{
		Timeout:    2 * time.Second,
		Rate:       rate.Inf,
		Burst:      1,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}
}

func TestClientScrapePage(t *testing.T) {
	var gotTarget Target
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/scrape/page" {
			t.Errorf("path = %s, want /scrape/page", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotTarget); err != nil {
			t.Errorf("decode target: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"gx_eagle_derailleur/12_speed": [{"price": {"value": 119.99, "currency": "EUR"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOptions())
	results, err := c.ScrapePage(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("ScrapePage() error = %v", err)
	}

	if gotTarget.URL != testTarget().URL {
		t.Errorf("worker received URL %q", gotTarget.URL)
	}
	list := results["gx_eagle_derailleur/12_speed"]
	if len(list) != 1 || list[0].Price == nil || list[0].Price.Value != 119.99 {
		t.Fatalf("results = %+v", results)
	}
}

func TestClientAttributesUnkeyedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"available": true}, {"rating": 4}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOptions())
	results, err := c.ScrapePage(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("ScrapePage() error = %v", err)
	}

	list := results["gx_eagle_derailleur/12_speed"]
	if len(list) != 2 {
		t.Fatalf("results = %+v, want 2 under the target key", results)
	}
	if _, ok := results[""]; ok {
		t.Error("unkeyed results were not re-attributed")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"available": true}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOptions())
	_, err := c.ScrapePage(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("ScrapePage() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("worker called %d times, want 2", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOptions())
	_, err := c.ScrapePage(context.Background(), testTarget())
	if err == nil {
		t.Fatal("ScrapePage() succeeded on a 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("worker called %d times, want 1", calls.Load())
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.MaxRetries = 2
	c := NewClient(srv.URL, opts)

	_, err := c.ScrapePage(context.Background(), testTarget())
	if err == nil {
		t.Fatal("ScrapePage() succeeded against a failing worker")
	}
	if calls.Load() != 3 {
		t.Errorf("worker called %d times, want 3", calls.Load())
	}
}

func TestClientRejectsInvalidEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"shipping": "free"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOptions())
	_, err := c.ScrapePage(context.Background(), testTarget())
	if err == nil {
		t.Fatal("ScrapePage() accepted an envelope with unknown fields")
	}
}

func TestClientHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOptions())
	if _, err := c.ScrapePage(ctx, testTarget()); err == nil {
		t.Fatal("ScrapePage() ignored a cancelled context")
	}
}
