// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eardbi/bike-builds-api/internal/cache"
	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/config"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

const testToken = "test-token"

// newTestServer wires a server against in-memory stores and a throwaway
// price database. Requests authenticate with testToken.
func newTestServer(t *testing.T, opts ...func(*config.AppConfig)) *Server {
	t.Helper()

	store := catalog.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	prices, err := pricedb.Open(filepath.Join(t.TempDir(), "prices.db"), pricedb.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = prices.Close() })

	mem := cache.NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })

	cfg := config.AppConfig{
		DataDir:    t.TempDir(),
		CatalogDir: t.TempDir(),
		ListenAddr: ":0",
		APIToken:   testToken,
		Cache:      config.CacheConfig{Backend: config.CacheBackendMemory, TTL: time.Minute},
		LogLevel:   "error",
		Version:    "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := New(cfg, Deps{Store: store, Prices: prices, Cache: mem})
	require.NoError(t, err)
	return srv
}

// doRequest runs one authenticated request through the full handler stack.
func doRequest(t *testing.T, srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func testManufacturer() *model.Manufacturer {
	return &model.Manufacturer{
		Name: "Shimano",
		ID:   "shimano",
		URL:  "https://bike.shimano.com",
	}
}

func testShop() *model.Shop {
	return &model.Shop{
		Name:     "Bike Components",
		ID:       "bike_components",
		URL:      "https://www.bike-components.de",
		Currency: model.CurrencyEUR,
		Scraper: model.ScraperConfig{
			Mode: model.ScraperModeBrowser,
			Part: map[string]model.PageScraperConfig{
				"by_page_id": {
					URLExtra:  "/en/p/{page_id}",
					Variables: []string{"page_id"},
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						"price":     {Selector: ".price"},
						"available": {Selector: ".stock"},
					},
				},
			},
			Search: model.SearchScraperConfig{
				PageScraperConfig: model.PageScraperConfig{
					URLExtra:  "/en/s/?keywords={query}",
					Variables: []string{"query"},
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						"url":  {Selector: "a.product-link", Attr: "href"},
						"name": {Selector: ".product-title"},
					},
				},
			},
		},
	}
}

func testPart() *model.Part {
	return &model.Part{
		Name:           "XT M8100 Cassette",
		ID:             "xt_m8100_cassette",
		Component:      model.ComponentCassette,
		ManufacturerID: "shimano",
		Variants: []model.PartVariant{
			{
				Name: "12-speed 10-51",
				ID:   "12_speed_10_51",
				Listings: []model.Listing{
					{ShopID: "bike_components", Variables: map[string]any{"page_id": "p79879"}},
				},
			},
		},
	}
}

// seedCatalog stores the fixture manufacturer, shop and part.
func seedCatalog(t *testing.T, srv *Server) {
	t.Helper()

	ctx := context.Background()
	for _, item := range []model.Item{testManufacturer(), testShop(), testPart()} {
		require.NoError(t, srv.store.Put(ctx, item))
	}
}
