// SPDX-License-Identifier: MIT

package scrape

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

var ingestBase = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func eur(value float64) *model.Price {
	return &model.Price{Value: value, Currency: model.CurrencyEUR}
}

// seedCatalog stores one shop and two parts: gx_eagle_derailleur has a
// single variant with a single listing, dropper_post has two variants.
func seedCatalog(t *testing.T) catalog.Store {
	t.Helper()
	store := catalog.NewMemoryStore()
	ctx := context.Background()

	shop := testShop(t)
	if err := store.Put(ctx, shop); err != nil {
		t.Fatalf("seed shop: %v", err)
	}

	gx := testPart(t, "GX Eagle Derailleur", model.PartVariant{
		Name: "12-speed",
		Listings: []model.Listing{
			{ShopID: "bike_components", Variables: map[string]any{"slug": "gx-eagle"}},
		},
	})
	dropper := testPart(t, "Dropper Post",
		model.PartVariant{
			Name: "125mm",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"slug": "dropper-125"}},
			},
		},
		model.PartVariant{
			Name: "150mm",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"slug": "dropper-150"}},
			},
		},
	)
	for _, part := range []*model.Part{gx, dropper} {
		if err := store.Put(ctx, part); err != nil {
			t.Fatalf("seed part: %v", err)
		}
	}
	return store
}

func openIngestDB(t *testing.T) *pricedb.DB {
	t.Helper()
	db, err := pricedb.Open(filepath.Join(t.TempDir(), "prices.db"), pricedb.DefaultConfig())
	if err != nil {
		t.Fatalf("open price db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIngest(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)
	ctx := context.Background()

	results := map[model.ID][]model.ScrapeResult{
		"gx_eagle_derailleur/12_speed": {
			{Price: eur(119.99), Available: boolPtr(true)},
		},
		"gx_eagle_derailleur": { // single variant, bare part key resolves
			{Price: eur(118.50)},
		},
	}

	report, err := Ingest(ctx, store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Accepted != 2 || report.Dropped != 0 || report.PointsWritten != 2 {
		t.Errorf("report = %+v, want accepted 2, dropped 0, points 2", report)
	}

	history, err := db.History(ctx, "gx_eagle_derailleur", time.Time{})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d points, want 2", len(history))
	}
	for _, p := range history {
		if p.VariantID != "12_speed" || p.ShopID != "bike_components" {
			t.Errorf("point attributed to %s@%s, want 12_speed@bike_components", p.VariantID, p.ShopID)
		}
	}
}

func TestIngestDropsUnknownPart(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)

	results := map[model.ID][]model.ScrapeResult{
		"does_not_exist": {
			{Available: boolPtr(true)},
			{Available: boolPtr(false)},
		},
	}

	report, err := Ingest(context.Background(), store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Dropped != 2 || report.Accepted != 0 {
		t.Errorf("report = %+v, want dropped 2", report)
	}
}

func TestIngestDropsAmbiguousVariant(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)

	// dropper_post has two variants, a bare part key cannot resolve.
	results := map[model.ID][]model.ScrapeResult{
		"dropper_post": {{Available: boolPtr(true)}},
	}

	report, err := Ingest(context.Background(), store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Dropped != 1 {
		t.Errorf("report = %+v, want dropped 1", report)
	}
}

func TestIngestResolvesVariantFromKey(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)
	ctx := context.Background()

	results := map[model.ID][]model.ScrapeResult{
		"dropper_post/150mm": {{Price: eur(299.00)}},
	}

	report, err := Ingest(ctx, store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Accepted != 1 || report.PointsWritten != 1 {
		t.Errorf("report = %+v, want accepted 1, points 1", report)
	}

	latest, err := db.Latest(ctx, "dropper_post")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(latest) != 1 || latest[0].VariantID != "150mm" {
		t.Fatalf("latest = %+v, want one point for variant 150mm", latest)
	}
}

func TestIngestResolvesShopByURL(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)

	// The result carries a page URL; attribution follows the shop URL even
	// though the key alone would be ambiguous across listings.
	results := map[model.ID][]model.ScrapeResult{
		"gx_eagle_derailleur/12_speed": {
			{
				URL:   strPtr("https://www.bike-components.de/en/p/gx-eagle"),
				Price: eur(115.00),
			},
			{
				URL:       strPtr("https://shop.nowhere.example/p/1"),
				Available: boolPtr(true),
			},
		},
	}

	report, err := Ingest(context.Background(), store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Accepted != 1 || report.Dropped != 1 {
		t.Errorf("report = %+v, want accepted 1, dropped 1", report)
	}
}

func TestIngestAcceptsDiscoveryResultsWithoutPoints(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)

	results := map[model.ID][]model.ScrapeResult{
		"gx_eagle_derailleur": {
			{Name: strPtr("SRAM GX Eagle Rear Derailleur"), Manufacturer: strPtr("SRAM")},
		},
	}

	report, err := Ingest(context.Background(), store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Accepted != 1 || report.PointsWritten != 0 {
		t.Errorf("report = %+v, want accepted 1 without points", report)
	}
}

func TestIngestDropsUnattributedAndBadKeys(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)

	results := map[model.ID][]model.ScrapeResult{
		"":        {{Available: boolPtr(true)}},
		"Bad Key": {{Available: boolPtr(true)}},
	}

	report, err := Ingest(context.Background(), store, db, results, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Dropped != 2 || report.Accepted != 0 {
		t.Errorf("report = %+v, want dropped 2", report)
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	store := seedCatalog(t)
	db := openIngestDB(t)

	report, err := Ingest(context.Background(), store, db, nil, ingestBase)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report != (Report{}) {
		t.Errorf("report = %+v, want zero report", report)
	}
}
