// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eardbi/bike-builds-api/internal/model"
)

func testShop(name string) *model.Shop {
	s := &model.Shop{
		Name:     name,
		URL:      "https://www.bike-components.de",
		Currency: model.CurrencyEUR,
		Scraper: model.ScraperConfig{
			Mode: model.ScraperModeBrowser,
			Part: map[string]model.PageScraperConfig{
				"default": {
					URLExtra:  "/en/p/{slug}",
					Variables: []string{"slug"},
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						model.TargetPrice: {Selector: "span.price"},
					},
				},
			},
			Search: model.SearchScraperConfig{
				PageScraperConfig: model.PageScraperConfig{
					URLExtra: "/en/s/?keywords={query}",
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						model.TargetURL: {Selector: "a.product", Attr: "href"},
					},
				},
			},
		},
	}
	s.Normalize()
	return s
}

func testPart(name string) *model.Part {
	p := &model.Part{
		Name:           name,
		Component:      model.ComponentDerailleur,
		ManufacturerID: "sram",
		Variants: []model.PartVariant{
			{
				Name: "12-speed",
				Listings: []model.Listing{
					{ShopID: "bike_components", Variables: map[string]any{"slug": "gx-eagle"}},
				},
			},
		},
	}
	p.Normalize()
	return p
}

func testManufacturer(name string) *model.Manufacturer {
	m := &model.Manufacturer{Name: name, URL: "https://www.sram.com"}
	m.Normalize()
	return m
}

// testStoreCRUD exercises the Store contract shared by all implementations.
func testStoreCRUD(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	shop := testShop("Bike Components")
	part := testPart("GX Eagle Derailleur")
	mf := testManufacturer("SRAM")

	for _, item := range []model.Item{shop, part, mf} {
		if err := store.Put(ctx, item); err != nil {
			t.Fatalf("Put(%s/%s) failed: %v", item.Kind(), item.ItemID(), err)
		}
	}

	// Round-trip every item
	got, err := store.Get(ctx, model.CollectionShops, shop.ID)
	if err != nil {
		t.Fatalf("Get shop failed: %v", err)
	}
	if diff := cmp.Diff(shop, got); diff != "" {
		t.Errorf("shop round-trip mismatch (-want +got):\n%s", diff)
	}

	gotPart, err := store.Get(ctx, model.CollectionParts, part.ID)
	if err != nil {
		t.Fatalf("Get part failed: %v", err)
	}
	if diff := cmp.Diff(part, gotPart); diff != "" {
		t.Errorf("part round-trip mismatch (-want +got):\n%s", diff)
	}

	// Unknown ID reports not found
	_, err = store.Get(ctx, model.CollectionParts, "nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}

	// Upsert replaces
	shop.Currency = model.CurrencyCHF
	if err := store.Put(ctx, shop); err != nil {
		t.Fatalf("Put (update) failed: %v", err)
	}
	got, err = store.Get(ctx, model.CollectionShops, shop.ID)
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.(*model.Shop).Currency != model.CurrencyCHF {
		t.Errorf("expected updated currency CHF, got %s", got.(*model.Shop).Currency)
	}

	// List is sorted by ID and scoped to the collection
	second := testPart("Eagle Chain")
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Put second part failed: %v", err)
	}
	parts, err := store.List(ctx, model.CollectionParts)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].ItemID() != "eagle_chain" || parts[1].ItemID() != "gx_eagle_derailleur" {
		t.Errorf("unexpected list order: %s, %s", parts[0].ItemID(), parts[1].ItemID())
	}

	// Counts per collection
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	want := map[model.CollectionName]int{
		model.CollectionParts:         2,
		model.CollectionManufacturers: 1,
		model.CollectionShops:         1,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	// Delete removes, second delete reports not found
	if err := store.Delete(ctx, model.CollectionParts, second.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, model.CollectionParts, second.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, model.CollectionParts, second.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}
}

// testStoreUnknownCollection verifies collection guards shared by all
// implementations.
func testStoreUnknownCollection(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.List(ctx, model.CollectionPrices); err == nil {
		t.Error("expected error listing a collection without an item model")
	} else if !model.IsHandled(err) {
		t.Errorf("expected a handled error, got %v", err)
	}

	if _, err := store.List(ctx, "bikes"); err == nil {
		t.Error("expected error for unknown collection")
	}
}
