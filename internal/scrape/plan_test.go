// SPDX-License-Identifier: MIT

package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eardbi/bike-builds-api/internal/model"
)

func testShop(t *testing.T) *model.Shop {
	t.Helper()
	shop := &model.Shop{
		Name:     "Bike Components",
		URL:      "https://www.bike-components.de",
		Currency: model.CurrencyEUR,
		Scraper: model.ScraperConfig{
			Mode: model.ScraperModeBrowser,
			Part: map[string]model.PageScraperConfig{
				"default": {
					URLExtra:  "/en/p/{slug}",
					Variables: []string{"slug"},
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						model.TargetPrice: {Selector: ".price"},
					},
				},
				"with_color": {
					URLExtra:  "/en/p/{slug}?colour={color}",
					Variables: []string{"slug", "color"},
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						model.TargetPrice:     {Selector: ".price"},
						model.TargetAvailable: {Selector: ".stock"},
					},
				},
			},
			Search: model.SearchScraperConfig{
				PageScraperConfig: model.PageScraperConfig{
					URLExtra: "/en/s/?keywords={query}",
					Fields: map[model.ScrapeTargetName]model.ScrapeField{
						model.TargetURL: {Selector: ".product a", Attr: "href"},
					},
				},
			},
		},
	}
	shop.Normalize()
	if err := shop.Validate(); err != nil {
		t.Fatalf("fixture shop invalid: %v", err)
	}
	return shop
}

func testPart(t *testing.T, name string, variants ...model.PartVariant) *model.Part {
	t.Helper()
	part := &model.Part{
		Name:           name,
		Component:      model.ComponentDerailleur,
		ManufacturerID: "sram",
		Variants:       variants,
	}
	part.Normalize()
	if err := part.Validate(); err != nil {
		t.Fatalf("fixture part invalid: %v", err)
	}
	return part
}

func TestPlan(t *testing.T) {
	shop := testShop(t)
	parts := []*model.Part{
		testPart(t, "GX Eagle Derailleur", model.PartVariant{
			Name: "12-speed",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"slug": "gx-eagle"}},
				{ShopID: "bike24", Variables: map[string]any{"article": 4711}},
			},
		}),
		testPart(t, "Reverb Seatpost", model.PartVariant{
			Name: "150mm",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"slug": "reverb", "color": "black"}},
			},
		}),
	}

	targets, err := Plan(shop, parts)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	want := []Target{
		{
			PartID:    "gx_eagle_derailleur",
			VariantID: "12_speed",
			ShopID:    "bike_components",
			ConfigKey: "default",
			Mode:      model.ScraperModeBrowser,
			URL:       "https://www.bike-components.de/en/p/gx-eagle",
			Fields:    shop.Scraper.Part["default"].Fields,
		},
		{
			PartID:    "reverb_seatpost",
			VariantID: "150mm",
			ShopID:    "bike_components",
			ConfigKey: "with_color",
			Mode:      model.ScraperModeBrowser,
			URL:       "https://www.bike-components.de/en/p/reverb?colour=black",
			Fields:    shop.Scraper.Part["with_color"].Fields,
		},
	}
	if diff := cmp.Diff(want, targets); diff != "" {
		t.Errorf("Plan() mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanSkipsOtherShops(t *testing.T) {
	shop := testShop(t)
	parts := []*model.Part{
		testPart(t, "Eagle Chain", model.PartVariant{
			Name: "Default",
			Listings: []model.Listing{
				{ShopID: "bike24", Variables: map[string]any{"article": 4711}},
			},
		}),
	}

	targets, err := Plan(shop, parts)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("Plan() returned %d targets for foreign listings, want 0", len(targets))
	}
}

func TestPlanNoMatchingConfig(t *testing.T) {
	shop := testShop(t)
	parts := []*model.Part{
		testPart(t, "Eagle Chain", model.PartVariant{
			Name: "Default",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"sku": "abc"}},
			},
		}),
	}

	_, err := Plan(shop, parts)
	if err == nil {
		t.Fatal("Plan() accepted a listing no page config matches")
	}
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Plan() error = %T, want *model.ConfigError", err)
	}
}

func TestPlanTieBreaksBySortedConfigKey(t *testing.T) {
	shop := testShop(t)
	// Two configs declare the same variable set; the lexically first key wins.
	shop.Scraper.Part["alternate"] = model.PageScraperConfig{
		URLExtra:  "/en/alt/{slug}",
		Variables: []string{"slug"},
		Fields: map[model.ScrapeTargetName]model.ScrapeField{
			model.TargetPrice: {Selector: ".alt-price"},
		},
	}

	parts := []*model.Part{
		testPart(t, "Eagle Chain", model.PartVariant{
			Name: "Default",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"slug": "chain"}},
			},
		}),
	}

	targets, err := Plan(shop, parts)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(targets) != 1 || targets[0].ConfigKey != "alternate" {
		t.Errorf("Plan() config key = %q, want %q", targets[0].ConfigKey, "alternate")
	}
}

func TestPlanVariableOrderIrrelevant(t *testing.T) {
	shop := testShop(t)
	parts := []*model.Part{
		testPart(t, "Reverb Seatpost", model.PartVariant{
			Name: "150mm",
			Listings: []model.Listing{
				// Declared as [slug, color]; listing keys iterate in any order.
				{ShopID: "bike_components", Variables: map[string]any{"color": "red", "slug": "reverb"}},
			},
		}),
	}

	targets, err := Plan(shop, parts)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if targets[0].ConfigKey != "with_color" {
		t.Errorf("config key = %q, want with_color", targets[0].ConfigKey)
	}
	if targets[0].URL != "https://www.bike-components.de/en/p/reverb?colour=red" {
		t.Errorf("URL = %q", targets[0].URL)
	}
}

func TestPlanAll(t *testing.T) {
	shopA := testShop(t)
	shopB := testShop(t)
	shopB.Name = "Bike Discount"
	shopB.ID = ""
	shopB.Normalize()

	parts := []*model.Part{
		testPart(t, "Eagle Chain", model.PartVariant{
			Name: "Default",
			Listings: []model.Listing{
				{ShopID: "bike_components", Variables: map[string]any{"slug": "chain"}},
				{ShopID: "bike_discount", Variables: map[string]any{"slug": "kette"}},
			},
		}),
	}

	got, err := PlanAll(context.Background(), []*model.Shop{shopA, shopB}, parts)
	if err != nil {
		t.Fatalf("PlanAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("PlanAll() returned %d shops, want 2", len(got))
	}
	if len(got["bike_components"]) != 1 || len(got["bike_discount"]) != 1 {
		t.Errorf("PlanAll() targets = %d/%d, want 1/1",
			len(got["bike_components"]), len(got["bike_discount"]))
	}
	if got["bike_discount"][0].URL != "https://www.bike-components.de/en/p/kette" {
		t.Errorf("URL = %q", got["bike_discount"][0].URL)
	}
}

func TestSearchURL(t *testing.T) {
	shop := testShop(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "single word", query: "chain", want: "https://www.bike-components.de/en/s/?keywords=chain"},
		{name: "escaped spaces", query: "sram gx eagle", want: "https://www.bike-components.de/en/s/?keywords=sram+gx+eagle"},
		{name: "escaped specials", query: "27.5\"", want: "https://www.bike-components.de/en/s/?keywords=27.5%22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchURL(shop, tt.query); got != tt.want {
				t.Errorf("SearchURL(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
