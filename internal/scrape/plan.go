// SPDX-License-Identifier: MIT

// Package scrape plans the pages external workers visit and ingests the
// results they report. The workers themselves live outside this system;
// this package owns the catalog side of the contract.
package scrape

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eardbi/bike-builds-api/internal/model"
)

// Target is one page for a worker to scrape, fully resolved from the
// catalog: the listing it belongs to, the URL to visit and the fields to
// extract.
type Target struct {
	PartID    model.ID                                     `json:"part_id"`
	VariantID model.ID                                     `json:"variant_id"`
	ShopID    model.ID                                     `json:"shop_id"`
	ConfigKey string                                       `json:"config_key"`
	Mode      model.ScraperMode                            `json:"mode"`
	URL       string                                       `json:"url"`
	Fields    map[model.ScrapeTargetName]model.ScrapeField `json:"fields"`
}

var placeholderPattern = regexp.MustCompile(`\{(.*?)\}`)

// Plan resolves every listing of the given parts that points at the shop
// into a scrape target. Output order follows the input: parts, then
// variants, then listings.
func Plan(shop *model.Shop, parts []*model.Part) ([]Target, error) {
	targets := []Target{}
	for _, part := range parts {
		for _, variant := range part.Variants {
			for _, listing := range variant.Listings {
				if listing.ShopID != shop.ID {
					continue
				}
				key, cfg, err := matchConfig(shop, part.ID, variant.ID, listing)
				if err != nil {
					return nil, err
				}
				targets = append(targets, Target{
					PartID:    part.ID,
					VariantID: variant.ID,
					ShopID:    shop.ID,
					ConfigKey: key,
					Mode:      shop.Scraper.Mode,
					URL:       joinURL(shop.URL, expand(cfg.URLExtra, listing.Variables)),
					Fields:    cfg.Fields,
				})
			}
		}
	}
	return targets, nil
}

// PlanAll plans every shop against the same part set concurrently and
// returns the targets keyed by shop ID.
func PlanAll(ctx context.Context, shops []*model.Shop, parts []*model.Part) (map[model.ID][]Target, error) {
	out := make(map[model.ID][]Target, len(shops))
	results := make([][]Target, len(shops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, shop := range shops {
		i, shop := i, shop
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			targets, err := Plan(shop, parts)
			if err != nil {
				return fmt.Errorf("shop %s: %w", shop.ID, err)
			}
			results[i] = targets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, shop := range shops {
		out[shop.ID] = results[i]
	}
	return out, nil
}

// SearchURL resolves the shop's search page for a query. The query value is
// URL-escaped.
func SearchURL(shop *model.Shop, query string) string {
	vars := map[string]any{"query": url.QueryEscape(query)}
	return joinURL(shop.URL, expand(shop.Scraper.Search.URLExtra, vars))
}

// matchConfig picks the page configuration whose declared variables exactly
// match the listing's variable keys. Config keys are tried in sorted order
// so ties resolve deterministically.
func matchConfig(shop *model.Shop, partID, variantID model.ID, listing model.Listing) (string, model.PageScraperConfig, error) {
	keys := make([]string, 0, len(shop.Scraper.Part))
	for key := range shop.Scraper.Part {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	listingVars := sortedKeys(listing.Variables)
	for _, key := range keys {
		cfg := shop.Scraper.Part[key]
		if sameVariables(cfg.Variables, listingVars) {
			return key, cfg, nil
		}
	}

	return "", model.PageScraperConfig{}, model.NewConfigError(
		"shop %q has no page config matching variables %v of listing %s/%s",
		shop.ID, listingVars, partID, variantID)
}

func sortedKeys(vars map[string]any) []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// sameVariables compares a declared variable list against sorted listing
// keys as sets.
func sameVariables(declared, keys []string) bool {
	d := make([]string, len(declared))
	copy(d, declared)
	sort.Strings(d)
	if len(d) != len(keys) {
		return false
	}
	for i := range d {
		if d[i] != keys[i] {
			return false
		}
	}
	return true
}

// expand substitutes {name} placeholders with the listing's variable
// values. Unknown placeholders stay as-is; validation rules them out for
// catalog data.
func expand(urlExtra string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(urlExtra, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			return match
		}
		return fmt.Sprint(value)
	})
}

func joinURL(base, extra string) string {
	base = strings.TrimRight(base, "/")
	if extra == "" {
		return base
	}
	if strings.HasPrefix(extra, "/") || strings.HasPrefix(extra, "?") {
		return base + extra
	}
	return base + "/" + extra
}
