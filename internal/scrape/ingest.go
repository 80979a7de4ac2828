// SPDX-License-Identifier: MIT

package scrape

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eardbi/bike-builds-api/internal/catalog"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

// Report summarises one ingest call. Accepted results were attributed to a
// known listing; of those, the ones carrying price signals became points.
type Report struct {
	Accepted      int `json:"accepted"`
	Dropped       int `json:"dropped"`
	PointsWritten int `json:"points_written"`
}

// Ingest attributes reported scrape results to catalog listings and writes
// their price signals to the price history.
//
// Envelope keys name a part or a part/variant pair. Results that cannot be
// attributed are dropped and counted, never failed: workers report in bulk
// and one stale ID must not lose the rest of the batch.
func Ingest(ctx context.Context, store catalog.Store, db *pricedb.DB, results map[model.ID][]model.ScrapeResult, at time.Time) (Report, error) {
	logger := bblog.FromContext(ctx)
	report := Report{}

	shops, err := loadShopIndex(ctx, store)
	if err != nil {
		return report, fmt.Errorf("load shops: %w", err)
	}

	keys := make([]model.ID, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := []pricedb.PricePoint{}
	for _, key := range keys {
		list := results[key]
		if key == "" {
			report.Dropped += len(list)
			logger.Warn().
				Str(bblog.FieldEvent, "ingest.unattributed").
				Int("results", len(list)).
				Msg("dropping results without an attribution key")
			continue
		}

		partID, variantID, err := model.ParseResultKey(key)
		if err != nil {
			report.Dropped += len(list)
			logger.Warn().
				Str(bblog.FieldEvent, "ingest.bad_key").
				Str("key", string(key)).
				Msg("dropping results with a malformed key")
			continue
		}

		variant, err := resolveVariant(ctx, store, partID, variantID)
		if err != nil {
			if model.IsHandled(err) {
				report.Dropped += len(list)
				logger.Warn().
					Str(bblog.FieldEvent, "ingest.unknown_listing").
					Str("key", string(key)).
					Err(err).
					Msg("dropping results for an unknown listing")
				continue
			}
			return report, fmt.Errorf("resolve %s: %w", key, err)
		}

		for _, result := range list {
			shopID := resolveShop(result, variant, shops)
			if shopID == "" {
				report.Dropped++
				continue
			}
			report.Accepted++

			if tag := result.PriceTag(); !tag.IsEmpty() {
				points = append(points, pricedb.PointFromTag(partID, variant.ID, shopID, at, tag))
			}
		}
	}

	if len(points) > 0 {
		if err := db.Insert(ctx, points); err != nil {
			return report, fmt.Errorf("write price points: %w", err)
		}
		report.PointsWritten = len(points)
	}

	logger.Info().
		Str(bblog.FieldEvent, "ingest.done").
		Int("accepted", report.Accepted).
		Int("dropped", report.Dropped).
		Int("points", report.PointsWritten).
		Msg("scrape results ingested")
	return report, nil
}

// resolveVariant loads the part and picks the variant the key names. A key
// without a variant resolves only when the part has exactly one.
func resolveVariant(ctx context.Context, store catalog.Store, partID, variantID model.ID) (*model.PartVariant, error) {
	item, err := store.Get(ctx, model.CollectionParts, partID)
	if err != nil {
		return nil, err
	}
	part, ok := item.(*model.Part)
	if !ok {
		return nil, fmt.Errorf("item %s is not a part", partID)
	}

	if variantID == "" {
		if len(part.Variants) != 1 {
			return nil, model.NewConfigError(
				"part %q has %d variants, results must name one", partID, len(part.Variants))
		}
		return &part.Variants[0], nil
	}

	for i := range part.Variants {
		if part.Variants[i].ID == variantID {
			return &part.Variants[i], nil
		}
	}
	return nil, fmt.Errorf("variant %s/%s: %w", partID, variantID, model.ErrNotFound)
}

type shopIndex struct {
	id  model.ID
	url string
}

func loadShopIndex(ctx context.Context, store catalog.Store) ([]shopIndex, error) {
	items, err := store.List(ctx, model.CollectionShops)
	if err != nil {
		return nil, err
	}
	index := make([]shopIndex, 0, len(items))
	for _, item := range items {
		shop, ok := item.(*model.Shop)
		if !ok {
			continue
		}
		index = append(index, shopIndex{id: shop.ID, url: strings.TrimRight(shop.URL, "/")})
	}
	// Longest URL first so nested shop paths win prefix matching.
	sort.Slice(index, func(i, j int) bool { return len(index[i].url) > len(index[j].url) })
	return index, nil
}

// resolveShop attributes one result to a shop: by the result URL when
// present, otherwise by the listing when it points at a single shop.
func resolveShop(result model.ScrapeResult, variant *model.PartVariant, shops []shopIndex) model.ID {
	if result.URL != nil {
		for _, shop := range shops {
			if strings.HasPrefix(*result.URL, shop.url) {
				return shop.id
			}
		}
		return ""
	}
	if len(variant.Listings) == 1 {
		return variant.Listings[0].ShopID
	}
	return ""
}
