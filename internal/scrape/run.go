// SPDX-License-Identifier: MIT

package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/eardbi/bike-builds-api/internal/catalog"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/pricedb"
)

// Runner drives a full scrape pass: it plans every target in the catalog,
// sends each to the worker and ingests the reported results.
type Runner struct {
	store  catalog.Store
	prices *pricedb.DB
	client *Client
}

// NewRunner wires a runner. All three dependencies are required.
func NewRunner(store catalog.Store, prices *pricedb.DB, client *Client) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("scrape: catalog store is required")
	}
	if prices == nil {
		return nil, fmt.Errorf("scrape: price database is required")
	}
	if client == nil {
		return nil, fmt.Errorf("scrape: worker client is required")
	}
	return &Runner{store: store, prices: prices, client: client}, nil
}

// RunReport summarizes one scrape pass.
type RunReport struct {
	Shops   int    `json:"shops"`
	Targets int    `json:"targets"`
	Failed  int    `json:"failed"`
	Ingest  Report `json:"ingest"`
}

// Run executes one scrape pass over every shop in the catalog. Individual
// target failures are counted and logged, not fatal; planning and ingest
// errors are.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	logger := bblog.WithComponentFromContext(ctx, "scrape")

	shops, parts, err := r.loadCatalog(ctx)
	if err != nil {
		return RunReport{}, err
	}

	planned, err := PlanAll(ctx, shops, parts)
	if err != nil {
		return RunReport{}, fmt.Errorf("plan: %w", err)
	}

	report := RunReport{Shops: len(shops)}
	merged := make(map[model.ID][]model.ScrapeResult)

	// Targets run sequentially; the client's rate limiter paces the worker
	// anyway, so fan-out would only buy contention.
	for _, targets := range planned {
		for _, target := range targets {
			report.Targets++

			results, err := r.client.ScrapePage(ctx, target)
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failed++
				logger.Warn().
					Err(err).
					Str(bblog.FieldEvent, "scrape.target_failed").
					Str("shop", string(target.ShopID)).
					Str("part", string(target.PartID)).
					Msg("scrape target failed")
				continue
			}
			for key, list := range results {
				merged[key] = append(merged[key], list...)
			}
		}
	}

	ingest, err := Ingest(ctx, r.store, r.prices, merged, time.Now().UTC())
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	report.Ingest = ingest

	logger.Info().
		Str(bblog.FieldEvent, "scrape.run_completed").
		Int("shops", report.Shops).
		Int("targets", report.Targets).
		Int("failed", report.Failed).
		Int("points", ingest.PointsWritten).
		Msg("scrape pass completed")
	return report, nil
}

func (r *Runner) loadCatalog(ctx context.Context) ([]*model.Shop, []*model.Part, error) {
	shopItems, err := r.store.List(ctx, model.CollectionShops)
	if err != nil {
		return nil, nil, fmt.Errorf("list shops: %w", err)
	}
	partItems, err := r.store.List(ctx, model.CollectionParts)
	if err != nil {
		return nil, nil, fmt.Errorf("list parts: %w", err)
	}

	shops := make([]*model.Shop, 0, len(shopItems))
	for _, item := range shopItems {
		if shop, ok := item.(*model.Shop); ok {
			shops = append(shops, shop)
		}
	}
	parts := make([]*model.Part, 0, len(partItems))
	for _, item := range partItems {
		if part, ok := item.(*model.Part); ok {
			parts = append(parts, part)
		}
	}
	return shops, parts, nil
}
