// SPDX-License-Identifier: MIT

// Package jobs runs the catalog sync: it reads catalog documents from disk,
// loads them into the store and exports the merged catalog.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/eardbi/bike-builds-api/internal/fsutil"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
)

// ExportName is the filename of the merged catalog written to DataDir.
const ExportName = "catalog.json"

// Sync loads every catalog document under cfg.CatalogDir into the store and
// exports the merged catalog to cfg.DataDir. Serializing concurrent syncs is
// the caller's job.
func Sync(ctx context.Context, cfg Config) (*Status, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return syncCatalog(ctx, cfg)
}

// syncCatalog is separated from Sync for easier testing.
func syncCatalog(ctx context.Context, cfg Config) (*Status, error) {
	logger := bblog.WithComponentFromContext(ctx, "jobs")
	jobID := uuid.NewString()
	start := time.Now()
	logger.Info().
		Str(bblog.FieldJobID, jobID).
		Str(bblog.FieldEvent, "sync.start").
		Str(bblog.FieldPath, cfg.CatalogDir).
		Msg("starting catalog sync")

	fail := func(stage string, err error) (*Status, error) {
		cfg.metrics().IncSyncFailure(stage)
		logger.Error().
			Err(err).
			Str(bblog.FieldJobID, jobID).
			Str(bblog.FieldEvent, "sync.failed").
			Str("stage", stage).
			Msg("catalog sync failed")
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	docs, err := readCatalogDir(cfg.CatalogDir)
	if err != nil {
		return fail("read catalog dir", err)
	}

	loaded := make(map[model.CollectionName][]model.Item)
	items := 0
	for _, doc := range docs {
		decoded, err := model.DecodeItems(doc.collection, doc.data)
		if err != nil {
			return fail("decode catalog", fmt.Errorf("%s: %w", doc.name, err))
		}
		loaded[doc.collection] = append(loaded[doc.collection], decoded...)
		items += len(decoded)
	}

	if err := checkReferences(ctx, cfg, loaded); err != nil {
		return fail("check references", err)
	}

	// Referenced collections land first so a failure mid-way never leaves
	// parts pointing at absent manufacturers or shops.
	order := []model.CollectionName{
		model.CollectionManufacturers, model.CollectionShops, model.CollectionParts,
	}
	for _, collection := range order {
		for _, item := range loaded[collection] {
			if err := cfg.Store.Put(ctx, item); err != nil {
				return fail("store catalog", fmt.Errorf("%s/%s: %w", collection, item.ItemID(), err))
			}
		}
	}

	exportPath := filepath.Join(cfg.DataDir, ExportName)
	if err := writeCatalogExport(ctx, exportPath, cfg.Store); err != nil {
		return fail("export catalog", err)
	}
	logger.Info().
		Str(bblog.FieldEvent, "catalog.export").
		Str(bblog.FieldPath, exportPath).
		Msg("catalog exported")

	counts, err := cfg.Store.Counts(ctx)
	if err != nil {
		return fail("count catalog", err)
	}
	for collection, count := range counts {
		cfg.metrics().RecordCollectionCount(string(collection), count)
	}

	duration := time.Since(start)
	cfg.metrics().RecordSyncDuration(duration.Seconds())

	status := &Status{
		JobID:      jobID,
		LastRun:    time.Now(),
		DurationMS: duration.Milliseconds(),
		Files:      len(docs),
		Items:      items,
		Counts:     counts,
	}
	logger.Info().
		Str(bblog.FieldJobID, jobID).
		Str(bblog.FieldEvent, "sync.success").
		Int("files", status.Files).
		Int("items", status.Items).
		Int64(bblog.FieldDurationMS, status.DurationMS).
		Msg("catalog sync completed")
	return status, nil
}

// document is one catalog file reduced to JSON.
type document struct {
	name       string
	collection model.CollectionName
	data       []byte
}

// readCatalogDir loads the catalog documents in dir. The filename stem names
// the collection, the extension picks the decoder. Files with other
// extensions are skipped.
func readCatalogDir(dir string) ([]document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var docs []document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		switch ext {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}

		collection, err := model.ParseCollection(strings.TrimSuffix(name, ext))
		if err != nil {
			return nil, model.NewConfigError("catalog file %q does not name a collection", name)
		}
		if !collection.HasItems() {
			return nil, model.NewConfigError("catalog file %q: collection %q takes no catalog documents", name, collection)
		}

		// Confine reads to the catalog dir; a symlinked document must not
		// pull in files from outside it.
		path, err := fsutil.ConfineRelPath(dir, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := fsutil.IsRegularFile(path); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if ext != ".json" {
			if data, err = yamlToJSON(data); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		docs = append(docs, document{name: name, collection: collection, data: data})
	}
	return docs, nil
}

// yamlToJSON rewrites a YAML document as JSON so the strict model decoders
// apply to both formats. yaml.v3 already rejects duplicate keys.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return json.Marshal(v)
}

// checkReferences verifies that every part names a known manufacturer and
// that every listing names a known shop. References resolve against the
// store contents plus the documents being loaded, so a part file may point
// at a manufacturer that arrived through the API.
func checkReferences(ctx context.Context, cfg Config, loaded map[model.CollectionName][]model.Item) error {
	manufacturers, err := knownIDs(ctx, cfg, model.CollectionManufacturers, loaded)
	if err != nil {
		return err
	}
	shops, err := knownIDs(ctx, cfg, model.CollectionShops, loaded)
	if err != nil {
		return err
	}

	for _, item := range loaded[model.CollectionParts] {
		part, ok := item.(*model.Part)
		if !ok {
			continue
		}
		if !manufacturers[part.ManufacturerID] {
			return model.NewConfigError("part %q references unknown manufacturer %q", part.ID, part.ManufacturerID)
		}
		for _, variant := range part.Variants {
			for _, listing := range variant.Listings {
				if !shops[listing.ShopID] {
					return model.NewConfigError("listing %s/%s references unknown shop %q", part.ID, variant.ID, listing.ShopID)
				}
			}
		}
	}
	return nil
}

func knownIDs(ctx context.Context, cfg Config, collection model.CollectionName, loaded map[model.CollectionName][]model.Item) (map[model.ID]bool, error) {
	stored, err := cfg.Store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	ids := make(map[model.ID]bool, len(stored)+len(loaded[collection]))
	for _, item := range stored {
		ids[item.ItemID()] = true
	}
	for _, item := range loaded[collection] {
		ids[item.ItemID()] = true
	}
	return ids, nil
}
