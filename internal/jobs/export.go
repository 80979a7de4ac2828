// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"

	"github.com/eardbi/bike-builds-api/internal/catalog"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
)

// catalogExport is the document shape of the exported catalog.json.
type catalogExport struct {
	Parts         []model.Item `json:"parts"`
	Manufacturers []model.Item `json:"manufacturers"`
	Shops         []model.Item `json:"shops"`
}

// writeCatalogExport renders the full store contents as one JSON document
// and writes it atomically using renameio: fsync before rename prevents a
// torn file on power failure. Store listings come back ordered by ID, so
// the export is reproducible.
func writeCatalogExport(ctx context.Context, path string, store catalog.Store) error {
	logger := bblog.FromContext(ctx)

	var export catalogExport
	var err error
	if export.Parts, err = store.List(ctx, model.CollectionParts); err != nil {
		return fmt.Errorf("list parts: %w", err)
	}
	if export.Manufacturers, err = store.List(ctx, model.CollectionManufacturers); err != nil {
		return fmt.Errorf("list manufacturers: %w", err)
	}
	if export.Shops, err = store.List(ctx, model.CollectionShops); err != nil {
		return fmt.Errorf("list shops: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	data = append(data, '\n')

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending catalog file: %w", err)
	}
	defer func() {
		// Cleanup removes the temp file when the replace never happened.
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending catalog file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write catalog data: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace catalog file: %w", err)
	}

	return nil
}
