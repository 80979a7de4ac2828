// SPDX-License-Identifier: MIT

package jobs

import (
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/validate"
)

// validateConfig validates the configuration before any sync stage runs.
func validateConfig(cfg Config) error {
	v := validate.New()

	v.Directory("CatalogDir", cfg.CatalogDir, true)
	v.Directory("DataDir", cfg.DataDir, false)

	if !v.IsValid() {
		return v.Err()
	}

	if cfg.Store == nil {
		return model.NewConfigError("sync requires a catalog store")
	}

	return nil
}
