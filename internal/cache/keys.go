// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"

	"github.com/eardbi/bike-builds-api/internal/model"
)

// Key builders keep handlers and tests agreeing on the cache layout.
// Collection writes and syncs call Clear, so keys carry no versioning.

// ListKey names the cached item list of one collection.
func ListKey(collection model.CollectionName) string {
	return fmt.Sprintf("list:%s", collection)
}

// HistoryKey names a cached price history response. since is the raw query
// value, empty for the full history.
func HistoryKey(partID model.ID, since string) string {
	if since == "" {
		return fmt.Sprintf("prices:%s:all", partID)
	}
	return fmt.Sprintf("prices:%s:since:%s", partID, since)
}

// LatestKey names the cached latest-price response of a part.
func LatestKey(partID model.ID) string {
	return fmt.Sprintf("prices:%s:latest", partID)
}
