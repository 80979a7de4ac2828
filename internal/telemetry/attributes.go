// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Catalog attributes
	CatalogCollectionKey = "catalog.collection"
	CatalogItemIDKey     = "catalog.item_id"

	// Scrape attributes
	ScrapeShopKey    = "scrape.shop"
	ScrapePartKey    = "scrape.part"
	ScrapeVariantKey = "scrape.variant"
	ScrapeModeKey    = "scrape.mode"

	// Sync job attributes
	SyncJobIDKey    = "sync.job_id"
	SyncStatusKey   = "sync.status"
	SyncFilesKey    = "sync.files"
	SyncItemsKey    = "sync.items"
	SyncDurationKey = "sync.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// CatalogAttributes creates catalog span attributes. The item ID is omitted
// for collection-level operations.
func CatalogAttributes(collection, itemID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(CatalogCollectionKey, collection),
	}
	if itemID != "" {
		attrs = append(attrs, attribute.String(CatalogItemIDKey, itemID))
	}
	return attrs
}

// ScrapeAttributes creates scrape span attributes.
func ScrapeAttributes(shop, part, variant, mode string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if shop != "" {
		attrs = append(attrs, attribute.String(ScrapeShopKey, shop))
	}
	if part != "" {
		attrs = append(attrs, attribute.String(ScrapePartKey, part))
	}
	if variant != "" {
		attrs = append(attrs, attribute.String(ScrapeVariantKey, variant))
	}
	if mode != "" {
		attrs = append(attrs, attribute.String(ScrapeModeKey, mode))
	}
	return attrs
}

// SyncAttributes creates sync job span attributes.
func SyncAttributes(jobID, status string, files, items int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SyncJobIDKey, jobID),
		attribute.String(SyncStatusKey, status),
		attribute.Int(SyncFilesKey, files),
		attribute.Int(SyncItemsKey, items),
		attribute.Int64(SyncDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
