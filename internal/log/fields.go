// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldJobID         = "job_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Catalog fields
	FieldCollection     = "collection"
	FieldItemID         = "item_id"
	FieldPartID         = "part_id"
	FieldVariantID      = "variant_id"
	FieldShopID         = "shop_id"
	FieldManufacturerID = "manufacturer_id"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"

	// Volume fields
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
)
