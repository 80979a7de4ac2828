// SPDX-License-Identifier: MIT

// Package catalog persists the bike part catalog: parts, manufacturers and
// shops, keyed by collection and item ID.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eardbi/bike-builds-api/internal/model"
)

// Store is the catalog persistence interface. Implementations must be safe
// for concurrent use.
type Store interface {
	// Put upserts an item under its own collection and ID.
	Put(ctx context.Context, item model.Item) error

	// Get returns the item or an error wrapping model.ErrNotFound.
	Get(ctx context.Context, collection model.CollectionName, id model.ID) (model.Item, error)

	// Delete removes the item. Deleting a missing item reports
	// model.ErrNotFound.
	Delete(ctx context.Context, collection model.CollectionName, id model.ID) error

	// List returns all items of a collection ordered by ID.
	List(ctx context.Context, collection model.CollectionName) ([]model.Item, error)

	// Counts reports the number of stored items per item collection.
	Counts(ctx context.Context) (map[model.CollectionName]int, error)

	Close() error
}

// itemKey builds the storage key "<collection>:<id>".
func itemKey(collection model.CollectionName, id model.ID) []byte {
	return []byte(string(collection) + ":" + string(id))
}

func collectionPrefix(collection model.CollectionName) []byte {
	return []byte(string(collection) + ":")
}

func encodeItem(item model.Item) ([]byte, error) {
	buf, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", item.Kind(), item.ItemID(), err)
	}
	return buf, nil
}

// decodeStored unmarshals a stored value into the collection's item type.
// Values were validated before Put, so this is a plain decode.
func decodeStored(collection model.CollectionName, val []byte) (model.Item, error) {
	item, ok := model.NewItem(collection)
	if !ok {
		return nil, model.NewConfigError("collection %q has no item model", collection)
	}
	if err := json.Unmarshal(val, item); err != nil {
		return nil, fmt.Errorf("decode stored %s item: %w", collection, err)
	}
	return item, nil
}

// checkItem guards key construction. Items are validated by the caller; the
// store only needs a usable collection and ID.
func checkItem(item model.Item) error {
	if _, ok := model.NewItem(item.Kind()); !ok {
		return model.NewConfigError("collection %q has no item model", item.Kind())
	}
	if item.ItemID() == "" {
		return model.NewConfigError("%s item %q has no id", item.Kind(), item.ItemName())
	}
	return nil
}
