// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/eardbi/bike-builds-api/internal/model"
)

// BadgerStore persists catalog items in a Badger key-value database.
// Keys are "<collection>:<id>", values are JSON.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the catalog database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Put(ctx context.Context, item model.Item) error {
	if err := checkItem(item); err != nil {
		return err
	}
	buf, err := encodeItem(item)
	if err != nil {
		return err
	}
	key := itemKey(item.Kind(), item.ItemID())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (s *BadgerStore) Get(ctx context.Context, collection model.CollectionName, id model.ID) (model.Item, error) {
	key := itemKey(collection, id)
	var out model.Item
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeStored(collection, val)
			if err != nil {
				return err
			}
			out = decoded
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
		}
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Delete(ctx context.Context, collection model.CollectionName, id model.ID) error {
	key := itemKey(collection, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}
	return err
}

func (s *BadgerStore) List(ctx context.Context, collection model.CollectionName) ([]model.Item, error) {
	if _, ok := model.NewItem(collection); !ok {
		return nil, model.NewConfigError("collection %q has no item model", collection)
	}

	prefix := collectionPrefix(collection)
	var items []model.Item
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			entry := it.Item()
			key := entry.KeyCopy(nil)
			if err := entry.Value(func(val []byte) error {
				decoded, err := decodeStored(collection, val)
				if err != nil {
					return fmt.Errorf("key %s: %w", key, err)
				}
				items = append(items, decoded)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *BadgerStore) Counts(ctx context.Context) (map[model.CollectionName]int, error) {
	counts := make(map[model.CollectionName]int, len(model.ItemCollections()))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, collection := range model.ItemCollections() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			prefix := collectionPrefix(collection)
			n := 0
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				n++
			}
			it.Close()
			counts[collection] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Ensure interface compliance at compile time.
var _ Store = (*BadgerStore)(nil)
