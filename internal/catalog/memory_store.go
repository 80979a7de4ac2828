// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eardbi/bike-builds-api/internal/model"
)

// MemoryStore keeps catalog items in memory. It mirrors the Badger store's
// semantics (JSON values, sorted listing) and backs tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Put(ctx context.Context, item model.Item) error {
	if err := checkItem(item); err != nil {
		return err
	}
	buf, err := encodeItem(item)
	if err != nil {
		return err
	}
	key := string(itemKey(item.Kind(), item.ItemID()))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = buf
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection model.CollectionName, id model.ID) (model.Item, error) {
	key := string(itemKey(collection, id))

	s.mu.RLock()
	buf, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}
	return decodeStored(collection, buf)
}

func (s *MemoryStore) Delete(ctx context.Context, collection model.CollectionName, id model.ID) error {
	key := string(itemKey(collection, id))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection model.CollectionName) ([]model.Item, error) {
	if _, ok := model.NewItem(collection); !ok {
		return nil, model.NewConfigError("collection %q has no item model", collection)
	}

	prefix := string(collectionPrefix(collection))

	// Snapshot under the read lock, decode outside it.
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	values := make(map[string][]byte, len(keys))
	for _, key := range keys {
		values[key] = s.items[key]
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	items := make([]model.Item, 0, len(keys))
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		decoded, err := decodeStored(collection, values[key])
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}
		items = append(items, decoded)
	}
	return items, nil
}

func (s *MemoryStore) Counts(ctx context.Context) (map[model.CollectionName]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[model.CollectionName]int, len(model.ItemCollections()))
	for _, collection := range model.ItemCollections() {
		counts[collection] = 0
	}
	for key := range s.items {
		if i := strings.IndexByte(key, ':'); i > 0 {
			counts[model.CollectionName(key[:i])]++
		}
	}
	return counts, nil
}

// Ensure interface compliance at compile time.
var _ Store = (*MemoryStore)(nil)
