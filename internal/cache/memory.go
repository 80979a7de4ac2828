// SPDX-License-Identifier: MIT

package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Memory is the in-process cache backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// NewMemory creates an in-process cache. A janitor goroutine removes expired
// entries every interval; Close stops it. A non-positive interval disables
// the janitor.
func NewMemory(interval time.Duration) *Memory {
	c := &Memory{
		entries:     make(map[string]entry),
		stopJanitor: make(chan struct{}),
	}
	if interval > 0 {
		go c.janitor(interval)
	}
	return c
}

func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.expired(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.payload, true
}

func (c *Memory) Set(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *Memory) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Memory) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Memory) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Entries:   size,
	}
}

// Close stops the janitor. Safe to call more than once.
func (c *Memory) Close() error {
	c.stopOnce.Do(func() { close(c.stopJanitor) })
	return nil
}

func (c *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopJanitor:
			return
		}
	}
}

func (c *Memory) deleteExpired() int {
	now := time.Now()

	c.mu.Lock()
	count := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(int64(count))
	return count
}

var _ Cache = (*Memory)(nil)
