// Package cache is a small thread-safe TTL store. The suggestion
// pipeline uses it to absorb repeated lookups for the same query text.
package cache

import (
	"sync"
	"time"
)

type item struct {
	value      any
	expiration int64 // unix nanos; 0 means no expiry
}

// Cache is a key-value store with per-item expiration and a periodic
// sweep of expired entries.
type Cache struct {
	mu         sync.RWMutex
	items      map[string]item
	defaultTTL time.Duration
	stopSweep  chan struct{}
	stopOnce   sync.Once
}

// New creates a cache with the given default TTL. sweepInterval
// drives the background cleanup of expired items.
func New(defaultTTL, sweepInterval time.Duration) *Cache {
	c := &Cache{
		items:      make(map[string]item),
		defaultTTL: defaultTTL,
		stopSweep:  make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL. A non-positive
// duration stores it without expiry.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expiration: exp}
	c.mu.Unlock()
}

// Get returns the value and true if the key exists and has not
// expired. Expired entries are removed on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()
	if !found {
		return nil, false
	}
	if it.expiration > 0 && time.Now().UnixNano() > it.expiration {
		c.Delete(key)
		return nil, false
	}
	return it.value, true
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored items, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop halts the background sweep. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopSweep) })
}

func (c *Cache) sweepLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if it.expiration > 0 && now > it.expiration {
			delete(c.items, key)
		}
	}
}
