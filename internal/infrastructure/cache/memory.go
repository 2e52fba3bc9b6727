package cache

import (
	"context"
	"sync"
	"time"

	"github.com/agroprecios/backend/internal/domain"
)

const defaultCleanupInterval = 10 * time.Minute

// cacheItem is a cached category list with its expiration
type cacheItem struct {
	refs       []string
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory category cache with TTL support
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a cache that sweeps expired entries every
// cleanupInterval (10 minutes when zero). Call Close to stop the sweeper.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	cache := &MemoryCache{
		data: make(map[string]cacheItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go cache.cleanupExpired(cleanupInterval)

	return cache
}

// Get returns a copy of the cached refs for key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists || c.now().After(item.expiration) {
		return nil, domain.ErrCacheMiss
	}

	return append([]string(nil), item.refs...), nil
}

// Set stores a copy of refs under key for ttl. A non-positive ttl removes the key.
func (c *MemoryCache) Set(ctx context.Context, key string, refs []string, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if ttl <= 0 {
		delete(c.data, key)
		return nil
	}

	c.data[key] = cacheItem{
		refs:       append([]string(nil), refs...),
		expiration: c.now().Add(ttl),
	}
	return nil
}

// Delete removes key from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, item := range c.data {
		if now.After(item.expiration) {
			delete(c.data, key)
		}
	}
}
