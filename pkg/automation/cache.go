package automation

import (
	"context"
	"sync"
	"time"

	"github.com/autofin/autofin/pkg/models"
)

// Cache fronts the preference repository. Implementations must be safe for
// concurrent readers and a writer; an expired or missing entry is a miss,
// never an error.
type Cache interface {
	Get(ctx context.Context, key string) (*models.AutomationPreference, bool)
	Set(ctx context.Context, key string, pref *models.AutomationPreference, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cacheEntry struct {
	pref      models.AutomationPreference
	timestamp time.Time
	ttl       time.Duration
}

// MemoryCache is the default in-process cache. Writers replace the entries
// map copy-on-write under the mutex, so readers holding the read lock never
// observe a torn entry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]cacheEntry{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*models.AutomationPreference, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(entry.timestamp) >= entry.ttl {
		return nil, false
	}

	copied := entry.pref

	return &copied, true
}

func (c *MemoryCache) Set(_ context.Context, key string, pref *models.AutomationPreference, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]cacheEntry, len(c.entries)+1)
	for k, v := range c.entries {
		next[k] = v
	}

	next[key] = cacheEntry{pref: *pref, timestamp: time.Now(), ttl: ttl}
	c.entries = next

	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]cacheEntry, len(c.entries))
	for k, v := range c.entries {
		if k != key {
			next[k] = v
		}
	}

	c.entries = next

	return nil
}
