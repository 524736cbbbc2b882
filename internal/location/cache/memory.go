package cache

import (
	"context"
	"sync"
	"time"

	"unitedhelp/internal/location"
)

type entry struct {
	result    location.Result
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache. Expired entries are dropped on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*location.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	r := e.result
	return &r, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, result *location.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{result: *result, expiresAt: c.now().Add(c.ttl)}
	return nil
}
