package cohort

import (
	"context"
	"sync"
	"time"
)

// Cache stores cohort check results by criteria hash for the life of their
// TTL. The cache is advisory: an expired or missing entry always falls back
// to a fresh count, and a stale read within TTL is acceptable.
type Cache interface {
	// Get returns the cached result and true, or the zero value and false
	// when absent or expired at the given time.
	Get(ctx context.Context, criteriaHash string, now time.Time) (CheckResult, bool, error)
	Set(ctx context.Context, result CheckResult) error
}

// InMemoryCache keeps results in a map, evicting lazily on read.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CheckResult
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]CheckResult)}
}

func (c *InMemoryCache) Get(_ context.Context, criteriaHash string, now time.Time) (CheckResult, bool, error) {
	c.mu.RLock()
	result, ok := c.entries[criteriaHash]
	c.mu.RUnlock()
	if !ok {
		return CheckResult{}, false, nil
	}
	if result.Expired(now) {
		c.mu.Lock()
		delete(c.entries, criteriaHash)
		c.mu.Unlock()
		return CheckResult{}, false, nil
	}
	return result, true, nil
}

func (c *InMemoryCache) Set(_ context.Context, result CheckResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[result.CriteriaHash] = result
	return nil
}
