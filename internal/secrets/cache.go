package secrets

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	value   string
	fetched time.Time
}

// cachingProvider memoizes secrets for a fixed TTL. An expired entry is
// dropped before the refresh, so a failed refresh is never papered over
// with a stale value.
type cachingProvider struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachingProvider wraps inner with a per-name TTL cache.
func NewCachingProvider(inner Provider, ttl time.Duration) Provider {
	return newCachingProvider(inner, ttl, time.Now)
}

func newCachingProvider(inner Provider, ttl time.Duration, now func() time.Time) *cachingProvider {
	return &cachingProvider{
		inner:   inner,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *cachingProvider) Get(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[name]
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		c.mu.Unlock()
		return entry.value, nil
	}
	delete(c.entries, name)
	c.mu.Unlock()

	value, err := c.inner.Get(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[name] = cacheEntry{value: value, fetched: c.now()}
	c.mu.Unlock()
	return value, nil
}
