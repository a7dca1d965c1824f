package statistics

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cachedStats is one computed report.
type cachedStats struct {
	stats PerformanceStats
	built time.Time
	ttl   time.Duration
}

// isExpired reports whether the entry is stale. A zero TTL means no caching.
func (c *cachedStats) isExpired(now time.Time) bool {
	if c.ttl == 0 {
		return true
	}
	return now.Sub(c.built) > c.ttl
}

// cache holds reports keyed by query.
type cache struct {
	mu      sync.RWMutex
	entries map[string]*cachedStats
	sf      singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

func newCache(ttl time.Duration, now func() time.Time) *cache {
	return &cache{entries: make(map[string]*cachedStats), ttl: ttl, now: now}
}

// getOrBuild returns the cached report for key or builds it. Concurrent
// callers for the same key share one build. The build runs detached from the
// caller that started it, so one caller giving up never fails the others; each
// caller still returns as soon as its own ctx is done.
func (c *cache) getOrBuild(ctx context.Context, key string, build func(context.Context) (PerformanceStats, error)) (PerformanceStats, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && !entry.isExpired(c.now()) {
		return entry.stats, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (any, error) {
		// Double-check after winning the flight
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && !entry.isExpired(c.now()) {
			return entry.stats, nil
		}

		stats, err := build(detached)
		if err != nil {
			return nil, err
		}

		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = &cachedStats{stats: stats, built: c.now(), ttl: c.ttl}
			c.mu.Unlock()
		}
		return stats, nil
	})

	select {
	case <-ctx.Done():
		return PerformanceStats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return PerformanceStats{}, res.Err
		}
		return res.Val.(PerformanceStats), nil
	}
}

// invalidate drops every cached report.
func (c *cache) invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*cachedStats)
	c.mu.Unlock()
}
