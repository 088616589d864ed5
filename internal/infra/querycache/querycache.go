// Package querycache provides the process-wide read cache behind every
// entity query: hierarchical keys with prefix invalidation, per-entry
// staleness windows with background refetch, and request deduplication so at
// most one fetch per key is ever in flight.
package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/poupafin/poupafin-go/internal/infra/observability"
	"github.com/poupafin/poupafin-go/internal/infra/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Join builds a hierarchical key: Join("metas", "detail", "42") addresses one
// record, while the "metas/list" prefix covers every list variant.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

type entry struct {
	value       any
	fetchedAt   time.Time
	staleAfter  time.Duration
	invalidated bool
}

func (e entry) fresh(now time.Time) bool {
	return !e.invalidated && now.Sub(e.fetchedAt) < e.staleAfter
}

// Cache is a thread-safe stale-aware cache. Entries never expire outright:
// staleness only makes them eligible for a background refetch on next
// access, so readers always get data immediately once it exists.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]entry
	sf       singleflight.Group
	bulkhead *resilience.Bulkhead
	limiter  *rate.Limiter
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New creates a cache. The bulkhead caps concurrent background refetches;
// the limiter throttles how often stale reads may trigger them.
func New(logger *zap.Logger, metrics *observability.Metrics, bulkhead *resilience.Bulkhead, limiter *rate.Limiter) *Cache {
	return &Cache{
		items:    make(map[string]entry),
		bulkhead: bulkhead,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger,
	}
}

var (
	defaultMu    sync.Mutex
	defaultCache *Cache
)

// GetOrCreate returns the process-wide cache, building it on first call.
// Reinitialization attempts reuse the existing instance, so cached state
// survives re-wiring.
func GetOrCreate(build func() *Cache) *Cache {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCache == nil {
		defaultCache = build()
	}
	return defaultCache
}

// Fetch returns the value for key. A fresh hit is returned as is; a stale or
// invalidated hit is returned immediately while one background refetch is
// scheduled; a miss runs fn synchronously. All fetches for the same key are
// deduplicated through singleflight.
func (c *Cache) Fetch(ctx context.Context, key string, staleAfter time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	group := groupOf(key)

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if ok {
		c.metrics.IncrCacheHit(group)
		if !e.fresh(time.Now()) {
			c.refetchAsync(key, group, staleAfter, fn)
		}
		return e.value, nil
	}

	c.metrics.IncrCacheMiss(group)
	v, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, staleAfter)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// refetchAsync schedules one background refetch for a stale entry. The work
// is dropped rather than queued when the rate limiter or bulkhead says no.
func (c *Cache) refetchAsync(key, group string, staleAfter time.Duration, fn func(ctx context.Context) (any, error)) {
	if c.limiter != nil && !c.limiter.Allow() {
		return
	}
	if c.bulkhead != nil && !c.bulkhead.TryAcquire() {
		return
	}
	go func() {
		if c.bulkhead != nil {
			defer c.bulkhead.Release()
		}
		_, _, _ = c.sf.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			v, err := fn(ctx)
			if err != nil {
				// Stale data stays; the next access tries again.
				c.logger.Warn("querycache: background refetch failed",
					zap.String("key", key),
					zap.Error(err),
				)
				return nil, err
			}
			c.Set(key, v, staleAfter)
			c.metrics.IncrRefetch(group)
			return v, nil
		})
	}()
}

// Peek returns the cached value regardless of staleness, without fetching.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value, resetting its staleness bookkeeping.
func (c *Cache) Set(key string, value any, staleAfter time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry{
		value:      value,
		fetchedAt:  time.Now(),
		staleAfter: staleAfter,
	}
}

// Update rewrites the value for key in place when present, preserving its
// staleness bookkeeping. Returns false when the key is absent.
func (c *Cache) Update(key string, fn func(old any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	e.value = fn(e.value)
	c.items[key] = e
	return true
}

// UpdatePrefix rewrites every cached value under prefix in place.
func (c *Cache) UpdatePrefix(prefix string, fn func(key string, old any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.items {
		if !matches(k, prefix) {
			continue
		}
		e.value = fn(k, e.value)
		c.items[k] = e
	}
}

// Remove deletes the entry for key entirely.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// RemovePrefix deletes every entry under prefix.
func (c *Cache) RemovePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if matches(k, prefix) {
			delete(c.items, k)
		}
	}
}

// Invalidate marks the entry stale without discarding its data.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.invalidated = true
		c.items[key] = e
	}
}

// InvalidatePrefix marks every entry under prefix stale.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.items {
		if matches(k, prefix) {
			e.invalidated = true
			c.items[k] = e
		}
	}
}

// Clear drops every entry. Logout funnels through here.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func matches(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+"/")
}

// groupOf extracts the top-level segment for metrics labels.
func groupOf(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}
