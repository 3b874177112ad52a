// Package cache memoizes report results for a short time, keyed by the
// operation and its scope parameters. Callers opt in per call and can force
// a fresh computation.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"billingrecon/internal/logger"
)

// Defaults used when the configuration leaves size or TTL unset.
const (
	DefaultSize = 256
	DefaultTTL  = 5 * time.Minute
)

// Cache is a size-bounded TTL cache. A nil *Cache is valid and caches nothing.
type Cache struct {
	entries *lru.LRU[string, any]
	ttl     time.Duration
	log     zerolog.Logger
}

// New creates a cache holding at most size entries for ttl each.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: lru.NewLRU[string, any](size, nil, ttl),
		ttl:     ttl,
		log:     logger.WithComponent("report-cache"),
	}
}

// Key builds a cache key from an operation name and its parameters.
// Parameters are rendered with %v, so pass values rather than pointers.
func Key(op string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, op)
	for _, p := range params {
		if t, ok := p.(time.Time); ok {
			parts = append(parts, t.Format(time.RFC3339Nano))
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", p))
	}
	return strings.Join(parts, "|")
}

// GetOrCompute returns the cached value for key, or runs compute and caches
// its result. fresh skips the lookup but still stores the new result. Errors
// are returned as is and never cached.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, fresh bool, compute func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}

	if !fresh {
		if v, ok := c.entries.Get(key); ok {
			if typed, ok := v.(T); ok {
				c.log.Debug().Str("key", key).Msg("Cache hit")
				return typed, nil
			}
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}
	c.entries.Add(key, v)
	c.log.Debug().Str("key", key).Bool("fresh", fresh).Dur("ttl", c.ttl).Msg("Cache store")
	return v, nil
}

// Invalidate drops every entry whose key starts with prefix and returns how
// many were removed. An empty prefix clears the cache.
func (c *Cache) Invalidate(prefix string) int {
	if c == nil {
		return 0
	}
	if prefix == "" {
		n := c.entries.Len()
		c.entries.Purge()
		return n
	}

	removed := 0
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) && c.entries.Remove(k) {
			removed++
		}
	}
	c.log.Debug().Str("prefix", prefix).Int("removed", removed).Msg("Cache invalidated")
	return removed
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
