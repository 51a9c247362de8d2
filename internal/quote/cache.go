// Package quote keeps ephemeral real-time snapshots. Entries live in
// process memory with a TTL, optionally mirrored to Redis so multiple
// processes share one upstream quote budget. Quotes never enter the
// durable bar series.
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/wyeliu/stockradar/internal/market"
	"github.com/wyeliu/stockradar/pkg/logger"
	"github.com/wyeliu/stockradar/pkg/redis"
)

// Cache is an in-memory TTL cache for quote snapshots.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]*market.Quote
	ttl    time.Duration
	second *redis.Cache // optional shared level, may be nil
	logger *logger.Logger
}

// NewCache creates a quote cache. second may be nil when Redis is
// disabled.
func NewCache(ttl time.Duration, second *redis.Cache, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		quotes: make(map[string]*market.Quote),
		ttl:    ttl,
		second: second,
		logger: log.WithField("module", "quote_cache"),
	}
}

// Update stores a snapshot, rejecting data older than what is held.
func (c *Cache) Update(ctx context.Context, q *market.Quote) bool {
	c.mu.Lock()
	existing, exists := c.quotes[q.Code]
	if exists && q.At.Before(existing.At) {
		c.mu.Unlock()
		c.logger.WithFields(map[string]interface{}{
			"code":     q.Code,
			"new_time": q.At,
			"old_time": existing.At,
		}).Debug("Rejected older quote")
		return false
	}
	c.quotes[q.Code] = q
	c.mu.Unlock()

	if c.second != nil {
		// Shared level is best effort
		_ = c.second.Set(ctx, redis.QuoteKey(q.Code), q, c.ttl)
	}
	return true
}

// Get retrieves a snapshot. fresh is false when the entry outlived its
// TTL; the caller decides whether a stale quote is still usable.
func (c *Cache) Get(ctx context.Context, code string) (q *market.Quote, fresh bool) {
	c.mu.RLock()
	cached, exists := c.quotes[code]
	c.mu.RUnlock()

	if exists {
		return cached, time.Since(cached.At) <= c.ttl
	}

	if c.second != nil {
		var shared market.Quote
		if found, err := c.second.Get(ctx, redis.QuoteKey(code), &shared); err == nil && found {
			c.mu.Lock()
			c.quotes[code] = &shared
			c.mu.Unlock()
			return &shared, time.Since(shared.At) <= c.ttl
		}
	}

	return nil, false
}

// Purge drops entries older than keep.
func (c *Cache) Purge(keep time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-keep)
	for code, q := range c.quotes {
		if q.At.Before(cutoff) {
			delete(c.quotes, code)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached snapshots
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
