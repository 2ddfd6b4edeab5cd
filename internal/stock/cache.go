package stock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
)

// DefaultMaxEntries bounds the cache when no size is configured.
const DefaultMaxEntries = 256

// LoadFunc loads the value for a date on a cache miss.
type LoadFunc func(ctx context.Context, date model.Date) (decimal.Decimal, error)

// Cache holds posted market values keyed by stock date.
type Cache struct {
	mu     sync.Mutex // serialises check-then-add in Put
	values *lru.Cache[model.Date, decimal.Decimal]
	loads  singleflight.Group
	logger *slog.Logger
}

// NewCache creates a cache bounded to maxEntries values.
func NewCache(maxEntries int, logger *slog.Logger) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	values, err := lru.New[model.Date, decimal.Decimal](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{values: values, logger: logger}, nil
}

// Get returns the cached value for date and marks it recently used.
func (c *Cache) Get(date model.Date) (decimal.Decimal, bool) {
	v, ok := c.values.Get(date)
	metrics.RecordCacheLookup(ok)
	return v, ok
}

// Put stores a value. Storing the same value twice is a no-op; storing a
// different one keeps the original and returns ErrConflictingValue.
func (c *Cache) Put(date model.Date, v decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.values.Peek(date); ok {
		if old.Equal(v) {
			return nil
		}
		metrics.RecordCacheConflict()
		c.logger.Error("upstream data error: conflicting market value",
			"date", date,
			"cached", old.StringFixed(2),
			"rejected", v.StringFixed(2),
		)
		return fmt.Errorf("%w %s: cached %s, got %s", ErrConflictingValue, date, old.StringFixed(2), v.StringFixed(2))
	}

	c.values.Add(date, v)
	return nil
}

// Len returns the number of cached values.
func (c *Cache) Len() int {
	return c.values.Len()
}

// Purge drops every cached value.
func (c *Cache) Purge() {
	c.values.Purge()
}

// GetOrLoad returns the cached value for date, or runs load once for all
// concurrent callers missing the same date. A caller whose ctx ends stops
// waiting, but the shared load keeps running and still fills the cache.
func (c *Cache) GetOrLoad(ctx context.Context, date model.Date, load LoadFunc) (decimal.Decimal, error) {
	if v, ok := c.Get(date); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(date.String(), func() (any, error) {
		// Another load may have finished between our miss and this call.
		if v, ok := c.values.Peek(date); ok {
			return v, nil
		}

		v, err := load(detached, date)
		if err != nil {
			return decimal.Decimal{}, err
		}

		if err := c.Put(date, v); err != nil {
			// Serve the value we already had; the conflict is logged in Put.
			if old, ok := c.values.Peek(date); ok {
				return old, nil
			}
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return decimal.Decimal{}, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	case <-ctx.Done():
		return decimal.Decimal{}, ctx.Err()
	}
}
