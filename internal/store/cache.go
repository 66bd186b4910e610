// Package store caches acquired datasets and the resolved roster, in memory
// and optionally in a durable SQLite file.
package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("no cached entry")
)

// RosterKey holds the resolved city/country roster.
const RosterKey = "countries_cities"

// DefaultTTL is how long an entry is reused before a refetch is attempted.
const DefaultTTL = 24 * time.Hour

// DatasetCache is a concurrency-safe two-tier cache. The memory tier expires
// entries on its own; the durable tier is checked against the stored time.
type DatasetCache struct {
	ttl     time.Duration
	mem     *cache.Cache
	durable *SQLite
	now     func() time.Time
	logger  *slog.Logger
}

// NewDatasetCache creates a cache with the given TTL. durable may be nil for
// a memory-only cache.
func NewDatasetCache(ttl time.Duration, durable *SQLite, logger *slog.Logger) *DatasetCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DatasetCache{
		ttl:     ttl,
		mem:     cache.New(ttl, 2*ttl),
		durable: durable,
		now:     time.Now,
		logger:  logger.With("component", "cache"),
	}
}

// TTL returns the configured time-to-live.
func (c *DatasetCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live dataset cached for (city, year).
func (c *DatasetCache) Get(ctx context.Context, city string, year int) (sun.Dataset, bool) {
	var ds sun.Dataset
	ok := c.get(ctx, sun.CacheKey(sun.ProvenanceRemote, city, year), &ds)
	return ds, ok
}

// Put stores ds under "<provenance>_<city>_<year>".
func (c *DatasetCache) Put(ctx context.Context, ds sun.Dataset) error {
	return c.put(ctx, sun.CacheKey(ds.Provenance, ds.City.Name, ds.Year), ds)
}

// GetRoster returns the cached roster.
func (c *DatasetCache) GetRoster(ctx context.Context) (sun.Roster, bool) {
	var r sun.Roster
	ok := c.get(ctx, RosterKey, &r)
	return r, ok
}

// PutRoster caches the resolved roster under the same TTL policy as datasets.
func (c *DatasetCache) PutRoster(ctx context.Context, r sun.Roster) error {
	return c.put(ctx, RosterKey, r)
}

// Clear drops every entry from both tiers.
func (c *DatasetCache) Clear(ctx context.Context) error {
	c.mem.Flush()
	if c.durable == nil {
		return nil
	}
	return c.durable.Clear(ctx)
}

// Purge removes expired entries from both tiers.
func (c *DatasetCache) Purge(ctx context.Context) (int64, error) {
	c.mem.DeleteExpired()
	if c.durable == nil {
		return 0, nil
	}
	return c.durable.DeleteStoredBefore(ctx, c.now().Add(-c.ttl))
}

// Len is the number of entries in the memory tier.
func (c *DatasetCache) Len() int {
	return c.mem.ItemCount()
}

func (c *DatasetCache) get(ctx context.Context, key string, dst any) bool {
	if v, ok := c.mem.Get(key); ok {
		switch dst := dst.(type) {
		case *sun.Dataset:
			if ds, ok := v.(sun.Dataset); ok {
				*dst = ds
				return true
			}
		case *sun.Roster:
			if r, ok := v.(sun.Roster); ok {
				*dst = r
				return true
			}
		}
	}
	if c.durable == nil {
		return false
	}

	storedAt, err := c.durable.Get(ctx, key, dst)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("durable cache read failed", "key", key, "error", err)
		}
		return false
	}

	age := c.now().Sub(storedAt)
	if age >= c.ttl {
		if err := c.durable.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to evict expired entry", "key", key, "error", err)
		}
		return false
	}

	// Warm the memory tier for the remainder of the entry's life.
	switch v := dst.(type) {
	case *sun.Dataset:
		c.mem.Set(key, *v, c.ttl-age)
	case *sun.Roster:
		c.mem.Set(key, *v, c.ttl-age)
	}
	return true
}

func (c *DatasetCache) put(ctx context.Context, key string, v any) error {
	c.mem.Set(key, v, cache.DefaultExpiration)
	if c.durable == nil {
		return nil
	}
	return c.durable.Put(ctx, key, v, c.now())
}
