package vision

import (
	"time"

	"github.com/hrygo/stockwear/store/cache"
)

// DefaultCatalogTTL is how long a tenant's catalog snapshot is served without a storage read.
const DefaultCatalogTTL = 60 * time.Second

// CatalogCache holds per-tenant catalog snapshots.
// Snapshots are replaced whole; callers must not mutate a returned slice.
type CatalogCache interface {
	// Get returns an unexpired snapshot.
	Get(tenantID int32) ([]*CatalogEntry, bool)
	// Stale returns the last stored snapshot, expired or not.
	Stale(tenantID int32) ([]*CatalogEntry, bool)
	Set(tenantID int32, entries []*CatalogEntry)
	Invalidate(tenantID int32)
	InvalidateAll()
}

// MemoryCatalogCache is a CatalogCache backed by the in-process LRU cache.
type MemoryCatalogCache struct {
	ttl     time.Duration
	entries *cache.Cache[int32, []*CatalogEntry]
}

// NewMemoryCatalogCache creates a cache whose snapshots expire after ttl.
func NewMemoryCatalogCache(ttl time.Duration, opts ...cache.Option) *MemoryCatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &MemoryCatalogCache{
		ttl:     ttl,
		entries: cache.New[int32, []*CatalogEntry](cache.DefaultCapacity, ttl, opts...),
	}
}

func (c *MemoryCatalogCache) Get(tenantID int32) ([]*CatalogEntry, bool) {
	return c.entries.Get(tenantID)
}

func (c *MemoryCatalogCache) Stale(tenantID int32) ([]*CatalogEntry, bool) {
	return c.entries.GetStale(tenantID)
}

func (c *MemoryCatalogCache) Set(tenantID int32, entries []*CatalogEntry) {
	c.entries.Set(tenantID, entries, c.ttl)
}

func (c *MemoryCatalogCache) Invalidate(tenantID int32) {
	c.entries.Delete(tenantID)
}

func (c *MemoryCatalogCache) InvalidateAll() {
	c.entries.Clear()
}

// NopCatalogCache never holds anything, so every read goes to storage.
type NopCatalogCache struct{}

func (NopCatalogCache) Get(int32) ([]*CatalogEntry, bool)   { return nil, false }
func (NopCatalogCache) Stale(int32) ([]*CatalogEntry, bool) { return nil, false }
func (NopCatalogCache) Set(int32, []*CatalogEntry)          {}
func (NopCatalogCache) Invalidate(int32)                    {}
func (NopCatalogCache) InvalidateAll()                      {}
