package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hrygo/stockwear/store"
)

// CatalogStore serves per-tenant catalog snapshots and owns the writes that change them.
//
// Reads never fail: on a storage error the previous snapshot (or an empty
// catalog) is returned. Concurrent refreshes of one tenant share a single
// storage read, and a refresh that started before an invalidation does not
// put its result in the cache.
type CatalogStore struct {
	store Store
	cache CatalogCache
	group singleflight.Group

	mu          sync.Mutex
	epoch       uint64
	generations map[int32]uint64
}

type cacheGeneration struct {
	epoch  uint64
	tenant uint64
}

// NewCatalogStore creates a catalog store. A nil cache disables caching.
func NewCatalogStore(store Store, cache CatalogCache) *CatalogStore {
	if cache == nil {
		cache = NopCatalogCache{}
	}
	return &CatalogStore{
		store:       store,
		cache:       cache,
		generations: make(map[int32]uint64),
	}
}

// GetCatalogEmbeddings returns the tenant's catalog, from cache unless expired or forceRefresh is set.
func (c *CatalogStore) GetCatalogEmbeddings(ctx context.Context, tenantID int32, forceRefresh bool) []*CatalogEntry {
	if !forceRefresh {
		if entries, ok := c.cache.Get(tenantID); ok {
			return entries
		}
	}

	// Reads after an invalidation start a new flight instead of joining an older one.
	generation := c.generation(tenantID)
	key := fmt.Sprintf("%d/%d/%d", tenantID, generation.epoch, generation.tenant)
	// The shared refresh must not die with whichever caller happened to start it.
	refreshCtx := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do(key, func() (any, error) {
		return c.refresh(refreshCtx, tenantID, generation), nil
	})
	return v.([]*CatalogEntry)
}

func (c *CatalogStore) refresh(ctx context.Context, tenantID int32, generation cacheGeneration) []*CatalogEntry {
	rows, err := c.store.ListCatalogRows(ctx, tenantID)
	if err != nil {
		slog.Warn("failed to read catalog embeddings, serving previous snapshot",
			"tenant_id", tenantID, "error", err)
		if entries, ok := c.cache.Stale(tenantID); ok {
			return entries
		}
		return []*CatalogEntry{}
	}

	entries := MapCatalogRows(rows)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generationLocked(tenantID) == generation {
		c.cache.Set(tenantID, entries)
	}
	return entries
}

// Invalidate drops the tenant's snapshot so the next read goes to storage.
func (c *CatalogStore) Invalidate(tenantID int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[tenantID]++
	c.cache.Invalidate(tenantID)
}

// InvalidateAll drops every tenant's snapshot.
func (c *CatalogStore) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cache.InvalidateAll()
}

func (c *CatalogStore) generation(tenantID int32) cacheGeneration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(tenantID)
}

func (c *CatalogStore) generationLocked(tenantID int32) cacheGeneration {
	return cacheGeneration{epoch: c.epoch, tenant: c.generations[tenantID]}
}

// AddEmbedding stores a reference vector for a product and invalidates the tenant's catalog.
func (c *CatalogStore) AddEmbedding(ctx context.Context, tenantID, productID int32, vector []float32, source *string, referenceImageID *int32) (*store.ProductEmbedding, error) {
	embedding, err := c.store.CreateProductEmbedding(ctx, &store.ProductEmbedding{
		ProductID:        productID,
		TenantID:         tenantID,
		ReferenceImageID: referenceImageID,
		Embedding:        vector,
		Source:           source,
	})
	if err != nil {
		return nil, err
	}
	c.Invalidate(tenantID)
	return embedding, nil
}

// DeleteEmbedding removes one reference vector and invalidates the owning tenant's catalog.
func (c *CatalogStore) DeleteEmbedding(ctx context.Context, id int32) error {
	embedding, err := c.store.GetProductEmbedding(ctx, id)
	if err != nil {
		return err
	}
	if embedding == nil {
		return store.ErrNotFound
	}
	if _, err := c.store.DeleteProductEmbeddings(ctx, &store.DeleteProductEmbedding{ID: &id}); err != nil {
		return err
	}
	c.Invalidate(embedding.TenantID)
	return nil
}

// MapCatalogRows groups product/embedding rows into catalog entries in row order.
// Embeddings whose payload is not a non-empty JSON array of numbers are dropped;
// their product still appears.
func MapCatalogRows(rows []*store.CatalogRow) []*CatalogEntry {
	entries := []*CatalogEntry{}
	index := make(map[int32]*CatalogEntry)
	for _, row := range rows {
		if row == nil {
			continue
		}
		entry, ok := index[row.ProductID]
		if !ok {
			entry = &CatalogEntry{
				ProductID:   row.ProductID,
				Code:        row.Code,
				Name:        row.Name,
				Description: row.Description,
				Image:       row.Image,
				Supplier:    row.Supplier,
				Embeddings:  []ReferenceVector{},
			}
			index[row.ProductID] = entry
			entries = append(entries, entry)
		}
		if row.EmbeddingID == nil {
			continue
		}
		vector, ok := parseVector(row.RawEmbedding)
		if !ok {
			slog.Debug("skipping malformed embedding", "embedding_id", *row.EmbeddingID, "product_id", row.ProductID)
			continue
		}
		entry.Embeddings = append(entry.Embeddings, ReferenceVector{
			EmbeddingID:      *row.EmbeddingID,
			Vector:           vector,
			Source:           row.Source,
			ReferenceImageID: row.ReferenceImageID,
		})
	}
	return entries
}

func parseVector(raw []byte) ([]float32, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil || len(vector) == 0 {
		return nil, false
	}
	return vector, true
}
