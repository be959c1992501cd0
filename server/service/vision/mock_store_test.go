package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hrygo/stockwear/store"
)

var errStorage = errors.New("storage unavailable")

// mockStore is an in-memory Store for tests.
type mockStore struct {
	mu sync.Mutex

	products   map[int32]*store.Product
	embeddings map[int32]*store.ProductEmbedding
	references map[int32]*store.ReferenceImage
	feedback   []*store.VisualFeedback
	queries    []*store.RecognitionQuery
	nextID     int32

	catalogReads atomic.Int32
	failCatalog  atomic.Bool
	failFeedback atomic.Bool
	failQueries  atomic.Bool
	// failEmbeddingWrites and failReferenceDeletes break single statements of multi-step writes.
	failEmbeddingWrites  atomic.Bool
	failReferenceDeletes atomic.Bool
	// rawOverrides replaces the JSON of an embedding in catalog rows.
	rawOverrides map[int32][]byte
	// catalogGate, when set, blocks catalog reads until it is closed.
	catalogGate chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		products:     map[int32]*store.Product{},
		embeddings:   map[int32]*store.ProductEmbedding{},
		references:   map[int32]*store.ReferenceImage{},
		rawOverrides: map[int32][]byte{},
	}
}

func (m *mockStore) id() int32 {
	m.nextID++
	return m.nextID
}

func (m *mockStore) addProduct(tenantID int32, name string, status store.ProductStatus) *store.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &store.Product{ID: m.id(), TenantID: tenantID, Code: fmt.Sprintf("P-%d", m.nextID), Name: name, Status: status}
	m.products[p.ID] = p
	return p
}

func (m *mockStore) addEmbedding(product *store.Product, vector []float32) *store.ProductEmbedding {
	e, _ := m.CreateProductEmbedding(context.Background(), &store.ProductEmbedding{
		ProductID: product.ID,
		TenantID:  product.TenantID,
		Embedding: vector,
	})
	return e
}

func (m *mockStore) GetProduct(_ context.Context, id int32) (*store.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockStore) ListProducts(_ context.Context, find *store.FindProduct) ([]*store.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[int32]bool{}
	for _, id := range find.IDList {
		wanted[id] = true
	}
	list := []*store.Product{}
	for _, p := range m.products {
		if len(wanted) > 0 && !wanted[p.ID] {
			continue
		}
		if find.TenantID != nil && p.TenantID != *find.TenantID {
			continue
		}
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *mockStore) ListCatalogRows(_ context.Context, tenantID int32) ([]*store.CatalogRow, error) {
	m.catalogReads.Add(1)
	if gate := m.catalogGate; gate != nil {
		<-gate
	}
	if m.failCatalog.Load() {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	products := []*store.Product{}
	for _, p := range m.products {
		if p.TenantID == tenantID && p.Status == store.ProductActive {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	embeddings := []*store.ProductEmbedding{}
	for _, e := range m.embeddings {
		embeddings = append(embeddings, e)
	}
	sort.Slice(embeddings, func(i, j int) bool { return embeddings[i].ID < embeddings[j].ID })

	rows := []*store.CatalogRow{}
	for _, p := range products {
		base := store.CatalogRow{ProductID: p.ID, Code: p.Code, Name: p.Name}
		matched := false
		for _, e := range embeddings {
			if e.ProductID != p.ID {
				continue
			}
			matched = true
			row := base
			id := e.ID
			row.EmbeddingID = &id
			row.Source = e.Source
			row.ReferenceImageID = e.ReferenceImageID
			if raw, ok := m.rawOverrides[e.ID]; ok {
				row.RawEmbedding = raw
			} else {
				row.RawEmbedding, _ = json.Marshal(e.Embedding)
			}
			rows = append(rows, &row)
		}
		if !matched {
			row := base
			rows = append(rows, &row)
		}
	}
	return rows, nil
}

func (m *mockStore) CreateProductEmbedding(_ context.Context, create *store.ProductEmbedding) (*store.ProductEmbedding, error) {
	if m.failEmbeddingWrites.Load() {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *create
	copied.ID = m.id()
	m.embeddings[copied.ID] = &copied
	result := copied
	return &result, nil
}

func (m *mockStore) GetProductEmbedding(_ context.Context, id int32) (*store.ProductEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.embeddings[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (m *mockStore) DeleteProductEmbeddings(_ context.Context, find *store.DeleteProductEmbedding) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, e := range m.embeddings {
		if find.ID != nil && id != *find.ID {
			continue
		}
		if find.ProductID != nil && e.ProductID != *find.ProductID {
			continue
		}
		if find.ReferenceImageID != nil && (e.ReferenceImageID == nil || *e.ReferenceImageID != *find.ReferenceImageID) {
			continue
		}
		delete(m.embeddings, id)
		removed++
	}
	return removed, nil
}

func (m *mockStore) embeddingsForReference(id int32) []*store.ProductEmbedding {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.ProductEmbedding{}
	for _, e := range m.embeddings {
		if e.ReferenceImageID != nil && *e.ReferenceImageID == id {
			list = append(list, e)
		}
	}
	return list
}

func (m *mockStore) CreateReferenceImage(_ context.Context, create *store.ReferenceImage) (*store.ReferenceImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *create
	copied.ID = m.id()
	m.references[copied.ID] = &copied
	result := copied
	return &result, nil
}

func (m *mockStore) GetReferenceImage(_ context.Context, id int32) (*store.ReferenceImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.references[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *mockStore) ListReferenceImages(_ context.Context, find *store.FindReferenceImage) ([]*store.ReferenceImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.ReferenceImage{}
	for _, r := range m.references {
		if find.ProductID != nil && r.ProductID != *find.ProductID {
			continue
		}
		if find.TenantID != nil && r.TenantID != *find.TenantID {
			continue
		}
		if find.WithoutEmbedding {
			has := false
			for _, e := range m.embeddings {
				if e.ReferenceImageID != nil && *e.ReferenceImageID == r.ID {
					has = true
				}
			}
			if has {
				continue
			}
		}
		copied := *r
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (m *mockStore) DeleteReferenceImage(_ context.Context, find *store.DeleteReferenceImage) error {
	if m.failReferenceDeletes.Load() {
		return errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.references, find.ID)
	return nil
}

func (m *mockStore) CreateVisualFeedback(_ context.Context, create *store.VisualFeedback) (*store.VisualFeedback, error) {
	if m.failFeedback.Load() {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *create
	copied.ID = int64(len(m.feedback) + 1)
	m.feedback = append(m.feedback, &copied)
	return &copied, nil
}

func (m *mockStore) ListVisualFeedback(_ context.Context, find *store.FindVisualFeedback) ([]*store.VisualFeedback, error) {
	if m.failFeedback.Load() {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.VisualFeedback{}
	for _, f := range m.feedback {
		if find.TenantID != nil && f.TenantID != *find.TenantID {
			continue
		}
		if find.WasCorrect != nil && f.WasCorrect != *find.WasCorrect {
			continue
		}
		list = append(list, f)
	}
	return list, nil
}

func (m *mockStore) CreateRecognitionQuery(_ context.Context, create *store.RecognitionQuery) (*store.RecognitionQuery, error) {
	if m.failQueries.Load() {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *create
	copied.ID = int64(len(m.queries) + 1)
	copied.CreatedTs = copied.ID
	m.queries = append(m.queries, &copied)
	return &copied, nil
}

func (m *mockStore) ListRecognitionQueries(_ context.Context, find *store.FindRecognitionQuery) ([]*store.RecognitionQuery, error) {
	if m.failQueries.Load() {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.RecognitionQuery{}
	for i := len(m.queries) - 1; i >= 0; i-- {
		q := m.queries[i]
		if find.TenantID != nil && q.TenantID != *find.TenantID {
			continue
		}
		if find.Result != nil && q.Result != *find.Result {
			continue
		}
		list = append(list, q)
		if find.Limit > 0 && len(list) == find.Limit {
			break
		}
	}
	return list, nil
}
