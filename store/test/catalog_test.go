package test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/stockwear/store"
)

func createTestingProduct(ctx context.Context, t *testing.T, ts *store.Store, tenantID int32, code string, status store.ProductStatus) *store.Product {
	t.Helper()
	product, err := ts.CreateProduct(ctx, &store.Product{
		TenantID: tenantID,
		Code:     code,
		Name:     "Product " + code,
		Supplier: "Textiles Andinos",
		Status:   status,
	})
	require.NoError(t, err)
	return product
}

func TestProductStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	active := createTestingProduct(ctx, t, ts, 1, "CAM-001", store.ProductActive)
	inactive := createTestingProduct(ctx, t, ts, 1, "CAM-002", store.ProductInactive)
	createTestingProduct(ctx, t, ts, 2, "CAM-001", "")

	got, err := ts.GetProduct(ctx, active.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "CAM-001", got.Code)
	assert.Equal(t, store.ProductActive, got.Status)

	missing, err := ts.GetProduct(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	tenant := int32(1)
	status := store.ProductActive
	list, err := ts.ListProducts(ctx, &store.FindProduct{TenantID: &tenant, Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	list, err = ts.ListProducts(ctx, &store.FindProduct{IDList: []int32{active.ID, inactive.ID}})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProductEmbeddingStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	product := createTestingProduct(ctx, t, ts, 1, "PAN-014", store.ProductActive)

	image, err := ts.CreateReferenceImage(ctx, &store.ReferenceImage{
		ProductID: product.ID,
		TenantID:  1,
		Path:      "productos/id-1/referencias/a.png",
		Filename:  "a.png",
		MimeType:  "image/png",
		Size:      12,
	})
	require.NoError(t, err)

	source := image.Path
	created, err := ts.CreateProductEmbedding(ctx, &store.ProductEmbedding{
		ProductID:        product.ID,
		TenantID:         1,
		ReferenceImageID: &image.ID,
		Embedding:        []float32{0.6, 0.8, 0},
		Source:           &source,
	})
	require.NoError(t, err)
	require.Greater(t, created.ID, int32(0))

	feedbackSource := store.SourceUserFeedback
	_, err = ts.CreateProductEmbedding(ctx, &store.ProductEmbedding{
		ProductID: product.ID,
		TenantID:  1,
		Embedding: []float32{1, 0, 0},
		Source:    &feedbackSource,
	})
	require.NoError(t, err)

	got, err := ts.GetProductEmbedding(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0}, got.Embedding, 1e-6)
	require.NotNil(t, got.ReferenceImageID)
	assert.Equal(t, image.ID, *got.ReferenceImageID)

	pending, err := ts.ListReferenceImages(ctx, &store.FindReferenceImage{WithoutEmbedding: true})
	require.NoError(t, err)
	assert.Empty(t, pending)

	removed, err := ts.DeleteProductEmbeddings(ctx, &store.DeleteProductEmbedding{ReferenceImageID: &image.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	pending, err = ts.ListReferenceImages(ctx, &store.FindReferenceImage{WithoutEmbedding: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, image.ID, pending[0].ID)

	_, err = ts.DeleteProductEmbeddings(ctx, &store.DeleteProductEmbedding{})
	assert.Error(t, err)
}

func TestListCatalogRows(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	withVectors := createTestingProduct(ctx, t, ts, 1, "CHA-007", store.ProductActive)
	bare := createTestingProduct(ctx, t, ts, 1, "CHA-008", store.ProductActive)
	inactive := createTestingProduct(ctx, t, ts, 1, "CHA-009", store.ProductInactive)
	other := createTestingProduct(ctx, t, ts, 2, "CHA-007", store.ProductActive)

	for _, p := range []*store.Product{withVectors, withVectors, inactive, other} {
		_, err := ts.CreateProductEmbedding(ctx, &store.ProductEmbedding{
			ProductID: p.ID,
			TenantID:  p.TenantID,
			Embedding: []float32{0, 1},
		})
		require.NoError(t, err)
	}

	rows, err := ts.ListCatalogRows(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, withVectors.ID, rows[0].ProductID)
	require.NotNil(t, rows[0].EmbeddingID)
	var vector []float32
	require.NoError(t, json.Unmarshal(rows[0].RawEmbedding, &vector))
	assert.Equal(t, []float32{0, 1}, vector)

	assert.Equal(t, bare.ID, rows[2].ProductID)
	assert.Nil(t, rows[2].EmbeddingID)
	assert.Nil(t, rows[2].RawEmbedding)
}

func TestDeleteProductCascades(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	product := createTestingProduct(ctx, t, ts, 1, "ZAP-101", store.ProductActive)
	_, err := ts.CreateProductEmbedding(ctx, &store.ProductEmbedding{
		ProductID: product.ID,
		TenantID:  1,
		Embedding: []float32{1},
	})
	require.NoError(t, err)

	require.NoError(t, ts.DeleteProduct(ctx, &store.DeleteProduct{ID: product.ID}))

	list, err := ts.ListProductEmbeddings(ctx, &store.FindProductEmbedding{ProductID: &product.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}
