package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	"github.com/hrygo/stockwear/store"
)

type memoryBlobs struct {
	mu    sync.Mutex
	files map[string][]byte
	n     int
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{files: map[string][]byte{}}
}

func (m *memoryBlobs) ReferencePath(productID int32, _, _ string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return fmt.Sprintf("productos/id-%d/referencias/%d.png", productID, m.n)
}

func (m *memoryBlobs) Save(_ context.Context, path string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = blob
	return nil
}

func (m *memoryBlobs) Open(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return blob, nil
}

func (m *memoryBlobs) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type referenceFixture struct {
	svc      *ReferenceService
	store    *mockStore
	blobs    *memoryBlobs
	embedder *fakeEmbedder
	catalog  *CatalogStore
	product  *store.Product
}

func newReferenceFixture(t *testing.T) *referenceFixture {
	t.Helper()
	ms := newMockStore()
	blobs := newMemoryBlobs()
	embedder := &fakeEmbedder{vector: []float32{3, 4}}
	catalog := NewCatalogStore(ms, NewMemoryCatalogCache(DefaultCatalogTTL))
	return &referenceFixture{
		svc:      NewReferenceService(ms, catalog, blobs, embedder, 2),
		store:    ms,
		blobs:    blobs,
		embedder: embedder,
		catalog:  catalog,
		product:  ms.addProduct(1, "Chaqueta", store.ProductActive),
	}
}

func (f *referenceFixture) upload(t *testing.T) *UploadReferenceResult {
	t.Helper()
	result, err := f.svc.UploadReferenceImage(context.Background(), &UploadReferenceRequest{
		TenantID:  1,
		ProductID: f.product.ID,
		Blob:      pngBytes(t),
		Filename:  "front.png",
		MimeType:  "image/png",
	})
	require.NoError(t, err)
	return result
}

func TestUploadReferenceImage(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	// Warm the cache so the upload has to invalidate it.
	entries := f.catalog.GetCatalogEmbeddings(ctx, 1, false)
	require.Empty(t, entries[0].Embeddings)

	result := f.upload(t)
	require.NotNil(t, result.Reference)
	require.NotNil(t, result.Embedding)
	assert.Empty(t, result.EmbeddingError)
	assert.Contains(t, f.blobs.files, result.Reference.Path)
	assert.Equal(t, result.Reference.Path, *result.Embedding.Source)
	assert.Equal(t, result.Reference.ID, *result.Embedding.ReferenceImageID)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, result.Embedding.Embedding, 1e-6)

	entries = f.catalog.GetCatalogEmbeddings(ctx, 1, false)
	assert.Len(t, entries[0].Embeddings, 1)
}

func TestUploadReferenceImage_EmbeddingFailureKeepsUpload(t *testing.T) {
	f := newReferenceFixture(t)
	f.embedder.err = pluginvision.ErrEmbeddingGeneration

	result := f.upload(t)
	require.NotNil(t, result.Reference)
	assert.Nil(t, result.Embedding)
	assert.Contains(t, result.EmbeddingError, "embedding")
	assert.Contains(t, f.blobs.files, result.Reference.Path)

	pending, err := f.store.ListReferenceImages(context.Background(), &store.FindReferenceImage{WithoutEmbedding: true})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestUploadReferenceImage_Rejects(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	other := f.store.addProduct(2, "ajeno", store.ProductActive)

	_, err := f.svc.UploadReferenceImage(ctx, &UploadReferenceRequest{TenantID: 1, ProductID: other.ID, Blob: pngBytes(t), MimeType: "image/png"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.UploadReferenceImage(ctx, &UploadReferenceRequest{TenantID: 1, ProductID: f.product.ID, MimeType: "image/png"})
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = f.svc.UploadReferenceImage(ctx, &UploadReferenceRequest{TenantID: 1, ProductID: f.product.ID, Blob: []byte("not a png"), MimeType: "image/png"})
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Empty(t, f.blobs.files)
}

func TestDeleteReferenceImage(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	uploaded := f.upload(t)

	assert.ErrorIs(t, f.svc.DeleteReferenceImage(ctx, 2, uploaded.Reference.ID), store.ErrNotFound)

	require.NoError(t, f.svc.DeleteReferenceImage(ctx, 1, uploaded.Reference.ID))
	assert.Empty(t, f.blobs.files)
	assert.Empty(t, f.store.embeddingsForReference(uploaded.Reference.ID))
	entries := f.catalog.GetCatalogEmbeddings(ctx, 1, false)
	assert.Empty(t, entries[0].Embeddings)

	assert.ErrorIs(t, f.svc.DeleteReferenceImage(ctx, 1, uploaded.Reference.ID), store.ErrNotFound)
}

func TestDeleteReferenceImage_RowDeleteFailureStillInvalidates(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	uploaded := f.upload(t)
	require.Len(t, f.catalog.GetCatalogEmbeddings(ctx, 1, false)[0].Embeddings, 1)

	f.store.failReferenceDeletes.Store(true)
	assert.ErrorIs(t, f.svc.DeleteReferenceImage(ctx, 1, uploaded.Reference.ID), errStorage)

	entries := f.catalog.GetCatalogEmbeddings(ctx, 1, false)
	assert.Empty(t, entries[0].Embeddings, "purged vectors must not be served from the cache")
	assert.Contains(t, f.blobs.files, uploaded.Reference.Path)
}

func TestRegenerateProductEmbeddings_InsertFailureStillInvalidates(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	uploaded := f.upload(t)
	require.Len(t, f.catalog.GetCatalogEmbeddings(ctx, 1, false)[0].Embeddings, 1)

	f.store.failEmbeddingWrites.Store(true)
	report, err := f.svc.RegenerateProductEmbeddings(ctx, 1, f.product.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, uploaded.Reference.ID, report.Failures[0].ReferenceImageID)

	entries := f.catalog.GetCatalogEmbeddings(ctx, 1, false)
	assert.Empty(t, entries[0].Embeddings)
}

func TestRegenerateProductEmbeddings(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	first := f.upload(t)
	second := f.upload(t)
	// Losing a file makes that reference fail without stopping the rest.
	delete(f.blobs.files, second.Reference.Path)

	f.embedder.vector = []float32{0, 1}
	report, err := f.svc.RegenerateProductEmbeddings(ctx, 1, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, second.Reference.ID, report.Failures[0].ReferenceImageID)
	assert.NotEmpty(t, report.Failures[0].Reason)

	regenerated := f.store.embeddingsForReference(first.Reference.ID)
	require.Len(t, regenerated, 1, "old embeddings of a reference are purged")
	assert.InDeltaSlice(t, []float32{0, 1}, regenerated[0].Embedding, 1e-6)

	_, err = f.svc.RegenerateProductEmbeddings(ctx, 2, f.product.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmbedPending(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	f.embedder.err = pluginvision.ErrEmbeddingGeneration
	f.upload(t)
	f.upload(t)

	f.embedder.err = nil
	processed, failed, err := f.svc.EmbedPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Zero(t, failed)

	processed, _, err = f.svc.EmbedPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestConfirmVisualMatch(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	embedding, err := f.svc.ConfirmVisualMatch(ctx, 1, f.product.ID, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, store.SourceUserFeedback, *embedding.Source)
	assert.Nil(t, embedding.ReferenceImageID)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, embedding.Embedding, 1e-6)

	entries := f.catalog.GetCatalogEmbeddings(ctx, 1, false)
	assert.Len(t, entries[0].Embeddings, 1)

	_, err = f.svc.ConfirmVisualMatch(ctx, 1, f.product.ID, []float32{1, 0, 0})
	assert.ErrorIs(t, err, pluginvision.ErrLengthMismatch)

	_, err = f.svc.ConfirmVisualMatch(ctx, 1, f.product.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidVector)

	_, err = f.svc.ConfirmVisualMatch(ctx, 1, 999, []float32{1, 0})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfirmVisualMatch_MixedDimensions(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()
	// A vector of a retired model on the lowest product id sits next to a current one.
	f.store.addEmbedding(f.product, []float32{1, 0, 0})
	current := f.store.addProduct(1, "Pantalón", store.ProductActive)
	f.store.addEmbedding(current, []float32{1, 0})

	embedding, err := f.svc.ConfirmVisualMatch(ctx, 1, current.ID, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, current.ID, embedding.ProductID)

	_, err = f.svc.ConfirmVisualMatch(ctx, 1, current.ID, []float32{1, 0, 0})
	assert.NoError(t, err, "lengths still present in the catalog are accepted")

	_, err = f.svc.ConfirmVisualMatch(ctx, 1, current.ID, []float32{1, 0, 0, 0})
	assert.ErrorIs(t, err, pluginvision.ErrLengthMismatch)
}
