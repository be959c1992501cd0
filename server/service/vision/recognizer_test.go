package vision

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	"github.com/hrygo/stockwear/store"
)

// fakeEmbedder returns a fixed vector, or err when set.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	calls  atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, image []byte, _ string) ([]float32, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(image) == 0 {
		return nil, pluginvision.ErrEmbeddingGeneration
	}
	return pluginvision.NormalizeL2(f.vector), nil
}

func (f *fakeEmbedder) IsEnabled() bool { return true }

func newTestRecognizer(t *testing.T, embedder pluginvision.EmbeddingService) (*Recognizer, *mockStore) {
	t.Helper()
	ms := newMockStore()
	catalog := NewCatalogStore(ms, NewMemoryCatalogCache(DefaultCatalogTTL))
	return NewRecognizer(ms, catalog, embedder, 0.6), ms
}

func TestRecognize_Success(t *testing.T) {
	ctx := context.Background()
	recognizer, ms := newTestRecognizer(t, nil)
	a := ms.addProduct(1, "A", store.ProductActive)
	b := ms.addProduct(1, "B", store.ProductActive)
	ms.addEmbedding(a, []float32{1, 0})
	ms.addEmbedding(b, []float32{0, 1})
	employee := "emp-1"

	result, err := recognizer.Recognize(ctx, &RecognizeRequest{
		TenantID:   1,
		Embedding:  []float32{0.9, 0.1},
		EmployeeID: &employee,
	})
	require.NoError(t, err)
	recognizer.Wait()

	require.True(t, result.Success)
	assert.Equal(t, a.ID, result.Product.ID)
	assert.Equal(t, a.Code, result.Product.Code)
	assert.Equal(t, TierHigh, result.ConfidenceTier)
	assert.InDelta(t, 0.994, result.Similarity, 1e-3)
	assert.Equal(t, 0.6, result.Threshold)

	require.Len(t, ms.queries, 1)
	q := ms.queries[0]
	assert.Equal(t, store.RecognitionResultSuccess, q.Result)
	assert.Equal(t, store.RecognitionTypeVisual, q.Type)
	assert.Equal(t, a.ID, *q.ProductID)
	assert.Equal(t, "alto", q.ConfidenceTier)
	assert.Equal(t, employee, *q.EmployeeID)
}

func TestRecognize_FailureIsLoggedWithoutProduct(t *testing.T) {
	ctx := context.Background()
	recognizer, ms := newTestRecognizer(t, nil)
	ms.addEmbedding(ms.addProduct(1, "A", store.ProductActive), []float32{1, 0})

	result, err := recognizer.Recognize(ctx, &RecognizeRequest{TenantID: 1, Embedding: []float32{0, 1}})
	require.NoError(t, err)
	recognizer.Wait()

	assert.False(t, result.Success)
	assert.Equal(t, TierLow, result.ConfidenceTier)
	require.Len(t, ms.queries, 1)
	assert.Equal(t, store.RecognitionResultFailure, ms.queries[0].Result)
	assert.Nil(t, ms.queries[0].ProductID)
}

func TestRecognize_ThresholdOverrideIsClamped(t *testing.T) {
	ctx := context.Background()
	recognizer, ms := newTestRecognizer(t, nil)
	ms.addEmbedding(ms.addProduct(1, "A", store.ProductActive), []float32{1, 0})

	over := 1.7
	result, err := recognizer.Recognize(ctx, &RecognizeRequest{TenantID: 1, Embedding: []float32{1, 0}, Threshold: &over})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Threshold)
	assert.True(t, result.Success, "identical vectors reach a threshold of 1")
	recognizer.Wait()
}

func TestRecognize_EmbedsImages(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{vector: []float32{0, 2}}
	recognizer, ms := newTestRecognizer(t, embedder)
	b := ms.addProduct(1, "B", store.ProductActive)
	ms.addEmbedding(b, []float32{0, 1})

	result, err := recognizer.Recognize(ctx, &RecognizeRequest{TenantID: 1, Image: []byte("jpeg"), MimeType: "image/jpeg"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(1), embedder.calls.Load())

	embedder.err = pluginvision.ErrEmbeddingGeneration
	_, err = recognizer.Recognize(ctx, &RecognizeRequest{TenantID: 1, Image: []byte("jpeg")})
	assert.ErrorIs(t, err, pluginvision.ErrEmbeddingGeneration)

	_, err = recognizer.Recognize(ctx, &RecognizeRequest{TenantID: 1})
	assert.ErrorIs(t, err, ErrMissingQuery)
	recognizer.Wait()
	assert.Len(t, ms.queries, 1, "only completed matches are logged")
}

func TestRecognize_DisabledEmbedder(t *testing.T) {
	recognizer, _ := newTestRecognizer(t, nil)
	_, err := recognizer.Recognize(context.Background(), &RecognizeRequest{TenantID: 1, Image: []byte("jpeg")})
	assert.ErrorIs(t, err, pluginvision.ErrEmbeddingDisabled)
}

func TestRecognize_StorageTroubleIsAFailedMatch(t *testing.T) {
	ctx := context.Background()
	recognizer, ms := newTestRecognizer(t, nil)
	ms.failCatalog.Store(true)
	ms.failQueries.Store(true)

	result, err := recognizer.Recognize(ctx, &RecognizeRequest{TenantID: 1, Embedding: []float32{1, 0}})
	require.NoError(t, err)
	recognizer.Wait()
	assert.False(t, result.Success)
	assert.Equal(t, messageEmptyCatalog, result.Message)
}

func TestRecentQueries(t *testing.T) {
	ctx := context.Background()
	recognizer, ms := newTestRecognizer(t, nil)
	for i := 0; i < 12; i++ {
		_, err := ms.CreateRecognitionQuery(ctx, &store.RecognitionQuery{TenantID: 1, Result: store.RecognitionResultFailure})
		require.NoError(t, err)
	}

	list, err := recognizer.RecentQueries(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, DefaultQueryLimit)
	assert.Equal(t, int64(12), list[0].ID)

	ms.failQueries.Store(true)
	_, err = recognizer.RecentQueries(ctx, 1, 5)
	assert.True(t, errors.Is(err, errStorage))
}

func TestMostQueriedProducts(t *testing.T) {
	ctx := context.Background()
	recognizer, ms := newTestRecognizer(t, nil)
	a := ms.addProduct(1, "A", store.ProductActive)
	b := ms.addProduct(1, "B", store.ProductActive)
	log := func(product *int32, result string) {
		_, err := ms.CreateRecognitionQuery(ctx, &store.RecognitionQuery{TenantID: 1, ProductID: product, Result: result})
		require.NoError(t, err)
	}
	log(&a.ID, store.RecognitionResultSuccess)
	log(&b.ID, store.RecognitionResultSuccess)
	log(&b.ID, store.RecognitionResultSuccess)
	log(&a.ID, store.RecognitionResultFailure)
	log(nil, store.RecognitionResultFailure)

	ranked, err := recognizer.MostQueriedProducts(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, b.ID, ranked[0].Product.ID)
	assert.Equal(t, 2, ranked[0].Queries)
	assert.Equal(t, a.ID, ranked[1].Product.ID)
	assert.Equal(t, 1, ranked[1].Queries)

	ranked, err = recognizer.MostQueriedProducts(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, ranked, 1)

	ranked, err = recognizer.MostQueriedProducts(ctx, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
