package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/stockwear/store"
)

func TestVisualFeedbackStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	product := createTestingProduct(ctx, t, ts, 1, "CAM-001", store.ProductActive)
	employee := "emp-7"

	_, err := ts.CreateVisualFeedback(ctx, &store.VisualFeedback{
		TenantID:           1,
		SuggestedProductID: &product.ID,
		ActualProductID:    &product.ID,
		Similarity:         0.91,
		Threshold:          0.82,
		WasCorrect:         true,
		Embedding:          []float32{0.1, 0.2},
		EmployeeID:         &employee,
		Metadata:           map[string]any{"channel": "pos"},
	})
	require.NoError(t, err)
	_, err = ts.CreateVisualFeedback(ctx, &store.VisualFeedback{
		TenantID:           1,
		SuggestedProductID: &product.ID,
		Similarity:         0.7,
		Threshold:          0.82,
		WasCorrect:         false,
	})
	require.NoError(t, err)
	_, err = ts.CreateVisualFeedback(ctx, &store.VisualFeedback{TenantID: 2, Similarity: 0.5, Threshold: 0.82})
	require.NoError(t, err)

	tenant := int32(1)
	list, err := ts.ListVisualFeedback(ctx, &store.FindVisualFeedback{TenantID: &tenant})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].WasCorrect)
	assert.InDeltaSlice(t, []float32{0.1, 0.2}, list[0].Embedding, 1e-6)
	assert.Equal(t, "pos", list[0].Metadata["channel"])
	require.NotNil(t, list[0].EmployeeID)
	assert.Equal(t, employee, *list[0].EmployeeID)
	assert.Nil(t, list[1].ActualProductID)
	assert.Nil(t, list[1].Embedding)

	correct := false
	rejected, err := ts.ListVisualFeedback(ctx, &store.FindVisualFeedback{TenantID: &tenant, WasCorrect: &correct})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.InDelta(t, 0.7, rejected[0].Similarity, 1e-9)
}

func TestRecognitionQueryStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	product := createTestingProduct(ctx, t, ts, 1, "CAM-001", store.ProductActive)

	for i := 0; i < 3; i++ {
		_, err := ts.CreateRecognitionQuery(ctx, &store.RecognitionQuery{
			TenantID:       1,
			ProductID:      &product.ID,
			ConfidenceTier: "alto",
			Result:         store.RecognitionResultSuccess,
		})
		require.NoError(t, err)
	}
	_, err := ts.CreateRecognitionQuery(ctx, &store.RecognitionQuery{
		TenantID:       1,
		ConfidenceTier: "bajo",
		Result:         store.RecognitionResultFailure,
	})
	require.NoError(t, err)

	tenant := int32(1)
	list, err := ts.ListRecognitionQueries(ctx, &store.FindRecognitionQuery{TenantID: &tenant, Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, store.RecognitionResultFailure, list[0].Result, "newest first")
	assert.Equal(t, store.RecognitionTypeVisual, list[0].Type)
	assert.Nil(t, list[0].ProductID)

	success := store.RecognitionResultSuccess
	list, err = ts.ListRecognitionQueries(ctx, &store.FindRecognitionQuery{TenantID: &tenant, Result: &success})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
