package vision

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/store"
)

const (
	// Suggesting a threshold needs at least this many samples of each kind.
	minCorrectSamples  = 5
	minRejectedSamples = 3

	maxProblematicProducts = 5
)

// ErrInvalidFeedback is returned for feedback missing its tenant.
var ErrInvalidFeedback = errors.New("feedback requires a tenant")

// FeedbackRecord is one judged match attempt.
type FeedbackRecord struct {
	TenantID           int32
	SuggestedProductID *int32
	ActualProductID    *int32
	Similarity         float64
	Threshold          float64
	WasCorrect         bool
	Embedding          []float32
	EmployeeID         *string
	Metadata           map[string]any
}

// FeedbackService records feedback and derives calibration statistics from it.
type FeedbackService struct {
	store  Store
	writer *backgroundWriter
}

func NewFeedbackService(store Store) *FeedbackService {
	return &FeedbackService{store: store, writer: &backgroundWriter{}}
}

// RecordAttempt appends a feedback row without blocking.
// It is best effort: only a missing tenant is reported, storage failures are logged.
func (s *FeedbackService) RecordAttempt(ctx context.Context, record *FeedbackRecord) error {
	if record == nil || record.TenantID <= 0 {
		return ErrInvalidFeedback
	}
	row := &store.VisualFeedback{
		TenantID:           record.TenantID,
		SuggestedProductID: record.SuggestedProductID,
		ActualProductID:    record.ActualProductID,
		Similarity:         record.Similarity,
		Threshold:          record.Threshold,
		WasCorrect:         record.WasCorrect,
		Embedding:          record.Embedding,
		EmployeeID:         record.EmployeeID,
		Metadata:           record.Metadata,
	}
	s.writer.Go(ctx, "record_feedback", func(ctx context.Context) error {
		_, err := s.store.CreateVisualFeedback(ctx, row)
		return err
	})
	return nil
}

// Wait blocks until pending feedback writes have finished.
func (s *FeedbackService) Wait() {
	s.writer.Wait()
}

// GetStatistics aggregates the tenant's feedback. A storage failure yields zero statistics.
func (s *FeedbackService) GetStatistics(ctx context.Context, tenantID int32) *FeedbackStatistics {
	stats := &FeedbackStatistics{TopProblematicProducts: []ProblematicProduct{}}
	rows, err := s.store.ListVisualFeedback(ctx, &store.FindVisualFeedback{TenantID: &tenantID})
	if err != nil {
		slog.Warn("failed to read visual feedback", "tenant_id", tenantID, "error", err)
		return stats
	}

	rejections := map[int32]int{}
	for _, row := range rows {
		stats.Total++
		if row.WasCorrect {
			stats.CorrectCount++
			continue
		}
		stats.RejectedCount++
		if row.SuggestedProductID != nil {
			rejections[*row.SuggestedProductID]++
		}
	}
	stats.SuccessRatePercent = successRate(stats.CorrectCount, stats.Total)

	for productID, count := range rejections {
		stats.TopProblematicProducts = append(stats.TopProblematicProducts, ProblematicProduct{
			ProductID:  productID,
			Rejections: count,
		})
	}
	sort.Slice(stats.TopProblematicProducts, func(i, j int) bool {
		a, b := stats.TopProblematicProducts[i], stats.TopProblematicProducts[j]
		if a.Rejections != b.Rejections {
			return a.Rejections > b.Rejections
		}
		return a.ProductID < b.ProductID
	})
	if len(stats.TopProblematicProducts) > maxProblematicProducts {
		stats.TopProblematicProducts = stats.TopProblematicProducts[:maxProblematicProducts]
	}
	s.fillProductNames(ctx, stats.TopProblematicProducts)
	return stats
}

// fillProductNames is cosmetic; names stay empty if the lookup fails.
func (s *FeedbackService) fillProductNames(ctx context.Context, products []ProblematicProduct) {
	if len(products) == 0 {
		return
	}
	ids := make([]int32, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ProductID)
	}
	list, err := s.store.ListProducts(ctx, &store.FindProduct{IDList: ids})
	if err != nil {
		slog.Warn("failed to read product names for feedback statistics", "error", err)
		return
	}
	names := make(map[int32]string, len(list))
	for _, product := range list {
		names[product.ID] = product.Name
	}
	for i := range products {
		products[i].Name = names[products[i].ProductID]
	}
}

// GetSimilarityAnalysis averages similarity per outcome and, with enough
// samples, suggests the midpoint of the two means as a threshold.
func (s *FeedbackService) GetSimilarityAnalysis(ctx context.Context, tenantID int32) *SimilarityAnalysis {
	analysis := &SimilarityAnalysis{}
	rows, err := s.store.ListVisualFeedback(ctx, &store.FindVisualFeedback{TenantID: &tenantID})
	if err != nil {
		slog.Warn("failed to read visual feedback", "tenant_id", tenantID, "error", err)
		return analysis
	}

	var (
		correctSum, rejectedSum float64
		correct, rejected       int
	)
	for _, row := range rows {
		if row.WasCorrect {
			correctSum += row.Similarity
			correct++
		} else {
			rejectedSum += row.Similarity
			rejected++
		}
	}
	if correct > 0 {
		analysis.AvgSimilarityCorrect = correctSum / float64(correct)
	}
	if rejected > 0 {
		analysis.AvgSimilarityRejected = rejectedSum / float64(rejected)
	}
	if correct >= minCorrectSamples && rejected >= minRejectedSamples {
		suggested := (analysis.AvgSimilarityCorrect + analysis.AvgSimilarityRejected) / 2
		analysis.SuggestedThreshold = &suggested
	}
	return analysis
}

// successRate is the percentage rounded to one decimal.
func successRate(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*1000) / 10
}
