package store

import "context"

// VisualFeedback is one immutable outcome of a match attempt as judged by the user.
type VisualFeedback struct {
	ID                 int64
	TenantID           int32
	SuggestedProductID *int32
	ActualProductID    *int32
	Similarity         float64
	Threshold          float64
	WasCorrect         bool
	Embedding          []float32 // optional query vector
	EmployeeID         *string
	Metadata           map[string]any
	CreatedTs          int64
}

// FindVisualFeedback is the find condition for visual feedback.
type FindVisualFeedback struct {
	TenantID   *int32
	WasCorrect *bool
}

func (s *Store) CreateVisualFeedback(ctx context.Context, create *VisualFeedback) (*VisualFeedback, error) {
	return s.driver.CreateVisualFeedback(ctx, create)
}

func (s *Store) ListVisualFeedback(ctx context.Context, find *FindVisualFeedback) ([]*VisualFeedback, error) {
	return s.driver.ListVisualFeedback(ctx, find)
}
