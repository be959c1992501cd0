package store

import "context"

const (
	// RecognitionTypeVisual is the query type of camera-based recognition.
	RecognitionTypeVisual = "reconocimiento_visual"

	RecognitionResultSuccess = "exitoso"
	RecognitionResultFailure = "fallido"
)

// RecognitionQuery is one entry of the append-only recognition attempt log.
type RecognitionQuery struct {
	ID             int64
	TenantID       int32
	Type           string
	ProductID      *int32
	EmployeeID     *string
	ConfidenceTier string
	Result         string
	CreatedTs      int64
}

// FindRecognitionQuery is the find condition for recognition queries.
type FindRecognitionQuery struct {
	TenantID *int32
	Result   *string
	// Limit caps the result; newest entries come first.
	Limit int
}

func (s *Store) CreateRecognitionQuery(ctx context.Context, create *RecognitionQuery) (*RecognitionQuery, error) {
	if create.Type == "" {
		create.Type = RecognitionTypeVisual
	}
	return s.driver.CreateRecognitionQuery(ctx, create)
}

func (s *Store) ListRecognitionQueries(ctx context.Context, find *FindRecognitionQuery) ([]*RecognitionQuery, error) {
	return s.driver.ListRecognitionQueries(ctx, find)
}
