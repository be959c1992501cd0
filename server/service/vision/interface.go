// Package vision implements visual product matching for a tenant's catalog:
// the catalog embedding store and its cache, the matching engine, the
// recognition attempt log, feedback calibration and the lifecycle of
// reference images and their embeddings.
package vision

import (
	"context"

	"github.com/hrygo/stockwear/store"
)

// Store is the interface for store operations needed by the vision services.
// *store.Store satisfies it.
type Store interface {
	GetProduct(ctx context.Context, id int32) (*store.Product, error)
	ListProducts(ctx context.Context, find *store.FindProduct) ([]*store.Product, error)

	ListCatalogRows(ctx context.Context, tenantID int32) ([]*store.CatalogRow, error)
	CreateProductEmbedding(ctx context.Context, create *store.ProductEmbedding) (*store.ProductEmbedding, error)
	GetProductEmbedding(ctx context.Context, id int32) (*store.ProductEmbedding, error)
	DeleteProductEmbeddings(ctx context.Context, delete *store.DeleteProductEmbedding) (int64, error)

	CreateReferenceImage(ctx context.Context, create *store.ReferenceImage) (*store.ReferenceImage, error)
	GetReferenceImage(ctx context.Context, id int32) (*store.ReferenceImage, error)
	ListReferenceImages(ctx context.Context, find *store.FindReferenceImage) ([]*store.ReferenceImage, error)
	DeleteReferenceImage(ctx context.Context, delete *store.DeleteReferenceImage) error

	CreateVisualFeedback(ctx context.Context, create *store.VisualFeedback) (*store.VisualFeedback, error)
	ListVisualFeedback(ctx context.Context, find *store.FindVisualFeedback) ([]*store.VisualFeedback, error)

	CreateRecognitionQuery(ctx context.Context, create *store.RecognitionQuery) (*store.RecognitionQuery, error)
	ListRecognitionQueries(ctx context.Context, find *store.FindRecognitionQuery) ([]*store.RecognitionQuery, error)
}

// BlobStore keeps reference image files.
type BlobStore interface {
	ReferencePath(productID int32, filename, mimeType string) string
	Save(ctx context.Context, path string, blob []byte) error
	Open(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// ReferenceVector is one comparable vector of a catalog entry.
type ReferenceVector struct {
	EmbeddingID      int32
	Vector           []float32
	Source           *string
	ReferenceImageID *int32
}

// CatalogEntry is a product with all of its reference vectors and display fields.
// A product without vectors is still an entry; it just never becomes a candidate.
type CatalogEntry struct {
	ProductID   int32
	Code        string
	Name        string
	Description string
	Image       string
	Supplier    string
	Embeddings  []ReferenceVector
}

// ConfidenceTier buckets a similarity against the threshold.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "alto"
	TierMedium ConfidenceTier = "medio"
	TierLow    ConfidenceTier = "bajo"
)

// ProductDetail is the product as shown to the user after a match.
type ProductDetail struct {
	ID          int32  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Supplier    string `json:"supplier"`
}

// Candidate is one entry of the ranked runner-up list.
type Candidate struct {
	ProductID  int32   `json:"productId"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// MatchResult is the outcome of one recognition.
type MatchResult struct {
	Success        bool           `json:"success"`
	Similarity     float64        `json:"similarity"`
	Threshold      float64        `json:"threshold"`
	ConfidenceTier ConfidenceTier `json:"confidenceTier"`
	Product        *ProductDetail `json:"product,omitempty"`
	Candidates     []Candidate    `json:"candidates"`
	Message        string         `json:"message,omitempty"`
}

// FeedbackStatistics aggregates a tenant's feedback log.
type FeedbackStatistics struct {
	Total                  int                  `json:"total"`
	CorrectCount           int                  `json:"correctCount"`
	RejectedCount          int                  `json:"rejectedCount"`
	SuccessRatePercent     float64              `json:"successRatePercent"`
	TopProblematicProducts []ProblematicProduct `json:"topProblematicProducts"`
}

// ProblematicProduct is a suggested product and how often users rejected it.
type ProblematicProduct struct {
	ProductID  int32  `json:"productId"`
	Name       string `json:"name"`
	Rejections int    `json:"rejections"`
}

// SimilarityAnalysis compares similarities of correct and rejected suggestions.
// SuggestedThreshold is nil until there are enough samples of both kinds.
type SimilarityAnalysis struct {
	AvgSimilarityCorrect  float64  `json:"avgSimilarityCorrect"`
	AvgSimilarityRejected float64  `json:"avgSimilarityRejected"`
	SuggestedThreshold    *float64 `json:"suggestedThreshold"`
}
