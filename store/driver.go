package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Product model related methods.
	CreateProduct(ctx context.Context, create *Product) (*Product, error)
	ListProducts(ctx context.Context, find *FindProduct) ([]*Product, error)
	DeleteProduct(ctx context.Context, delete *DeleteProduct) error

	// ProductEmbedding model related methods.
	CreateProductEmbedding(ctx context.Context, create *ProductEmbedding) (*ProductEmbedding, error)
	ListProductEmbeddings(ctx context.Context, find *FindProductEmbedding) ([]*ProductEmbedding, error)
	// DeleteProductEmbeddings deletes every embedding matching the filter and returns the number of rows removed.
	DeleteProductEmbeddings(ctx context.Context, delete *DeleteProductEmbedding) (int64, error)

	// ListCatalogRows returns every active product of the tenant left-joined with its embeddings.
	// One row per product/embedding pair; products without embeddings yield a single row with no embedding.
	ListCatalogRows(ctx context.Context, tenantID int32) ([]*CatalogRow, error)

	// ReferenceImage model related methods.
	CreateReferenceImage(ctx context.Context, create *ReferenceImage) (*ReferenceImage, error)
	ListReferenceImages(ctx context.Context, find *FindReferenceImage) ([]*ReferenceImage, error)
	DeleteReferenceImage(ctx context.Context, delete *DeleteReferenceImage) error

	// VisualFeedback model related methods. Feedback is append-only.
	CreateVisualFeedback(ctx context.Context, create *VisualFeedback) (*VisualFeedback, error)
	ListVisualFeedback(ctx context.Context, find *FindVisualFeedback) ([]*VisualFeedback, error)

	// RecognitionQuery model related methods. Queries are append-only.
	CreateRecognitionQuery(ctx context.Context, create *RecognitionQuery) (*RecognitionQuery, error)
	ListRecognitionQueries(ctx context.Context, find *FindRecognitionQuery) ([]*RecognitionQuery, error)
}
