package store

import "context"

// SourceUserFeedback marks embeddings derived from a confirmed visual match.
const SourceUserFeedback = "user_feedback"

// ProductEmbedding is one reference vector of a product.
type ProductEmbedding struct {
	ID               int32
	ProductID        int32
	TenantID         int32
	ReferenceImageID *int32
	Embedding        []float32
	// Source is the provenance tag: the reference image path or SourceUserFeedback.
	Source    *string
	CreatedTs int64
	UpdatedTs int64
}

// FindProductEmbedding is the find condition for product embeddings.
type FindProductEmbedding struct {
	ID               *int32
	ProductID        *int32
	TenantID         *int32
	ReferenceImageID *int32
}

// DeleteProductEmbedding is the delete condition for product embeddings.
// At least one field must be set.
type DeleteProductEmbedding struct {
	ID               *int32
	ProductID        *int32
	ReferenceImageID *int32
}

// CatalogRow is the raw shape of one product/embedding pair as read from storage.
// RawEmbedding holds the vector as a JSON array and is validated by the caller.
type CatalogRow struct {
	ProductID   int32
	Code        string
	Name        string
	Description string
	Image       string
	Supplier    string

	EmbeddingID      *int32
	RawEmbedding     []byte
	Source           *string
	ReferenceImageID *int32
	CreatedTs        int64
	UpdatedTs        int64
}

// CreateProductEmbedding stores a reference vector.
func (s *Store) CreateProductEmbedding(ctx context.Context, create *ProductEmbedding) (*ProductEmbedding, error) {
	return s.driver.CreateProductEmbedding(ctx, create)
}

// ListProductEmbeddings lists product embeddings.
func (s *Store) ListProductEmbeddings(ctx context.Context, find *FindProductEmbedding) ([]*ProductEmbedding, error) {
	return s.driver.ListProductEmbeddings(ctx, find)
}

// GetProductEmbedding returns the embedding with the given id, or nil if there is none.
func (s *Store) GetProductEmbedding(ctx context.Context, id int32) (*ProductEmbedding, error) {
	list, err := s.driver.ListProductEmbeddings(ctx, &FindProductEmbedding{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteProductEmbeddings deletes embeddings and returns how many were removed.
func (s *Store) DeleteProductEmbeddings(ctx context.Context, delete *DeleteProductEmbedding) (int64, error) {
	return s.driver.DeleteProductEmbeddings(ctx, delete)
}

// ListCatalogRows returns the raw catalog of a tenant.
func (s *Store) ListCatalogRows(ctx context.Context, tenantID int32) ([]*CatalogRow, error) {
	return s.driver.ListCatalogRows(ctx, tenantID)
}
