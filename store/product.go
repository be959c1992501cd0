package store

import "context"

// ProductStatus is the lifecycle state of a catalog product.
type ProductStatus string

const (
	ProductActive   ProductStatus = "activo"
	ProductInactive ProductStatus = "inactivo"
)

// Product holds the product fields the recognition flow displays.
type Product struct {
	ID          int32
	TenantID    int32
	Code        string
	Name        string
	Description string
	Image       string
	Supplier    string
	Status      ProductStatus
	CreatedTs   int64
	UpdatedTs   int64
}

// FindProduct is the find condition for products.
type FindProduct struct {
	ID       *int32
	TenantID *int32
	Status   *ProductStatus
	IDList   []int32
}

// DeleteProduct is the delete condition for products.
type DeleteProduct struct {
	ID int32
}

// CreateProduct creates a product.
func (s *Store) CreateProduct(ctx context.Context, create *Product) (*Product, error) {
	if create.Status == "" {
		create.Status = ProductActive
	}
	return s.driver.CreateProduct(ctx, create)
}

// ListProducts lists products.
func (s *Store) ListProducts(ctx context.Context, find *FindProduct) ([]*Product, error) {
	return s.driver.ListProducts(ctx, find)
}

// GetProduct returns the product with the given id, or nil if there is none.
func (s *Store) GetProduct(ctx context.Context, id int32) (*Product, error) {
	list, err := s.driver.ListProducts(ctx, &FindProduct{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteProduct deletes a product together with its reference images and embeddings.
func (s *Store) DeleteProduct(ctx context.Context, delete *DeleteProduct) error {
	return s.driver.DeleteProduct(ctx, delete)
}
