package store

import "context"

// ReferenceImage is an uploaded product photo used to derive embeddings.
type ReferenceImage struct {
	ID        int32
	ProductID int32
	TenantID  int32
	// Path is relative to the image store root.
	Path      string
	Filename  string
	MimeType  string
	Size      int64
	CreatedTs int64
	UpdatedTs int64
}

// FindReferenceImage is the find condition for reference images.
type FindReferenceImage struct {
	ID        *int32
	ProductID *int32
	TenantID  *int32
	// WithoutEmbedding restricts the result to images no embedding was derived from yet.
	WithoutEmbedding bool
	Limit            int
}

// DeleteReferenceImage is the delete condition for reference images.
type DeleteReferenceImage struct {
	ID int32
}

func (s *Store) CreateReferenceImage(ctx context.Context, create *ReferenceImage) (*ReferenceImage, error) {
	return s.driver.CreateReferenceImage(ctx, create)
}

func (s *Store) ListReferenceImages(ctx context.Context, find *FindReferenceImage) ([]*ReferenceImage, error) {
	return s.driver.ListReferenceImages(ctx, find)
}

// GetReferenceImage returns the reference image with the given id, or nil if there is none.
func (s *Store) GetReferenceImage(ctx context.Context, id int32) (*ReferenceImage, error) {
	list, err := s.driver.ListReferenceImages(ctx, &FindReferenceImage{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) DeleteReferenceImage(ctx context.Context, delete *DeleteReferenceImage) error {
	return s.driver.DeleteReferenceImage(ctx, delete)
}
