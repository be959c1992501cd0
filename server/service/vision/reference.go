package vision

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	"github.com/hrygo/stockwear/store"
)

var (
	// ErrInvalidImage is returned for uploads that are empty or cannot be decoded.
	ErrInvalidImage = errors.New("invalid reference image")
	// ErrInvalidVector is returned for confirmations without a usable vector.
	ErrInvalidVector = errors.New("embedding must be a non-empty vector")
)

// decodableMimeTypes are checked on upload. Other image types are passed to the embedder untouched.
var decodableMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// UploadReferenceRequest is a new reference photo for a product.
type UploadReferenceRequest struct {
	TenantID  int32
	ProductID int32
	Blob      []byte
	Filename  string
	MimeType  string
}

// UploadReferenceResult is the stored reference and, when embedding worked, its vector row.
// EmbeddingError is set when the upload was kept but could not be embedded.
type UploadReferenceResult struct {
	Reference      *store.ReferenceImage   `json:"reference"`
	Embedding      *store.ProductEmbedding `json:"embedding,omitempty"`
	EmbeddingError string                  `json:"embeddingError,omitempty"`
}

// RegenerationReport summarises a re-embedding pass over a product's references.
type RegenerationReport struct {
	Processed int                   `json:"processed"`
	Failures  []RegenerationFailure `json:"failures"`
}

// RegenerationFailure is a reference that could not be re-embedded.
type RegenerationFailure struct {
	ReferenceImageID int32  `json:"id"`
	Reason           string `json:"reason"`
}

// ReferenceService manages reference images and the embeddings derived from them.
type ReferenceService struct {
	store    Store
	catalog  *CatalogStore
	blobs    BlobStore
	embedder pluginvision.EmbeddingService
	// sem bounds concurrent embedding calls across uploads, regeneration and the runner.
	sem *semaphore.Weighted
}

// NewReferenceService creates a reference service running at most maxConcurrent embeddings at once.
func NewReferenceService(store Store, catalog *CatalogStore, blobs BlobStore, embedder pluginvision.EmbeddingService, maxConcurrent int) *ReferenceService {
	if embedder == nil {
		embedder = pluginvision.DisabledEmbedder{}
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &ReferenceService{
		store:    store,
		catalog:  catalog,
		blobs:    blobs,
		embedder: embedder,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// EmbeddingEnabled reports whether an embedding producer is configured.
func (s *ReferenceService) EmbeddingEnabled() bool {
	return s.embedder.IsEnabled()
}

// Embed turns an image into a normalized vector.
func (s *ReferenceService) Embed(ctx context.Context, image []byte, mimeType string) ([]float32, error) {
	if len(image) == 0 {
		return nil, ErrInvalidImage
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.embedder.Embed(ctx, image, mimeType)
}

// UploadReferenceImage stores a reference photo and embeds it.
// An embedding failure keeps the upload and is reported in the result.
func (s *ReferenceService) UploadReferenceImage(ctx context.Context, request *UploadReferenceRequest) (*UploadReferenceResult, error) {
	if _, err := s.tenantProduct(ctx, request.TenantID, request.ProductID); err != nil {
		return nil, err
	}
	if err := validateImage(request.Blob, request.MimeType); err != nil {
		return nil, err
	}

	path := s.blobs.ReferencePath(request.ProductID, request.Filename, request.MimeType)
	if err := s.blobs.Save(ctx, path, request.Blob); err != nil {
		return nil, errors.Wrap(err, "failed to save reference image")
	}
	reference, err := s.store.CreateReferenceImage(ctx, &store.ReferenceImage{
		ProductID: request.ProductID,
		TenantID:  request.TenantID,
		Path:      path,
		Filename:  request.Filename,
		MimeType:  request.MimeType,
		Size:      int64(len(request.Blob)),
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, path); derr != nil {
			slog.Warn("failed to remove orphaned reference image", "path", path, "error", derr)
		}
		return nil, err
	}

	result := &UploadReferenceResult{Reference: reference}
	embedding, err := s.embedReference(ctx, reference, request.Blob)
	if err != nil {
		slog.Warn("reference image stored without embedding",
			"reference_image_id", reference.ID, "product_id", reference.ProductID, "error", err)
		result.EmbeddingError = err.Error()
		return result, nil
	}
	result.Embedding = embedding
	return result, nil
}

// DeleteReferenceImage removes a reference photo, its embeddings and its file.
func (s *ReferenceService) DeleteReferenceImage(ctx context.Context, tenantID, id int32) error {
	reference, err := s.store.GetReferenceImage(ctx, id)
	if err != nil {
		return err
	}
	if reference == nil || reference.TenantID != tenantID {
		return errors.Wrapf(store.ErrNotFound, "reference image %d", id)
	}

	if _, err := s.store.DeleteProductEmbeddings(ctx, &store.DeleteProductEmbedding{ReferenceImageID: &id}); err != nil {
		return err
	}
	s.catalog.Invalidate(tenantID)
	if err := s.store.DeleteReferenceImage(ctx, &store.DeleteReferenceImage{ID: id}); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, reference.Path); err != nil {
		slog.Warn("failed to delete reference image file", "path", reference.Path, "error", err)
	}
	return nil
}

// RegenerateProductEmbeddings re-embeds every reference image of a product.
// A failing reference is reported and does not stop the others.
func (s *ReferenceService) RegenerateProductEmbeddings(ctx context.Context, tenantID, productID int32) (*RegenerationReport, error) {
	if _, err := s.tenantProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	references, err := s.store.ListReferenceImages(ctx, &store.FindReferenceImage{
		ProductID: &productID,
		TenantID:  &tenantID,
	})
	if err != nil {
		return nil, err
	}

	report := &RegenerationReport{Failures: []RegenerationFailure{}}
	for _, reference := range references {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.regenerate(ctx, reference); err != nil {
			report.Failures = append(report.Failures, RegenerationFailure{
				ReferenceImageID: reference.ID,
				Reason:           err.Error(),
			})
			continue
		}
		report.Processed++
	}
	return report, nil
}

// EmbedPending embeds up to limit reference images that have no embedding yet, across tenants.
func (s *ReferenceService) EmbedPending(ctx context.Context, limit int) (processed, failed int, err error) {
	references, err := s.store.ListReferenceImages(ctx, &store.FindReferenceImage{
		WithoutEmbedding: true,
		Limit:            limit,
	})
	if err != nil {
		return 0, 0, err
	}
	for _, reference := range references {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}
		if err := s.regenerate(ctx, reference); err != nil {
			slog.Warn("failed to embed reference image", "reference_image_id", reference.ID, "error", err)
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}

// ConfirmVisualMatch stores the query vector of a confirmed match as a new reference for the product.
func (s *ReferenceService) ConfirmVisualMatch(ctx context.Context, tenantID, productID int32, vector []float32) (*store.ProductEmbedding, error) {
	if len(vector) == 0 {
		return nil, ErrInvalidVector
	}
	if _, err := s.tenantProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	if dimensions := s.catalogDimensions(ctx, tenantID); len(dimensions) > 0 && !dimensions[len(vector)] {
		return nil, errors.Wrapf(pluginvision.ErrLengthMismatch, "no catalog vector has %d elements", len(vector))
	}
	source := store.SourceUserFeedback
	return s.catalog.AddEmbedding(ctx, tenantID, productID, pluginvision.NormalizeL2(vector), &source, nil)
}

// catalogDimensions is the set of vector lengths stored for the tenant.
// Vectors of several lengths coexist while references are re-embedded with a new model.
func (s *ReferenceService) catalogDimensions(ctx context.Context, tenantID int32) map[int]bool {
	dimensions := map[int]bool{}
	for _, entry := range s.catalog.GetCatalogEmbeddings(ctx, tenantID, false) {
		for _, embedding := range entry.Embeddings {
			dimensions[len(embedding.Vector)] = true
		}
	}
	return dimensions
}

func (s *ReferenceService) regenerate(ctx context.Context, reference *store.ReferenceImage) error {
	blob, err := s.blobs.Open(ctx, reference.Path)
	if err != nil {
		return err
	}
	_, err = s.embedReference(ctx, reference, blob)
	return err
}

// embedReference replaces the embeddings derived from reference with a fresh one.
func (s *ReferenceService) embedReference(ctx context.Context, reference *store.ReferenceImage, blob []byte) (*store.ProductEmbedding, error) {
	vector, err := s.Embed(ctx, blob, reference.MimeType)
	if err != nil {
		return nil, err
	}
	referenceID := reference.ID
	if _, err := s.store.DeleteProductEmbeddings(ctx, &store.DeleteProductEmbedding{ReferenceImageID: &referenceID}); err != nil {
		return nil, err
	}
	// Stop serving the purged vectors even if the insert below fails.
	s.catalog.Invalidate(reference.TenantID)
	source := reference.Path
	return s.catalog.AddEmbedding(ctx, reference.TenantID, reference.ProductID, vector, &source, &referenceID)
}

func (s *ReferenceService) tenantProduct(ctx context.Context, tenantID, productID int32) (*store.Product, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil || product.TenantID != tenantID {
		return nil, errors.Wrapf(store.ErrNotFound, "product %d", productID)
	}
	return product, nil
}

func validateImage(blob []byte, mimeType string) error {
	if len(blob) == 0 {
		return errors.Wrap(ErrInvalidImage, "empty file")
	}
	if !decodableMimeTypes[strings.ToLower(mimeType)] {
		return nil
	}
	if _, err := imaging.Decode(bytes.NewReader(blob)); err != nil {
		return errors.Wrapf(ErrInvalidImage, "cannot decode %s: %v", mimeType, err)
	}
	return nil
}
