package vision

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	"github.com/hrygo/stockwear/store"
)

// DefaultQueryLimit is the page size of the recognition query listings.
const DefaultQueryLimit = 10

// ErrMissingQuery is returned when a recognition request carries neither a vector nor an image.
var ErrMissingQuery = errors.New("recognition requires an embedding or an image")

// RecognizeRequest is one capture to identify.
type RecognizeRequest struct {
	TenantID int32
	// Embedding is used as is when set; otherwise Image is embedded first.
	Embedding []float32
	Image     []byte
	MimeType  string
	// Threshold overrides the configured threshold after clamping.
	Threshold  *float64
	EmployeeID *string
}

// ProductQueryCount is a product and how many successful recognitions named it.
type ProductQueryCount struct {
	Product *ProductDetail `json:"product"`
	Queries int            `json:"queries"`
}

// Recognizer runs the capture-to-match flow and keeps the recognition attempt log.
type Recognizer struct {
	store     Store
	catalog   *CatalogStore
	embedder  pluginvision.EmbeddingService
	threshold float64
	writer    *backgroundWriter
}

// NewRecognizer creates a recognizer using threshold when requests carry none.
func NewRecognizer(store Store, catalog *CatalogStore, embedder pluginvision.EmbeddingService, threshold float64) *Recognizer {
	if embedder == nil {
		embedder = pluginvision.DisabledEmbedder{}
	}
	return &Recognizer{
		store:     store,
		catalog:   catalog,
		embedder:  embedder,
		threshold: pluginvision.ClampThreshold(threshold),
		writer:    &backgroundWriter{},
	}
}

// Threshold returns the configured default threshold.
func (r *Recognizer) Threshold() float64 {
	return r.threshold
}

// Recognize identifies the product in a capture.
//
// Only request problems and embedding failures are returned as errors. Catalog
// trouble shows up as a failed MatchResult. The attempt is appended to the
// recognition log in the background.
func (r *Recognizer) Recognize(ctx context.Context, request *RecognizeRequest) (*MatchResult, error) {
	query := request.Embedding
	if len(query) == 0 {
		if len(request.Image) == 0 {
			return nil, ErrMissingQuery
		}
		vector, err := r.embedder.Embed(ctx, request.Image, request.MimeType)
		if err != nil {
			return nil, err
		}
		query = vector
	}
	query = pluginvision.NormalizeL2(query)

	threshold := r.threshold
	if request.Threshold != nil {
		threshold = pluginvision.ClampThreshold(*request.Threshold)
	}

	catalog := r.catalog.GetCatalogEmbeddings(ctx, request.TenantID, false)
	result := Match(query, catalog, threshold)
	if result.Success {
		r.attachProductDetail(ctx, result)
	}
	r.recordQuery(ctx, request, result)
	return result, nil
}

// attachProductDetail replaces the cached display fields with the current product row when available.
func (r *Recognizer) attachProductDetail(ctx context.Context, result *MatchResult) {
	product, err := r.store.GetProduct(ctx, result.Product.ID)
	if err != nil {
		slog.Warn("failed to read matched product, using catalog snapshot", "product_id", result.Product.ID, "error", err)
		return
	}
	if product == nil {
		return
	}
	result.Product = convertProductFromStore(product)
}

func (r *Recognizer) recordQuery(ctx context.Context, request *RecognizeRequest, result *MatchResult) {
	query := &store.RecognitionQuery{
		TenantID:       request.TenantID,
		Type:           store.RecognitionTypeVisual,
		EmployeeID:     request.EmployeeID,
		ConfidenceTier: string(result.ConfidenceTier),
		Result:         store.RecognitionResultFailure,
	}
	if result.Success {
		productID := result.Product.ID
		query.ProductID = &productID
		query.Result = store.RecognitionResultSuccess
	}
	r.writer.Go(ctx, "record_recognition_query", func(ctx context.Context) error {
		_, err := r.store.CreateRecognitionQuery(ctx, query)
		return err
	})
}

// Wait blocks until pending attempt log writes have finished.
func (r *Recognizer) Wait() {
	r.writer.Wait()
}

// RecentQueries lists the newest recognition attempts of a tenant.
func (r *Recognizer) RecentQueries(ctx context.Context, tenantID int32, limit int) ([]*store.RecognitionQuery, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	return r.store.ListRecognitionQueries(ctx, &store.FindRecognitionQuery{
		TenantID: &tenantID,
		Limit:    limit,
	})
}

// MostQueriedProducts ranks products by successful recognitions, most first.
func (r *Recognizer) MostQueriedProducts(ctx context.Context, tenantID int32, limit int) ([]*ProductQueryCount, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	success := store.RecognitionResultSuccess
	queries, err := r.store.ListRecognitionQueries(ctx, &store.FindRecognitionQuery{
		TenantID: &tenantID,
		Result:   &success,
	})
	if err != nil {
		return nil, err
	}

	counts := map[int32]int{}
	for _, q := range queries {
		if q.ProductID != nil {
			counts[*q.ProductID]++
		}
	}
	ids := make([]int32, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return []*ProductQueryCount{}, nil
	}

	products, err := r.store.ListProducts(ctx, &store.FindProduct{IDList: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[int32]*store.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	result := make([]*ProductQueryCount, 0, len(ids))
	for _, id := range ids {
		item := &ProductQueryCount{Queries: counts[id]}
		if p, ok := byID[id]; ok {
			item.Product = convertProductFromStore(p)
		}
		result = append(result, item)
	}
	return result, nil
}

func convertProductFromStore(product *store.Product) *ProductDetail {
	return &ProductDetail{
		ID:          product.ID,
		Code:        product.Code,
		Name:        product.Name,
		Description: product.Description,
		Image:       product.Image,
		Supplier:    product.Supplier,
	}
}
