package server

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/internal/profile"
	"github.com/hrygo/stockwear/plugin/imagestore"
	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	"github.com/hrygo/stockwear/server/service/vision"
	"github.com/hrygo/stockwear/store"
)

// maxConcurrentEmbeddings bounds embedding calls made for reference images.
const maxConcurrentEmbeddings = 2

// Services are the recognition services built from a profile.
type Services struct {
	Catalog    *vision.CatalogStore
	Recognizer *vision.Recognizer
	Feedback   *vision.FeedbackService
	References *vision.ReferenceService
	Embedder   pluginvision.EmbeddingService
}

// ServicesOption customizes NewServices.
type ServicesOption func(*pluginvision.EmbeddingConfig)

// WithModel embeds images in-process with model instead of calling a remote worker.
func WithModel(model pluginvision.Model) ServicesOption {
	return func(cfg *pluginvision.EmbeddingConfig) {
		cfg.Model = model
	}
}

// NewServices wires the recognition services over store.
// Reference images live under <data>/assets.
func NewServices(profile *profile.Profile, store *store.Store, opts ...ServicesOption) (*Services, error) {
	cfg := &pluginvision.EmbeddingConfig{
		Provider:      profile.EmbeddingProvider,
		ServiceURL:    profile.EmbeddingServiceURL,
		ServiceToken:  profile.EmbeddingServiceToken,
		Timeout:       profile.EmbeddingTimeout,
		MaxConcurrent: maxConcurrentEmbeddings,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	embedder, err := pluginvision.NewEmbeddingService(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding service")
	}

	catalog := vision.NewCatalogStore(store, vision.NewMemoryCatalogCache(profile.CatalogCacheTTL))
	blobs := imagestore.NewLocal(filepath.Join(profile.Data, "assets"))
	return &Services{
		Catalog:    catalog,
		Recognizer: vision.NewRecognizer(store, catalog, embedder, profile.SimilarityThreshold),
		Feedback:   vision.NewFeedbackService(store),
		References: vision.NewReferenceService(store, catalog, blobs, embedder, maxConcurrentEmbeddings),
		Embedder:   embedder,
	}, nil
}

// Wait blocks until background attempt and feedback writes have finished.
func (s *Services) Wait() {
	s.Recognizer.Wait()
	s.Feedback.Wait()
}
