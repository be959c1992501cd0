package vision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmbeddingGeneration wraps every failure to turn an image into a vector.
	ErrEmbeddingGeneration = errors.New("embedding generation failed")
	// ErrEmbeddingDisabled is returned when no embedding producer is configured.
	ErrEmbeddingDisabled = errors.New("embedding producer is not configured")
)

// EmbeddingService turns image bytes into an L2-normalized feature vector.
// Implementations may be slow or network bound; callers should pass a context with a deadline.
type EmbeddingService interface {
	// Embed generates the vector for a single image.
	Embed(ctx context.Context, image []byte, mimeType string) ([]float32, error)

	// IsEnabled reports whether the producer can serve requests at all.
	IsEnabled() bool
}

// EmbeddingConfig configures the embedding producer.
type EmbeddingConfig struct {
	Provider     string // remote, local, disabled
	ServiceURL   string
	ServiceToken string
	Timeout      time.Duration // default: 30s

	// Model backs the local provider.
	Model         Model
	MaxConcurrent int // default: 2
}

// NewEmbeddingService creates the configured EmbeddingService.
// An empty provider resolves to "remote" when a service URL is set, "local" when a Model is set
// and "disabled" otherwise.
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	provider := cfg.Provider
	if provider == "" {
		switch {
		case cfg.ServiceURL != "":
			provider = "remote"
		case cfg.Model != nil:
			provider = "local"
		default:
			provider = "disabled"
		}
	}

	switch provider {
	case "remote":
		if cfg.ServiceURL == "" {
			return nil, errors.New("remote embedding provider requires a service URL")
		}
		return NewRemoteEmbedder(cfg), nil
	case "local":
		if cfg.Model == nil {
			return nil, errors.New("local embedding provider requires a model")
		}
		return NewLocalEmbedder(cfg.Model, cfg.MaxConcurrent), nil
	case "disabled":
		return DisabledEmbedder{}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// DisabledEmbedder rejects every request with ErrEmbeddingDisabled.
type DisabledEmbedder struct{}

func (DisabledEmbedder) Embed(context.Context, []byte, string) ([]float32, error) {
	return nil, ErrEmbeddingDisabled
}

func (DisabledEmbedder) IsEnabled() bool {
	return false
}
