package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteEmbedder calls an external embedding worker over HTTP.
//
// Request:  {"imageBase64": "...", "mimeType": "image/jpeg"}
// Response: {"embedding": [...], "message": "..."}
type RemoteEmbedder struct {
	serviceURL string
	token      string
	client     *http.Client
}

type remoteEmbeddingRequest struct {
	ImageBase64 string  `json:"imageBase64"`
	MimeType    *string `json:"mimeType"`
}

type remoteEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Message   string    `json:"message,omitempty"`
}

// NewRemoteEmbedder creates a RemoteEmbedder.
func NewRemoteEmbedder(cfg *EmbeddingConfig) *RemoteEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteEmbedder{
		serviceURL: cfg.ServiceURL,
		token:      cfg.ServiceToken,
		client:     &http.Client{Timeout: timeout},
	}
}

func (r *RemoteEmbedder) IsEnabled() bool {
	return r.serviceURL != ""
}

func (r *RemoteEmbedder) Embed(ctx context.Context, image []byte, mimeType string) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrEmbeddingGeneration)
	}

	payload := remoteEmbeddingRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)}
	if mimeType != "" {
		payload.MimeType = &mimeType
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingGeneration, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrEmbeddingGeneration, err)
	}

	var result remoteEmbeddingResponse
	decodeErr := json.Unmarshal(respBody, &result)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || len(result.Embedding) == 0 {
		reason := result.Message
		if reason == "" {
			reason = resp.Status
		}
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingGeneration, reason)
	}

	return NormalizeL2(result.Embedding), nil
}
