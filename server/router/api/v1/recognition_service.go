package v1

import (
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"

	verrors "github.com/hrygo/stockwear/server/internal/errors"
	"github.com/hrygo/stockwear/server/service/vision"
)

// MatchProductRequest carries either a precomputed embedding or an encoded image.
type MatchProductRequest struct {
	Embedding   []float32 `json:"embedding"`
	ImageBase64 string    `json:"imageBase64"`
	MimeType    string    `json:"mimeType"`
	Threshold   *float64  `json:"threshold"`
}

// MatchProduct identifies the product in a capture.
// POST /api/v1/recognition/match
func (s *APIV1Service) MatchProduct(c echo.Context) error {
	var request MatchProductRequest
	if err := c.Bind(&request); err != nil {
		return writeError(c, verrors.InvalidArgument("invalid request body"))
	}
	image, err := decodeImage(request.ImageBase64)
	if err != nil {
		return writeError(c, err)
	}

	result, err := s.Recognizer.Recognize(c.Request().Context(), &vision.RecognizeRequest{
		TenantID:   tenantFrom(c),
		Embedding:  request.Embedding,
		Image:      image,
		MimeType:   request.MimeType,
		Threshold:  request.Threshold,
		EmployeeID: employeeFrom(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	s.Metrics.RecordMatch(string(result.ConfidenceTier), result.Success)
	return c.JSON(http.StatusOK, result)
}

// ListRecentQueries returns the tenant's latest recognition attempts.
// GET /api/v1/recognition/queries?limit=
func (s *APIV1Service) ListRecentQueries(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return writeError(c, err)
	}
	queries, err := s.Recognizer.RecentQueries(c.Request().Context(), tenantFrom(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, queries)
}

// ListMostQueriedProducts ranks products by successful recognitions.
// GET /api/v1/recognition/top-products?limit=
func (s *APIV1Service) ListMostQueriedProducts(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return writeError(c, err)
	}
	products, err := s.Recognizer.MostQueriedProducts(c.Request().Context(), tenantFrom(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

// EmbedImageRequest is an encoded image to turn into a vector.
type EmbedImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

// EmbedImageResponse is the normalized vector of an image.
type EmbedImageResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

// EmbedImage proxies an image to the embedding producer.
// POST /api/v1/recognizer/embed
func (s *APIV1Service) EmbedImage(c echo.Context) error {
	var request EmbedImageRequest
	if err := c.Bind(&request); err != nil {
		return writeError(c, verrors.InvalidArgument("invalid request body"))
	}
	image, err := decodeImage(request.ImageBase64)
	if err != nil {
		return writeError(c, err)
	}
	if len(image) == 0 {
		return writeError(c, vision.ErrInvalidImage)
	}
	vector, err := s.References.Embed(c.Request().Context(), image, request.MimeType)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, EmbedImageResponse{Embedding: vector, Dimensions: len(vector)})
}

// EmbeddingStatus answers 204 when an embedding producer is configured and 503 otherwise.
// HEAD /api/v1/recognizer/embed
func (s *APIV1Service) EmbeddingStatus(c echo.Context) error {
	if !s.References.EmbeddingEnabled() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusNoContent)
}

func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "imageBase64 is not valid base64")
	}
	return image, nil
}
