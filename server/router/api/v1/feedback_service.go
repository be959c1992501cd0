package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	verrors "github.com/hrygo/stockwear/server/internal/errors"
	"github.com/hrygo/stockwear/server/service/vision"
)

// RecordFeedbackRequest is the operator's verdict on a suggested match.
type RecordFeedbackRequest struct {
	SuggestedProductID *int32         `json:"suggestedProductId"`
	ActualProductID    *int32         `json:"actualProductId"`
	Similarity         float64        `json:"similarity"`
	Threshold          float64        `json:"threshold"`
	WasCorrect         bool           `json:"wasCorrect"`
	Embedding          []float32      `json:"embedding"`
	Metadata           map[string]any `json:"metadata"`
}

// RecordFeedback accepts feedback without waiting for it to be stored.
// POST /api/v1/recognition/feedback
func (s *APIV1Service) RecordFeedback(c echo.Context) error {
	var request RecordFeedbackRequest
	if err := c.Bind(&request); err != nil {
		return writeError(c, verrors.InvalidArgument("invalid request body"))
	}
	err := s.Feedback.RecordAttempt(c.Request().Context(), &vision.FeedbackRecord{
		TenantID:           tenantFrom(c),
		SuggestedProductID: request.SuggestedProductID,
		ActualProductID:    request.ActualProductID,
		Similarity:         request.Similarity,
		Threshold:          request.Threshold,
		WasCorrect:         request.WasCorrect,
		Embedding:          request.Embedding,
		EmployeeID:         employeeFrom(c),
		Metadata:           request.Metadata,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// GetFeedbackStatistics summarises the tenant's feedback.
// GET /api/v1/recognition/feedback/stats
func (s *APIV1Service) GetFeedbackStatistics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Feedback.GetStatistics(c.Request().Context(), tenantFrom(c)))
}

// GetSimilarityAnalysis compares similarities of confirmed and rejected matches.
// GET /api/v1/recognition/feedback/analysis
func (s *APIV1Service) GetSimilarityAnalysis(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Feedback.GetSimilarityAnalysis(c.Request().Context(), tenantFrom(c)))
}
