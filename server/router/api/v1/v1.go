package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/stockwear/internal/profile"
	verrors "github.com/hrygo/stockwear/server/internal/errors"
	"github.com/hrygo/stockwear/server/internal/observability"
	"github.com/hrygo/stockwear/server/middleware"
	"github.com/hrygo/stockwear/server/service/vision"
)

const (
	// EmployeeHeader optionally names the employee operating the scanner.
	EmployeeHeader = "X-Employee-ID"

	tenantKey = "tenant_id"
)

type APIV1Service struct {
	Profile    *profile.Profile
	Recognizer *vision.Recognizer
	Feedback   *vision.FeedbackService
	References *vision.ReferenceService
	Metrics    *observability.Metrics

	rateLimiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, recognizer *vision.Recognizer, feedback *vision.FeedbackService, references *vision.ReferenceService) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Recognizer:  recognizer,
		Feedback:    feedback,
		References:  references,
		Metrics:     observability.NewMetrics(1000),
		rateLimiter: middleware.NewRateLimiter(profile.RateLimitPerSecond, profile.RateLimitBurst),
	}
}

// RegisterRoutes registers the HTTP API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/api/v1/system/metrics/overview", s.GetMetricsOverview)
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{})))

	api := echoServer.Group("/api/v1", echomiddleware.CORS(), s.requestContext, requireTenant)
	// Runs after requireTenant, so the bucket is the parsed tenant id.
	limited := middleware.RateLimitByKey(s.rateLimiter, func(c echo.Context) string {
		return strconv.Itoa(int(tenantFrom(c)))
	})

	api.POST("/recognition/match", s.MatchProduct, limited)
	api.GET("/recognition/queries", s.ListRecentQueries)
	api.GET("/recognition/top-products", s.ListMostQueriedProducts)
	api.POST("/recognition/feedback", s.RecordFeedback)
	api.GET("/recognition/feedback/stats", s.GetFeedbackStatistics)
	api.GET("/recognition/feedback/analysis", s.GetSimilarityAnalysis)
	api.POST("/recognition/confirm", s.ConfirmVisualMatch)

	api.POST("/products/:id/reference-images", s.UploadReferenceImage)
	api.POST("/products/:id/embeddings", s.RegenerateProductEmbeddings)
	api.DELETE("/reference-images/:id", s.DeleteReferenceImage)

	api.POST("/recognizer/embed", s.EmbedImage, limited)
	api.HEAD("/recognizer/embed", s.EmbeddingStatus)
}

// requestContext attaches a RequestContext to the request and records its outcome.
func (s *APIV1Service) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _ := parseTenant(c.Request().Header.Get(middleware.TenantHeader))
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		reqCtx := observability.NewRequestContextWithID(slog.Default(), requestID, c.Path(), tenantID)
		c.SetRequest(c.Request().WithContext(observability.WithRequestContext(c.Request().Context(), reqCtx)))
		c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)

		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status
		s.Metrics.Record(reqCtx.Operation, status, reqCtx.Duration())
		reqCtx.Debug("request finished",
			slog.Int(observability.LogFieldStatus, status),
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		return nil
	}
}

func requireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := parseTenant(c.Request().Header.Get(middleware.TenantHeader))
		if !ok {
			return writeError(c, verrors.InvalidArgument(middleware.TenantHeader+" header must be a positive integer"))
		}
		c.Set(tenantKey, tenantID)
		return next(c)
	}
}

func parseTenant(raw string) (int32, bool) {
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

func tenantFrom(c echo.Context) int32 {
	id, _ := c.Get(tenantKey).(int32)
	return id
}

func employeeFrom(c echo.Context) *string {
	if employee := c.Request().Header.Get(EmployeeHeader); employee != "" {
		return &employee
	}
	return nil
}

func pathID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, verrors.InvalidArgument("id must be a positive integer")
	}
	return int32(id), nil
}

func queryLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, verrors.InvalidArgument("limit must be a non-negative integer")
	}
	return limit, nil
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    verrors.ErrorCode `json:"code"`
	Message string            `json:"message"`
}

func writeError(c echo.Context, err error) error {
	coded := verrors.FromError(err)
	status := verrors.HTTPStatus(coded.Code)
	logger := observability.LoggerFromContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", observability.LogFieldErrorCode, coded.Code, "error", err)
	} else {
		logger.Debug("request rejected", observability.LogFieldErrorCode, coded.Code, "error", err)
	}
	message := coded.Message
	if coded.Cause != nil && status < http.StatusInternalServerError {
		message = coded.Cause.Error()
	}
	return c.JSON(status, ErrorResponse{Code: coded.Code, Message: message})
}
