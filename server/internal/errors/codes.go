package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	"github.com/hrygo/stockwear/server/service/vision"
	"github.com/hrygo/stockwear/store"
)

// ErrorCode represents a specific error type for recognition operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the product or reference does not exist for the tenant.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeEmbeddingFailed indicates the embedding producer returned an error.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrCodeEmbeddingUnavailable indicates no embedding producer is configured.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrCodeStorageFailed indicates a database or blob storage failure.
	ErrCodeStorageFailed ErrorCode = "STORAGE_FAILED"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// VisionError represents a structured error for recognition operations.
type VisionError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *VisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *VisionError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *VisionError) WithContext(key string, value any) *VisionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeEmbeddingFailed:
		return http.StatusBadGateway
	case ErrCodeEmbeddingUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *VisionError {
	return &VisionError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *VisionError {
	return &VisionError{Code: ErrCodeNotFound, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *VisionError {
	return &VisionError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *VisionError {
	return &VisionError{Code: code, Message: msg, Cause: cause}
}

// FromError classifies a service error. Errors that are already coded pass through.
func FromError(err error) *VisionError {
	if err == nil {
		return nil
	}
	var coded *VisionError
	if stderrors.As(err, &coded) {
		return coded
	}
	switch {
	case stderrors.Is(err, pluginvision.ErrLengthMismatch),
		stderrors.Is(err, vision.ErrMissingQuery),
		stderrors.Is(err, vision.ErrInvalidImage),
		stderrors.Is(err, vision.ErrInvalidVector),
		stderrors.Is(err, vision.ErrInvalidFeedback):
		return Wrap(err, ErrCodeInvalidArgument, "invalid request")
	case stderrors.Is(err, store.ErrNotFound):
		return Wrap(err, ErrCodeNotFound, "not found")
	case stderrors.Is(err, pluginvision.ErrEmbeddingDisabled):
		return Wrap(err, ErrCodeEmbeddingUnavailable, "embedding producer is not configured")
	case stderrors.Is(err, pluginvision.ErrEmbeddingGeneration):
		return Wrap(err, ErrCodeEmbeddingFailed, "embedding generation failed")
	default:
		return Wrap(err, ErrCodeStorageFailed, "storage failure")
	}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var coded *VisionError
	if stderrors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a VisionError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var coded *VisionError
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return defaultCode
}
