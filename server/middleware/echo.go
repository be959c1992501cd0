package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// TenantHeader carries the tenant a request acts for.
const TenantHeader = "X-Tenant-ID"

// RateLimitResponse is the body written when a tenant exceeds its budget.
type RateLimitResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RateLimitByTenant rejects requests once the tenant in TenantHeader has used up its budget.
// Numeric tenant ids share a bucket however they are spelled. Requests without the header
// share a single anonymous bucket.
func RateLimitByTenant(rl *RateLimiter) echo.MiddlewareFunc {
	return RateLimitByKey(rl, tenantKey)
}

// RateLimitByKey rejects requests once the bucket named by key has used up its budget.
func RateLimitByKey(rl *RateLimiter, key func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := key(c)
			if !rl.Allow(bucket) {
				slog.Warn("rate limit exceeded", "tenant", bucket, "path", c.Path())
				return c.JSON(http.StatusTooManyRequests, RateLimitResponse{
					Code:    "RATE_LIMIT_EXCEEDED",
					Message: "too many recognition requests, try again later",
				})
			}
			return next(c)
		}
	}
}

func tenantKey(c echo.Context) string {
	raw := c.Request().Header.Get(TenantHeader)
	if raw == "" {
		return "anonymous"
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(id, 10)
	}
	return raw
}
