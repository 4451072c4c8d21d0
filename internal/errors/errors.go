package errors

import (
	"net/http"
	"strings"

	"codeberg.org/storefront/server/internal/logger"
	"github.com/gin-gonic/gin"
)

// Error Handling Guidelines:
//
// For HTTP REST handlers and middleware:
//   - Use errors.InternalError(), errors.BadRequest(), etc.
//     These functions handle both logging and HTTP response automatically
//   - Middleware must call c.Abort() after writing an error
//   - Never call both logger.ErrorErr() and errors.InternalError() for the same error
//
// For stores, strategies and internal packages:
//   - Return wrapped errors with context using fmt.Errorf("context: %w", err)
//   - Expected authentication failures are *auth.Failure values, not internal errors
//   - Do not log errors in non-handler code (avoid double logging)

// returns a 401 unauthorized error
func Unauthorized(c *gin.Context, message string) {
	UnauthorizedReason(c, "", message)
}

// returns a 401 unauthorized error carrying a machine-usable reason
func UnauthorizedReason(c *gin.Context, reason, message string) {
	if message == "" {
		message = "authentication required"
	}

	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   CodeUnauthorized,
		Message: message,
		Reason:  reason,
	})
}

// returns a 403 forbidden error
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "permission denied"
	}

	c.JSON(http.StatusForbidden, ErrorResponse{
		Error:   CodeForbidden,
		Message: message,
	})
}

// returns a 404 not found error
func NotFound(c *gin.Context, resource string) {
	message := "resource not found"

	if resource != "" {
		message = resource + " not found"
	}

	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   CodeNotFound,
		Message: message,
	})
}

// returns a 400 bad request error
func BadRequest(c *gin.Context, message string, err error) {
	if message == "" {
		message = "invalid request"
	}

	response := ErrorResponse{
		Error:   CodeBadRequest,
		Message: message,
	}

	if err != nil {
		response.Details = sanitizeError(err)
	}

	c.JSON(http.StatusBadRequest, response)
}

// returns a 400 bad request error for validation failures
func ValidationError(c *gin.Context, err error) {
	message := "validation failed"
	details := ""

	if err != nil {
		details = sanitizeError(err)
		if strings.Contains(err.Error(), "binding") || strings.Contains(err.Error(), "validation") {
			message = "request validation failed"
		}
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   CodeValidationError,
		Message: message,
		Details: details,
	})
}

// returns a 400 validation error with a plain message and no wrapped error
func InvalidField(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   CodeValidationError,
		Message: message,
	})
}

// returns a 500 internal server error
func InternalError(c *gin.Context, message string, err error) {
	if message == "" {
		message = "an error occurred"
	}

	// log full error server-side with context
	logger.ErrorErr(err, message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"user_id", c.GetString("user_id"),
	)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   CodeServerError,
		Message: message,
		Details: sanitizeError(err),
	})
}

// returns a 409 conflict error
func Conflict(c *gin.Context, message string) {
	if message == "" {
		message = "resource conflict"
	}

	c.JSON(http.StatusConflict, ErrorResponse{
		Error:   CodeConflict,
		Message: message,
	})
}

// returns a 429 too many requests error
func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "too many requests"
	}

	c.JSON(http.StatusTooManyRequests, ErrorResponse{
		Error:   CodeTooManyRequests,
		Message: message,
	})
}

// returns a 404 for OAuth routes when no provider is configured
func OAuthDisabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   CodeOAuthDisabled,
		Message: "oauth login is not configured",
	})
}

// sanitizes error messages for production
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}

	return classifyError(err).sanitized
}
