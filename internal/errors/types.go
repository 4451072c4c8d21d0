package errors

// represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`             // error code (e.g., "unauthorized", "not_found")
	Message string `json:"message"`           // user-friendly message
	Reason  string `json:"reason,omitempty"`  // machine-usable authentication failure reason
	Details string `json:"details,omitempty"` // optional details (sanitized in production)
}

// category and client-safe message for an internal error
type ErrorInfo struct {
	category  string
	sanitized string
}

// standard error codes
const (
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeValidationError = "validation_error"
	CodeServerError     = "server_error"
	CodeBadRequest      = "bad_request"
	CodeConflict        = "conflict"
	CodeTooManyRequests = "too_many_requests"
	CodeOAuthDisabled   = "oauth_disabled"
)

// error categories for classification
const (
	CategoryDatabase   = "database"
	CategoryNetwork    = "network"
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryNotFound   = "not_found"
	CategoryTimeout    = "timeout"
	CategoryUnknown    = "unknown"
)
