package errors

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// analyzes an error and returns its category and sanitized message
func classifyError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{CategoryUnknown, ""}
	}

	isProduction := os.Getenv("ENVIRONMENT") == "production"

	// database errors (pgx-specific)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ErrorInfo{
			category:  CategoryDatabase,
			sanitized: ternary(isProduction, "database operation failed", err.Error()),
		}
	}

	// no rows / no documents
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments) {
		return ErrorInfo{
			category:  CategoryNotFound,
			sanitized: ternary(isProduction, "resource not found", err.Error()),
		}
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return ErrorInfo{
			category:  CategoryNetwork,
			sanitized: ternary(isProduction, "connection error occurred", err.Error()),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorInfo{
			category:  CategoryTimeout,
			sanitized: ternary(isProduction, "request timed out", err.Error()),
		}
	}

	if errors.Is(err, context.Canceled) {
		return ErrorInfo{
			category:  CategoryTimeout,
			sanitized: ternary(isProduction, "request canceled", err.Error()),
		}
	}

	// fallback to string matching for unknown error types
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline") {
		return ErrorInfo{
			category:  CategoryTimeout,
			sanitized: ternary(isProduction, "request timed out", err.Error()),
		}
	}

	if strings.Contains(errMsg, "not found") || strings.Contains(errMsg, "no rows") {
		return ErrorInfo{
			category:  CategoryNotFound,
			sanitized: ternary(isProduction, "resource not found", err.Error()),
		}
	}

	if strings.Contains(errMsg, "database") || strings.Contains(errMsg, "sql") ||
		strings.Contains(errMsg, "postgres") || strings.Contains(errMsg, "mongo") {
		return ErrorInfo{
			category:  CategoryDatabase,
			sanitized: ternary(isProduction, "database operation failed", err.Error()),
		}
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dial") {
		return ErrorInfo{
			category:  CategoryNetwork,
			sanitized: ternary(isProduction, "connection error occurred", err.Error()),
		}
	}

	if strings.Contains(errMsg, "validation") || strings.Contains(errMsg, "binding") ||
		strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "required") {
		return ErrorInfo{
			category:  CategoryValidation,
			sanitized: ternary(isProduction, "validation failed", err.Error()),
		}
	}

	if strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "forbidden") ||
		strings.Contains(errMsg, "permission") || strings.Contains(errMsg, "auth") {
		return ErrorInfo{
			category:  CategoryAuth,
			sanitized: ternary(isProduction, "permission denied", err.Error()),
		}
	}

	return ErrorInfo{
		category:  CategoryUnknown,
		sanitized: ternary(isProduction, "an error occurred", err.Error()),
	}
}

// ternary helper for cleaner conditional assignment
func ternary(condition bool, trueVal, falseVal string) string {
	if condition {
		return trueVal
	}

	return falseVal
}
