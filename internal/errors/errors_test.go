package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestUnauthorizedReason_IncludesReason(t *testing.T) {
	c, w := newTestContext()

	UnauthorizedReason(c, "invalid_password", "invalid password")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decode(t, w)
	assert.Equal(t, CodeUnauthorized, resp.Error)
	assert.Equal(t, "invalid_password", resp.Reason)
	assert.Equal(t, "invalid password", resp.Message)
}

func TestUnauthorized_DefaultMessage(t *testing.T) {
	c, w := newTestContext()

	Unauthorized(c, "")

	resp := decode(t, w)
	assert.Equal(t, "authentication required", resp.Message)
	assert.Empty(t, resp.Reason)
}

func TestForbiddenAndConflict(t *testing.T) {
	c, w := newTestContext()
	Forbidden(c, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, decode(t, w).Error)

	c, w = newTestContext()
	Conflict(c, "email already registered")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email already registered", decode(t, w).Message)
}

func TestNotFound_ResourceName(t *testing.T) {
	c, w := newTestContext()

	NotFound(c, "user")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user not found", decode(t, w).Message)
}

func TestInternalError_SanitizedInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	c, w := newTestContext()

	InternalError(c, "failed to load user", fmt.Errorf("dial tcp 10.0.0.3:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, CodeServerError, resp.Error)
	assert.Equal(t, "connection error occurred", resp.Details)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestInternalError_VerboseOutsideProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	c, w := newTestContext()

	InternalError(c, "", fmt.Errorf("boom"))

	resp := decode(t, w)
	assert.Equal(t, "an error occurred", resp.Message)
	assert.Equal(t, "boom", resp.Details)
}

func TestClassifyError_Categories(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	tests := []struct {
		name     string
		err      error
		category string
	}{
		{"pgx no rows", fmt.Errorf("find user: %w", pgx.ErrNoRows), CategoryNotFound},
		{"mongo no documents", fmt.Errorf("find user: %w", mongo.ErrNoDocuments), CategoryNotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), CategoryTimeout},
		{"canceled", context.Canceled, CategoryTimeout},
		{"validation", fmt.Errorf("invalid role"), CategoryValidation},
		{"unknown", fmt.Errorf("boom"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := classifyError(tt.err)
			assert.Equal(t, tt.category, info.category)
			assert.NotContains(t, info.sanitized, "find user")
		})
	}
}
