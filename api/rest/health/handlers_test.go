package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	tests := []struct {
		name   string
		checks []Check
		status int
	}{
		{"no checks", nil, http.StatusOK},
		{"healthy", []Check{ok}, http.StatusOK},
		{"dependency down", []Check{ok, down}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", Handler(tt.checks...))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"service":"storefront"`)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}
