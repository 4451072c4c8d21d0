package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/login", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/signup", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	return router
}

func post(router http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":12345"

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNew_InvalidRate(t *testing.T) {
	_, err := New("twenty per minute", nil)
	assert.Error(t, err)
}

func TestMiddleware_MemoryStore(t *testing.T) {
	l, err := New("2-M", nil)
	require.NoError(t, err)
	router := newRouter(l)

	assert.Equal(t, http.StatusOK, post(router, "/login", "10.0.0.1").Code)

	w := post(router, "/login", "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = post(router, "/login", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "too_many_requests")

	assert.Equal(t, http.StatusOK, post(router, "/login", "10.0.0.2").Code, "other clients are unaffected")
	assert.Equal(t, http.StatusCreated, post(router, "/signup", "10.0.0.1").Code, "routes are counted separately")
}

func TestMiddleware_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l, err := New("1-M", client)
	require.NoError(t, err)
	router := newRouter(l)

	assert.Equal(t, http.StatusOK, post(router, "/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(router, "/login", "10.0.0.1").Code)
}

func TestMiddleware_FailsOpenWhenStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l, err := New("1-M", client)
	require.NoError(t, err)
	router := newRouter(l)

	mr.Close()

	assert.Equal(t, http.StatusOK, post(router, "/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, post(router, "/login", "10.0.0.1").Code)
}
