package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	assert.Equal(t, Params{Limit: 20, Offset: 0}, DefaultParams(0, -5, 20, 100))
	assert.Equal(t, Params{Limit: 100, Offset: 40}, DefaultParams(500, 40, 20, 100))
}

func TestFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/users?limit=abc&offset=10", nil)

	assert.Equal(t, Params{Limit: 20, Offset: 10}, FromQuery(c, 20, 100))
}

func TestMetaAndTrim(t *testing.T) {
	p := Params{Limit: 2}
	rows := []int{1, 2, 3}

	assert.Equal(t, 3, p.Fetch())
	assert.True(t, NewMeta(p, len(rows)).HasMore)
	assert.Equal(t, []int{1, 2}, Trim(p, rows))

	assert.False(t, NewMeta(p, 2).HasMore)
	assert.Equal(t, []int{1}, Trim(p, []int{1}))
}
