package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/internal/logger"
)

const (
	service      = "storefront"
	version      = "1.0.0"
	checkTimeout = 2 * time.Second
)

// Handler godoc
// @Summary Health check
// @Description Returns 200 when the server and its identity store are reachable
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /health [get]
func Handler(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, Response{
					Status:  "unhealthy",
					Service: service,
					Version: version,
					Error:   "dependency unavailable",
				})
				return
			}
		}

		c.JSON(http.StatusOK, Response{
			Status:  "healthy",
			Service: service,
			Version: version,
		})
	}
}

// responds with pong for testing
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{Message: "pong"})
}
