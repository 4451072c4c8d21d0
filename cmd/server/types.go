package main

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"codeberg.org/storefront/server/api/rest/auth"
	"codeberg.org/storefront/server/api/rest/health"
	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/internal/metrics"
	"codeberg.org/storefront/server/internal/ratelimit"
	"codeberg.org/storefront/server/storefront/users"

	authn "codeberg.org/storefront/server/internal/auth"
)

// holds all dependencies and state for the API server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	store   users.Store
	redis   *redis.Client
	authn   *authn.Authenticator
	auth    *auth.Dependencies
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics

	// readiness checks for /health
	checks []health.Check

	// run in reverse order on shutdown
	closers []func()
}
