package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/api/rest/auth"
	"codeberg.org/storefront/server/api/rest/health"
	"codeberg.org/storefront/server/api/rest/users"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(CORSMiddleware(server.config.CORSAllowedOrigins))
	router.Use(server.metrics.Instrument())

	router.GET("/health", health.Handler(server.checks...))
	router.GET("/metrics", gin.WrapH(server.metrics.Handler()))

	api := router.Group("/api")

	{
		api.GET("/ping", health.PingHandler)

		auth.RegisterRoutes(api, server.auth, server.authn, server.limiter.Middleware())
		users.RegisterRoutes(api, server.store, server.authn)
	}
}

// allows the storefront SPA origins to call the API with credentials
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
