package auth

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/internal/auth"
)

// registers all authentication routes; limit throttles the credential endpoints
func RegisterRoutes(router *gin.RouterGroup, deps *Dependencies, authn *auth.Authenticator, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", limit, SignupHandler(deps))
		authGroup.POST("/login", limit, LoginHandler(deps))
		authGroup.POST("/refresh-token", limit, RefreshHandler(deps))
		authGroup.GET("/me", authn.RequireBearer(), GetCurrentUserHandler())
		authGroup.PUT("/me", authn.RequireBearer(), UpdateProfileHandler(deps))
		authGroup.POST("/logout", authn.RequireBearer(), LogoutHandler(deps))
		authGroup.GET("/session", authn.RequireEither(), SessionHandler())
		authGroup.GET("/google", BeginGoogleAuthHandler(deps))
		authGroup.GET("/google/callback", GoogleCallbackHandler(deps))
	}
}
