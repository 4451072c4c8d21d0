package users

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/storefront/users"
)

func RegisterRoutes(rg *gin.RouterGroup, store users.Store, authn *auth.Authenticator) {
	group := rg.Group("/users")

	group.GET("", authn.RequireAdmin(), ListUsers(store))
	group.GET("/:id", authn.RequireSelfOrAdmin("id"), GetUser(store))
	group.PUT("/:id/role", authn.RequireAdmin(), UpdateRole(store))
	group.PUT("/:id/password", authn.RequireSelfOrAdmin("id"), ChangePassword(store))
}
