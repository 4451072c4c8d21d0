package users

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/api/rest/pagination"
	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/internal/errors"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/internal/password"
	"codeberg.org/storefront/server/storefront/users"
)

// ListUsers godoc
// @Summary List accounts
// @Description Admin-only paginated account listing, newest first
// @Tags users
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} ListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/users [get]
// @Security BearerAuth
func ListUsers(store users.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := pagination.FromQuery(c, defaultPageSize, maxPageSize)

		list, err := store.List(c.Request.Context(), params.Fetch(), params.Offset)
		if err != nil {
			errors.InternalError(c, "failed to list users", err)
			return
		}

		c.JSON(http.StatusOK, ListResponse{
			Users:      pagination.Trim(params, list),
			Pagination: pagination.NewMeta(params, len(list)),
		})
	}
}

// GetUser godoc
// @Summary Get an account
// @Description Returns an account to its owner or to an admin
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/users/{id} [get]
// @Security BearerAuth
func GetUser(store users.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := store.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				errors.NotFound(c, "user")
				return
			}

			errors.InternalError(c, "failed to fetch user", err)
			return
		}

		c.JSON(http.StatusOK, UserResponse{User: user.Sanitized()})
	}
}

// UpdateRole godoc
// @Summary Change an account's role
// @Description Admin-only; admins cannot change their own role
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/users/{id}/role [put]
// @Security BearerAuth
func UpdateRole(store users.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateRoleRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}

		role := users.Role(req.Role)
		if !role.Valid() {
			errors.InvalidField(c, "role must be one of: user, admin")
			return
		}

		targetID := c.Param("id")
		callerID, _ := auth.GetUserID(c)

		if targetID == callerID {
			errors.BadRequest(c, "you cannot change your own role", nil)
			return
		}

		user, err := store.UpdateRole(c.Request.Context(), targetID, role)
		if err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				errors.NotFound(c, "user")
				return
			}

			errors.InternalError(c, "failed to update role", err)
			return
		}

		logger.FromContext(c.Request.Context()).Info("role changed",
			"target_id", user.ID,
			"new_role", user.Role,
		)

		c.JSON(http.StatusOK, UserResponse{User: user.Sanitized()})
	}
}

// ChangePassword godoc
// @Summary Change an account's password
// @Description Owners must present their current password when one is set; admins may reset any password
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/users/{id}/password [put]
// @Security BearerAuth
func ChangePassword(store users.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}

		if err := password.ValidateStrength(req.NewPassword); err != nil {
			errors.InvalidField(c, password.Reason(err))
			return
		}

		ctx := c.Request.Context()
		caller, _ := auth.CurrentUser(c)

		target, err := store.FindByID(ctx, c.Param("id"))
		if err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				errors.NotFound(c, "user")
				return
			}

			errors.InternalError(c, "failed to fetch user", err)
			return
		}

		// 400 rather than 401 so clients do not treat it as an expired token
		if !caller.IsAdmin() && target.HasPassword() && !password.Verify(req.CurrentPassword, target.PasswordHash) {
			errors.BadRequest(c, "current password is incorrect", nil)
			return
		}

		hash, err := password.Hash(req.NewPassword)
		if err != nil {
			errors.InternalError(c, "failed to update password", err)
			return
		}

		if err := store.UpdatePassword(ctx, target.ID, hash); err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				errors.NotFound(c, "user")
				return
			}

			errors.InternalError(c, "failed to update password", err)
			return
		}

		logger.FromContext(c.Request.Context()).Info("password changed", "target_id", target.ID)

		c.JSON(http.StatusOK, MessageResponse{Message: "password updated successfully"})
	}
}
