package users

import (
	"codeberg.org/storefront/server/api/rest/pagination"
	"codeberg.org/storefront/server/storefront/users"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListResponse struct {
	Users      []*users.User   `json:"users"`
	Pagination pagination.Meta `json:"pagination"`
}

type UserResponse struct {
	User *users.User `json:"user"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
