package dto

import (
	"procura/internal/domain/auth"
)

// RefreshRequest exchanges a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserResponse is the public view of the logged in user.
type UserResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Roles         []string `json:"roles"`
	DepartmentIDs []string `json:"department_ids"`
	IsAdmin       bool     `json:"is_admin"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Tokens *auth.TokenPair `json:"tokens"`
	User   UserResponse    `json:"user"`
}

// FromUser maps a domain user.
func FromUser(u *auth.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	depts := u.DepartmentIDs
	if depts == nil {
		depts = []string{}
	}
	return UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.FullName(),
		Roles:         roles,
		DepartmentIDs: depts,
		IsAdmin:       u.IsAdmin,
	}
}
