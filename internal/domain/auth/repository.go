package auth

import (
	"context"
	"time"

	"procura/internal/core/id"
)

// UserRepository reads users from the tenant database.
type UserRepository interface {
	// GetByID returns NOT_FOUND when the user does not exist.
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	// GetByEmail matches case-insensitively; NOT_FOUND when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// SaveLoginState persists the login counters of user.
	SaveLoginState(ctx context.Context, user *User) error
	// LoadRoles returns the role codes granted to the user.
	LoadRoles(ctx context.Context, userID id.ID) ([]string, error)
	// LoadDepartments returns the ids of the departments the user belongs to.
	LoadDepartments(ctx context.Context, userID id.ID) ([]string, error)
}

// TokenRepository stores refresh tokens.
type TokenRepository interface {
	Save(ctx context.Context, token *RefreshToken) error
	// GetByHash returns NOT_FOUND for unknown hashes.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenID id.ID, reason string) error
	RevokeAllForUser(ctx context.Context, userID id.ID, reason string) error
	// DeleteExpired removes tokens that expired or were revoked before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
