// Package auth_repo provides PostgreSQL implementations for auth repositories.
// In Database-per-Tenant architecture, the querier is obtained from context.
package auth_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain/auth"
	"procura/internal/infrastructure/storage/postgres"
)

const userColumns = `id, email, password_hash, first_name, COALESCE(middle_name, '') AS middle_name,
	last_name, is_active, is_admin, last_login_at, failed_login_attempts, locked_until,
	created_at, updated_at`

// UserRepo implements auth.UserRepository.
type UserRepo struct{}

var _ auth.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{}
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any, key string) (*auth.User, error) {
	var user auth.User
	query := "SELECT " + userColumns + " FROM users WHERE " + where
	if err := pgxscan.Get(ctx, postgres.QuerierFromContext(ctx), &user, query, arg); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, "id = $1", userID, userID.String())
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "lower(email) = lower($1)", email, email)
}

// SaveLoginState stores the login counters.
func (r *UserRepo) SaveLoginState(ctx context.Context, user *auth.User) error {
	tag, err := postgres.QuerierFromContext(ctx).Exec(ctx, `
		UPDATE users
		SET last_login_at = $2, failed_login_attempts = $3, locked_until = $4, updated_at = NOW()
		WHERE id = $1
	`, user.ID, user.LastLoginAt, user.FailedLoginAttempts, user.LockedUntil)
	if err != nil {
		return fmt.Errorf("update login state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", user.ID.String())
	}
	return nil
}

// LoadRoles returns role codes granted to the user.
func (r *UserRepo) LoadRoles(ctx context.Context, userID id.ID) ([]string, error) {
	var codes []string
	err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &codes, `
		SELECT r.code
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return codes, nil
}

// LoadDepartments returns the departments the user is a member of.
func (r *UserRepo) LoadDepartments(ctx context.Context, userID id.ID) ([]string, error) {
	var ids []string
	err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &ids, `
		SELECT department_id::text
		FROM department_users
		WHERE user_id = $1
		ORDER BY department_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load departments: %w", err)
	}
	return ids, nil
}
