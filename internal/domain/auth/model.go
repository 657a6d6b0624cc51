// Package auth authenticates tenant users and issues bearer tokens.
package auth

import (
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

// User is a tenant user able to log in.
type User struct {
	ID                  id.ID      `db:"id"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	FirstName           string     `db:"first_name"`
	MiddleName          string     `db:"middle_name"`
	LastName            string     `db:"last_name"`
	IsActive            bool       `db:"is_active"`
	IsAdmin             bool       `db:"is_admin"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`

	Roles         []string `db:"-"`
	DepartmentIDs []string `db:"-"`
}

// FullName joins the non-empty name parts; the email stands in when all
// parts are empty.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return u.Email
	}
	return strings.Join(parts, " ")
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// CanLogin rejects disabled and locked accounts.
func (u *User) CanLogin(now time.Time) error {
	if !u.IsActive {
		return apperror.NewUnauthorized("account is disabled")
	}
	if u.IsLocked(now) {
		return apperror.NewUnauthorized("account is temporarily locked").
			WithDetail("locked_until", u.LockedUntil.UTC())
	}
	return nil
}

// RecordFailedLogin counts a bad password and locks the account once
// maxAttempts is reached.
func (u *User) RecordFailedLogin(now time.Time, maxAttempts int, lockFor time.Duration) {
	u.FailedLoginAttempts++
	if maxAttempts > 0 && u.FailedLoginAttempts >= maxAttempts {
		until := now.Add(lockFor)
		u.LockedUntil = &until
	}
}

// RecordSuccessfulLogin clears the failure counter.
func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// RefreshToken is the stored form of an issued refresh token. Only the
// SHA-256 of the raw token is persisted.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	UserID        id.ID      `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason *string    `db:"revoked_reason"`
}

// IsValid reports whether the token can still be exchanged.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
