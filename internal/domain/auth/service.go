package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/core/id"
	"procura/internal/core/tenant"
	"procura/pkg/logger"
)

// ServiceConfig holds login policy.
type ServiceConfig struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
	RefreshTokenTTL  time.Duration
}

// DefaultServiceConfig returns the default login policy.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	}
}

// Service authenticates users of the tenant carried by the context.
type Service struct {
	users  UserRepository
	tokens TokenRepository
	jwt    *JWTService
	config ServiceConfig
	now    func() time.Time
}

// NewService creates an auth service.
func NewService(users UserRepository, tokens TokenRepository, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		jwt:    jwtService,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func requireTenant(ctx context.Context) (string, error) {
	code := tenant.GetCode(ctx)
	if code == "" {
		return "", apperror.NewValidation("tenant is required").WithDetail("header", "X-Tenant-ID")
	}
	return code, nil
}

// Login checks the credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, *User, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthenticated("invalid credentials")
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(now, s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.users.SaveLoginState(ctx, user); err != nil {
			logger.Warn(ctx, "failed to record failed login", "user_id", user.ID, "error", err)
		}
		return nil, nil, apperror.NewUnauthenticated("invalid credentials")
	}

	if err := s.loadMemberships(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issue(ctx, user, tenantID)
	if err != nil {
		return nil, nil, err
	}

	user.RecordSuccessfulLogin(now)
	if err := s.users.SaveLoginState(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID)
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked; reuse of a revoked token revokes every token of its user.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	token, err := s.tokens.GetByHash(ctx, hashToken(raw))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthenticated("invalid refresh token")
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if token.RevokedAt != nil {
		if err := s.tokens.RevokeAllForUser(ctx, token.UserID, "reuse"); err != nil {
			logger.Error(ctx, "failed to revoke tokens after reuse", "user_id", token.UserID, "error", err)
		}
		return nil, apperror.NewUnauthenticated("refresh token revoked")
	}
	if !token.IsValid(now) {
		return nil, apperror.NewUnauthenticated("refresh token expired")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthenticated("invalid refresh token")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := user.CanLogin(now); err != nil {
		return nil, err
	}
	if err := s.loadMemberships(ctx, user); err != nil {
		return nil, err
	}

	if err := s.tokens.Revoke(ctx, token.ID, "refreshed"); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issue(ctx, user, tenantID)
}

// Logout revokes every refresh token of userID.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID, "logout"); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// CleanupTokens drops refresh tokens that stopped being usable more than
// retention ago.
func (s *Service) CleanupTokens(ctx context.Context, retention time.Duration) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now().Add(-retention))
}

// ValidateToken verifies an access token.
func (s *Service) ValidateToken(raw string) (*appctx.UserContext, error) {
	uc, err := s.jwt.ValidateToken(raw)
	if err != nil {
		return nil, apperror.NewUnauthenticated("invalid or expired token")
	}
	return uc, nil
}

func (s *Service) loadMemberships(ctx context.Context, user *User) error {
	roles, err := s.users.LoadRoles(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	depts, err := s.users.LoadDepartments(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load departments: %w", err)
	}
	user.Roles = roles
	user.DepartmentIDs = depts
	return nil
}

func (s *Service) issue(ctx context.Context, user *User, tenantID string) (*TokenPair, error) {
	access, expiresAt, err := s.jwt.GenerateAccessToken(user, tenantID)
	if err != nil {
		return nil, err
	}

	raw, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	if err := s.tokens.Save(ctx, &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
