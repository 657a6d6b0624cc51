package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "procura/internal/core/context"
	"procura/internal/core/id"
)

// JWTConfig holds access token settings.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns the defaults used when only a secret is known.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "procura",
		AccessTokenTTL: 15 * time.Minute,
	}
}

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	TenantID      string   `json:"tid"`
	Email         string   `json:"email"`
	Name          string   `json:"name,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	DepartmentIDs []string `json:"depts,omitempty"`
	IsAdmin       bool     `json:"adm,omitempty"`
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// JWTService signs and verifies HS256 access tokens.
type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = 15 * time.Minute
	}
	return &JWTService{config: config, now: time.Now}
}

// GenerateAccessToken signs a token for user within tenantID.
func (s *JWTService) GenerateAccessToken(user *User, tenantID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			ID:        id.New().String(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID:      tenantID,
		Email:         user.Email,
		Name:          user.FullName(),
		Roles:         user.Roles,
		DepartmentIDs: user.DepartmentIDs,
		IsAdmin:       user.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies tokenString and maps its claims to a UserContext.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return []byte(s.config.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &appctx.UserContext{
		UserID:        claims.Subject,
		TenantID:      claims.TenantID,
		Email:         claims.Email,
		Name:          claims.Name,
		Roles:         claims.Roles,
		DepartmentIDs: claims.DepartmentIDs,
		IsAdmin:       claims.IsAdmin,
		SessionID:     claims.ID,
	}, nil
}
