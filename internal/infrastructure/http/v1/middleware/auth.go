package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/core/tenant"
)

// JWTValidator verifies bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth validates the bearer token and stores the caller in the request
// context. A token issued for another business unit is rejected.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			_ = c.Error(apperror.NewUnauthenticated("missing or malformed bearer token"))
			c.Abort()
			return
		}

		user, err := validator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(apperror.NewUnauthenticated("invalid or expired token"))
			c.Abort()
			return
		}

		if code := tenant.GetCode(c.Request.Context()); code != "" && user.TenantID != code {
			_ = c.Error(apperror.NewUnauthorized("token was issued for another tenant").
				WithDetail("bu_code", code))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set("user_id", user.UserID)
		c.Next()
	}
}

// RequireRole lets admins and holders of any of roles through.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthenticated("authentication required"))
			c.Abort()
			return
		}
		if user.IsAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if appctx.HasRole(c.Request.Context(), r) {
				c.Next()
				return
			}
		}
		_ = c.Error(apperror.NewUnauthorized("insufficient permissions").WithDetail("required_roles", roles))
		c.Abort()
	}
}
