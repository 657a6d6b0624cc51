package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/tenant"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

// TenantHeader carries the business-unit code of the request.
const TenantHeader = "X-Tenant-ID"

// PoolResolver hands out the connection pool of a business unit.
type PoolResolver interface {
	GetPool(ctx context.Context, code string) (*tenant.ManagedPool, error)
}

// TenantDB resolves the business unit named by X-Tenant-ID and puts its pool,
// a per-request TxManager and the tenant row into the request context.
// It must run before anything that touches the database.
func TenantDB(pools PoolResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		code := strings.ToLower(strings.TrimSpace(c.GetHeader(TenantHeader)))
		if code == "" {
			_ = c.Error(apperror.NewValidation("tenant is required").WithDetail("header", TenantHeader))
			c.Abort()
			return
		}

		managed, err := pools.GetPool(ctx, code)
		if err != nil {
			logger.Warn(ctx, "tenant pool error", "bu_code", code, "error", err)
			_ = c.Error(tenantError(code, err))
			c.Abort()
			return
		}

		managed.AcquireRef()
		defer managed.ReleaseRef()

		txm := postgres.NewTxManager(managed.Pool())
		ctx = tenant.WithTxManager(ctx, txm)
		ctx = tenant.WithTenant(ctx, managed.Tenant())
		c.Request = c.Request.WithContext(ctx)

		c.Set("bu_code", code)
		c.Next()
	}
}

func tenantError(code string, err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return apperror.NewNotFound("tenant", code)
	case errors.Is(err, tenant.ErrTenantNotActive):
		return apperror.NewUnauthorized("tenant is not active").WithDetail("bu_code", code)
	case errors.Is(err, tenant.ErrMaxPoolLimit):
		return apperror.NewServiceUnavailable("tenant database", err)
	default:
		return apperror.NewInternal(err).WithDetail("bu_code", code)
	}
}
