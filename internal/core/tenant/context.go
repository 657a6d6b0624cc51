package tenant

import (
	"context"
	"errors"

	"procura/internal/core/tx"
)

type ctxKey int

const (
	txManagerKey ctxKey = iota
	tenantKey
)

// ErrNoTxManager means no tenant transaction manager was bound to the context.
var ErrNoTxManager = errors.New("transaction manager not found in context")

// WithTxManager stores the tenant transaction manager in context.
func WithTxManager(ctx context.Context, txm tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey, txm)
}

// GetTxManager retrieves the tenant transaction manager from context.
func GetTxManager(ctx context.Context) (tx.Manager, error) {
	txm, ok := ctx.Value(txManagerKey).(tx.Manager)
	if !ok || txm == nil {
		return nil, ErrNoTxManager
	}
	return txm, nil
}

// WithTenant stores tenant info in context.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant retrieves tenant from context.
func GetTenant(ctx context.Context) *Tenant {
	t, _ := ctx.Value(tenantKey).(*Tenant)
	return t
}

// GetCode returns the business-unit code or empty string.
func GetCode(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.Code
	}
	return ""
}
