package postgres

import (
	"context"
	"fmt"

	"procura/internal/core/tenant"
)

// MustGetTxManager returns the tenant *TxManager from context.
// Repositories use it for GetQuerier; domain code depends on tx.Manager only.
func MustGetTxManager(ctx context.Context) *TxManager {
	txm, err := tenant.GetTxManager(ctx)
	if err != nil {
		panic(err.Error())
	}
	pgTxm, ok := txm.(*TxManager)
	if !ok || pgTxm == nil {
		panic(fmt.Sprintf("TxManager in context has unexpected type: %T", txm))
	}
	return pgTxm
}

// QuerierFromContext returns the active transaction or the tenant pool.
func QuerierFromContext(ctx context.Context) Querier {
	return MustGetTxManager(ctx).GetQuerier(ctx)
}
