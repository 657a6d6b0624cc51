// Package catalog_repo provides PostgreSQL access to master data: products,
// vendors, units and the other catalogs purchase requests reference, plus
// departments and user profiles.
// In Database-per-Tenant architecture, TxManager is obtained from context per-request.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo loads rows of one catalog table by id.
// Catalogs are read-only here; they are maintained by the master-data service.
type BaseCatalogRepo[T any] struct {
	tableName  string
	selectCols []string
}

// NewBaseCatalogRepo creates a catalog loader for tableName.
func NewBaseCatalogRepo[T any](tableName string, selectCols []string) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		tableName:  tableName,
		selectCols: selectCols,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// byIDsQuery selects the rows with the given ids.
func (r *BaseCatalogRepo[T]) byIDsQuery(ids []id.ID) squirrel.SelectBuilder {
	return r.baseSelect().Where(squirrel.Eq{"id": ids})
}

// GetByIDs returns the rows that exist; missing ids are skipped.
func (r *BaseCatalogRepo[T]) GetByIDs(ctx context.Context, ids []id.ID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := r.byIDsQuery(ids).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []T
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return rows, nil
}

// GetByID returns one row, or nil when it does not exist.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (*T, error) {
	rows, err := r.GetByIDs(ctx, []id.ID{entityID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// parseIDs keeps the well-formed ids; identity ids arrive as strings.
func parseIDs(raw []string) []id.ID {
	out := make([]id.ID, 0, len(raw))
	for _, s := range raw {
		if v, err := id.Parse(s); err == nil {
			out = append(out, v)
		}
	}
	return out
}
