// Package document_repo provides PostgreSQL implementations for document repositories.
// In Database-per-Tenant architecture, TxManager is obtained from context per-request.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"procura/internal/core/apperror"
	"procura/internal/domain"
	"procura/internal/infrastructure/storage/postgres"
)

// builder returns a squirrel builder with PostgreSQL placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// columnsFrom keeps the entries of data whose keys are in cols, minus skip.
func columnsFrom(data map[string]any, cols []string, skip ...string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, col := range cols {
		if containsString(skip, col) {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// orderBy turns "-col" / "+col" / "col" into an ORDER BY clause restricted
// to allowed columns. An empty value yields def.
func orderBy(value string, allowed []string, def string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}

	direction := "ASC"
	field := value
	switch {
	case strings.HasPrefix(value, "-"):
		direction = "DESC"
		field = strings.TrimPrefix(value, "-")
	case strings.HasPrefix(value, "+"):
		field = strings.TrimPrefix(value, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !containsString(allowed, field) {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", value).
			WithDetail("field", field)
	}
	return field + " " + direction, nil
}

// paginate counts the rows matched by q, then applies ordering and paging.
func paginate(
	ctx context.Context,
	q squirrel.SelectBuilder,
	filter domain.ListFilter,
	order string,
) (squirrel.SelectBuilder, int64, error) {
	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return q, 0, fmt.Errorf("build count: %w", err)
	}

	var total int64
	querier := postgres.QuerierFromContext(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return q, 0, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy(order)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q, total, nil
}
