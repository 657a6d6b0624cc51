// Package workflow_repo stores workflow definitions in the tenant database.
package workflow_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain/workflow"
	"procura/internal/infrastructure/storage/postgres"
)

const workflowTable = "workflows"

var workflowColumns = postgres.ExtractDBColumns[workflow.Definition]()

// WorkflowRepo implements workflow.Repository.
type WorkflowRepo struct{}

func NewWorkflowRepo() *WorkflowRepo {
	return &WorkflowRepo{}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *WorkflowRepo) GetByID(ctx context.Context, wfID id.ID) (*workflow.Definition, error) {
	sql, args, err := builder().
		Select(workflowColumns...).
		From(workflowTable).
		Where(squirrel.Eq{"id": wfID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var def workflow.Definition
	if err := pgxscan.Get(ctx, postgres.QuerierFromContext(ctx), &def, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("workflow", wfID)
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return &def, nil
}

func updateQuery(def *workflow.Definition) squirrel.UpdateBuilder {
	return builder().
		Update(workflowTable).
		Set("name", def.Name).
		Set("is_active", def.IsActive).
		Set("data", def.Data).
		Set("doc_version", squirrel.Expr("doc_version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": def.ID, "doc_version": def.Version}).
		Suffix("RETURNING doc_version, updated_at")
}

// Update stores def when its Version is current and refreshes Version and
// UpdatedAt from the new row.
func (r *WorkflowRepo) Update(ctx context.Context, def *workflow.Definition) error {
	sql, args, err := updateQuery(def).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	err = postgres.QuerierFromContext(ctx).QueryRow(ctx, sql, args...).Scan(&def.Version, &def.UpdatedAt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrentModification("workflow", def.ID)
		}
		return fmt.Errorf("update workflow: %w", err)
	}
	return nil
}

var _ workflow.Repository = (*WorkflowRepo)(nil)
