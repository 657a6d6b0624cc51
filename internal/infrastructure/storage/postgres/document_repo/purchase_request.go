package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	pr "procura/internal/domain/documents/purchase_request"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	purchaseRequestTable     = "purchase_requests"
	purchaseRequestLineTable = "purchase_request_lines"

	// prNoConstraint is the partial unique index on non-draft numbers.
	prNoConstraint = "purchase_requests_pr_no_uidx"
)

var (
	headerColumns = postgres.ExtractDBColumns[pr.PurchaseRequest]()
	lineColumns   = postgres.ExtractDBColumns[pr.Line]()

	immutableColumns = []string{"id", "created_at", "created_by"}

	headerOrderColumns = []string{
		"pr_no", "pr_date", "pr_status", "workflow_current_stage",
		"requestor_name", "department_name", "created_at", "updated_at", "last_action_at_date",
	}
)

const defaultHeaderOrder = "pr_date DESC, created_at DESC"

// PurchaseRequestRepo implements purchase_request.Repository.
// Header and lines live in separate tables; lines cascade on header delete.
type PurchaseRequestRepo struct{}

// NewPurchaseRequestRepo creates a repository bound to the tenant TxManager in ctx.
func NewPurchaseRequestRepo() *PurchaseRequestRepo {
	return &PurchaseRequestRepo{}
}

func (r *PurchaseRequestRepo) Create(ctx context.Context, doc *pr.PurchaseRequest) error {
	sql, args, err := builder().
		Insert(purchaseRequestTable).
		SetMap(columnsFrom(postgres.StructToMap(doc), headerColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, prNoConstraint) {
			return apperror.NewDuplicate(pr.EntityType, "pr_no", doc.PRNo)
		}
		return fmt.Errorf("insert %s: %w", purchaseRequestTable, err)
	}
	return nil
}

func (r *PurchaseRequestRepo) headerSelect() squirrel.SelectBuilder {
	return builder().Select(headerColumns...).From(purchaseRequestTable)
}

func (r *PurchaseRequestRepo) GetByID(ctx context.Context, prID id.ID) (*pr.PurchaseRequest, error) {
	sql, args, err := r.headerSelect().Where(squirrel.Eq{"id": prID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc pr.PurchaseRequest
	if err := pgxscan.Get(ctx, postgres.QuerierFromContext(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(pr.EntityType, prID)
		}
		return nil, fmt.Errorf("get purchase request: %w", err)
	}
	return &doc, nil
}

// GetByIDs returns the headers that exist, in pr_date order.
func (r *PurchaseRequestRepo) GetByIDs(ctx context.Context, prIDs []id.ID) ([]*pr.PurchaseRequest, error) {
	if len(prIDs) == 0 {
		return nil, nil
	}
	sql, args, err := r.headerSelect().
		Where(squirrel.Eq{"id": prIDs}).
		OrderBy("pr_date", "created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docs []*pr.PurchaseRequest
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("get purchase requests: %w", err)
	}
	return docs, nil
}

// Update writes every mutable header column. The caller has already bumped
// doc_version; the row must still carry expectedVersion.
func (r *PurchaseRequestRepo) Update(ctx context.Context, doc *pr.PurchaseRequest, expectedVersion int) error {
	sql, args, err := builder().
		Update(purchaseRequestTable).
		SetMap(columnsFrom(postgres.StructToMap(doc), headerColumns, immutableColumns...)).
		Where(squirrel.Eq{"id": doc.ID, "doc_version": expectedVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err, prNoConstraint) {
			return apperror.NewDuplicate(pr.EntityType, "pr_no", doc.PRNo)
		}
		return fmt.Errorf("update %s: %w", purchaseRequestTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(pr.EntityType, doc.ID).
			WithDetail("expected_version", expectedVersion)
	}
	return nil
}

func (r *PurchaseRequestRepo) Delete(ctx context.Context, prID id.ID) error {
	sql, args, err := builder().
		Delete(purchaseRequestTable).
		Where(squirrel.Eq{"id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", purchaseRequestTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(pr.EntityType, prID)
	}
	return nil
}

func (r *PurchaseRequestRepo) GetLines(ctx context.Context, prID id.ID) ([]pr.Line, error) {
	sql, args, err := builder().
		Select(lineColumns...).
		From(purchaseRequestLineTable).
		Where(squirrel.Eq{"purchase_request_id": prID}).
		OrderBy("sequence_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []pr.Line
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

func (r *PurchaseRequestRepo) GetLine(ctx context.Context, lineID id.ID) (*pr.Line, error) {
	sql, args, err := builder().
		Select(lineColumns...).
		From(purchaseRequestLineTable).
		Where(squirrel.Eq{"id": lineID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line pr.Line
	if err := pgxscan.Get(ctx, postgres.QuerierFromContext(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase request line", lineID)
		}
		return nil, fmt.Errorf("get line: %w", err)
	}
	return &line, nil
}

// InsertLines writes all lines in one multi-row INSERT.
func (r *PurchaseRequestRepo) InsertLines(ctx context.Context, lines []pr.Line) error {
	if len(lines) == 0 {
		return nil
	}
	q := builder().Insert(purchaseRequestLineTable).Columns(lineColumns...)
	for i := range lines {
		data := postgres.StructToMap(&lines[i])
		values := make([]any, len(lineColumns))
		for j, col := range lineColumns {
			values[j] = data[col]
		}
		q = q.Values(values...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", purchaseRequestLineTable, err)
	}
	return nil
}

// UpdateLines rewrites each line by id, including its owning request so
// split can move lines between requests.
func (r *PurchaseRequestRepo) UpdateLines(ctx context.Context, lines []pr.Line) error {
	querier := postgres.QuerierFromContext(ctx)
	for i := range lines {
		sql, args, err := builder().
			Update(purchaseRequestLineTable).
			SetMap(columnsFrom(postgres.StructToMap(&lines[i]), lineColumns, immutableColumns...)).
			Where(squirrel.Eq{"id": lines[i].ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}

		tag, err := querier.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", purchaseRequestLineTable, err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("purchase request line", lines[i].ID)
		}
	}
	return nil
}

func (r *PurchaseRequestRepo) DeleteLines(ctx context.Context, lineIDs []id.ID) error {
	if len(lineIDs) == 0 {
		return nil
	}
	sql, args, err := builder().
		Delete(purchaseRequestLineTable).
		Where(squirrel.Eq{"id": lineIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete %s: %w", purchaseRequestLineTable, err)
	}
	return nil
}

// filterQuery applies the list filter to the header select.
func (r *PurchaseRequestRepo) filterQuery(filter pr.ListFilter) squirrel.SelectBuilder {
	q := r.headerSelect()

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where(squirrel.Eq{"pr_status": statuses})
	}
	if filter.RequestorID != "" {
		q = q.Where(squirrel.Eq{"requestor_id": filter.RequestorID})
	}
	if filter.DepartmentID != nil {
		q = q.Where(squirrel.Eq{"department_id": *filter.DepartmentID})
	}
	if filter.WorkflowID != nil {
		q = q.Where(squirrel.Eq{"workflow_id": *filter.WorkflowID})
	}
	if filter.Stage != "" {
		q = q.Where(squirrel.Eq{"workflow_current_stage": filter.Stage})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"pr_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"pr_date": *filter.DateTo})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"pr_no": pattern},
			squirrel.ILike{"description": pattern},
			squirrel.ILike{"requestor_name": pattern},
		})
	}
	return q
}

func (r *PurchaseRequestRepo) List(ctx context.Context, filter pr.ListFilter) (domain.ListResult[*pr.PurchaseRequest], error) {
	return r.list(ctx, r.filterQuery(filter), filter.ListFilter)
}

// pendingFor matches in-progress requests whose user_action lists userID.
func pendingFor(userID string) squirrel.Sqlizer {
	return squirrel.And{
		squirrel.Eq{"pr_status": string(pr.StatusInProgress)},
		squirrel.Expr("user_action->'execute' @> jsonb_build_array(jsonb_build_object('user_id', ?::text))", userID),
	}
}

func (r *PurchaseRequestRepo) ListPendingFor(ctx context.Context, userID string, filter domain.ListFilter) (domain.ListResult[*pr.PurchaseRequest], error) {
	return r.list(ctx, r.headerSelect().Where(pendingFor(userID)), filter)
}

func (r *PurchaseRequestRepo) CountPendingFor(ctx context.Context, userID string) (int64, error) {
	sql, args, err := builder().
		Select("COUNT(*)").
		From(purchaseRequestTable).
		Where(pendingFor(userID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	if err := postgres.QuerierFromContext(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

func (r *PurchaseRequestRepo) list(
	ctx context.Context,
	q squirrel.SelectBuilder,
	filter domain.ListFilter,
) (domain.ListResult[*pr.PurchaseRequest], error) {
	result := domain.ListResult[*pr.PurchaseRequest]{Limit: filter.Limit, Offset: filter.Offset}

	order, err := orderBy(filter.OrderBy, headerOrderColumns, defaultHeaderOrder)
	if err != nil {
		return result, err
	}
	q, result.TotalCount, err = paginate(ctx, q, filter, order)
	if err != nil {
		return result, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list purchase requests: %w", err)
	}
	return result, nil
}

var _ pr.Repository = (*PurchaseRequestRepo)(nil)
