package document_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	pr "procura/internal/domain/documents/purchase_request"
)

func whereClause(t *testing.T, q squirrel.SelectBuilder) (string, []any) {
	t.Helper()
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	_, where, _ := strings.Cut(sql, " WHERE ")
	return where, args
}

func TestPurchaseRequestRepo_FilterQuery(t *testing.T) {
	repo := NewPurchaseRequestRepo()
	dept := id.New()
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    pr.ListFilter
		wantWhere string
		wantArgs  int
	}{
		{
			name:      "no filter",
			filter:    pr.ListFilter{},
			wantWhere: "",
		},
		{
			name:      "statuses",
			filter:    pr.ListFilter{Statuses: []pr.Status{pr.StatusDraft, pr.StatusInProgress}},
			wantWhere: "pr_status IN ($1,$2)",
			wantArgs:  2,
		},
		{
			name:      "requestor and department",
			filter:    pr.ListFilter{RequestorID: "u1", DepartmentID: &dept},
			wantWhere: "requestor_id = $1 AND department_id = $2",
			wantArgs:  2,
		},
		{
			name:      "stage and date",
			filter:    pr.ListFilter{Stage: "HOD", DateFrom: &from},
			wantWhere: "workflow_current_stage = $1 AND pr_date >= $2",
			wantArgs:  2,
		},
		{
			name:      "search",
			filter:    pr.ListFilter{ListFilter: domain.ListFilter{Search: "PR26"}},
			wantWhere: "(pr_no ILIKE $1 OR description ILIKE $2 OR requestor_name ILIKE $3)",
			wantArgs:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := whereClause(t, repo.filterQuery(tt.filter))
			assert.Equal(t, tt.wantWhere, where)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestPendingFor(t *testing.T) {
	sql, args, err := builder().Select("id").From(purchaseRequestTable).Where(pendingFor("hod-1")).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM purchase_requests WHERE (pr_status = $1 AND user_action->'execute' @> jsonb_build_array(jsonb_build_object('user_id', $2::text)))",
		sql)
	assert.Equal(t, []any{"in_progress", "hod-1"}, args)
}

func TestOrderBy(t *testing.T) {
	allowed := []string{"pr_no", "pr_date"}

	got, err := orderBy("", allowed, "pr_date DESC")
	require.NoError(t, err)
	assert.Equal(t, "pr_date DESC", got)

	got, err = orderBy("-pr_no", allowed, "")
	require.NoError(t, err)
	assert.Equal(t, "pr_no DESC", got)

	got, err = orderBy("+pr_date", allowed, "")
	require.NoError(t, err)
	assert.Equal(t, "pr_date ASC", got)

	_, err = orderBy("pr_no; DROP TABLE x", allowed, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidationFailure))
}

func TestColumns(t *testing.T) {
	assert.Contains(t, headerColumns, "pr_status")
	assert.Contains(t, headerColumns, "doc_version")
	assert.Contains(t, headerColumns, "user_action")
	assert.NotContains(t, headerColumns, "purchase_request_detail")

	assert.Contains(t, lineColumns, "stages_status")
	assert.Contains(t, lineColumns, "purchase_request_id")

	data := map[string]any{"id": 1, "pr_no": "x", "created_at": 2, "extra": 3}
	assert.Equal(t, map[string]any{"pr_no": "x"}, columnsFrom(data, []string{"id", "pr_no", "created_at"}, immutableColumns...))
}
