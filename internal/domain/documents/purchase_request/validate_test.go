package purchase_request

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

func issuesOf(t *testing.T, err error) []FieldIssue {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T", err)
	assert.Equal(t, apperror.CodeValidationFailure, appErr.Code)
	issues, ok := appErr.Details["fields"].([]FieldIssue)
	require.True(t, ok)
	return issues
}

func TestFieldPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"CreatePayload.HeaderInput.pr_date", "pr_date"},
		{"CreatePayload.purchase_request_detail[1].product_id", "purchase_request_detail[1].product_id"},
		{"ApprovePayload.purchase_request_detail[0].ApproverLineEdit.id", "purchase_request_detail[0].id"},
		{"submission.requestor_id", "requestor_id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldPath(tt.in), tt.in)
	}
}

func TestValidatePayload(t *testing.T) {
	ref := id.New()

	t.Run("valid", func(t *testing.T) {
		p := CreatePayload{
			HeaderInput: HeaderInput{PRDate: time.Now()},
			Lines: []LineInput{{
				ProductID: &ref, LocationID: &ref, RequestedUnitID: &ref,
				RequestedQty: decimal.NewFromInt(1),
			}},
		}
		assert.NoError(t, ValidatePayload(p))
	})

	t.Run("missing line references", func(t *testing.T) {
		p := CreatePayload{
			HeaderInput: HeaderInput{PRDate: time.Now()},
			Lines:       []LineInput{{RequestedQty: decimal.NewFromInt(-1)}},
		}
		issues := issuesOf(t, ValidatePayload(p))
		assert.ElementsMatch(t, []FieldIssue{
			{"purchase_request_detail[0].product_id", "required"},
			{"purchase_request_detail[0].location_id", "required"},
			{"purchase_request_detail[0].requested_qty", "gte"},
			{"purchase_request_detail[0].requested_unit_id", "required"},
		}, issues)
	})

	t.Run("unknown line status", func(t *testing.T) {
		p := ApprovePayload{Lines: []ApproveLine{{
			ApproverLineEdit: ApproverLineEdit{ID: ref},
			Status:           "maybe",
		}}}
		issues := issuesOf(t, ValidatePayload(p))
		assert.Equal(t, []FieldIssue{{"purchase_request_detail[0].status", "oneof"}}, issues)
	})

	t.Run("review needs a destination", func(t *testing.T) {
		issues := issuesOf(t, ValidatePayload(ReviewPayload{}))
		assert.Equal(t, []FieldIssue{{"des_stage", "required"}}, issues)
	})
}

func TestValidateForSubmit(t *testing.T) {
	ref := id.New()
	complete := func() *PurchaseRequest {
		return &PurchaseRequest{
			PRDate:       time.Now(),
			WorkflowID:   &ref,
			DepartmentID: &ref,
			RequestorID:  "req-1",
			Lines: []Line{{
				ProductID: &ref, LocationID: &ref, RequestedUnitID: &ref,
				RequestedQty: decimal.NewFromInt(2),
			}},
		}
	}

	require.NoError(t, ValidateForSubmit(complete()))

	noLines := complete()
	noLines.Lines = nil
	assert.Equal(t, []FieldIssue{{"purchase_request_detail", "min"}}, issuesOf(t, ValidateForSubmit(noLines)))

	partial := complete()
	partial.WorkflowID = nil
	partial.Lines[0].LocationID = nil
	assert.ElementsMatch(t, []FieldIssue{
		{"workflow_id", "required"},
		{"purchase_request_detail[0].location_id", "required"},
	}, issuesOf(t, ValidateForSubmit(partial)))
}
