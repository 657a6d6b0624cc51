package purchase_request

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain/audit"
	"procura/internal/domain/notification"
	"procura/internal/domain/workflow"
)

func TestCreate(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(2, 100), f.lineInput(1, 50))

	assert.True(t, strings.HasPrefix(pr.PRNo, "draft-"), pr.PRNo)
	assert.Equal(t, StatusDraft, pr.Status)
	assert.Equal(t, "Create", pr.WorkflowCurrentStage)
	assert.Equal(t, "General PR", pr.WorkflowName)
	assert.Equal(t, "Finance", pr.DepartmentName)
	assert.Equal(t, requestorID, pr.RequestorID)
	assert.Equal(t, "Rita Requestor", pr.RequestorName)
	assert.Empty(t, pr.WorkflowHistory)

	require.Len(t, pr.Lines, 2)
	assert.Equal(t, 1, pr.Lines[0].SequenceNo)
	assert.Equal(t, 2, pr.Lines[1].SequenceNo)
	assert.Equal(t, "Printer paper", pr.Lines[0].ProductName)
	assert.Equal(t, "Papier", pr.Lines[0].ProductLocalName)
	assert.Equal(t, "MAIN", pr.Lines[0].LocationCode)
	assert.Equal(t, "Box", pr.Lines[0].RequestedUnitName)
	assert.Equal(t, "214", pr.Lines[0].TotalPrice.String())
	assert.Equal(t, "267.5", pr.Total().String())

	require.Len(t, f.audits, 1)
	assert.Equal(t, audit.ActionCreate, f.audits[0].Action)
	assert.Empty(t, f.published.intents, "create notifies nobody")
}

func TestCreate_HODGate(t *testing.T) {
	f := newFixture(t)
	in := f.createPayload(f.lineInput(1, 10))
	in.DepartmentID = &f.noHOD

	_, err := f.svc.Create(as(requestorID), in)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
	assert.Contains(t, err.Error(), `Cannot create PR with this workflow`)
	assert.Contains(t, err.Error(), `department "Kitchen"`)
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.createPayload())
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthenticated))
}

func TestCreate_InvalidPayload(t *testing.T) {
	f := newFixture(t)
	line := f.lineInput(1, 10)
	line.ProductID = nil

	_, err := f.svc.Create(as(requestorID), f.createPayload(line))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidationFailure))
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(2, 100))

	res, err := f.svc.Submit(as(requestorID), pr.ID, SubmitPayload{})
	require.NoError(t, err)
	assert.Equal(t, "PR2610-00001", res.PRNo)
	assert.Equal(t, StatusInProgress, res.Status)

	got := f.reload(t, pr.ID)
	assert.Equal(t, "PR2610-00001", got.PRNo)
	assert.Equal(t, "Create", got.WorkflowPreviousStage)
	assert.Equal(t, "HOD", got.WorkflowCurrentStage)
	assert.Equal(t, "Purchase", got.WorkflowNextStage)
	assert.Equal(t, []string{hodID}, got.UserAction.UserIDs())
	assert.Equal(t, pr.DocVersion+1, got.DocVersion)
	assert.Equal(t, LastActionSubmitted, got.LastAction)
	assert.Equal(t, requestorID, got.LastActionByID)

	require.Len(t, got.WorkflowHistory, 1)
	h := got.WorkflowHistory[0]
	assert.Equal(t, LastActionSubmitted, h.Action)
	assert.Equal(t, "Create", h.CurrentStage)
	assert.Equal(t, "HOD", h.NextStage)

	line := got.Lines[0]
	assert.Equal(t, []string{"Create:submit"}, stageNames(line.StagesStatus))
	assert.Equal(t, defaultSubmitMessage, line.StagesStatus[0].Message)
	require.Len(t, line.History, 1)
	assert.Equal(t, requestorID, line.History[0].User.ID)
	assert.True(t, line.ApprovedQty.Equal(line.RequestedQty))
	assert.Equal(t, line.RequestedUnitID, line.ApprovedUnitID)

	require.Len(t, res.Intents, 1)
	assert.Equal(t, notification.KindSubmitted, res.Intents[0].Kind)
	assert.Equal(t, []string{hodID}, res.Intents[0].ToUserIDs)
	assert.Equal(t, res.Intents, f.published.intents)
}

func TestSubmit_TwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))

	_, err := f.svc.Submit(as(requestorID), pr.ID, SubmitPayload{})
	require.NoError(t, err)
	_, err = f.svc.Submit(as(requestorID), pr.ID, SubmitPayload{})
	assert.True(t, apperror.IsNotFound(err), "got %v", err)
}

func TestSubmit_Incomplete(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(0, 10))

	_, err := f.svc.Submit(as(requestorID), pr.ID, SubmitPayload{})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidationFailure, appErr.Code)
	assert.Contains(t, appErr.Details["fields"], FieldIssue{Field: "purchase_request_detail[0].requested_qty", Rule: "gt"})
}

func TestSubmit_OnlyRequestor(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))
	_, err := f.svc.Submit(as(hodID), pr.ID, SubmitPayload{})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestApprove_ToFinal(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(2, 100))

	res, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	require.Len(t, res.Intents, 2)
	assert.Equal(t, notification.KindProgress, res.Intents[0].Kind)
	assert.Equal(t, []string{requestorID}, res.Intents[0].ToUserIDs)
	assert.Equal(t, notification.KindPendingApproval, res.Intents[1].Kind)
	assert.Equal(t, []string{buyerID}, res.Intents[1].ToUserIDs)

	got := f.reload(t, pr.ID)
	assert.Equal(t, "HOD", got.WorkflowPreviousStage)
	assert.Equal(t, "Purchase", got.WorkflowCurrentStage)
	assert.Equal(t, "Completed", got.WorkflowNextStage, "small amount skips GM")

	res, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
	require.Len(t, res.Intents, 1)
	assert.Equal(t, notification.KindApproved, res.Intents[0].Kind)

	got = f.reload(t, pr.ID)
	assert.Equal(t, "Completed", got.WorkflowCurrentStage)
	assert.Equal(t, "Purchase", got.WorkflowPreviousStage)
	assert.Equal(t, FinalStageMarker, got.WorkflowNextStage)
	assert.Nil(t, got.UserAction)
	assert.Equal(t, []string{"Create:submit", "HOD:approve", "Purchase:approve"}, stageNames(got.Lines[0].StagesStatus))

	last := got.WorkflowHistory[len(got.WorkflowHistory)-1]
	assert.Equal(t, "Completed", last.CurrentStage)
	assert.Equal(t, FinalStageMarker, last.NextStage)

	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	assert.True(t, apperror.IsNotFound(err), "approved is terminal")
}

func TestApprove_LargeAmountGoesThroughGM(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(10, 5000))

	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	require.NoError(t, err)

	got := f.reload(t, pr.ID)
	assert.Equal(t, "GM", got.WorkflowCurrentStage)
	assert.Equal(t, []string{gmID}, got.UserAction.UserIDs())
}

func TestApprove_NotExecutor(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(1, 10))

	_, err := f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestApprove_SkipsRejectedLines(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(1, 10), f.lineInput(1, 20))
	rejected := pr.Lines[1].ID

	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{Lines: []ApproveLine{{
		ApproverLineEdit: ApproverLineEdit{ID: rejected},
		Status:           LineReject,
		Message:          "not needed",
	}}})
	require.NoError(t, err)

	before := f.reload(t, pr.ID).Line(rejected)
	require.NotNil(t, before)
	assert.Equal(t, []string{"Create:submit", "HOD:reject"}, stageNames(before.StagesStatus))

	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{Lines: []ApproveLine{{
		ApproverLineEdit: ApproverLineEdit{ID: rejected},
		Status:           LineApprove,
	}}})
	require.NoError(t, err)

	got := f.reload(t, pr.ID)
	assert.Equal(t, StatusApproved, got.Status)
	after := got.Line(rejected)
	assert.Equal(t, before.StagesStatus, after.StagesStatus)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, []string{"Create:submit", "HOD:approve", "Purchase:approve"}, stageNames(got.Lines[0].StagesStatus))
}

func TestApprove_RejectedLineEditsDoNotRoute(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(1, 10), f.lineInput(1, 20))
	rejected := pr.Lines[1].ID

	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{Lines: []ApproveLine{{
		ApproverLineEdit: ApproverLineEdit{ID: rejected},
		Status:           LineReject,
	}}})
	require.NoError(t, err)
	before := f.reload(t, pr.ID)

	qty := decimal.NewFromInt(1000)
	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{Lines: []ApproveLine{{
		ApproverLineEdit: ApproverLineEdit{ID: rejected, ApprovedQty: &qty},
	}}})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))

	got := f.reload(t, pr.ID)
	assert.Equal(t, "Purchase", got.WorkflowCurrentStage)
	assert.Equal(t, before.DocVersion, got.DocVersion)
	assert.Equal(t, before.Line(rejected).ApprovedQty.String(), got.Line(rejected).ApprovedQty.String())
	assert.Equal(t, before.Line(rejected).TotalPrice.String(), got.Line(rejected).TotalPrice.String())

	// Without the edit the small total skips GM.
	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	got = f.reload(t, pr.ID)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "Completed", got.WorkflowCurrentStage)
}

func TestApprove_AppliesLineEdits(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(2, 100))
	qty := decimal.NewFromInt(1)
	price := decimal.NewFromInt(300)

	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{Lines: []ApproveLine{{
		ApproverLineEdit: ApproverLineEdit{ID: pr.Lines[0].ID, VendorID: &f.vendor, ApprovedQty: &qty, Price: &price},
	}}})
	require.NoError(t, err)

	l := f.reload(t, pr.ID).Lines[0]
	assert.Equal(t, "Paper Co", l.VendorName)
	assert.Equal(t, "321", l.TotalPrice.String())
	assert.Equal(t, "2", l.RequestedQty.String())
}

func TestReview_RewindsLines(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(10, 5000))
	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	require.NoError(t, err)

	stages, err := f.svc.PreviousStages(context.Background(), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Purchase", "HOD", "Create"}, stages)

	res, err := f.svc.Review(as(gmID), pr.ID, ReviewPayload{DesStage: "HOD", Lines: []LineDecision{{
		ID:      pr.Lines[0].ID,
		Message: "check quantity",
	}}})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, res.Status)
	require.Len(t, res.Intents, 2)
	assert.Equal(t, notification.KindReturned, res.Intents[0].Kind)
	assert.Equal(t, []string{requestorID}, res.Intents[0].ToUserIDs)
	assert.Equal(t, notification.KindReviewPending, res.Intents[1].Kind)
	assert.Equal(t, []string{hodID}, res.Intents[1].ToUserIDs)

	got := f.reload(t, pr.ID)
	assert.Equal(t, "HOD", got.WorkflowCurrentStage)
	assert.Equal(t, "GM", got.WorkflowPreviousStage)
	assert.Equal(t, "Purchase", got.WorkflowNextStage)
	assert.Equal(t, []string{hodID}, got.UserAction.UserIDs())
	assert.Equal(t, LastActionReviewed, got.LastAction)

	line := got.Lines[0]
	assert.Equal(t, []string{"Create:submit", "HOD:pending"}, stageNames(line.StagesStatus))
	lastHistory := line.History[len(line.History)-1]
	assert.Equal(t, LineReview, lastHistory.Status)
	assert.Equal(t, "GM", lastHistory.Name)
	assert.Equal(t, "check quantity", lastHistory.Message)

	// Approving again replaces the pending entry instead of adding one.
	_, err = f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	line = f.reload(t, pr.ID).Lines[0]
	assert.Equal(t, []string{"Create:submit", "HOD:approve"}, stageNames(line.StagesStatus))
}

func TestReview_CannotJumpPastReturnedStage(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(10, 5000))
	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	_, err = f.svc.Review(as(gmID), pr.ID, ReviewPayload{DesStage: "HOD"})
	require.NoError(t, err)

	stages, err := f.svc.PreviousStages(context.Background(), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Create"}, stages)

	_, err = f.svc.Review(as(hodID), pr.ID, ReviewPayload{DesStage: "GM"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
	_, err = f.svc.Review(as(hodID), pr.ID, ReviewPayload{DesStage: "Purchase"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))

	got := f.reload(t, pr.ID)
	assert.Equal(t, "HOD", got.WorkflowCurrentStage)
	assert.Equal(t, []string{"Create:submit", "HOD:pending"}, stageNames(got.Lines[0].StagesStatus))

	// Moving forward again brings Purchase back into the path.
	_, err = f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	stages, err = f.svc.PreviousStages(context.Background(), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"HOD", "Create"}, stages)
}

func TestReview_UnknownStage(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(1, 10))

	_, err := f.svc.Review(as(hodID), pr.ID, ReviewPayload{DesStage: "Nowhere"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))

	_, err = f.svc.Review(as(hodID), pr.ID, ReviewPayload{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidationFailure))
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(1, 10), f.lineInput(2, 10))
	_, err := f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	f.published.intents = nil

	res, err := f.svc.Reject(as(buyerID), pr.ID, RejectPayload{Lines: []LineDecision{{
		ID: pr.Lines[0].ID, Message: "over budget",
	}}})
	require.NoError(t, err)
	assert.Equal(t, StatusVoided, res.Status)
	assert.Empty(t, res.Intents)
	assert.Empty(t, f.published.intents)

	got := f.reload(t, pr.ID)
	assert.Nil(t, got.UserAction)
	assert.Equal(t, LastActionRejected, got.LastAction)
	assert.Equal(t, []string{"Create:reject", "HOD:reject", "Purchase:reject"}, stageNames(got.Lines[0].StagesStatus))
	assert.Equal(t, "over budget", got.Lines[0].StagesStatus[2].Message)
	assert.Equal(t, []string{"Create:reject", "HOD:reject", "Purchase:reject"}, stageNames(got.Lines[1].StagesStatus))

	_, err = f.svc.Approve(as(buyerID), pr.ID, ApprovePayload{})
	assert.True(t, apperror.IsNotFound(err), "voided is terminal")
}

func TestReject_IgnoresRequestedLineStatus(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(1, 10))

	_, err := f.svc.Reject(as(hodID), pr.ID, RejectPayload{Lines: []LineDecision{{
		ID: pr.Lines[0].ID, Status: LineApprove, Message: "wrong vendor",
	}}})
	require.NoError(t, err)

	got := f.reload(t, pr.ID)
	assert.Equal(t, StatusVoided, got.Status)
	assert.Equal(t, []string{"Create:reject", "HOD:reject"}, stageNames(got.Lines[0].StagesStatus))
	last, ok := got.Lines[0].StagesStatus.Last()
	require.True(t, ok)
	assert.Equal(t, "wrong vendor", last.Message)
}

func TestDuplicate_ResetsWorkflow(t *testing.T) {
	f := newFixture(t)
	src := f.submitted(t, f.lineInput(3, 100))
	_, err := f.svc.Approve(as(hodID), src.ID, ApprovePayload{})
	require.NoError(t, err)

	ids, err := f.svc.Duplicate(as(buyerID), []id.ID{src.ID, id.New()})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	dup := f.reload(t, ids[0])
	assert.Equal(t, StatusDraft, dup.Status)
	assert.True(t, strings.HasPrefix(dup.PRNo, "draft-"))
	assert.Equal(t, buyerID, dup.RequestorID)
	assert.Equal(t, src.WorkflowID, dup.WorkflowID)
	assert.Equal(t, src.DepartmentName, dup.DepartmentName)
	assert.Equal(t, src.Description, dup.Description)
	assert.Empty(t, dup.WorkflowHistory)
	assert.Nil(t, dup.UserAction)

	require.Len(t, dup.Lines, 1)
	l := dup.Lines[0]
	assert.NotEqual(t, src.Lines[0].ID, l.ID)
	assert.Equal(t, 1, l.SequenceNo)
	assert.Equal(t, "3", l.RequestedQty.String())
	assert.Equal(t, "Printer paper", l.ProductName)
	assert.Empty(t, l.StagesStatus)
	assert.Empty(t, l.History)
	assert.True(t, l.ApprovedQty.IsZero())
	assert.True(t, l.Price.IsZero())
}

func TestDuplicate_NothingFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Duplicate(as(requestorID), []id.ID{id.New()})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Contains(t, err.Error(), "No purchase requests found to duplicate")
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		pick    func(lines []Line) []id.ID
		wantErr string
		moved   int
	}{
		{
			name:    "no matching ids",
			pick:    func([]Line) []id.ID { return []id.ID{id.New()} },
			wantErr: "No valid detail IDs provided for split",
		},
		{
			name:    "empty selection",
			pick:    func([]Line) []id.ID { return nil },
			wantErr: "No valid detail IDs provided for split",
		},
		{
			name: "all lines",
			pick: func(lines []Line) []id.ID {
				return []id.ID{lines[0].ID, lines[1].ID, lines[2].ID, lines[0].ID}
			},
			wantErr: "Cannot split all details",
		},
		{
			name:  "one line",
			pick:  func(lines []Line) []id.ID { return []id.ID{lines[1].ID} },
			moved: 1,
		},
		{
			name:  "two lines plus unknown",
			pick:  func(lines []Line) []id.ID { return []id.ID{lines[0].ID, lines[2].ID, id.New()} },
			moved: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			src := f.submitted(t, f.lineInput(1, 10), f.lineInput(2, 10), f.lineInput(3, 10))

			res, err := f.svc.Split(as(hodID), src.ID, tt.pick(src.Lines))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Len(t, f.reload(t, src.ID).Lines, 3)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.moved, res.SplitDetailCount)
			assert.Equal(t, "PR2610-00002", res.NewPRNo)

			orig := f.reload(t, src.ID)
			split := f.reload(t, res.NewID)
			assert.Equal(t, src.DocVersion+1, orig.DocVersion)
			assert.Len(t, split.Lines, tt.moved)
			assert.Len(t, orig.Lines, 3-tt.moved)

			seen := map[id.ID]bool{}
			for _, side := range [][]Line{orig.Lines, split.Lines} {
				for i, l := range side {
					assert.Equal(t, i+1, l.SequenceNo)
					assert.False(t, seen[l.ID], "line %s on both sides", l.ID)
					seen[l.ID] = true
				}
			}
			for _, l := range src.Lines {
				assert.True(t, seen[l.ID], "line %s lost", l.ID)
			}

			assert.Equal(t, src.Status, split.Status)
			assert.Equal(t, src.WorkflowCurrentStage, split.WorkflowCurrentStage)
			assert.Equal(t, src.WorkflowHistory, split.WorkflowHistory)
			assert.Equal(t, src.UserAction.UserIDs(), split.UserAction.UserIDs())
			assert.Equal(t, 1, split.DocVersion)
		})
	}
}

func TestSplit_DraftKeepsDraftNumber(t *testing.T) {
	f := newFixture(t)
	src := f.create(t, f.lineInput(1, 10), f.lineInput(2, 10))

	res, err := f.svc.Split(as(requestorID), src.ID, []id.ID{src.Lines[0].ID})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.NewPRNo, "draft-"))
}

func TestSaveAsCreator_LineDelta(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10), f.lineInput(2, 10), f.lineInput(3, 10))

	upd := f.lineInput(5, 10)
	in := SaveAsCreatorPayload{
		DocVersion:  pr.DocVersion,
		HeaderInput: f.createPayload().HeaderInput,
		Lines: LineDelta{
			Add:    []LineInput{f.lineInput(7, 10)},
			Update: []LineUpdate{{ID: pr.Lines[2].ID, LineInput: upd}},
			Remove: []id.ID{pr.Lines[0].ID},
		},
	}
	in.Description = "changed"

	_, err := f.svc.SaveAsCreator(as(requestorID), pr.ID, in)
	require.NoError(t, err)

	got := f.reload(t, pr.ID)
	assert.Equal(t, "changed", got.Description)
	assert.Equal(t, pr.DocVersion+1, got.DocVersion)
	require.Len(t, got.Lines, 3)
	var qtys []string
	for i, l := range got.Lines {
		assert.Equal(t, i+1, l.SequenceNo)
		qtys = append(qtys, l.RequestedQty.String())
	}
	assert.Equal(t, []string{"2", "5", "7"}, qtys)
	assert.Equal(t, "Create", got.WorkflowCurrentStage)
}

func TestSaveAsCreator_StaleVersion(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))
	in := SaveAsCreatorPayload{DocVersion: pr.DocVersion, HeaderInput: f.createPayload().HeaderInput}

	_, err := f.svc.SaveAsCreator(as(requestorID), pr.ID, in)
	require.NoError(t, err)
	_, err = f.svc.SaveAsCreator(as(requestorID), pr.ID, in)
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err), "got %v", err)
}

// racingRepo lets two saves read the same version before either writes.
type racingRepo struct {
	*memRepo
	arrived chan struct{}
	release chan struct{}
}

func (r *racingRepo) GetByID(ctx context.Context, prID id.ID) (*PurchaseRequest, error) {
	pr, err := r.memRepo.GetByID(ctx, prID)
	r.arrived <- struct{}{}
	<-r.release
	return pr, err
}

func TestSaveAsCreator_ConcurrentSavesOneWins(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))

	race := &racingRepo{memRepo: f.repo, arrived: make(chan struct{}), release: make(chan struct{})}
	f.svc.repo = race

	in := SaveAsCreatorPayload{HeaderInput: f.createPayload().HeaderInput}
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.SaveAsCreator(as(requestorID), pr.ID, in)
			errs <- err
		}()
	}
	<-race.arrived
	<-race.arrived
	close(race.release)

	var ok, conflicts int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case apperror.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestSaveAsCreator_HODGate(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))
	in := SaveAsCreatorPayload{HeaderInput: f.createPayload().HeaderInput}
	in.DepartmentID = &f.noHOD

	_, err := f.svc.SaveAsCreator(as(requestorID), pr.ID, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot save PR with this workflow")
}

func TestSaveAsCreator_NotRequestor(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))
	_, err := f.svc.SaveAsCreator(as(hodID), pr.ID, SaveAsCreatorPayload{HeaderInput: f.createPayload().HeaderInput})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestSaveAsApprover(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(2, 100))
	price := decimal.NewFromInt(50)
	edit := SaveAsApproverPayload{Lines: []ApproverLineEdit{{ID: pr.Lines[0].ID, VendorID: &f.vendor, Price: &price}}}

	_, err := f.svc.SaveAsApprover(as(requestorID), pr.ID, edit)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	saved, err := f.svc.SaveAsApprover(as(hodID), pr.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, "HOD", saved.WorkflowCurrentStage, "save never moves the stage")

	l := f.reload(t, pr.ID).Lines[0]
	assert.Equal(t, "Paper Co", l.VendorName)
	assert.Equal(t, "107", l.TotalPrice.String())
	assert.Equal(t, []string{"Create:submit"}, stageNames(l.StagesStatus))
}

func TestRoleFor(t *testing.T) {
	f := newFixture(t)
	draft := f.create(t, f.lineInput(1, 10))
	ctx := context.Background()

	role, err := f.svc.RoleFor(ctx, draft.ID, requestorID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleCreate, role)

	role, err = f.svc.RoleFor(ctx, draft.ID, hodID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleViewOnly, role)

	pr := f.submitted(t, f.lineInput(1, 10))
	role, err = f.svc.RoleFor(ctx, pr.ID, hodID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleApprove, role)

	role, err = f.svc.RoleFor(ctx, pr.ID, requestorID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleViewOnly, role)

	_, err = f.svc.Approve(as(hodID), pr.ID, ApprovePayload{})
	require.NoError(t, err)
	role, err = f.svc.RoleFor(ctx, pr.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RolePurchase, role)
}

func TestMyPending(t *testing.T) {
	f := newFixture(t)
	f.submitted(t, f.lineInput(1, 10))
	f.submitted(t, f.lineInput(1, 10))
	f.create(t, f.lineInput(1, 10))

	n, err := f.svc.CountMyPending(as(hodID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.svc.CountMyPending(as(buyerID))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	draft := f.create(t, f.lineInput(1, 10))
	require.NoError(t, f.svc.Delete(as(requestorID), draft.ID))
	_, err := f.svc.GetByID(context.Background(), draft.ID)
	assert.True(t, apperror.IsNotFound(err))
	lines, _ := f.repo.GetLines(context.Background(), draft.ID)
	assert.Empty(t, lines)

	pr := f.submitted(t, f.lineInput(1, 10))
	err = f.svc.Delete(as(requestorID), pr.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestLineHistoryAndPriceInfo(t *testing.T) {
	f := newFixture(t)
	pr := f.submitted(t, f.lineInput(10, 100))
	other := f.create(t, f.lineInput(1, 1))
	ctx := context.Background()

	hist, err := f.svc.LineHistory(ctx, pr.ID, pr.Lines[0].ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, LineSubmit, hist[0].Status)

	_, err = f.svc.LineHistory(ctx, other.ID, pr.Lines[0].ID)
	assert.True(t, apperror.IsNotFound(err))

	b, err := f.svc.PriceInfo(ctx, pr.ID, pr.Lines[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", b.SubTotal.String())
	assert.Equal(t, "1070", b.TotalPrice.String())
}

// stuckNavigator never answers before the deadline.
type stuckNavigator struct{ workflow.Navigator }

func (stuckNavigator) Forward(ctx context.Context, _ *workflow.Definition, _, _ string, _ workflow.RequestData) (*workflow.Navigation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSubmit_NavigatorTimeout(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t, f.lineInput(1, 10))
	f.svc.navigator = stuckNavigator{Navigator: f.svc.navigator}
	f.svc.navTimeout = 10 * time.Millisecond

	_, err := f.svc.Submit(as(requestorID), pr.ID, SubmitPayload{})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeServiceUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	got := f.reload(t, pr.ID)
	assert.Equal(t, StatusDraft, got.Status, "nothing is written when navigation fails")
}
