package purchase_request

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"procura/internal/domain/approver"
	"procura/internal/domain/workflow"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusDraft, StatusInProgress, StatusApproved, StatusVoided}
	allowed := map[[2]Status]bool{
		{StatusDraft, StatusInProgress}:      true,
		{StatusInProgress, StatusInProgress}: true,
		{StatusInProgress, StatusApproved}:   true,
		{StatusInProgress, StatusVoided}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestVisitedStages(t *testing.T) {
	pr := &PurchaseRequest{WorkflowHistory: []HistoryEntry{
		{Action: LastActionSubmitted, CurrentStage: "Create", NextStage: "HOD"},
		{Action: LastActionApproved, CurrentStage: "HOD", NextStage: "Purchase"},
		{Action: LastActionReviewed, CurrentStage: "Purchase", NextStage: "HOD"},
	}}
	assert.Equal(t, []string{"Create", "HOD"}, pr.VisitedStages(), "send-back drops stages past the target")

	pr.WorkflowHistory = append(pr.WorkflowHistory,
		HistoryEntry{Action: LastActionApproved, CurrentStage: "HOD", NextStage: "Purchase"},
		HistoryEntry{Action: LastActionApproved, CurrentStage: "Purchase", NextStage: "GM"},
		HistoryEntry{Action: LastActionReviewed, CurrentStage: "GM", NextStage: "Create"},
		HistoryEntry{Action: LastActionSubmitted, CurrentStage: "Create", NextStage: "HOD"},
		HistoryEntry{Action: LastActionApproved, CurrentStage: "Completed", NextStage: FinalStageMarker},
	)
	assert.Equal(t, []string{"Create", "HOD"}, pr.VisitedStages())
	assert.Empty(t, (&PurchaseRequest{}).VisitedStages())
}

func TestDeriveRole(t *testing.T) {
	executors := &approver.UserAction{Execute: []approver.Profile{{UserID: "hod"}}}
	tests := []struct {
		name      string
		pr        PurchaseRequest
		caller    string
		stageRole Role
		want      Role
	}{
		{"requestor on draft", PurchaseRequest{Status: StatusDraft, RequestorID: "me"}, "me", workflow.RoleApprove, workflow.RoleCreate},
		{"other user on draft", PurchaseRequest{Status: StatusDraft, RequestorID: "me"}, "you", workflow.RoleApprove, workflow.RoleViewOnly},
		{"executor gets stage role", PurchaseRequest{Status: StatusInProgress, UserAction: executors}, "hod", workflow.RolePurchase, workflow.RolePurchase},
		{"non executor", PurchaseRequest{Status: StatusInProgress, UserAction: executors}, "me", workflow.RoleApprove, workflow.RoleViewOnly},
		{"requestor after submit", PurchaseRequest{Status: StatusInProgress, RequestorID: "me", UserAction: executors}, "me", workflow.RoleApprove, workflow.RoleViewOnly},
		{"no user action", PurchaseRequest{Status: StatusInProgress}, "hod", workflow.RoleApprove, workflow.RoleViewOnly},
		{"unknown stage role", PurchaseRequest{Status: StatusInProgress, UserAction: executors}, "hod", "", workflow.RoleViewOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveRole(&tt.pr, tt.caller, tt.stageRole))
		})
	}
}

func TestRenumberAndTotal(t *testing.T) {
	pr := &PurchaseRequest{Lines: []Line{{SequenceNo: 7}, {SequenceNo: 2}, {SequenceNo: 9}}}
	pr.Renumber()
	for i, l := range pr.Lines {
		assert.Equal(t, i+1, l.SequenceNo)
	}
	assert.True(t, pr.Total().IsZero())
}
