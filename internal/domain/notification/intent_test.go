package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentTexts(t *testing.T) {
	s := Subject{PRID: "pr-1", PRNo: "PR2610-00001", Action: "approved", CurrentStage: "Purchase"}

	tests := []struct {
		name    string
		intent  Intent
		kind    Kind
		to      []string
		title   string
		message string
	}{
		{
			"submitted", Submitted(s, []string{"a", "b"}, "req", "Jane"), KindSubmitted, []string{"a", "b"},
			"Purchase Request Submitted: PR2610-00001",
			"Jane has submitted Purchase Request PR2610-00001 for your approval.",
		},
		{
			"approved", Approved(s, "req", "hod", "Bob"), KindApproved, []string{"req"},
			"Purchase Request Approved: PR2610-00001",
			"Your Purchase Request PR2610-00001 has been fully approved by Bob.",
		},
		{
			"progress", Progress(s, "req", "hod", "Bob"), KindProgress, []string{"req"},
			"Purchase Request Progress: PR2610-00001",
			"Your Purchase Request PR2610-00001 has been approved by Bob and moved to Purchase.",
		},
		{
			"pending approval", PendingApproval(s, []string{"buyer"}, "hod"), KindPendingApproval, []string{"buyer"},
			"Purchase Request Pending Approval: PR2610-00001",
			"Purchase Request PR2610-00001 requires your approval at stage: Purchase.",
		},
		{
			"returned", Returned(s, "req", "gm", "Ann"), KindReturned, []string{"req"},
			"Purchase Request Returned: PR2610-00001",
			"Your Purchase Request PR2610-00001 has been returned by Ann to stage: Purchase.",
		},
		{
			"review pending", ReviewPending(s, []string{"buyer"}, "gm"), KindReviewPending, []string{"buyer"},
			"Purchase Request Needs Attention: PR2610-00001",
			"Purchase Request PR2610-00001 has been returned and requires action at stage: Purchase.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.intent.Kind)
			assert.Equal(t, tt.to, tt.intent.ToUserIDs)
			assert.Equal(t, tt.title, tt.intent.Title)
			assert.Equal(t, tt.message, tt.intent.Message)
			assert.Equal(t, TypePurchaseRequest, tt.intent.Type)
			assert.Equal(t, "pr-1", tt.intent.Metadata["pr_id"])
			assert.Equal(t, "Purchase", tt.intent.Metadata["current_stage"])
		})
	}
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Without([]string{"a", "req", "c"}, "req"))
	assert.Empty(t, Without([]string{"req"}, "req"))
}
