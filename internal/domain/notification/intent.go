// Package notification builds the messages a purchase request transition
// sends to approvers and requestors.
package notification

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies the event behind an intent.
type Kind string

const (
	KindSubmitted       Kind = "pr.submitted"
	KindApproved        Kind = "pr.approved"
	KindProgress        Kind = "pr.progress"
	KindPendingApproval Kind = "pr.pending_approval"
	KindReturned        Kind = "pr.returned"
	KindReviewPending   Kind = "pr.review_pending"
)

// TypePurchaseRequest is the notification category shown in the inbox.
const TypePurchaseRequest = "PR"

// Intent is a notification a committed transition wants delivered.
type Intent struct {
	Kind       Kind           `json:"kind"`
	ToUserIDs  []string       `json:"to_user_ids"`
	FromUserID string         `json:"from_user_id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata"`
}

// Subject describes the purchase request an intent is about.
type Subject struct {
	PRID         string
	PRNo         string
	Action       string
	CurrentStage string
}

func (s Subject) metadata() map[string]any {
	return map[string]any{
		"pr_id":         s.PRID,
		"pr_no":         s.PRNo,
		"action":        s.Action,
		"current_stage": s.CurrentStage,
	}
}

func newIntent(kind Kind, to []string, from, title, message string, s Subject) Intent {
	return Intent{
		Kind:       kind,
		ToUserIDs:  to,
		FromUserID: from,
		Title:      title,
		Message:    message,
		Type:       TypePurchaseRequest,
		Metadata:   s.metadata(),
	}
}

// Submitted notifies the first approvers.
func Submitted(s Subject, approverIDs []string, actorID, actorName string) Intent {
	return newIntent(KindSubmitted, approverIDs, actorID,
		"Purchase Request Submitted: "+s.PRNo,
		fmt.Sprintf("%s has submitted Purchase Request %s for your approval.", actorName, s.PRNo),
		s)
}

// Approved tells the requestor the request is fully approved.
func Approved(s Subject, requestorID, actorID, actorName string) Intent {
	in := newIntent(KindApproved, []string{requestorID}, actorID,
		"Purchase Request Approved: "+s.PRNo,
		fmt.Sprintf("Your Purchase Request %s has been fully approved by %s.", s.PRNo, actorName),
		s)
	in.Metadata["is_fully_approved"] = true
	return in
}

// Progress tells the requestor the request moved to the next stage.
func Progress(s Subject, requestorID, actorID, actorName string) Intent {
	in := newIntent(KindProgress, []string{requestorID}, actorID,
		"Purchase Request Progress: "+s.PRNo,
		fmt.Sprintf("Your Purchase Request %s has been approved by %s and moved to %s.", s.PRNo, actorName, s.CurrentStage),
		s)
	in.Metadata["is_fully_approved"] = false
	return in
}

// PendingApproval notifies the approvers of the new stage.
func PendingApproval(s Subject, approverIDs []string, actorID string) Intent {
	return newIntent(KindPendingApproval, approverIDs, actorID,
		"Purchase Request Pending Approval: "+s.PRNo,
		fmt.Sprintf("Purchase Request %s requires your approval at stage: %s.", s.PRNo, s.CurrentStage),
		s)
}

// Returned tells the requestor the request was sent back.
func Returned(s Subject, requestorID, actorID, actorName string) Intent {
	return newIntent(KindReturned, []string{requestorID}, actorID,
		"Purchase Request Returned: "+s.PRNo,
		fmt.Sprintf("Your Purchase Request %s has been returned by %s to stage: %s.", s.PRNo, actorName, s.CurrentStage),
		s)
}

// ReviewPending notifies the users responsible for the stage a request was sent back to.
func ReviewPending(s Subject, userIDs []string, actorID string) Intent {
	return newIntent(KindReviewPending, userIDs, actorID,
		"Purchase Request Needs Attention: "+s.PRNo,
		fmt.Sprintf("Purchase Request %s has been returned and requires action at stage: %s.", s.PRNo, s.CurrentStage),
		s)
}

// Without returns ids minus exclude, keeping order.
func Without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != exclude {
			out = append(out, v)
		}
	}
	return out
}

// Publisher hands intents to delivery inside the caller's transaction.
type Publisher interface {
	Publish(ctx context.Context, intents []Intent) error
}

// Notification is one stored inbox entry.
type Notification struct {
	ID         string         `db:"id" json:"id"`
	ToUserID   string         `db:"to_user_id" json:"to_user_id"`
	FromUserID string         `db:"from_user_id" json:"from_user_id"`
	Title      string         `db:"title" json:"title"`
	Message    string         `db:"message" json:"message"`
	Type       string         `db:"type" json:"type"`
	Metadata   map[string]any `db:"metadata" json:"metadata"`
	IsRead     bool           `db:"is_read" json:"is_read"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Inbox stores delivered notifications.
type Inbox interface {
	Store(ctx context.Context, intent Intent) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}
