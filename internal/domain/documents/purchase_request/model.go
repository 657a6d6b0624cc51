// Package purchase_request provides the Purchase Request document and its
// approval workflow.
package purchase_request

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/approver"
	"procura/internal/domain/workflow"
)

// EntityType is the audit and outbox aggregate name.
const EntityType = "purchase_request"

// Status is the header document status.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusVoided     Status = "voided"
)

var transitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress},
	StatusInProgress: {StatusInProgress, StatusApproved, StatusVoided},
}

// CanTransition reports whether a header may move from one status to another.
// Approved and voided are terminal.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (pr *PurchaseRequest) transition(to Status) error {
	if !CanTransition(pr.Status, to) {
		return apperror.NewInvalidArgument(fmt.Sprintf("cannot move purchase request from %s to %s", pr.Status, to))
	}
	pr.Status = to
	return nil
}

// LineStatus is a line's status at one stage.
type LineStatus string

const (
	LinePending LineStatus = "pending"
	LineSubmit  LineStatus = "submit"
	LineApprove LineStatus = "approve"
	LineReject  LineStatus = "reject"
	LineReview  LineStatus = "review"
)

// Role is the caller's derived role on a purchase request.
type Role = workflow.Role

// LastAction names the most recent header transition.
type LastAction string

const (
	LastActionSubmitted LastAction = "submitted"
	LastActionApproved  LastAction = "approved"
	LastActionReviewed  LastAction = "reviewed"
	LastActionRejected  LastAction = "rejected"
)

// FinalStageMarker is stored as the next stage once a request is fully approved.
const FinalStageMarker = "-"

// Actor identifies who performed an action.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// HistoryEntry is one header-level workflow transition.
type HistoryEntry struct {
	Action       LastAction `json:"action"`
	Datetime     time.Time  `json:"datetime"`
	User         Actor      `json:"user"`
	CurrentStage string     `json:"current_stage"`
	NextStage    string     `json:"next_stage"`
}

// PurchaseRequest is the requisition header.
type PurchaseRequest struct {
	entity.BaseDocument

	PRNo   string    `db:"pr_no" json:"pr_no"`
	PRDate time.Time `db:"pr_date" json:"pr_date"`
	Status Status    `db:"pr_status" json:"pr_status"`

	WorkflowID            *id.ID               `db:"workflow_id" json:"workflow_id,omitempty"`
	WorkflowName          string               `db:"workflow_name" json:"workflow_name"`
	WorkflowCurrentStage  string               `db:"workflow_current_stage" json:"workflow_current_stage"`
	WorkflowPreviousStage string               `db:"workflow_previous_stage" json:"workflow_previous_stage"`
	WorkflowNextStage     string               `db:"workflow_next_stage" json:"workflow_next_stage"`
	WorkflowHistory       []HistoryEntry       `db:"workflow_history" json:"workflow_history"`
	UserAction            *approver.UserAction `db:"user_action" json:"user_action"`

	LastAction       LastAction `db:"last_action" json:"last_action,omitempty"`
	LastActionAt     *time.Time `db:"last_action_at_date" json:"last_action_at_date,omitempty"`
	LastActionByID   string     `db:"last_action_by_id" json:"last_action_by_id,omitempty"`
	LastActionByName string     `db:"last_action_by_name" json:"last_action_by_name,omitempty"`

	RequestorID    string `db:"requestor_id" json:"requestor_id"`
	RequestorName  string `db:"requestor_name" json:"requestor_name"`
	DepartmentID   *id.ID `db:"department_id" json:"department_id,omitempty"`
	DepartmentName string `db:"department_name" json:"department_name"`

	Description string            `db:"description" json:"description"`
	Note        string            `db:"note" json:"note"`
	Info        entity.Attributes `db:"info" json:"info,omitempty"`
	Dimension   entity.Attributes `db:"dimension" json:"dimension,omitempty"`

	Lines []Line `db:"-" json:"purchase_request_detail"`
}

// Total sums line totals in transaction currency.
func (pr *PurchaseRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range pr.Lines {
		total = total.Add(l.TotalPrice)
	}
	return total
}

// BaseTotal sums line totals in base currency.
func (pr *PurchaseRequest) BaseTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range pr.Lines {
		total = total.Add(l.BaseTotalPrice)
	}
	return total
}

// Renumber assigns contiguous sequence numbers 1..N in slice order.
func (pr *PurchaseRequest) Renumber() {
	for i := range pr.Lines {
		pr.Lines[i].SequenceNo = i + 1
	}
}

// Line finds a line by id.
func (pr *PurchaseRequest) Line(lineID id.ID) *Line {
	for i := range pr.Lines {
		if pr.Lines[i].ID == lineID {
			return &pr.Lines[i]
		}
	}
	return nil
}

// VisitedStages lists header stages in the order they were reached. A send-back
// cuts the path back to the latest visit of its target, so stages the request
// moved past before being returned are no longer part of it.
func (pr *PurchaseRequest) VisitedStages() []string {
	var out []string
	for _, h := range pr.WorkflowHistory {
		if len(out) == 0 && h.CurrentStage != "" {
			out = append(out, h.CurrentStage)
		}
		if h.Action == LastActionReviewed {
			out = rewindPath(out, h.NextStage)
			continue
		}
		if h.NextStage != "" && h.NextStage != FinalStageMarker {
			out = append(out, h.NextStage)
		}
	}
	return out
}

func rewindPath(path []string, stage string) []string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == stage {
			return path[:i+1]
		}
	}
	return append(path, stage)
}

// departmentRef returns the approver view of the department.
func (pr *PurchaseRequest) departmentRef() approver.DepartmentRef {
	ref := approver.DepartmentRef{Name: pr.DepartmentName}
	if pr.DepartmentID != nil {
		ref.ID = pr.DepartmentID.String()
	}
	return ref
}

// recordAction appends a header history entry and updates the last-action fields.
func (pr *PurchaseRequest) recordAction(action LastAction, actor Actor, at time.Time, from, to string) {
	pr.WorkflowHistory = append(pr.WorkflowHistory, HistoryEntry{
		Action:       action,
		Datetime:     at,
		User:         actor,
		CurrentStage: from,
		NextStage:    to,
	})
	pr.LastAction = action
	pr.LastActionAt = &at
	pr.LastActionByID = actor.ID
	pr.LastActionByName = actor.Name
}

// LineHistoryEntry is one line-level action.
type LineHistoryEntry struct {
	Seq      int        `json:"seq"`
	Status   LineStatus `json:"status"`
	Name     string     `json:"name"`
	Message  string     `json:"message"`
	User     Actor      `json:"user"`
	Datetime time.Time  `json:"datetime"`
}

// Line is a purchase request detail row.
type Line struct {
	ID                id.ID `db:"id" json:"id"`
	PurchaseRequestID id.ID `db:"purchase_request_id" json:"purchase_request_id"`
	SequenceNo        int   `db:"sequence_no" json:"sequence_no"`

	ProductID        *id.ID `db:"product_id" json:"product_id,omitempty"`
	ProductName      string `db:"product_name" json:"product_name"`
	ProductLocalName string `db:"product_local_name" json:"product_local_name"`

	LocationID   *id.ID `db:"location_id" json:"location_id,omitempty"`
	LocationCode string `db:"location_code" json:"location_code"`
	LocationName string `db:"location_name" json:"location_name"`

	DeliveryPointID   *id.ID     `db:"delivery_point_id" json:"delivery_point_id,omitempty"`
	DeliveryPointName string     `db:"delivery_point_name" json:"delivery_point_name"`
	DeliveryDate      *time.Time `db:"delivery_date" json:"delivery_date,omitempty"`

	Description string `db:"description" json:"description"`
	Note        string `db:"note" json:"note"`

	VendorID   *id.ID `db:"vendor_id" json:"vendor_id,omitempty"`
	VendorName string `db:"vendor_name" json:"vendor_name"`

	RequestedQty                  types.Quantity `db:"requested_qty" json:"requested_qty"`
	RequestedUnitID               *id.ID         `db:"requested_unit_id" json:"requested_unit_id,omitempty"`
	RequestedUnitName             string         `db:"requested_unit_name" json:"requested_unit_name"`
	RequestedUnitConversionFactor types.Rate     `db:"requested_unit_conversion_factor" json:"requested_unit_conversion_factor"`

	ApprovedQty                  types.Quantity `db:"approved_qty" json:"approved_qty"`
	ApprovedUnitID               *id.ID         `db:"approved_unit_id" json:"approved_unit_id,omitempty"`
	ApprovedUnitName             string         `db:"approved_unit_name" json:"approved_unit_name"`
	ApprovedUnitConversionFactor types.Rate     `db:"approved_unit_conversion_factor" json:"approved_unit_conversion_factor"`

	FOCQty      types.Quantity `db:"foc_qty" json:"foc_qty"`
	FOCUnitID   *id.ID         `db:"foc_unit_id" json:"foc_unit_id,omitempty"`
	FOCUnitName string         `db:"foc_unit_name" json:"foc_unit_name"`

	CurrencyID   *id.ID      `db:"currency_id" json:"currency_id,omitempty"`
	CurrencyName string      `db:"currency_name" json:"currency_name"`
	ExchangeRate types.Rate  `db:"exchange_rate" json:"exchange_rate"`
	Price        types.Money `db:"price" json:"price"`

	TaxProfileID         *id.ID      `db:"tax_profile_id" json:"tax_profile_id,omitempty"`
	TaxProfileName       string      `db:"tax_profile_name" json:"tax_profile_name"`
	TaxRate              types.Rate  `db:"tax_rate" json:"tax_rate"`
	TaxAmount            types.Money `db:"tax_amount" json:"tax_amount"`
	IsTaxAdjustment      bool        `db:"is_tax_adjustment" json:"is_tax_adjustment"`
	DiscountRate         types.Rate  `db:"discount_rate" json:"discount_rate"`
	DiscountAmount       types.Money `db:"discount_amount" json:"discount_amount"`
	IsDiscountAdjustment bool        `db:"is_discount_adjustment" json:"is_discount_adjustment"`

	SubTotal           types.Money `db:"sub_total_price" json:"sub_total_price"`
	NetAmount          types.Money `db:"net_amount" json:"net_amount"`
	TotalPrice         types.Money `db:"total_price" json:"total_price"`
	BasePrice          types.Money `db:"base_price" json:"base_price"`
	BaseSubTotal       types.Money `db:"base_sub_total_price" json:"base_sub_total_price"`
	BaseDiscountAmount types.Money `db:"base_discount_amount" json:"base_discount_amount"`
	BaseNetAmount      types.Money `db:"base_net_amount" json:"base_net_amount"`
	BaseTaxAmount      types.Money `db:"base_tax_amount" json:"base_tax_amount"`
	BaseTotalPrice     types.Money `db:"base_total_price" json:"base_total_price"`

	PriceListDetailID *id.ID `db:"pricelist_detail_id" json:"pricelist_detail_id,omitempty"`
	PriceListNo       string `db:"pricelist_no" json:"pricelist_no"`

	StagesStatus StageLog           `db:"stages_status" json:"stages_status"`
	History      []LineHistoryEntry `db:"history" json:"history"`

	DocVersion int       `db:"doc_version" json:"doc_version"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy  string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy  string    `db:"updated_by" json:"updated_by,omitempty"`
}

// newLine returns a line with the neutral rates set.
func newLine(prID id.ID, userID string) Line {
	now := time.Now().UTC()
	return Line{
		ID:                            id.New(),
		PurchaseRequestID:             prID,
		RequestedUnitConversionFactor: decimal.NewFromInt(1),
		ApprovedUnitConversionFactor:  decimal.NewFromInt(1),
		ExchangeRate:                  decimal.NewFromInt(1),
		DocVersion:                    1,
		CreatedAt:                     now,
		UpdatedAt:                     now,
		CreatedBy:                     userID,
		UpdatedBy:                     userID,
	}
}

// addHistory appends a line history entry.
func (l *Line) addHistory(status LineStatus, stage, message string, actor Actor, at time.Time) {
	l.History = append(l.History, LineHistoryEntry{
		Seq:      len(l.History) + 1,
		Status:   status,
		Name:     stage,
		Message:  message,
		User:     actor,
		Datetime: at,
	})
}

func (l *Line) touch(userID string, at time.Time) {
	l.UpdatedAt = at
	l.UpdatedBy = userID
	l.DocVersion++
}
