package purchase_request

import (
	"time"

	"github.com/shopspring/decimal"

	"procura/internal/core/entity"
	"procura/internal/core/id"
)

// HeaderInput carries the editable header fields of a draft.
type HeaderInput struct {
	PRDate       time.Time         `json:"pr_date" validate:"required"`
	WorkflowID   *id.ID            `json:"workflow_id"`
	DepartmentID *id.ID            `json:"department_id"`
	Description  string            `json:"description" validate:"max=1000"`
	Note         string            `json:"note" validate:"max=1000"`
	Info         entity.Attributes `json:"info"`
	Dimension    entity.Attributes `json:"dimension"`
}

// LineInput is a line drafted by the requestor.
type LineInput struct {
	ProductID       *id.ID     `json:"product_id" validate:"required"`
	LocationID      *id.ID     `json:"location_id" validate:"required"`
	DeliveryPointID *id.ID     `json:"delivery_point_id"`
	DeliveryDate    *time.Time `json:"delivery_date"`
	Description     string     `json:"description"`
	Note            string     `json:"note"`

	RequestedQty                  decimal.Decimal  `json:"requested_qty" validate:"gte=0"`
	RequestedUnitID               *id.ID           `json:"requested_unit_id" validate:"required"`
	RequestedUnitConversionFactor *decimal.Decimal `json:"requested_unit_conversion_factor"`

	CurrencyID   *id.ID           `json:"currency_id"`
	Price        *decimal.Decimal `json:"price"`
	TaxProfileID *id.ID           `json:"tax_profile_id"`
}

// CreatePayload creates a draft.
type CreatePayload struct {
	HeaderInput
	Lines []LineInput `json:"purchase_request_detail" validate:"dive"`
}

// LineUpdate replaces the drafted fields of an existing line.
type LineUpdate struct {
	ID id.ID `json:"id" validate:"required"`
	LineInput
}

// LineDelta is the structural change set of a creator save.
type LineDelta struct {
	Add    []LineInput  `json:"add" validate:"dive"`
	Update []LineUpdate `json:"update" validate:"dive"`
	Remove []id.ID      `json:"remove"`
}

// SaveAsCreatorPayload replaces a draft header and applies line changes.
type SaveAsCreatorPayload struct {
	DocVersion int `json:"doc_version" validate:"gte=0"`
	HeaderInput
	Lines LineDelta `json:"purchase_request_detail"`
}

// ApproverLineEdit changes the sourcing and pricing of one line. Nil fields
// are left unchanged.
type ApproverLineEdit struct {
	ID id.ID `json:"id" validate:"required"`

	VendorID *id.ID `json:"vendor_id"`

	ApprovedQty                  *decimal.Decimal `json:"approved_qty"`
	ApprovedUnitID               *id.ID           `json:"approved_unit_id"`
	ApprovedUnitConversionFactor *decimal.Decimal `json:"approved_unit_conversion_factor"`
	FOCQty                       *decimal.Decimal `json:"foc_qty"`
	FOCUnitID                    *id.ID           `json:"foc_unit_id"`

	CurrencyID   *id.ID           `json:"currency_id"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	Price        *decimal.Decimal `json:"price"`

	TaxProfileID         *id.ID           `json:"tax_profile_id"`
	TaxRate              *decimal.Decimal `json:"tax_rate"`
	IsTaxAdjustment      *bool            `json:"is_tax_adjustment"`
	TaxAmount            *decimal.Decimal `json:"tax_amount"`
	DiscountRate         *decimal.Decimal `json:"discount_rate"`
	IsDiscountAdjustment *bool            `json:"is_discount_adjustment"`
	DiscountAmount       *decimal.Decimal `json:"discount_amount"`

	PriceListDetailID *id.ID  `json:"pricelist_detail_id"`
	Note              *string `json:"note"`
}

// hasChanges reports whether the edit sets any line field.
func (e *ApproverLineEdit) hasChanges() bool {
	return e.changesPricing() || e.VendorID != nil || e.ApprovedUnitID != nil ||
		e.ApprovedUnitConversionFactor != nil || e.FOCQty != nil || e.FOCUnitID != nil ||
		e.Note != nil
}

func (e *ApproverLineEdit) changesPricing() bool {
	return e.ApprovedQty != nil || e.ExchangeRate != nil || e.Price != nil ||
		e.CurrencyID != nil || e.TaxProfileID != nil || e.TaxRate != nil ||
		e.IsTaxAdjustment != nil || e.TaxAmount != nil || e.DiscountRate != nil ||
		e.IsDiscountAdjustment != nil || e.DiscountAmount != nil || e.PriceListDetailID != nil
}

// SaveAsApproverPayload edits lines of an in-progress request.
type SaveAsApproverPayload struct {
	DocVersion int                `json:"doc_version" validate:"gte=0"`
	Lines      []ApproverLineEdit `json:"purchase_request_detail" validate:"dive"`
}

// LineDecision is a per-line status and comment.
type LineDecision struct {
	ID      id.ID      `json:"id" validate:"required"`
	Status  LineStatus `json:"status" validate:"omitempty,oneof=pending submit approve reject review"`
	Message string     `json:"message" validate:"max=1000"`
}

// SubmitPayload submits a draft.
type SubmitPayload struct {
	DocVersion int            `json:"doc_version" validate:"gte=0"`
	Lines      []LineDecision `json:"purchase_request_detail" validate:"dive"`
}

// ApproveLine is an approver decision with optional line edits.
type ApproveLine struct {
	ApproverLineEdit
	Status  LineStatus `json:"status" validate:"omitempty,oneof=approve reject review pending"`
	Message string     `json:"message" validate:"max=1000"`
}

// ApprovePayload moves a request to its next stage.
type ApprovePayload struct {
	DocVersion int           `json:"doc_version" validate:"gte=0"`
	Lines      []ApproveLine `json:"purchase_request_detail" validate:"dive"`
}

// ReviewPayload sends a request back to DesStage.
type ReviewPayload struct {
	DocVersion int            `json:"doc_version" validate:"gte=0"`
	DesStage   string         `json:"des_stage" validate:"required"`
	Lines      []LineDecision `json:"purchase_request_detail" validate:"dive"`
}

// RejectPayload voids a request.
type RejectPayload struct {
	DocVersion int            `json:"doc_version" validate:"gte=0"`
	Lines      []LineDecision `json:"purchase_request_detail" validate:"dive"`
}

// SplitResult describes a completed split.
type SplitResult struct {
	OriginalID       id.ID  `json:"original_pr_id"`
	NewID            id.ID  `json:"new_pr_id"`
	NewPRNo          string `json:"new_pr_no"`
	SplitDetailCount int    `json:"split_detail_count"`
}

func decisionsByID(lines []LineDecision) map[id.ID]LineDecision {
	out := make(map[id.ID]LineDecision, len(lines))
	for _, l := range lines {
		out[l.ID] = l
	}
	return out
}
