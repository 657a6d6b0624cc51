package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	pr "procura/internal/domain/documents/purchase_request"
	"procura/internal/domain/export"
	"procura/internal/domain/pricing"
	"procura/internal/domain/workflow"
	"procura/internal/infrastructure/http/v1/dto"
)

// PurchaseRequestService is the subset of the purchase request service used
// over HTTP.
type PurchaseRequestService interface {
	Create(ctx context.Context, in pr.CreatePayload) (*pr.PurchaseRequest, error)
	SaveAsCreator(ctx context.Context, prID id.ID, in pr.SaveAsCreatorPayload) (*pr.PurchaseRequest, error)
	SaveAsApprover(ctx context.Context, prID id.ID, in pr.SaveAsApproverPayload) (*pr.PurchaseRequest, error)
	GetByID(ctx context.Context, prID id.ID) (*pr.PurchaseRequest, error)
	List(ctx context.Context, filter pr.ListFilter) (domain.ListResult[*pr.PurchaseRequest], error)
	ListMyPending(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*pr.PurchaseRequest], error)
	CountMyPending(ctx context.Context) (int64, error)
	Delete(ctx context.Context, prID id.ID) error

	Submit(ctx context.Context, prID id.ID, in pr.SubmitPayload) (*pr.Result, error)
	Approve(ctx context.Context, prID id.ID, in pr.ApprovePayload) (*pr.Result, error)
	Review(ctx context.Context, prID id.ID, in pr.ReviewPayload) (*pr.Result, error)
	Reject(ctx context.Context, prID id.ID, in pr.RejectPayload) (*pr.Result, error)
	Duplicate(ctx context.Context, prIDs []id.ID) ([]id.ID, error)
	Split(ctx context.Context, prID id.ID, lineIDs []id.ID) (*pr.SplitResult, error)

	PreviousStages(ctx context.Context, prID id.ID) ([]string, error)
	RoleFor(ctx context.Context, prID id.ID, callerID string) (pr.Role, error)
	LineHistory(ctx context.Context, prID, lineID id.ID) ([]pr.LineHistoryEntry, error)
	PriceInfo(ctx context.Context, prID, lineID id.ID) (pricing.Breakdown, error)
}

var exportLocales = language.NewMatcher([]language.Tag{
	language.English,
	language.Indonesian,
	language.German,
	language.French,
})

// PurchaseRequestHandler serves /purchase-requests.
type PurchaseRequestHandler struct {
	*BaseHandler
	service PurchaseRequestService
}

// NewPurchaseRequestHandler creates the handler.
func NewPurchaseRequestHandler(base *BaseHandler, service PurchaseRequestService) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the purchase request endpoints on rg.
func (h *PurchaseRequestHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/my-pending", h.MyPending)
	rg.GET("/my-pending/count", h.MyPendingCount)
	rg.POST("/duplicate", h.Duplicate)

	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Save)
	rg.DELETE("/:id", h.Delete)

	rg.POST("/:id/submit", h.Submit)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/review", h.Review)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/split", h.Split)

	rg.GET("/:id/stages", h.Stages)
	rg.GET("/:id/role", h.Role)
	rg.GET("/:id/export", h.Export)
	rg.GET("/:id/print", h.Print)
	rg.GET("/:id/lines/:lineId/history", h.LineHistory)
	rg.GET("/:id/lines/:lineId/price-info", h.PriceInfo)
}

// List handles GET /purchase-requests.
func (h *PurchaseRequestHandler) List(c *gin.Context) {
	var q dto.PurchaseRequestListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// MyPending handles GET /purchase-requests/my-pending.
func (h *PurchaseRequestHandler) MyPending(c *gin.Context) {
	var q dto.PageQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListMyPending(c.Request.Context(), q.ToListFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// MyPendingCount handles GET /purchase-requests/my-pending/count.
func (h *PurchaseRequestHandler) MyPendingCount(c *gin.Context) {
	n, err := h.service.CountMyPending(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}

// Get handles GET /purchase-requests/:id.
func (h *PurchaseRequestHandler) Get(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.GetByID(c.Request.Context(), prID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Create handles POST /purchase-requests.
func (h *PurchaseRequestHandler) Create(c *gin.Context) {
	var in pr.CreatePayload
	if !h.BindJSON(c, &in) {
		return
	}
	doc, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc.ID.String())
}

// Save handles PUT /purchase-requests/:id. The state_role of the body picks
// the creator or the approver payload.
func (h *PurchaseRequestHandler) Save(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, apperror.NewInvalidArgument("unreadable request body"))
		return
	}
	role, err := dto.DecodeSave(body)
	if err != nil {
		h.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	var doc *pr.PurchaseRequest
	switch workflow.Role(role) {
	case workflow.RoleCreate:
		var in pr.SaveAsCreatorPayload
		if err := json.Unmarshal(body, &in); err != nil {
			h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
			return
		}
		doc, err = h.service.SaveAsCreator(ctx, prID, in)
	case workflow.RolePurchase, workflow.RoleApprove:
		var in pr.SaveAsApproverPayload
		if err := json.Unmarshal(body, &in); err != nil {
			h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
			return
		}
		doc, err = h.service.SaveAsApprover(ctx, prID, in)
	default:
		h.Error(c, apperror.NewValidation("unsupported state_role").
			WithDetail("field", "state_role").
			WithDetail("value", role))
		return
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Delete handles DELETE /purchase-requests/:id.
func (h *PurchaseRequestHandler) Delete(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), prID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// transition binds a payload of type P and runs fn on it.
func transition[P any](h *PurchaseRequestHandler, c *gin.Context, fn func(context.Context, id.ID, P) (*pr.Result, error)) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var in P
	if !h.BindJSON(c, &in) {
		return
	}
	res, err := fn(c.Request.Context(), prID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Submit handles POST /purchase-requests/:id/submit.
func (h *PurchaseRequestHandler) Submit(c *gin.Context) { transition(h, c, h.service.Submit) }

// Approve handles POST /purchase-requests/:id/approve.
func (h *PurchaseRequestHandler) Approve(c *gin.Context) { transition(h, c, h.service.Approve) }

// Review handles POST /purchase-requests/:id/review.
func (h *PurchaseRequestHandler) Review(c *gin.Context) { transition(h, c, h.service.Review) }

// Reject handles POST /purchase-requests/:id/reject.
func (h *PurchaseRequestHandler) Reject(c *gin.Context) { transition(h, c, h.service.Reject) }

// Duplicate handles POST /purchase-requests/duplicate.
func (h *PurchaseRequestHandler) Duplicate(c *gin.Context) {
	var req dto.DuplicateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ids, err := h.service.Duplicate(c.Request.Context(), req.IDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.JSON(c, http.StatusCreated, dto.DuplicateResponse{IDs: ids})
}

// Split handles POST /purchase-requests/:id/split.
func (h *PurchaseRequestHandler) Split(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SplitRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.Split(c.Request.Context(), prID, req.LineIDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.JSON(c, http.StatusCreated, res)
}

// Stages handles GET /purchase-requests/:id/stages.
func (h *PurchaseRequestHandler) Stages(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	stages, err := h.service.PreviousStages(c.Request.Context(), prID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if stages == nil {
		stages = []string{}
	}
	h.OK(c, dto.StagesResponse{Stages: stages})
}

// Role handles GET /purchase-requests/:id/role.
func (h *PurchaseRequestHandler) Role(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	role, err := h.service.RoleFor(c.Request.Context(), prID, h.UserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.RoleResponse{Role: role})
}

// LineHistory handles GET /purchase-requests/:id/lines/:lineId/history.
func (h *PurchaseRequestHandler) LineHistory(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamID(c, "lineId")
	if !ok {
		return
	}
	entries, err := h.service.LineHistory(c.Request.Context(), prID, lineID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []pr.LineHistoryEntry{}
	}
	h.OK(c, entries)
}

// PriceInfo handles GET /purchase-requests/:id/lines/:lineId/price-info.
func (h *PurchaseRequestHandler) PriceInfo(c *gin.Context) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamID(c, "lineId")
	if !ok {
		return
	}
	b, err := h.service.PriceInfo(c.Request.Context(), prID, lineID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// Export handles GET /purchase-requests/:id/export as an Excel workbook.
func (h *PurchaseRequestHandler) Export(c *gin.Context) {
	h.render(c, "xlsx", func(f *export.Formatter, doc *pr.PurchaseRequest) ([]byte, string, error) {
		x := export.NewExcelExporter(f)
		data, err := x.Export(doc)
		return data, x.ContentType(), err
	})
}

// Print handles GET /purchase-requests/:id/print as a PDF.
func (h *PurchaseRequestHandler) Print(c *gin.Context) {
	h.render(c, "pdf", func(f *export.Formatter, doc *pr.PurchaseRequest) ([]byte, string, error) {
		p := export.NewPDFPrinter(f)
		data, err := p.Print(doc)
		return data, p.ContentType(), err
	})
}

func (h *PurchaseRequestHandler) render(
	c *gin.Context,
	ext string,
	fn func(*export.Formatter, *pr.PurchaseRequest) ([]byte, string, error),
) {
	prID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.GetByID(c.Request.Context(), prID)
	if err != nil {
		h.Error(c, err)
		return
	}

	tag, _ := language.MatchStrings(exportLocales, c.Query("lang"), c.GetHeader("Accept-Language"))
	data, contentType, err := fn(export.NewFormatter(tag), doc)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	name := doc.PRNo
	if name == "" {
		name = doc.ID.String()
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, ext))
	c.Data(http.StatusOK, contentType, data)
}
