package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"procura/internal/core/id"
	"procura/internal/domain/workflow"
)

// WorkflowService reads and replaces workflow definitions.
type WorkflowService interface {
	Get(ctx context.Context, wfID id.ID) (*workflow.Definition, error)
	Update(ctx context.Context, wfID id.ID, in workflow.UpdateInput) (*workflow.Definition, error)
}

// WorkflowHandler serves /workflows.
type WorkflowHandler struct {
	*BaseHandler
	service WorkflowService
}

func NewWorkflowHandler(base *BaseHandler, service WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{BaseHandler: base, service: service}
}

// Get handles GET /workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	wfID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	def, err := h.service.Get(c.Request.Context(), wfID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, def)
}

// Update handles PUT /workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	wfID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var in workflow.UpdateInput
	if !h.BindJSON(c, &in) {
		return
	}
	def, err := h.service.Update(c.Request.Context(), wfID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, def)
}
