package handlers

import (
	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/domain/notification"
	"procura/internal/infrastructure/http/v1/dto"
)

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	*BaseHandler
	inbox notification.Inbox
}

func NewNotificationHandler(base *BaseHandler, inbox notification.Inbox) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, inbox: inbox}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var q dto.NotificationListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	limit, offset := q.Page()
	items, err := h.inbox.ListForUser(c.Request.Context(), h.UserID(c), q.UnreadOnly, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}
	h.OK(c, items)
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	nid := c.Param("id")
	if nid == "" {
		h.Error(c, apperror.NewInvalidArgument("missing notification id"))
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), h.UserID(c), nid); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
