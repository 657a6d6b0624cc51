package v1

import (
	"github.com/gin-gonic/gin"

	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/http/v1/middleware"
)

// WorkflowAdminRole may replace workflow definitions.
const WorkflowAdminRole = "workflow_admin"

// registerAuthRoutes registers authentication endpoints. Login and refresh
// only need the tenant; logout needs a valid access token.
func registerAuthRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}
	h := handlers.NewAuthHandler(base, cfg.AuthService)

	group := rg.Group("/auth")
	group.POST("/login", h.Login)
	group.POST("/refresh", h.Refresh)
	group.POST("/logout", middleware.Auth(cfg.JWTValidator), h.Logout)
}

func registerPurchaseRequestRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.PurchaseRequests == nil {
		return
	}
	handlers.NewPurchaseRequestHandler(base, cfg.PurchaseRequests).
		RegisterRoutes(rg.Group("/purchase-requests"))
}

func registerWorkflowRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Workflows == nil {
		return
	}
	h := handlers.NewWorkflowHandler(base, cfg.Workflows)

	group := rg.Group("/workflows")
	group.GET("/:id", h.Get)
	group.PUT("/:id", middleware.RequireRole(WorkflowAdminRole), h.Update)
}

func registerNotificationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Inbox == nil {
		return
	}
	h := handlers.NewNotificationHandler(base, cfg.Inbox)

	group := rg.Group("/notifications")
	group.GET("", h.List)
	group.POST("/:id/read", h.MarkRead)
}
