// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/domain/notification"
	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/http/v1/middleware"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

// RouterConfig holds router dependencies. Services are tenant-agnostic; the
// tenant pool and TxManager travel in the request context.
type RouterConfig struct {
	// Production enables strict security headers and release mode.
	Production bool

	// Tenants resolves X-Tenant-ID to a database pool.
	Tenants middleware.PoolResolver

	// Meta and Redis back the readiness probe. Redis may be nil.
	Meta  handlers.Pinger
	Redis handlers.Pinger
	Pools handlers.PoolStats

	Logger *logger.Logger

	// JWTValidator validates bearer tokens.
	JWTValidator middleware.JWTValidator

	AuthService      handlers.AuthService
	PurchaseRequests handlers.PurchaseRequestService
	Workflows        handlers.WorkflowService
	Inbox            notification.Inbox

	// IdempotencyTTL is how long Idempotency-Key results are replayed.
	// Zero disables the middleware.
	IdempotencyTTL time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// ErrorHandler wraps Recovery so recovered panics get the error envelope.
	router.Use(middleware.Secure(middleware.SecurityOptions(cfg.Production)))
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	health := handlers.NewHealthHandler(cfg.Meta, cfg.Redis, cfg.Pools)
	router.GET("/health", health.Live)
	router.GET("/ready", health.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantDB(cfg.Tenants))

	base := handlers.NewBaseHandler()
	registerAuthRoutes(v1, base, cfg)

	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.IdempotencyTTL > 0 {
		protected.Use(middleware.Idempotency(postgres.NewIdempotencyStore(cfg.IdempotencyTTL)))
	}

	registerPurchaseRequestRoutes(protected, base, cfg)
	registerWorkflowRoutes(protected, base, cfg)
	registerNotificationRoutes(protected, base, cfg)

	return router
}
