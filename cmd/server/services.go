package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"procura/internal/config"
	"procura/internal/domain/approver"
	"procura/internal/domain/auth"
	pr "procura/internal/domain/documents/purchase_request"
	"procura/internal/domain/lookup"
	"procura/internal/domain/workflow"
	"procura/internal/infrastructure/cache"
	"procura/internal/infrastructure/notify"
	"procura/internal/infrastructure/numerator"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/auth_repo"
	"procura/internal/infrastructure/storage/postgres/catalog_repo"
	"procura/internal/infrastructure/storage/postgres/document_repo"
	"procura/internal/infrastructure/storage/postgres/notification_repo"
	"procura/internal/infrastructure/storage/postgres/workflow_repo"
)

// services are the tenant-agnostic application services. Repositories take
// the tenant connection from the request context.
type services struct {
	Auth             *auth.Service
	PurchaseRequests *pr.Service
	Workflows        *workflow.Service
	Inbox            *notification_repo.Inbox
}

func cacheClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func buildServices(cfg *config.Config, redisClient *redis.Client) (*services, error) {
	// --- Auth ---
	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.AccessTokenTTL = cfg.JWTTTL
	authCfg := auth.DefaultServiceConfig()
	authCfg.RefreshTokenTTL = cfg.JWTRefreshTTL
	authService := auth.NewService(
		auth_repo.NewUserRepo(),
		auth_repo.NewTokenRepo(),
		auth.NewJWTService(jwtCfg),
		authCfg,
	)

	// --- Workflows (cached per business unit) ---
	workflows := cache.NewWorkflowStore(workflow_repo.NewWorkflowRepo(), cache.New(redisClient, cfg.WorkflowCacheTTL))
	engine, err := workflow.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("workflow engine: %w", err)
	}

	// --- Purchase requests ---
	departments := catalog_repo.NewDepartmentDirectory()
	auditService, err := postgres.NewAuditService()
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	prService := pr.NewService(pr.Deps{
		Repo:        document_repo.NewPurchaseRequestRepo(),
		Workflows:   workflows,
		Lookups:     lookup.NewResolver(catalog_repo.NewMasterSource(), workflows),
		Departments: departments,
		Navigator:   engine,
		Approvers:   approver.NewResolver(departments, catalog_repo.NewProfileDirectory()),
		Numerator:   numerator.NewFromContext(),
		Publisher:   notify.NewOutboxPublisher(postgres.NewOutboxPublisher()),
		Audit:       auditService,
	}, pr.Config{
		PRNoPattern:      cfg.PRNoPattern,
		NavigatorTimeout: cfg.NavigatorTimeout,
	})

	return &services{
		Auth:             authService,
		PurchaseRequests: prService,
		Workflows:        workflow.NewService(workflows),
		Inbox:            notification_repo.NewInbox(),
	}, nil
}
