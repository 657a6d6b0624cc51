// Package main is the entry point for the Procura API server.
// Multi-tenant architecture: Database-per-Tenant.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"procura/internal/config"
	"procura/internal/core/tenant"
	v1 "procura/internal/infrastructure/http/v1"
	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting procura server", "env", cfg.AppEnv)

	// --- Meta-database connection ---
	metaPool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.MetaDatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()
	log.Info("meta database connection established")

	// --- Tenant Registry and Manager ---
	registry := tenant.NewPostgresRegistry(metaPool)
	managerCfg := cfg.TenantManager()
	tenantManager := tenant.NewManager(managerCfg, registry, log)
	defer tenantManager.Close()

	log.Infow("tenant manager initialized",
		"max_pools", managerCfg.MaxTotalPools,
		"max_conns_per_tenant", managerCfg.MaxConnsPerTenant,
		"idle_timeout", managerCfg.PoolIdleTimeout,
	)

	if cfg.PrewarmPools {
		prewarm(ctx, tenantManager, log)
	}

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cacheClient(ctx, cfg)
		if err != nil {
			log.Warnw("redis unavailable, workflow cache disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	svc, err := buildServices(cfg, redisClient)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	routerCfg := v1.RouterConfig{
		Production:       cfg.IsProduction(),
		Tenants:          tenantManager,
		Meta:             metaPool,
		Pools:            tenantManager,
		Logger:           log,
		JWTValidator:     svc.Auth,
		AuthService:      svc.Auth,
		PurchaseRequests: svc.PurchaseRequests,
		Workflows:        svc.Workflows,
		Inbox:            svc.Inbox,
		IdempotencyTTL:   24 * time.Hour,
	}
	if redisClient != nil {
		routerCfg.Redis = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// prewarm opens the pools of every active business unit.
func prewarm(ctx context.Context, m *tenant.Manager, log *logger.Logger) {
	tenants, err := m.GetActiveTenants(ctx)
	if err != nil {
		log.Warnw("failed to list tenants for prewarm", "error", err)
		return
	}
	for _, t := range tenants {
		if _, err := m.GetPool(ctx, t.Code); err != nil {
			log.Warnw("failed to prewarm pool", "bu_code", t.Code, "error", err)
		}
	}
	log.Infow("tenant pools prewarmed", "count", len(tenants))
}
