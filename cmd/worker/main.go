// Package main is the entry point for the Procura background worker.
// Multi-tenant architecture: relays the outbox of every active business unit
// and delivers the queued notifications.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hibiken/asynq"

	"procura/internal/config"
	"procura/internal/core/tenant"
	"procura/internal/infrastructure/notify"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/auth_repo"
	"procura/internal/infrastructure/storage/postgres/notification_repo"
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

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting procura worker")

	metaPool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.MetaDatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	managerCfg := cfg.TenantManager()
	manager := tenant.NewManager(managerCfg, tenant.NewPostgresRegistry(metaPool), log)
	defer manager.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	worker := NewMultiTenantWorker(manager, client, auth_repo.NewTokenRepo(), WorkerConfig{
		PollInterval:    cfg.OutboxPollInterval,
		BatchSize:       cfg.OutboxBatchSize,
		CleanupInterval: cfg.CleanupInterval,
	}, log)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{notify.QueueNotifications: 1},
		Logger:      log,
	})
	mux := asynq.NewServeMux()
	notify.NewDeliverer(worker.Scope, notification_repo.NewInbox()).Register(mux)
	if err := srv.Start(mux); err != nil {
		log.Fatalw("failed to start task server", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	srv.Shutdown()
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
