package main

import (
	"context"
	"sync"
	"time"

	"procura/internal/core/tenant"
	"procura/internal/domain/auth"
	"procura/internal/infrastructure/notify"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

const (
	refreshInterval = time.Minute

	// publishedRetention keeps relayed outbox rows around for inspection.
	publishedRetention = 7 * 24 * time.Hour

	// tokenRetention keeps expired or revoked refresh tokens so reuse is
	// still detected for a while.
	tokenRetention = 24 * time.Hour
)

// WorkerConfig tunes the per-tenant loops.
type WorkerConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	CleanupInterval time.Duration
}

// MultiTenantWorker runs one outbox loop per active business unit.
type MultiTenantWorker struct {
	manager     *tenant.Manager
	client      notify.TaskEnqueuer
	tokens      auth.TokenRepository
	idempotency *postgres.IdempotencyStore
	cfg         WorkerConfig
	log         *logger.Logger
}

func NewMultiTenantWorker(
	manager *tenant.Manager,
	client notify.TaskEnqueuer,
	tokens auth.TokenRepository,
	cfg WorkerConfig,
	log *logger.Logger,
) *MultiTenantWorker {
	return &MultiTenantWorker{
		manager:     manager,
		client:      client,
		tokens:      tokens,
		idempotency: postgres.NewIdempotencyStore(24 * time.Hour),
		cfg:         cfg,
		log:         log.WithComponent("worker"),
	}
}

// Scope binds the database of buCode to ctx for the duration of fn.
func (w *MultiTenantWorker) Scope(ctx context.Context, buCode string, fn func(ctx context.Context) error) error {
	mp, err := w.manager.GetPool(ctx, buCode)
	if err != nil {
		return err
	}
	mp.AcquireRef()
	defer mp.ReleaseRef()

	ctx, _ = bindTenant(ctx, mp)
	return fn(ctx)
}

func bindTenant(ctx context.Context, mp *tenant.ManagedPool) (context.Context, *postgres.TxManager) {
	txm := postgres.NewTxManager(mp.Pool())
	ctx = tenant.WithTxManager(ctx, txm)
	ctx = tenant.WithTenant(ctx, mp.Tenant())
	return ctx, txm
}

// Run starts and stops tenant loops as business units come and go.
func (w *MultiTenantWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	running := make(map[string]context.CancelFunc) // bu_code -> cancel

	w.refreshTenants(ctx, &wg, running)

	for {
		select {
		case <-ctx.Done():
			for _, cancel := range running {
				cancel()
			}
			wg.Wait()
			return

		case <-ticker.C:
			w.refreshTenants(ctx, &wg, running)
		}
	}
}

func (w *MultiTenantWorker) refreshTenants(ctx context.Context, wg *sync.WaitGroup, running map[string]context.CancelFunc) {
	tenants, err := w.manager.GetActiveTenants(ctx)
	if err != nil {
		w.log.Errorw("failed to get active tenants", "error", err)
		return
	}

	active := make(map[string]*tenant.Tenant, len(tenants))
	for _, t := range tenants {
		active[t.Code] = t
	}

	for code, cancel := range running {
		if _, ok := active[code]; !ok {
			cancel()
			delete(running, code)
			w.log.Infow("stopped worker for inactive tenant", "bu_code", code)
		}
	}

	for code, t := range active {
		if _, ok := running[code]; ok {
			continue
		}
		tenantCtx, cancel := context.WithCancel(ctx)
		running[code] = cancel

		wg.Add(1)
		go func(t *tenant.Tenant) {
			defer wg.Done()
			w.runTenant(tenantCtx, t)
		}(t)

		w.log.Infow("started worker for tenant", "bu_code", code)
	}
}

func (w *MultiTenantWorker) runTenant(ctx context.Context, t *tenant.Tenant) {
	mp, err := w.manager.GetPool(ctx, t.Code)
	if err != nil {
		w.log.Errorw("failed to get pool for tenant", "bu_code", t.Code, "error", err)
		return
	}
	mp.AcquireRef()
	defer mp.ReleaseRef()

	ctx, txm := bindTenant(ctx, mp)
	relay := postgres.NewOutboxRelay(txm, w.cfg.BatchSize, notify.NewEnqueuer(w.client, t.Code, 0))
	log := w.log.With("bu_code", t.Code)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping worker for tenant")
			return
		case <-ticker.C:
			n, err := relay.ProcessBatch(ctx)
			if err != nil {
				log.Warnw("outbox relay failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debugw("relayed outbox batch", "count", n)
			}
		case <-cleanupTicker.C:
			w.cleanup(ctx, relay, log)
		}
	}
}

func (w *MultiTenantWorker) cleanup(ctx context.Context, relay *postgres.OutboxRelay, log *logger.Logger) {
	jobs := []struct {
		name string
		run  func(context.Context) (int64, error)
	}{
		{"outbox_dlq", relay.MoveToDLQ},
		{"outbox_published", func(ctx context.Context) (int64, error) {
			return relay.PurgePublished(ctx, publishedRetention)
		}},
		{"idempotency", w.idempotency.CleanupExpired},
		{"refresh_tokens", func(ctx context.Context) (int64, error) {
			return w.tokens.DeleteExpired(ctx, time.Now().Add(-tokenRetention))
		}},
	}
	for _, job := range jobs {
		n, err := job.run(ctx)
		if err != nil {
			log.Warnw("cleanup failed", "job", job.name, "error", err)
			continue
		}
		if n > 0 {
			log.Infow("cleanup done", "job", job.name, "count", n)
		}
	}
}
