package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"procura/pkg/logger"
)

// ManagerConfig configures pool routing behavior.
type ManagerConfig struct {
	DBUser     string
	DBPassword string
	DBSSLMode  string

	MaxConnsPerTenant int32
	MinConnsPerTenant int32
	ConnectTimeout    time.Duration

	MaxTotalPools     int           // 0 = unlimited
	PoolIdleTimeout   time.Duration // 0 = never evict
	HealthCheckPeriod time.Duration
}

// DefaultManagerConfig returns production-safe defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnsPerTenant: 10,
		MinConnsPerTenant: 1,
		ConnectTimeout:    10 * time.Second,
		MaxTotalPools:     100,
		PoolIdleTimeout:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// ManagedPool wraps pgxpool.Pool with lifecycle tracking.
type ManagedPool struct {
	pool     *pgxpool.Pool
	tenant   *Tenant
	lastUsed atomic.Int64 // unix seconds
	refCount atomic.Int32 // in-flight requests
	// unhealthySince is set when a ping fails; 0 means healthy.
	unhealthySince atomic.Int64
}

// Touch updates last used timestamp.
func (mp *ManagedPool) Touch() {
	mp.lastUsed.Store(time.Now().Unix())
}

// Pool returns underlying pgxpool.Pool.
func (mp *ManagedPool) Pool() *pgxpool.Pool {
	return mp.pool
}

// Tenant returns tenant info.
func (mp *ManagedPool) Tenant() *Tenant {
	return mp.tenant
}

// AcquireRef marks the pool as used by a request.
func (mp *ManagedPool) AcquireRef() {
	mp.refCount.Add(1)
}

// ReleaseRef must be called once per AcquireRef.
func (mp *ManagedPool) ReleaseRef() {
	mp.refCount.Add(-1)
}

// Manager routes business-unit codes to per-tenant connection pools.
// Safe for concurrent use.
type Manager struct {
	config   ManagerConfig
	registry Registry

	pools     sync.Map // map[code]*ManagedPool
	poolCount atomic.Int32
	creating  sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewManager creates a new multi-tenant connection manager.
func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config:   cfg,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
		log:      log.WithComponent("tenant-manager"),
	}

	if cfg.PoolIdleTimeout > 0 {
		m.wg.Add(1)
		go m.evictionLoop()
	}
	if cfg.HealthCheckPeriod > 0 {
		m.wg.Add(1)
		go m.healthCheckLoop()
	}

	m.log.Infow("tenant manager started",
		"max_pools", cfg.MaxTotalPools,
		"idle_timeout", cfg.PoolIdleTimeout,
	)
	return m
}

// GetPool returns the pool for a business unit, opening it on first use.
func (m *Manager) GetPool(ctx context.Context, code string) (*ManagedPool, error) {
	if val, ok := m.pools.Load(code); ok {
		mp := val.(*ManagedPool)
		mp.Touch()
		return mp, nil
	}
	return m.createPool(ctx, code)
}

func (m *Manager) createPool(ctx context.Context, code string) (*ManagedPool, error) {
	// Serialize pool creation so a burst of first requests opens one pool.
	m.creating.Lock()
	defer m.creating.Unlock()

	if val, ok := m.pools.Load(code); ok {
		return val.(*ManagedPool), nil
	}
	if m.config.MaxTotalPools > 0 && int(m.poolCount.Load()) >= m.config.MaxTotalPools {
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, m.config.MaxTotalPools)
	}

	t, err := m.registry.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: status=%s", ErrTenantNotActive, t.Status)
	}

	poolCfg, err := pgxpool.ParseConfig(t.DSN(m.config.DBUser, m.config.DBPassword, m.config.DBSSLMode))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for tenant %s: %w", code, err)
	}
	poolCfg.MaxConns = m.config.MaxConnsPerTenant
	poolCfg.MinConns = m.config.MinConnsPerTenant
	poolCfg.ConnConfig.ConnectTimeout = m.config.ConnectTimeout
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "procura"

	createCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(createCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool for tenant %s: %w", code, err)
	}
	if err := pool.Ping(createCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant %s: %w", code, err)
	}

	mp := &ManagedPool{pool: pool, tenant: t}
	mp.Touch()
	m.pools.Store(code, mp)
	m.poolCount.Add(1)

	m.log.Infow("opened tenant pool",
		"bu_code", code,
		"db_name", t.DBName,
		"total_pools", m.poolCount.Load(),
	)
	return mp, nil
}

func (m *Manager) evictionLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PoolIdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.evictIdlePools()
		}
	}
}

func (m *Manager) evictIdlePools() {
	threshold := time.Now().Add(-m.config.PoolIdleTimeout).Unix()

	m.pools.Range(func(key, value any) bool {
		code := key.(string)
		mp := value.(*ManagedPool)

		if mp.refCount.Load() > 0 {
			return true
		}
		switch {
		case mp.unhealthySince.Load() > 0:
			m.closePool(code, mp, "unhealthy")
		case mp.lastUsed.Load() < threshold:
			m.closePool(code, mp, "idle timeout")
		}
		return true
	})
}

func (m *Manager) healthCheckLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkPoolsHealth()
		}
	}
}

func (m *Manager) checkPoolsHealth() {
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()

	m.pools.Range(func(key, value any) bool {
		code := key.(string)
		mp := value.(*ManagedPool)

		if err := mp.pool.Ping(ctx); err != nil {
			mp.unhealthySince.CompareAndSwap(0, time.Now().Unix())
			m.log.Warnw("tenant pool health check failed", "bu_code", code, "error", err)
			// Pools with in-flight requests are closed later by the eviction loop.
			if mp.refCount.Load() == 0 {
				m.closePool(code, mp, "health check failed")
			}
			return true
		}
		mp.unhealthySince.Store(0)
		return true
	})
}

func (m *Manager) closePool(code string, mp *ManagedPool, reason string) {
	m.pools.Delete(code)
	mp.pool.Close()
	m.poolCount.Add(-1)

	m.log.Infow("closed tenant pool",
		"bu_code", code,
		"reason", reason,
		"total_pools", m.poolCount.Load(),
	)
}

// Close stops background loops and closes all pools.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	var closed int
	m.pools.Range(func(_, value any) bool {
		value.(*ManagedPool).pool.Close()
		closed++
		return true
	})
	m.log.Infow("tenant manager closed", "pools_closed", closed)
}

// Stats is a point-in-time view of open pools.
type Stats struct {
	TotalPools    int `json:"total_pools"`
	TotalConns    int `json:"total_conns"`
	AcquiredConns int `json:"acquired_conns"`
}

// Stats returns current manager statistics.
func (m *Manager) Stats() Stats {
	stats := Stats{TotalPools: int(m.poolCount.Load())}
	m.pools.Range(func(_, value any) bool {
		ps := value.(*ManagedPool).pool.Stat()
		stats.TotalConns += int(ps.TotalConns())
		stats.AcquiredConns += int(ps.AcquiredConns())
		return true
	})
	return stats
}

// GetActiveTenants returns all active tenants from the registry.
func (m *Manager) GetActiveTenants(ctx context.Context) ([]*Tenant, error) {
	return m.registry.ListActive(ctx)
}

// GetRegistry returns the tenant registry.
func (m *Manager) GetRegistry() Registry {
	return m.registry
}
