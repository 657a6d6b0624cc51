package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/tenant"
)

// Pinger is anything that can be health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// PoolStats reports tenant pool usage.
type PoolStats interface {
	Stats() tenant.Stats
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	meta  Pinger
	redis Pinger
	pools PoolStats
}

// NewHealthHandler creates a health handler. redis may be nil.
func NewHealthHandler(meta Pinger, redis Pinger, pools PoolStats) *HealthHandler {
	return &HealthHandler{meta: meta, redis: redis, pools: pools}
}

// Live handles GET /health.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready. The meta database is required; redis only
// degrades caching and is reported without failing the probe.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK

	if err := h.meta.Ping(ctx); err != nil {
		checks["meta_database"] = "unhealthy: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["meta_database"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "degraded: " + err.Error()
		} else {
			checks["redis"] = "healthy"
		}
	}

	body := gin.H{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "error"
	}
	if h.pools != nil {
		body["tenant_pools"] = h.pools.Stats()
	}
	c.JSON(status, body)
}
