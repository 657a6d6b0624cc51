// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"procura/internal/core/tenant"
)

// Config is shared by the server, worker and CLI binaries. Each binary reads
// only the fields it needs.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`

	MetaDatabaseURL string `envconfig:"META_DATABASE_URL"`

	// PostgresAdminURL may create databases; only the tenant CLI uses it.
	PostgresAdminURL string `envconfig:"POSTGRES_ADMIN_URL"`

	TenantDBUser     string `envconfig:"TENANT_DB_USER"`
	TenantDBPassword string `envconfig:"TENANT_DB_PASSWORD"`
	TenantDBHost     string `envconfig:"TENANT_DB_HOST" default:"localhost"`
	TenantDBPort     int    `envconfig:"TENANT_DB_PORT" default:"5432"`
	TenantDBSSLMode  string `envconfig:"TENANT_DB_SSLMODE" default:"disable"`

	TenantMaxPools        int           `envconfig:"TENANT_MAX_POOLS" default:"100"`
	TenantMaxConnsPerPool int32         `envconfig:"TENANT_MAX_CONNS_PER_POOL" default:"10"`
	TenantPoolIdleTimeout time.Duration `envconfig:"TENANT_POOL_IDLE_TIMEOUT" default:"30m"`
	PrewarmPools          bool          `envconfig:"PREWARM_POOLS" default:"false"`

	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"15m"`
	JWTRefreshTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`

	RedisAddr        string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD"`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	WorkflowCacheTTL time.Duration `envconfig:"WORKFLOW_CACHE_TTL" default:"5m"`

	NavigatorTimeout time.Duration `envconfig:"NAVIGATOR_TIMEOUT" default:"5s"`
	PRNoPattern      string        `envconfig:"PR_NO_PATTERN" default:"PR{date:yyMM}-{running:5}"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"10"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read parses the environment without validation. CLI tools use it and
// check only the values their command needs.
func Read() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// Validate reports missing or out-of-range values.
func (c *Config) Validate() error {
	var errs []error
	if c.MetaDatabaseURL == "" {
		errs = append(errs, errors.New("META_DATABASE_URL is required"))
	}
	if c.TenantDBUser == "" {
		errs = append(errs, errors.New("TENANT_DB_USER is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.NavigatorTimeout <= 0 {
		errs = append(errs, errors.New("NAVIGATOR_TIMEOUT must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// IsDevelopment reports whether the process runs in development.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// TenantManager maps the pool settings onto a tenant.ManagerConfig.
func (c *Config) TenantManager() tenant.ManagerConfig {
	cfg := tenant.DefaultManagerConfig()
	cfg.DBUser = c.TenantDBUser
	cfg.DBPassword = c.TenantDBPassword
	cfg.DBSSLMode = c.TenantDBSSLMode
	if c.TenantMaxPools > 0 {
		cfg.MaxTotalPools = c.TenantMaxPools
	}
	if c.TenantMaxConnsPerPool > 0 {
		cfg.MaxConnsPerTenant = c.TenantMaxConnsPerPool
	}
	if c.TenantPoolIdleTimeout > 0 {
		cfg.PoolIdleTimeout = c.TenantPoolIdleTimeout
	}
	return cfg
}
