// Package main provides the business-unit registry CLI.
// Usage: tenant init
//        tenant create --code acme --name "ACME Hotel" --timezone Asia/Jakarta
//        tenant list
//        tenant migrate --all | --code acme
//        tenant suspend <code>
//        tenant activate <code>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"procura/internal/config"
	"procura/internal/core/tenant"
	"procura/internal/infrastructure/storage/postgres"
	"procura/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Read()
	if err != nil {
		fail("%v", err)
	}
	if cfg.MetaDatabaseURL == "" {
		fail("META_DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch os.Args[1] {
	case "init":
		initMeta(ctx, cfg)
	case "create":
		createTenant(ctx, cfg, args)
	case "list":
		listTenants(ctx, cfg)
	case "migrate":
		migrateTenants(ctx, cfg, args)
	case "suspend":
		setStatus(ctx, cfg, args, tenant.StatusSuspended)
	case "activate":
		setStatus(ctx, cfg, args, tenant.StatusActive)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Procura business-unit CLI

Usage:
  tenant <command> [options]

Commands:
  init      Apply the meta database migrations
  create    Create a business-unit database and register it
  list      List all business units
  migrate   Run migrations for business unit(s)
  suspend   Suspend a business unit
  activate  Activate a suspended business unit
  help      Show this help

Environment Variables:
  META_DATABASE_URL    Connection string for meta database (required)
  TENANT_DB_USER       Username for tenant databases
  TENANT_DB_PASSWORD   Password for tenant databases
  TENANT_DB_HOST       Host of new tenant databases (default localhost)
  POSTGRES_ADMIN_URL   Admin connection for creating databases

Examples:
  tenant init
  tenant create --code acme --name "ACME Hotel" --timezone Asia/Jakarta
  tenant list
  tenant migrate --all
  tenant migrate --code acme
  tenant suspend acme
  tenant activate acme`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func metaPool(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.MetaDatabaseURL))
	if err != nil {
		fail("connecting to meta database: %v", err)
	}
	return pool
}

func initMeta(ctx context.Context, cfg *config.Config) {
	pool := metaPool(ctx, cfg)
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, postgres.NewTxManager(pool), migrations.Meta())
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("✓ Meta database ready (%d migration(s) applied)\n", len(applied))
}

func createTenant(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	in := tenant.CreateTenantInput{}
	fs.StringVar(&in.Code, "code", "", "business-unit code sent in X-Tenant-ID")
	fs.StringVar(&in.DisplayName, "name", "", "display name")
	fs.StringVar(&in.Timezone, "timezone", "UTC", "IANA time zone used for PR numbers")
	fs.StringVar(&in.DBHost, "db-host", cfg.TenantDBHost, "database host")
	fs.IntVar(&in.DBPort, "db-port", cfg.TenantDBPort, "database port")
	_ = fs.Parse(args)

	if err := in.Validate(); err != nil {
		fail("%v", err)
	}
	dbName := in.GenerateDBName()

	fmt.Printf("Creating business unit '%s'...\n", in.Code)

	// 1. Create database
	if cfg.PostgresAdminURL != "" {
		fmt.Printf("  Creating database %s...\n", dbName)
		if err := createDatabase(ctx, cfg.PostgresAdminURL, dbName, cfg.TenantDBUser); err != nil {
			fmt.Printf("  Warning: %v\n", err)
			fmt.Println("  You may need to create the database manually.")
		}
	}

	t := &tenant.Tenant{
		Code:        in.Code,
		DisplayName: in.DisplayName,
		DBName:      dbName,
		DBHost:      in.DBHost,
		DBPort:      in.DBPort,
		Status:      tenant.StatusActive,
		Timezone:    in.Timezone,
		Settings:    map[string]any{},
	}

	// 2. Run migrations
	if cfg.TenantDBUser != "" {
		fmt.Println("  Running migrations...")
		if err := migrateOne(ctx, cfg, t); err != nil {
			fmt.Printf("  Warning: migrations failed: %v\n", err)
		}
	}

	// 3. Register in meta database
	pool := metaPool(ctx, cfg)
	defer pool.Close()
	if err := tenant.NewPostgresRegistry(pool).Create(ctx, t); err != nil {
		fail("registering business unit: %v", err)
	}

	fmt.Printf("\n✓ Business unit '%s' created\n", t.Code)
	fmt.Printf("  ID: %s\n", t.ID)
	fmt.Printf("  Database: %s\n", dbName)
	fmt.Printf("  Timezone: %s\n", t.Timezone)
}

func createDatabase(ctx context.Context, adminURL, dbName, owner string) error {
	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return fmt.Errorf("connect as admin: %w", err)
	}
	defer conn.Close(ctx)

	stmt := "CREATE DATABASE " + pgx.Identifier{dbName}.Sanitize()
	if owner != "" {
		stmt += " OWNER " + pgx.Identifier{owner}.Sanitize()
	}
	if _, err := conn.Exec(ctx, stmt); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			fmt.Println("  Database already exists")
			return nil
		}
		return fmt.Errorf("create database: %w", err)
	}
	fmt.Println("  Database created")
	return nil
}

func migrateOne(ctx context.Context, cfg *config.Config, t *tenant.Tenant) error {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(t.DSN(cfg.TenantDBUser, cfg.TenantDBPassword, cfg.TenantDBSSLMode)))
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, postgres.NewTxManager(pool), migrations.Tenant())
	for _, v := range applied {
		fmt.Printf("    applied %s\n", v)
	}
	return err
}

func listTenants(ctx context.Context, cfg *config.Config) {
	pool := metaPool(ctx, cfg)
	defer pool.Close()

	tenants, err := tenant.NewPostgresRegistry(pool).ListAll(ctx)
	if err != nil {
		fail("listing business units: %v", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No business units found")
		return
	}

	fmt.Printf("%-20s %-30s %-20s %-20s %-10s\n", "CODE", "NAME", "DATABASE", "TIMEZONE", "STATUS")
	fmt.Println(strings.Repeat("-", 104))
	for _, t := range tenants {
		fmt.Printf("%-20s %-30s %-20s %-20s %-10s\n",
			truncate(t.Code, 20),
			truncate(t.DisplayName, 30),
			truncate(t.DBName, 20),
			truncate(t.Timezone, 20),
			t.Status,
		)
	}
}

func migrateTenants(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	all := fs.Bool("all", false, "migrate every active business unit")
	code := fs.String("code", "", "migrate one business unit")
	_ = fs.Parse(args)

	if !*all && *code == "" {
		fail("specify --code <code> or --all")
	}
	if cfg.TenantDBUser == "" {
		fail("TENANT_DB_USER and TENANT_DB_PASSWORD are required")
	}

	pool := metaPool(ctx, cfg)
	defer pool.Close()
	registry := tenant.NewPostgresRegistry(pool)

	var tenants []*tenant.Tenant
	if *all {
		var err error
		if tenants, err = registry.ListActive(ctx); err != nil {
			fail("%v", err)
		}
	} else {
		t, err := registry.GetByCode(ctx, strings.ToLower(*code))
		if err != nil {
			fail("business unit '%s': %v", *code, err)
		}
		tenants = []*tenant.Tenant{t}
	}

	failed := 0
	for _, t := range tenants {
		fmt.Printf("Migrating %s (%s)...\n", t.Code, t.DBName)
		if err := migrateOne(ctx, cfg, t); err != nil {
			failed++
			fmt.Printf("  ✗ Failed: %v\n", err)
			continue
		}
		fmt.Printf("  ✓ Done\n")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func setStatus(ctx context.Context, cfg *config.Config, args []string, status tenant.Status) {
	if len(args) < 1 {
		fail("usage: tenant %s <code>", os.Args[1])
	}
	code := strings.ToLower(args[0])

	pool := metaPool(ctx, cfg)
	defer pool.Close()

	if err := tenant.NewPostgresRegistry(pool).UpdateStatus(ctx, code, status); err != nil {
		fail("%v", err)
	}
	fmt.Printf("✓ Business unit '%s' is now %s\n", code, status)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
