// Package main seeds a business-unit database with demo users, masters and
// a purchase request workflow.
// Usage: seed --code demo
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"procura/internal/config"
	"procura/internal/core/id"
	"procura/internal/core/tenant"
	"procura/internal/domain/workflow"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

const workflowAdminRole = "workflow_admin"

type demoUser struct {
	email     string
	firstName string
	lastName  string
	isAdmin   bool
	roles     []string
}

var demoUsers = []demoUser{
	{"admin@procura.local", "System", "Admin", true, []string{workflowAdminRole}},
	{"requestor@procura.local", "Rina", "Requestor", false, nil},
	{"hod@procura.local", "Hadi", "Head", false, nil},
	{"purchaser@procura.local", "Putri", "Purchaser", false, nil},
	{"gm@procura.local", "Gilang", "Manager", false, nil},
}

func main() {
	code := flag.String("code", "demo", "business-unit code to seed")
	flag.Parse()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Read()
	if err != nil {
		log.Fatalw("failed to read config", "error", err)
	}

	ctx := context.Background()

	metaPool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.MetaDatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	t, err := tenant.NewPostgresRegistry(metaPool).GetByCode(ctx, *code)
	metaPool.Close()
	if err != nil {
		log.Fatalw("business unit not found", "bu_code", *code, "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(t.DSN(cfg.TenantDBUser, cfg.TenantDBPassword, cfg.TenantDBSSLMode)))
	if err != nil {
		log.Fatalw("failed to connect to business-unit database", "error", err)
	}
	defer pool.Close()

	log = log.With("bu_code", t.Code)
	log.Info("connected to database")

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "Procura123!"
	}

	txm := postgres.NewTxManager(pool)
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		s := &seeder{q: txm.GetQuerier(ctx), log: log}
		return s.run(ctx, password)
	})
	if err != nil {
		log.Fatalw("seeding failed", "error", err)
	}

	log.Info("seeding completed successfully")
}

type seeder struct {
	q   postgres.Querier
	log *logger.Logger
}

func (s *seeder) run(ctx context.Context, password string) error {
	roleIDs := make(map[string]id.ID)
	for _, r := range [][2]string{{workflowAdminRole, "Workflow administrator"}} {
		rid, err := s.upsertCode(ctx, "roles", r[0], r[1])
		if err != nil {
			return err
		}
		roleIDs[r[0]] = rid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	users := make(map[string]workflow.AssignedUser, len(demoUsers))
	for _, u := range demoUsers {
		uid, err := s.seedUser(ctx, u, string(hash))
		if err != nil {
			return err
		}
		for _, r := range u.roles {
			if _, err := s.q.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, uid, roleIDs[r]); err != nil {
				return fmt.Errorf("assign role %s: %w", r, err)
			}
		}
		users[u.email] = workflow.AssignedUser{
			UserID: uid.String(),
			Name:   u.firstName + " " + u.lastName,
			Email:  u.email,
		}
	}

	deptID, err := s.upsertCode(ctx, "departments", "GEN", "General Affairs")
	if err != nil {
		return err
	}
	members := map[string]bool{
		"requestor@procura.local": false,
		"hod@procura.local":       true,
	}
	for email, hod := range members {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO department_users (department_id, user_id, is_hod) VALUES ($1, $2, $3)
			ON CONFLICT (department_id, user_id) DO UPDATE SET is_hod = EXCLUDED.is_hod
		`, deptID, users[email].UserID, hod); err != nil {
			return fmt.Errorf("department member %s: %w", email, err)
		}
	}

	if err := s.seedMasters(ctx); err != nil {
		return err
	}
	return s.seedWorkflow(ctx, users)
}

func (s *seeder) seedUser(ctx context.Context, u demoUser, hash string) (id.ID, error) {
	var uid id.ID
	err := s.q.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = lower($1)`, u.email).Scan(&uid)
	if err == nil {
		s.log.Infow("user already exists", "email", u.email, "user_id", uid)
		return uid, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), fmt.Errorf("check user %s: %w", u.email, err)
	}

	uid = id.New()
	if _, err := s.q.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, is_admin)
		VALUES ($1, $2, $3, $4, $5, true, $6)
	`, uid, u.email, hash, u.firstName, u.lastName, u.isAdmin); err != nil {
		return id.Nil(), fmt.Errorf("insert user %s: %w", u.email, err)
	}
	s.log.Infow("user created", "email", u.email, "user_id", uid)
	return uid, nil
}

// upsertCode inserts a (code, name) row into table, or returns the existing id.
func (s *seeder) upsertCode(ctx context.Context, table, code, name string) (id.ID, error) {
	var rid id.ID
	err := s.q.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, pgx.Identifier{table}.Sanitize()), code, name).Scan(&rid)
	if err != nil {
		return id.Nil(), fmt.Errorf("seed %s %s: %w", table, code, err)
	}
	return rid, nil
}

func (s *seeder) seedMasters(ctx context.Context) error {
	unitIDs := make(map[string]id.ID)
	for _, u := range [][2]string{{"PCS", "Piece"}, {"BOX", "Box"}, {"KG", "Kilogram"}, {"L", "Litre"}} {
		uid, err := s.upsertCode(ctx, "units", u[0], u[1])
		if err != nil {
			return err
		}
		unitIDs[u[0]] = uid
	}

	type product struct{ code, name, unit string }
	productIDs := make(map[string]id.ID)
	for _, p := range []product{
		{"PAP-A4", "Paper A4 80gsm", "BOX"},
		{"PEN-BLU", "Ballpoint pen, blue", "PCS"},
		{"DET-5L", "Dish detergent 5L", "L"},
		{"RICE-25", "Rice premium 25kg", "KG"},
	} {
		var pid id.ID
		if err := s.q.QueryRow(ctx, `
			INSERT INTO products (code, name, inventory_unit_id) VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, p.code, p.name, unitIDs[p.unit]).Scan(&pid); err != nil {
			return fmt.Errorf("seed product %s: %w", p.code, err)
		}
		productIDs[p.code] = pid
	}

	for _, l := range [][2]string{{"MAIN", "Main store"}, {"KIT", "Kitchen store"}} {
		if _, err := s.upsertCode(ctx, "locations", l[0], l[1]); err != nil {
			return err
		}
	}
	if _, err := s.upsertCode(ctx, "delivery_points", "DOCK", "Receiving dock"); err != nil {
		return err
	}

	var currencyID id.ID
	if err := s.q.QueryRow(ctx, `
		INSERT INTO currencies (code, name, exchange_rate) VALUES ('IDR', 'Indonesian Rupiah', 1)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&currencyID); err != nil {
		return fmt.Errorf("seed currency: %w", err)
	}
	if _, err := s.q.Exec(ctx, `
		INSERT INTO currencies (code, name, exchange_rate) VALUES ('USD', 'US Dollar', 16000)
		ON CONFLICT (code) DO NOTHING
	`); err != nil {
		return fmt.Errorf("seed currency: %w", err)
	}
	if _, err := s.q.Exec(ctx, `
		INSERT INTO tax_profiles (code, name, tax_rate) VALUES ('VAT11', 'VAT 11%', 11), ('NOTAX', 'No tax', 0)
		ON CONFLICT (code) DO NOTHING
	`); err != nil {
		return fmt.Errorf("seed tax profiles: %w", err)
	}

	vendorID, err := s.upsertCode(ctx, "vendors", "V-001", "PT Sumber Makmur")
	if err != nil {
		return err
	}

	var priceListID id.ID
	err = s.q.QueryRow(ctx, `SELECT id FROM price_lists WHERE price_list_no = 'PL-2026-001'`).Scan(&priceListID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check price list: %w", err)
	}
	if err := s.q.QueryRow(ctx, `
		INSERT INTO price_lists (price_list_no, vendor_id, currency_id, valid_from, valid_to)
		VALUES ('PL-2026-001', $1, $2, '2026-01-01', '2026-12-31')
		RETURNING id
	`, vendorID, currencyID).Scan(&priceListID); err != nil {
		return fmt.Errorf("seed price list: %w", err)
	}
	prices := map[string]string{"PAP-A4": "265000", "PEN-BLU": "3500", "DET-5L": "78000", "RICE-25": "340000"}
	units := map[string]string{"PAP-A4": "BOX", "PEN-BLU": "PCS", "DET-5L": "L", "RICE-25": "KG"}
	for code, price := range prices {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO price_list_details (price_list_id, product_id, unit_id, price)
			VALUES ($1, $2, $3, $4::numeric)
		`, priceListID, productIDs[code], unitIDs[units[code]], price); err != nil {
			return fmt.Errorf("seed price %s: %w", code, err)
		}
	}
	s.log.Info("masters seeded")
	return nil
}

const demoWorkflowName = "Purchase Request - Standard"

// seedWorkflow creates a request, HOD, purchasing and GM approval flow.
// Requests under 5,000,000 skip GM approval.
func (s *seeder) seedWorkflow(ctx context.Context, users map[string]workflow.AssignedUser) error {
	var existing id.ID
	err := s.q.QueryRow(ctx, `SELECT id FROM workflows WHERE name = $1`, demoWorkflowName).Scan(&existing)
	if err == nil {
		s.log.Infow("workflow already exists", "workflow_id", existing)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check workflow: %w", err)
	}

	notifyNext := map[string]workflow.ActionConfig{
		"submit":  {IsActive: true, Recipients: workflow.Recipients{NextStep: true}},
		"approve": {IsActive: true, Recipients: workflow.Recipients{NextStep: true, Requestor: true}},
		"reject":  {IsActive: true, Recipients: workflow.Recipients{Requestor: true}},
		"review":  {IsActive: true, Recipients: workflow.Recipients{Requestor: true}},
	}

	data := workflow.Data{
		Stages: []workflow.Stage{
			{
				Name:             "Create Request",
				Role:             workflow.RoleCreate,
				AssignedUsers:    []workflow.AssignedUser{},
				AvailableActions: map[string]workflow.ActionConfig{"submit": notifyNext["submit"]},
			},
			{
				Name:             "HOD Approval",
				Role:             workflow.RoleApprove,
				IsHOD:            true,
				AssignedUsers:    []workflow.AssignedUser{},
				SLA:              "24",
				SLAUnit:          "hours",
				AvailableActions: notifyNext,
			},
			{
				Name:             "Purchasing",
				Role:             workflow.RolePurchase,
				AssignedUsers:    []workflow.AssignedUser{users["purchaser@procura.local"]},
				SLA:              "2",
				SLAUnit:          "days",
				AvailableActions: notifyNext,
			},
			{
				Name:             "GM Approval",
				Role:             workflow.RoleApprove,
				AssignedUsers:    []workflow.AssignedUser{users["gm@procura.local"]},
				HideFields:       map[string]bool{"price_list_detail": true},
				AvailableActions: notifyNext,
			},
			{
				Name:          "Completed",
				Role:          workflow.RoleViewOnly,
				AssignedUsers: []workflow.AssignedUser{},
			},
		},
		RoutingRules: []workflow.RoutingRule{{
			Name:         "Skip GM under 5M",
			TriggerStage: "Purchasing",
			Condition:    workflow.Condition{Field: "amount", Operator: "lt", Value: []string{"5000000"}},
			Action: workflow.RuleAction{
				Type:       workflow.RuleActionNextStage,
				Parameters: workflow.RuleActionParameters{TargetStage: "Completed"},
			},
		}},
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := workflow.ValidateDefinitionJSON(raw); err != nil {
		return fmt.Errorf("demo workflow: %w", err)
	}

	var wfID id.ID
	if err := s.q.QueryRow(ctx, `
		INSERT INTO workflows (name, workflow_type, is_active, data) VALUES ($1, 'purchase_request', true, $2)
		RETURNING id
	`, demoWorkflowName, raw).Scan(&wfID); err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	s.log.Infow("workflow created", "workflow_id", wfID, "stages", len(data.Stages))
	return nil
}
