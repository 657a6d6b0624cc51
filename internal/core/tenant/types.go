// Package tenant provides database-per-tenant routing.
// Each business unit owns an isolated PostgreSQL database; the meta database
// maps business-unit codes to connection coordinates.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status represents tenant lifecycle state.
type Status string

const (
	// StatusActive - tenant can accept requests
	StatusActive Status = "active"

	// StatusSuspended - tenant is temporarily disabled
	StatusSuspended Status = "suspended"

	// StatusDeleted - tenant is marked for deletion
	StatusDeleted Status = "deleted"
)

// Tenant is a business unit row from the meta database.
type Tenant struct {
	ID          string         `db:"id"`
	Code        string         `db:"bu_code"`      // business-unit code sent by clients
	DisplayName string         `db:"display_name"` // Human-readable name
	DBName      string         `db:"db_name"`
	DBHost      string         `db:"db_host"`
	DBPort      int            `db:"db_port"`
	Status      Status         `db:"status"`
	Timezone    string         `db:"timezone"` // used for pr_no date segments
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	Settings    map[string]any `db:"settings"`
}

// IsActive returns true if tenant can accept requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Location returns the tenant's time zone, UTC when unset or unknown.
func (t *Tenant) Location() *time.Location {
	if t == nil || t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN builds PostgreSQL connection string for this tenant's database.
func (t *Tenant) DSN(user, password, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, t.DBHost, t.DBPort, t.DBName, sslMode,
	)
}

var codePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// CreateTenantInput contains data for registering a business unit.
type CreateTenantInput struct {
	Code        string
	DisplayName string
	Timezone    string
	DBHost      string // Optional, defaults to localhost
	DBPort      int    // Optional, defaults to 5432
}

// Validate normalizes and checks the input.
func (i *CreateTenantInput) Validate() error {
	i.Code = strings.ToLower(strings.TrimSpace(i.Code))
	if i.Code == "" {
		return fmt.Errorf("code is required")
	}
	if !codePattern.MatchString(i.Code) {
		return fmt.Errorf("code %q must match %s", i.Code, codePattern.String())
	}
	if i.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	if i.Timezone != "" {
		if _, err := time.LoadLocation(i.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// GenerateDBName creates database name from the business-unit code.
// Format: bu_<code>
func (i *CreateTenantInput) GenerateDBName() string {
	return "bu_" + strings.ReplaceAll(i.Code, "-", "_")
}
