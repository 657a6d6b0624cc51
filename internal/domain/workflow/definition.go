// Package workflow models approval workflows as a named list of stages with
// routing rules, and navigates purchase requests through them.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procura/internal/core/id"
)

// Role is the kind of work a stage performs on a purchase request.
type Role string

const (
	RoleCreate   Role = "create"
	RolePurchase Role = "purchase"
	RoleApprove  Role = "approve"
	RoleViewOnly Role = "view_only"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCreate, RolePurchase, RoleApprove, RoleViewOnly:
		return true
	}
	return false
}

// CreatorAccessAllDepartment lets every member of the requestor's department act on a stage.
const CreatorAccessAllDepartment = "all_department"

// Action names used in a stage's available_actions map.
const (
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionSendBack = "sendback"
)

// RuleActionNextStage jumps to the rule's target stage.
const RuleActionNextStage = "NEXT_STAGE"

// Definition is a stored workflow.
type Definition struct {
	ID        id.ID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      string    `db:"workflow_type" json:"workflow_type"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	Data      Data      `db:"data" json:"data"`
	Version   int       `db:"doc_version" json:"doc_version"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Data is the workflow graph stored as JSONB.
type Data struct {
	Stages       []Stage       `json:"stages"`
	RoutingRules []RoutingRule `json:"routing_rules"`
}

// Scan implements sql.Scanner for the JSONB column.
func (d *Data) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Data{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("workflow data: unsupported type %T", src)
	}
}

// Stage is one named node of the workflow.
type Stage struct {
	Name             string                  `json:"name"`
	Description      string                  `json:"description,omitempty"`
	Role             Role                    `json:"role"`
	IsHOD            bool                    `json:"is_hod"`
	CreatorAccess    string                  `json:"creator_access,omitempty"`
	AssignedUsers    []AssignedUser          `json:"assigned_users"`
	SLA              string                  `json:"sla,omitempty"`
	SLAUnit          string                  `json:"sla_unit,omitempty"`
	HideFields       map[string]bool         `json:"hide_fields,omitempty"`
	AvailableActions map[string]ActionConfig `json:"available_actions,omitempty"`
}

// ActionConfig enables an action on a stage and selects who is notified.
type ActionConfig struct {
	IsActive   bool       `json:"is_active"`
	Recipients Recipients `json:"recipients"`
}

// Recipients selects notification targets for a stage action.
type Recipients struct {
	NextStep       bool `json:"next_step"`
	Requestor      bool `json:"requestor"`
	CurrentApprove bool `json:"current_approve"`
}

// AssignedUser is a user explicitly assigned to a stage. Stored definitions
// hold either a bare user id or a profile object carrying user_id.
type AssignedUser struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// UnmarshalJSON accepts both "id" and {"user_id": "id", ...}.
func (u *AssignedUser) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = AssignedUser{UserID: s}
		return nil
	}
	type plain AssignedUser
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*u = AssignedUser(p)
	return nil
}

// RoutingRule overrides sequential routing out of TriggerStage when its condition holds.
type RoutingRule struct {
	Name         string     `json:"name,omitempty"`
	Description  string     `json:"description,omitempty"`
	TriggerStage string     `json:"trigger_stage"`
	Condition    Condition  `json:"condition"`
	Action       RuleAction `json:"action"`
}

// Condition compares a request field against a list of values.
type Condition struct {
	Field    string   `json:"field"`
	Operator string   `json:"operator"`
	Value    []string `json:"value"`
}

// RuleAction is what a matching rule does.
type RuleAction struct {
	Type       string               `json:"type"`
	Parameters RuleActionParameters `json:"parameters"`
}

type RuleActionParameters struct {
	TargetStage string `json:"target_stage"`
}

// StageIndex returns the position of the named stage or -1.
func (d *Definition) StageIndex(name string) int {
	for i := range d.Data.Stages {
		if d.Data.Stages[i].Name == name {
			return i
		}
	}
	return -1
}

// Stage returns the named stage or nil.
func (d *Definition) Stage(name string) *Stage {
	if i := d.StageIndex(name); i >= 0 {
		return &d.Data.Stages[i]
	}
	return nil
}

// HasHODStage reports whether any stage requires a head of department.
func (d *Definition) HasHODStage() bool {
	for _, s := range d.Data.Stages {
		if s.IsHOD {
			return true
		}
	}
	return false
}

// StageNames lists stage names in definition order.
func (d *Definition) StageNames() []string {
	names := make([]string, len(d.Data.Stages))
	for i, s := range d.Data.Stages {
		names[i] = s.Name
	}
	return names
}

// cacheKey identifies a definition revision for compiled rule caching.
func (d *Definition) cacheKey() string {
	return fmt.Sprintf("%s:%d", d.ID, d.Version)
}

// Repository loads and stores workflow definitions.
type Repository interface {
	GetByID(ctx context.Context, id id.ID) (*Definition, error)
	Update(ctx context.Context, def *Definition) error
}
