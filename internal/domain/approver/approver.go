// Package approver resolves who may act on a purchase request at a stage.
package approver

import (
	"context"
	"encoding/json"
	"fmt"

	"procura/internal/core/apperror"
	"procura/internal/domain/workflow"
)

// Profile is the identity snapshot stored in user_action.
type Profile struct {
	UserID     string         `json:"user_id" db:"id"`
	Email      string         `json:"email" db:"email"`
	FirstName  string         `json:"firstname" db:"first_name"`
	MiddleName string         `json:"middlename" db:"middle_name"`
	LastName   string         `json:"lastname" db:"last_name"`
	Initials   string         `json:"initials,omitempty" db:"-"`
	Department *DepartmentRef `json:"department,omitempty" db:"-"`
}

// DisplayName returns "first last", falling back to the email.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Email
	}
}

// DepartmentRef identifies the requestor's department.
type DepartmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserAction is the set of users who may act on the current stage.
type UserAction struct {
	Execute []Profile `json:"execute"`
}

// Scan implements sql.Scanner for the JSONB user_action column.
func (u *UserAction) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*u = UserAction{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("user_action: unsupported type %T", src)
	}
	// Cleared actions are persisted as an empty array.
	if len(b) > 0 && b[0] == '[' {
		*u = UserAction{}
		return nil
	}
	return json.Unmarshal(b, u)
}

// CanExecute reports whether userID is among the executors.
func (u *UserAction) CanExecute(userID string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Execute {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// UserIDs lists executor ids in order.
func (u *UserAction) UserIDs() []string {
	if u == nil {
		return nil
	}
	ids := make([]string, len(u.Execute))
	for i, p := range u.Execute {
		ids[i] = p.UserID
	}
	return ids
}

// IsEmpty reports whether nobody may act.
func (u *UserAction) IsEmpty() bool {
	return u == nil || len(u.Execute) == 0
}

// DepartmentDirectory answers department membership questions.
type DepartmentDirectory interface {
	HasHOD(ctx context.Context, departmentID string) (bool, error)
	HODUserIDs(ctx context.Context, departmentID string) ([]string, error)
	MemberUserIDs(ctx context.Context, departmentID string) ([]string, error)
}

// ProfileDirectory expands user ids to profiles.
type ProfileDirectory interface {
	ProfilesByIDs(ctx context.Context, userIDs []string) ([]Profile, error)
}

// Resolver computes user_action for a stage.
type Resolver struct {
	departments DepartmentDirectory
	profiles    ProfileDirectory
}

// NewResolver creates a resolver.
func NewResolver(departments DepartmentDirectory, profiles ProfileDirectory) *Resolver {
	return &Resolver{departments: departments, profiles: profiles}
}

// Resolve returns the users allowed to act on stage for a request raised in dept.
// A stage nobody is assigned to yields nil without error.
func (r *Resolver) Resolve(ctx context.Context, stage workflow.StageInfo, dept DepartmentRef) (*UserAction, error) {
	var ids orderedSet
	for _, u := range stage.AssignedUsers {
		ids.add(u.UserID)
	}

	if stage.CreatorAccess == workflow.CreatorAccessAllDepartment && dept.ID != "" {
		members, err := r.departments.MemberUserIDs(ctx, dept.ID)
		if err != nil {
			return nil, apperror.NewServiceUnavailable("department directory", err)
		}
		ids.add(members...)
	}

	if stage.IsHOD && dept.ID != "" {
		hods, err := r.departments.HODUserIDs(ctx, dept.ID)
		if err != nil {
			return nil, apperror.NewServiceUnavailable("department directory", err)
		}
		ids.add(hods...)
	}

	if len(ids.items) == 0 {
		return nil, nil
	}

	profiles, err := r.profiles.ProfilesByIDs(ctx, ids.items)
	if err != nil {
		return nil, apperror.NewServiceUnavailable("identity directory", err)
	}

	// Keep resolution order; the directory may return rows in any order.
	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}
	action := &UserAction{}
	for _, uid := range ids.items {
		p, ok := byID[uid]
		if !ok {
			continue
		}
		if p.Department == nil && dept.ID != "" {
			d := dept
			p.Department = &d
		}
		action.Execute = append(action.Execute, p)
	}
	if len(action.Execute) == 0 {
		return nil, nil
	}
	return action, nil
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func (s *orderedSet) add(values ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
