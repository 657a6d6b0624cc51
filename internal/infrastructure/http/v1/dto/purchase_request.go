package dto

import (
	"encoding/json"
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	pr "procura/internal/domain/documents/purchase_request"
)

const dateLayout = "2006-01-02"

// PurchaseRequestListQuery filters GET /purchase-requests.
type PurchaseRequestListQuery struct {
	PageQuery
	Status       []string `form:"status"`
	RequestorID  string   `form:"requestor_id"`
	DepartmentID string   `form:"department_id"`
	WorkflowID   string   `form:"workflow_id"`
	Stage        string   `form:"stage"`
	DateFrom     string   `form:"date_from"`
	DateTo       string   `form:"date_to"`
}

// ToFilter parses ids and dates. Malformed values are VALIDATION_FAILURE.
func (q PurchaseRequestListQuery) ToFilter() (pr.ListFilter, error) {
	f := pr.ListFilter{
		ListFilter:  q.ToListFilter(),
		RequestorID: q.RequestorID,
		Stage:       q.Stage,
	}
	for _, raw := range q.Status {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, pr.Status(s))
			}
		}
	}

	var err error
	if f.DepartmentID, err = optionalID("department_id", q.DepartmentID); err != nil {
		return f, err
	}
	if f.WorkflowID, err = optionalID("workflow_id", q.WorkflowID); err != nil {
		return f, err
	}
	if f.DateFrom, err = optionalDate("date_from", q.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = optionalDate("date_to", q.DateTo); err != nil {
		return f, err
	}
	if f.DateTo != nil {
		// date_to is inclusive
		end := f.DateTo.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}
	return f, nil
}

func optionalID(field, raw string) (*id.ID, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := id.Parse(raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid id").WithDetail("field", field)
	}
	return &v, nil
}

func optionalDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid date, expected YYYY-MM-DD").WithDetail("field", field)
	}
	return &t, nil
}

// SaveEnvelope carries the role the caller saves as. The rest of the body
// is decoded into the payload of that role.
type SaveEnvelope struct {
	StateRole string `json:"state_role"`
}

// DecodeSave splits a PUT body into its role and the raw payload.
func DecodeSave(body []byte) (string, error) {
	var env SaveEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", apperror.NewValidation("invalid request body").WithDetail("error", err.Error())
	}
	if env.StateRole == "" {
		return "", apperror.NewValidation("state_role is required").WithDetail("field", "state_role")
	}
	return env.StateRole, nil
}

// DuplicateRequest copies requests into new drafts.
type DuplicateRequest struct {
	IDs []id.ID `json:"ids" binding:"required,min=1,max=100"`
}

// DuplicateResponse lists the created drafts in request order.
type DuplicateResponse struct {
	IDs []id.ID `json:"ids"`
}

// SplitRequest moves lines into a new request.
type SplitRequest struct {
	LineIDs []id.ID `json:"detail_ids" binding:"required,min=1"`
}

// RoleResponse is returned by GET /purchase-requests/:id/role.
type RoleResponse struct {
	Role pr.Role `json:"role"`
}

// StagesResponse lists the stages a request can be sent back to.
type StagesResponse struct {
	Stages []string `json:"stages"`
}
