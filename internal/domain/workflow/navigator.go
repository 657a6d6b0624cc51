package workflow

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// StageInfo is the navigator's view of a stage.
type StageInfo struct {
	Name             string          `json:"name"`
	SLA              string          `json:"sla,omitempty"`
	SLAUnit          string          `json:"sla_unit,omitempty"`
	AssignedUsers    []AssignedUser  `json:"assigned_users"`
	HideFields       map[string]bool `json:"hide_fields,omitempty"`
	IsHOD            bool            `json:"is_hod"`
	Role             Role            `json:"role"`
	CreatorAccess    string          `json:"creator_access,omitempty"`
	AvailableActions []string        `json:"available_actions"`
}

// NewStageInfo builds the stage view; actions keep a stable order.
func NewStageInfo(s *Stage) StageInfo {
	info := StageInfo{
		Name:          s.Name,
		SLA:           s.SLA,
		SLAUnit:       s.SLAUnit,
		AssignedUsers: s.AssignedUsers,
		HideFields:    s.HideFields,
		IsHOD:         s.IsHOD,
		Role:          s.Role,
		CreatorAccess: s.CreatorAccess,
	}
	for _, name := range []string{ActionSubmit, ActionApprove, ActionReject, ActionSendBack} {
		if cfg, ok := s.AvailableActions[name]; ok && cfg.IsActive {
			info.AvailableActions = append(info.AvailableActions, name)
		}
	}
	return info
}

// Navigation is the result of moving to a stage.
type Navigation struct {
	// PreviousStep is the stage the move started from; empty for the first stage
	// and after a send-back.
	PreviousStep string `json:"workflow_previous_step"`

	CurrentStage StageInfo `json:"current_stage_info"`

	// NextStage is nil when CurrentStage is the last stage on the route.
	NextStage *StageInfo `json:"next_stage_info,omitempty"`
	NextStep  string     `json:"workflow_next_step"`
}

// IsFinal reports whether no stage follows the current one.
func (n *Navigation) IsFinal() bool {
	return n.NextStep == ""
}

// NextStageName returns the next stage name or empty string.
func (n *Navigation) NextStageName() string {
	if n.NextStage == nil {
		return ""
	}
	return n.NextStage.Name
}

// RequestData carries the request fields routing rules may test.
type RequestData map[string]any

// AmountRequest returns request data holding the purchase request total.
func AmountRequest(amount decimal.Decimal) RequestData {
	return RequestData{"amount": amount}
}

// split converts request values into the string and numeric views rules compare against.
func (r RequestData) split() (map[string]string, map[string]float64) {
	strs := make(map[string]string, len(r))
	nums := make(map[string]float64, len(r))
	for k, v := range r {
		switch val := v.(type) {
		case nil:
			continue
		case decimal.Decimal:
			strs[k] = val.String()
			nums[k] = val.InexactFloat64()
		case float64:
			strs[k] = strconv.FormatFloat(val, 'f', -1, 64)
			nums[k] = val
		case int:
			strs[k] = strconv.Itoa(val)
			nums[k] = float64(val)
		case int64:
			strs[k] = strconv.FormatInt(val, 10)
			nums[k] = float64(val)
		case bool:
			strs[k] = strconv.FormatBool(val)
		case string:
			strs[k] = val
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				nums[k] = f
			}
		}
	}
	return strs, nums
}

// Navigator moves purchase requests through a workflow definition.
type Navigator interface {
	// InitialStage returns the first stage of the workflow.
	InitialStage(ctx context.Context, def *Definition) (*StageInfo, error)

	// Forward moves from current to the stage routing selects for req.
	// previous may only be set together with current.
	Forward(ctx context.Context, def *Definition, current, previous string, req RequestData) (*Navigation, error)

	// Back sends the request back to target. When history is non-empty the
	// target must be one of the stages visited before current.
	Back(ctx context.Context, def *Definition, history []string, current, target string, req RequestData) (*Navigation, error)

	// StageRole returns the configured role of a stage.
	StageRole(ctx context.Context, def *Definition, stage string) (Role, error)
}

// AvailablePreviousStages lists stages visited before current, most recent
// first, without repeats. history is the visited stage sequence.
func AvailablePreviousStages(history []string, current string) []string {
	end := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] == current {
			end = i
			break
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for i := end - 1; i >= 0; i-- {
		name := history[i]
		if name == "" || name == current {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
