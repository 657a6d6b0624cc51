package workflow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

func testDefinition() *Definition {
	return &Definition{
		ID:      id.New(),
		Name:    "General PR",
		Version: 1,
		Data: Data{
			Stages: []Stage{
				{Name: "Create", Role: RoleCreate, AvailableActions: map[string]ActionConfig{
					ActionSubmit: {IsActive: true},
				}},
				{Name: "HOD", Role: RoleApprove, IsHOD: true, AvailableActions: map[string]ActionConfig{
					ActionApprove:  {IsActive: true},
					ActionReject:   {IsActive: true},
					ActionSendBack: {IsActive: true},
				}},
				{Name: "Purchase", Role: RolePurchase, AssignedUsers: []AssignedUser{{UserID: "buyer"}}},
				{Name: "GM", Role: RoleApprove, AssignedUsers: []AssignedUser{{UserID: "gm"}}},
				{Name: "Completed", Role: RoleViewOnly},
			},
			RoutingRules: []RoutingRule{
				{
					Name:         "small amounts skip GM",
					TriggerStage: "Purchase",
					Condition:    Condition{Field: "amount", Operator: "lt", Value: []string{"10000"}},
					Action:       RuleAction{Type: RuleActionNextStage, Parameters: RuleActionParameters{TargetStage: "Completed"}},
				},
			},
		},
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	return e
}

func TestEngine_InitialStage(t *testing.T) {
	e := newEngine(t)
	info, err := e.InitialStage(context.Background(), testDefinition())
	require.NoError(t, err)
	assert.Equal(t, "Create", info.Name)
	assert.Equal(t, []string{ActionSubmit}, info.AvailableActions)

	_, err = e.InitialStage(context.Background(), &Definition{Name: "empty"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestEngine_Forward_Sequential(t *testing.T) {
	e := newEngine(t)
	nav, err := e.Forward(context.Background(), testDefinition(), "Create", "", AmountRequest(decimal.NewFromInt(50000)))
	require.NoError(t, err)

	assert.Equal(t, "Create", nav.PreviousStep)
	assert.Equal(t, "HOD", nav.CurrentStage.Name)
	assert.True(t, nav.CurrentStage.IsHOD)
	assert.Equal(t, "Purchase", nav.NextStep)
	assert.Equal(t, "Purchase", nav.NextStageName())
	assert.False(t, nav.IsFinal())
}

func TestEngine_Forward_EmptyCurrentReturnsFirstStage(t *testing.T) {
	e := newEngine(t)
	nav, err := e.Forward(context.Background(), testDefinition(), "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Create", nav.CurrentStage.Name)
	assert.Empty(t, nav.PreviousStep)

	_, err = e.Forward(context.Background(), testDefinition(), "", "HOD", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestEngine_Forward_RoutingRules(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		wantNext string
	}{
		{"below threshold jumps", 9999, "Completed"},
		{"at threshold is sequential", 10000, "GM"},
		{"above threshold is sequential", 25000, "GM"},
	}

	e := newEngine(t)
	def := testDefinition()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav, err := e.Forward(context.Background(), def, "HOD", "Create", AmountRequest(decimal.NewFromInt(tt.amount)))
			require.NoError(t, err)
			assert.Equal(t, "Purchase", nav.CurrentStage.Name)
			assert.Equal(t, tt.wantNext, nav.NextStep)
		})
	}
}

func TestEngine_Forward_MissingFieldFallsBack(t *testing.T) {
	e := newEngine(t)
	nav, err := e.Forward(context.Background(), testDefinition(), "HOD", "", RequestData{})
	require.NoError(t, err)
	assert.Equal(t, "GM", nav.NextStep)
}

func TestEngine_Forward_LastStageIsFinal(t *testing.T) {
	e := newEngine(t)
	nav, err := e.Forward(context.Background(), testDefinition(), "GM", "Purchase", nil)
	require.NoError(t, err)
	assert.Equal(t, "Completed", nav.CurrentStage.Name)
	assert.True(t, nav.IsFinal())
	assert.Nil(t, nav.NextStage)

	_, err = e.Forward(context.Background(), testDefinition(), "Completed", "", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestEngine_Forward_UnknownStage(t *testing.T) {
	e := newEngine(t)
	_, err := e.Forward(context.Background(), testDefinition(), "Nope", "", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestEngine_Back(t *testing.T) {
	e := newEngine(t)
	def := testDefinition()
	history := []string{"Create", "HOD", "Purchase"}

	nav, err := e.Back(context.Background(), def, history, "Purchase", "HOD", nil)
	require.NoError(t, err)
	assert.Equal(t, "HOD", nav.CurrentStage.Name)
	assert.Equal(t, "Purchase", nav.NextStep)

	_, err = e.Back(context.Background(), def, history, "Purchase", "GM", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument), "GM was never visited")

	_, err = e.Back(context.Background(), def, nil, "Purchase", "Unknown", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
}

func TestEngine_StageRole(t *testing.T) {
	e := newEngine(t)
	role, err := e.StageRole(context.Background(), testDefinition(), "Purchase")
	require.NoError(t, err)
	assert.Equal(t, RolePurchase, role)
}

func TestEngine_CanceledContext(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Forward(ctx, testDefinition(), "Create", "", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConditionOperators(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		req  RequestData
		want bool
	}{
		{"eq match", Condition{"category", "eq", []string{"IT"}}, RequestData{"category": "IT"}, true},
		{"eq miss", Condition{"category", "eq", []string{"IT"}}, RequestData{"category": "FB"}, false},
		{"in match", Condition{"category", "in", []string{"IT", "FB"}}, RequestData{"category": "FB"}, true},
		{"not_eq", Condition{"category", "not_eq", []string{"IT"}}, RequestData{"category": "FB"}, true},
		{"not_eq missing field", Condition{"category", "not_eq", []string{"IT"}}, RequestData{}, false},
		{"eq on number", Condition{"amount", "eq", []string{"500"}}, AmountRequest(decimal.NewFromInt(500)), true},
		{"lte equal", Condition{"amount", "lte", []string{"500"}}, AmountRequest(decimal.NewFromInt(500)), true},
		{"gt", Condition{"amount", "gt", []string{"500.5"}}, AmountRequest(decimal.RequireFromString("500.51")), true},
		{"gte below", Condition{"amount", "gte", []string{"500"}}, RequestData{"amount": 499.99}, false},
		{"non numeric bound", Condition{"amount", "lt", []string{"abc"}}, RequestData{"amount": 1}, false},
		{"non numeric field", Condition{"amount", "lt", []string{"10"}}, RequestData{"amount": "abc"}, false},
		{"unknown operator", Condition{"amount", "between", []string{"1"}}, RequestData{"amount": 1}, false},
	}

	env, err := newConditionEnv()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := compileRules(env, []RoutingRule{{Name: tt.name, Condition: tt.cond}})
			require.NoError(t, err)
			strs, nums := tt.req.split()
			got, err := rules[0].matches(strs, nums)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailablePreviousStages(t *testing.T) {
	history := []string{"Create", "HOD", "Purchase", "HOD", "Purchase", "GM"}
	assert.Equal(t, []string{"Purchase", "HOD", "Create"}, AvailablePreviousStages(history, "GM"))
	assert.Nil(t, AvailablePreviousStages([]string{"Create"}, "Create"))
}
