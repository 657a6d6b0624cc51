package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
)

func TestAssignedUser_UnmarshalBothShapes(t *testing.T) {
	var users []AssignedUser
	err := json.Unmarshal([]byte(`["u-1", {"user_id": "u-2", "email": "a@b.c"}]`), &users)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u-1", users[0].UserID)
	assert.Equal(t, "u-2", users[1].UserID)
	assert.Equal(t, "a@b.c", users[1].Email)
}

func TestDefinition_HasHODStage(t *testing.T) {
	def := testDefinition()
	assert.True(t, def.HasHODStage())

	def.Data.Stages[1].IsHOD = false
	assert.False(t, def.HasHODStage())
}

func TestValidateDefinitionJSON(t *testing.T) {
	valid := `{
		"stages": [
			{"name": "Create", "role": "create", "assigned_users": []},
			{"name": "HOD", "role": "approve", "is_hod": true, "assigned_users": ["u-1"]},
			{"name": "Done", "role": "view_only"}
		],
		"routing_rules": [
			{"trigger_stage": "Create", "condition": {"field": "amount", "operator": "lt", "value": ["100"]},
			 "action": {"type": "NEXT_STAGE", "parameters": {"target_stage": "Done"}}}
		]
	}`

	data, err := ValidateDefinitionJSON([]byte(valid))
	require.NoError(t, err)
	assert.Len(t, data.Stages, 3)
	assert.Equal(t, "u-1", data.Stages[1].AssignedUsers[0].UserID)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"no stages", `{"stages": []}`},
		{"bad role", `{"stages": [{"name": "A", "role": "boss"}]}`},
		{"bad operator", `{"stages": [{"name": "A", "role": "create"}], "routing_rules": [
			{"trigger_stage": "A", "condition": {"field": "x", "operator": "like", "value": []},
			 "action": {"type": "NEXT_STAGE", "parameters": {"target_stage": "A"}}}]}`},
		{"unknown target", `{"stages": [{"name": "A", "role": "create"}], "routing_rules": [
			{"trigger_stage": "A", "condition": {"field": "x", "operator": "eq", "value": ["1"]},
			 "action": {"type": "NEXT_STAGE", "parameters": {"target_stage": "Z"}}}]}`},
		{"duplicate stage", `{"stages": [{"name": "A", "role": "create"}, {"name": "A", "role": "approve"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateDefinitionJSON([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidationFailure))
		})
	}
}
