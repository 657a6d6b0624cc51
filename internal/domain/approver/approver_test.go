package approver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/domain/workflow"
)

type fakeDepartments struct {
	hods    map[string][]string
	members map[string][]string
	err     error
}

func (f *fakeDepartments) HasHOD(_ context.Context, id string) (bool, error) {
	return len(f.hods[id]) > 0, f.err
}

func (f *fakeDepartments) HODUserIDs(_ context.Context, id string) ([]string, error) {
	return f.hods[id], f.err
}

func (f *fakeDepartments) MemberUserIDs(_ context.Context, id string) ([]string, error) {
	return f.members[id], f.err
}

type fakeProfiles struct {
	calls [][]string
}

func (f *fakeProfiles) ProfilesByIDs(_ context.Context, ids []string) ([]Profile, error) {
	f.calls = append(f.calls, ids)
	out := make([]Profile, 0, len(ids))
	// Reverse order to check the resolver restores it.
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == "ghost" {
			continue
		}
		out = append(out, Profile{UserID: ids[i], FirstName: ids[i]})
	}
	return out, nil
}

var kitchen = DepartmentRef{ID: "dep-1", Name: "Kitchen"}

func TestResolver_UnionAndDedup(t *testing.T) {
	depts := &fakeDepartments{
		hods:    map[string][]string{"dep-1": {"hod", "a"}},
		members: map[string][]string{"dep-1": {"m1", "a", "m2"}},
	}
	profiles := &fakeProfiles{}
	r := NewResolver(depts, profiles)

	stage := workflow.StageInfo{
		Name:          "HOD",
		IsHOD:         true,
		CreatorAccess: workflow.CreatorAccessAllDepartment,
		AssignedUsers: []workflow.AssignedUser{{UserID: "a"}, {UserID: "b"}, {UserID: "a"}},
	}

	action, err := r.Resolve(context.Background(), stage, kitchen)
	require.NoError(t, err)
	require.NotNil(t, action)

	assert.Equal(t, []string{"a", "b", "m1", "m2", "hod"}, action.UserIDs())
	require.Len(t, profiles.calls, 1)
	assert.Equal(t, []string{"a", "b", "m1", "m2", "hod"}, profiles.calls[0])
	assert.Equal(t, "Kitchen", action.Execute[0].Department.Name)
	assert.True(t, action.CanExecute("hod"))
	assert.False(t, action.CanExecute("stranger"))
}

func TestResolver_OnlyAssigned(t *testing.T) {
	r := NewResolver(&fakeDepartments{members: map[string][]string{"dep-1": {"m1"}}}, &fakeProfiles{})
	stage := workflow.StageInfo{
		CreatorAccess: "only_creator",
		AssignedUsers: []workflow.AssignedUser{{UserID: "x"}},
	}
	action, err := r.Resolve(context.Background(), stage, kitchen)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, action.UserIDs())
}

func TestResolver_EmptyIsNil(t *testing.T) {
	profiles := &fakeProfiles{}
	r := NewResolver(&fakeDepartments{}, profiles)

	action, err := r.Resolve(context.Background(), workflow.StageInfo{Name: "Nobody", IsHOD: true}, kitchen)
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Empty(t, profiles.calls, "no identity lookup for an empty set")

	action, err = r.Resolve(context.Background(), workflow.StageInfo{
		AssignedUsers: []workflow.AssignedUser{{UserID: "ghost"}},
	}, kitchen)
	require.NoError(t, err)
	assert.Nil(t, action)
}

func TestResolver_DirectoryFailureIsRetryable(t *testing.T) {
	r := NewResolver(&fakeDepartments{err: errors.New("connection reset")}, &fakeProfiles{})
	_, err := r.Resolve(context.Background(), workflow.StageInfo{IsHOD: true}, kitchen)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeServiceUnavailable))
}

func TestUserAction_Scan(t *testing.T) {
	var ua UserAction
	require.NoError(t, ua.Scan([]byte(`{"execute":[{"user_id":"u1"}]}`)))
	assert.Equal(t, []string{"u1"}, ua.UserIDs())

	require.NoError(t, ua.Scan([]byte(`[]`)))
	assert.True(t, ua.IsEmpty())

	var nilAction *UserAction
	assert.False(t, nilAction.CanExecute("u1"))
}
