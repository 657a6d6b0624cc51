package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/tenant"
	"procura/internal/domain/workflow"
)

type countingRepo struct {
	defs  map[id.ID]*workflow.Definition
	reads int
}

func (r *countingRepo) GetByID(_ context.Context, wfID id.ID) (*workflow.Definition, error) {
	r.reads++
	def, ok := r.defs[wfID]
	if !ok {
		return nil, apperror.NewNotFound("workflow", wfID)
	}
	out := *def
	return &out, nil
}

func (r *countingRepo) Update(_ context.Context, def *workflow.Definition) error {
	def.Version++
	out := *def
	r.defs[def.ID] = &out
	return nil
}

func newStore(t *testing.T) (*WorkflowStore, *countingRepo, *miniredis.Miniredis, id.ID) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	wfID := id.New()
	repo := &countingRepo{defs: map[id.ID]*workflow.Definition{
		wfID: {ID: wfID, Name: "General", Version: 1, Data: workflow.Data{
			Stages: []workflow.Stage{{Name: "Create", Role: workflow.RoleCreate}},
		}},
	}}
	return NewWorkflowStore(repo, New(client, time.Minute)), repo, mr, wfID
}

func tenantCtx(code string) context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{Code: code})
}

func TestWorkflowStore_CachesPerTenant(t *testing.T) {
	store, repo, mr, wfID := newStore(t)
	ctx := tenantCtx("bu1")

	for i := 0; i < 3; i++ {
		def, err := store.GetByID(ctx, wfID)
		require.NoError(t, err)
		assert.Equal(t, "General", def.Name)
		assert.Equal(t, []string{"Create"}, def.StageNames())
	}
	assert.Equal(t, 1, repo.reads)
	assert.True(t, mr.Exists("procura:bu1:workflow:"+wfID.String()))
	assert.Equal(t, time.Minute, mr.TTL("procura:bu1:workflow:"+wfID.String()))

	_, err := store.GetByID(tenantCtx("bu2"), wfID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads, "other tenants do not share entries")
}

func TestWorkflowStore_UpdateInvalidates(t *testing.T) {
	store, repo, _, wfID := newStore(t)
	ctx := tenantCtx("bu1")

	def, err := store.GetByID(ctx, wfID)
	require.NoError(t, err)

	def.Name = "Renamed"
	require.NoError(t, store.Update(ctx, def))

	got, err := store.GetByID(ctx, wfID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 2, repo.reads)
}

func TestWorkflowStore_RedisDown(t *testing.T) {
	store, repo, mr, wfID := newStore(t)
	mr.Close()

	def, err := store.GetByID(tenantCtx("bu1"), wfID)
	require.NoError(t, err)
	assert.Equal(t, "General", def.Name)
	assert.Equal(t, 1, repo.reads)

	_, err = store.GetByID(tenantCtx("bu1"), id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestCache_Disabled(t *testing.T) {
	var c *Cache
	hit, err := c.GetJSON(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, c.SetJSON(context.Background(), "k", 1))
	assert.NoError(t, c.Delete(context.Background(), "k"))
	assert.Equal(t, "procura:_:a:b", Key(context.Background(), "a", "b"))
}
