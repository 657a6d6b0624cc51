package cache

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain/workflow"
	"procura/pkg/logger"
)

// WorkflowStore caches workflow definitions in front of a repository.
// Redis failures degrade to the repository; they never fail a read.
type WorkflowStore struct {
	inner workflow.Repository
	cache *Cache
}

// NewWorkflowStore wraps inner with cache.
func NewWorkflowStore(inner workflow.Repository, cache *Cache) *WorkflowStore {
	return &WorkflowStore{inner: inner, cache: cache}
}

func workflowKey(ctx context.Context, wfID id.ID) string {
	return Key(ctx, "workflow", wfID.String())
}

func (s *WorkflowStore) GetByID(ctx context.Context, wfID id.ID) (*workflow.Definition, error) {
	key := workflowKey(ctx, wfID)

	var cached workflow.Definition
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Warn(ctx, "workflow cache read failed", "workflow_id", wfID, "error", err)
	}
	if hit {
		return &cached, nil
	}

	def, err := s.inner.GetByID(ctx, wfID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, def); err != nil {
		logger.Warn(ctx, "workflow cache write failed", "workflow_id", wfID, "error", err)
	}
	return def, nil
}

// Update writes through and drops the cached copy.
func (s *WorkflowStore) Update(ctx context.Context, def *workflow.Definition) error {
	if err := s.inner.Update(ctx, def); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, workflowKey(ctx, def.ID)); err != nil {
		logger.Warn(ctx, "workflow cache invalidation failed", "workflow_id", def.ID, "error", err)
	}
	return nil
}

var _ workflow.Repository = (*WorkflowStore)(nil)
