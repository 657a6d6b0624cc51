package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/pkg/logger"
)

// UpdateInput replaces a workflow's name and graph.
type UpdateInput struct {
	Name       string          `json:"name"`
	IsActive   *bool           `json:"is_active"`
	Data       json.RawMessage `json:"data"`
	DocVersion int             `json:"doc_version"`
}

// Service reads and replaces workflow definitions.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a workflow definition.
func (s *Service) Get(ctx context.Context, wfID id.ID) (*Definition, error) {
	return s.repo.GetByID(ctx, wfID)
}

// Update validates the new graph against the definition schema and stores
// it. A positive DocVersion must match the stored version.
func (s *Service) Update(ctx context.Context, wfID id.ID, in UpdateInput) (*Definition, error) {
	def, err := s.repo.GetByID(ctx, wfID)
	if err != nil {
		return nil, err
	}
	if in.DocVersion > 0 && in.DocVersion != def.Version {
		return nil, apperror.NewConcurrentModification("workflow", wfID).
			WithDetail("expected_version", in.DocVersion).
			WithDetail("actual_version", def.Version)
	}

	if len(in.Data) > 0 {
		data, err := ValidateDefinitionJSON(in.Data)
		if err != nil {
			return nil, err
		}
		def.Data = *data
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		def.Name = name
	}
	if in.IsActive != nil {
		def.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}
	logger.Info(ctx, "workflow updated",
		"workflow_id", wfID,
		"stages", len(def.Data.Stages),
		"doc_version", def.Version)
	return def, nil
}
