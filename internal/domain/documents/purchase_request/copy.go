package purchase_request

import (
	"context"
	"fmt"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/domain"
	"procura/internal/domain/approver"
	"procura/internal/domain/audit"
	"procura/pkg/logger"
)

// Duplicate creates a fresh draft from each source request. Workflow progress,
// approvals and pricing are not carried over.
func (s *Service) Duplicate(ctx context.Context, prIDs []id.ID) ([]id.ID, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := s.repo.GetByIDs(ctx, prIDs)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		notFound := apperror.NewNotFound(entityName, prIDs)
		notFound.Message = "No purchase requests found to duplicate"
		return nil, notFound
	}

	now := s.now()
	copies := make([]*PurchaseRequest, 0, len(sources))
	for _, src := range sources {
		lines, err := s.repo.GetLines(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("get lines: %w", err)
		}
		dup := &PurchaseRequest{
			BaseDocument:   entity.NewBaseDocument(actor.ID),
			PRNo:           draftNumber(now),
			PRDate:         now,
			Status:         StatusDraft,
			WorkflowID:     src.WorkflowID,
			WorkflowName:   src.WorkflowName,
			RequestorID:    actor.ID,
			RequestorName:  actor.Name,
			DepartmentID:   src.DepartmentID,
			DepartmentName: src.DepartmentName,
			Description:    src.Description,
			Info:           src.Info,
			Dimension:      src.Dimension,
		}
		for _, l := range lines {
			dup.Lines = append(dup.Lines, requestedCopy(l, dup.ID, actor.ID))
		}
		dup.Renumber()
		copies = append(copies, dup)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		for _, dup := range copies {
			if err := s.repo.Create(ctx, dup); err != nil {
				return fmt.Errorf("create duplicate: %w", err)
			}
			if err := s.repo.InsertLines(ctx, dup.Lines); err != nil {
				return fmt.Errorf("insert lines: %w", err)
			}
			if err := s.record(ctx, audit.ActionDuplicate, dup, map[string]any{
				"line_count": len(dup.Lines),
			}); err != nil {
				return err
			}
			if err := s.hooks.Run(ctx, domain.AfterCreate, dup); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]id.ID, len(copies))
	for i, dup := range copies {
		out[i] = dup.ID
	}
	logger.Info(ctx, "purchase requests duplicated",
		"requested", len(prIDs),
		"created", len(out))
	return out, nil
}

// requestedCopy keeps only the requestor side of a line.
func requestedCopy(src Line, prID id.ID, userID string) Line {
	l := newLine(prID, userID)
	l.LocationID = src.LocationID
	l.LocationCode = src.LocationCode
	l.LocationName = src.LocationName
	l.DeliveryPointID = src.DeliveryPointID
	l.DeliveryPointName = src.DeliveryPointName
	l.DeliveryDate = src.DeliveryDate
	l.ProductID = src.ProductID
	l.ProductName = src.ProductName
	l.ProductLocalName = src.ProductLocalName
	l.Description = src.Description
	l.RequestedQty = src.RequestedQty
	l.RequestedUnitID = src.RequestedUnitID
	l.RequestedUnitName = src.RequestedUnitName
	l.RequestedUnitConversionFactor = src.RequestedUnitConversionFactor
	return l
}

// Split moves the given lines into a new request that is otherwise a full
// copy of the source, including its workflow position.
func (s *Service) Split(ctx context.Context, prID id.ID, lineIDs []id.ID) (*SplitResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	src, err := s.GetByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if src.Status != StatusDraft && src.Status != StatusInProgress {
		return nil, apperror.NewInvalidArgument(fmt.Sprintf("Cannot split a %s purchase request", src.Status))
	}

	selected := make(map[id.ID]struct{}, len(lineIDs))
	for _, lineID := range lineIDs {
		if src.Line(lineID) != nil {
			selected[lineID] = struct{}{}
		}
	}
	if len(selected) == 0 {
		return nil, apperror.NewInvalidArgument("No valid detail IDs provided for split")
	}
	if len(selected) == len(src.Lines) {
		return nil, apperror.NewInvalidArgument("Cannot split all details. At least one detail must remain in the original PR")
	}
	expected := src.DocVersion

	split := *src
	split.BaseDocument = entity.NewBaseDocument(actor.ID)
	split.WorkflowHistory = append([]HistoryEntry(nil), src.WorkflowHistory...)
	if src.UserAction != nil {
		ua := approver.UserAction{Execute: append([]approver.Profile(nil), src.UserAction.Execute...)}
		split.UserAction = &ua
	}
	split.Lines = nil

	var remaining []Line
	for _, l := range src.Lines {
		if _, ok := selected[l.ID]; ok {
			l.PurchaseRequestID = split.ID
			l.touch(actor.ID, s.now())
			split.Lines = append(split.Lines, l)
			continue
		}
		remaining = append(remaining, l)
	}
	src.Lines = remaining
	src.Renumber()
	split.Renumber()
	src.Touch(actor.ID)

	if src.Status == StatusDraft {
		split.PRNo = draftNumber(s.now())
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if src.Status != StatusDraft {
			prNo, err := s.numerator.GetNextNumber(ctx, s.numberCfg, numerator.DefaultOptions(), split.PRDate)
			if err != nil {
				return fmt.Errorf("generate pr_no: %w", err)
			}
			split.PRNo = prNo
		}
		if err := s.repo.Create(ctx, &split); err != nil {
			return fmt.Errorf("create split: %w", err)
		}
		if err := s.repo.Update(ctx, src, expected); err != nil {
			return err
		}
		// Moved lines change parent, so both sides are written as updates.
		if err := s.repo.UpdateLines(ctx, append(append([]Line(nil), split.Lines...), src.Lines...)); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}
		if err := s.record(ctx, audit.ActionSplit, src, map[string]any{
			"new_pr_id":   split.ID.String(),
			"moved_lines": len(split.Lines),
		}); err != nil {
			return err
		}
		return s.record(ctx, audit.ActionSplit, &split, map[string]any{
			"original_pr_id": src.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request split",
		"id", src.ID,
		"new_id", split.ID,
		"new_pr_no", split.PRNo,
		"moved", len(split.Lines))
	return &SplitResult{
		OriginalID:       src.ID,
		NewID:            split.ID,
		NewPRNo:          split.PRNo,
		SplitDetailCount: len(split.Lines),
	}, nil
}
