package purchase_request

import (
	"context"
	"fmt"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/domain"
	"procura/internal/domain/audit"
	"procura/internal/domain/notification"
	"procura/internal/domain/workflow"
	"procura/pkg/logger"
)

const defaultSubmitMessage = "submit for approval"

// loadInStatus loads a request with lines and reports NOT_FOUND unless it is
// in status. This keeps a second submit or approve of the same request from
// being applied twice.
func (s *Service) loadInStatus(ctx context.Context, prID id.ID, status Status) (*PurchaseRequest, error) {
	pr, err := s.GetByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status != status {
		return nil, apperror.NewNotFound(entityName, prID).
			WithDetail("pr_status", string(status))
	}
	return pr, nil
}

func requireExecutor(pr *PurchaseRequest, actorID string) error {
	if !pr.UserAction.CanExecute(actorID) {
		return apperror.NewUnauthorized("You are not allowed to act on this purchase request at its current stage").
			WithDetail("stage", pr.WorkflowCurrentStage)
	}
	return nil
}

func subject(pr *PurchaseRequest, action string) notification.Subject {
	return notification.Subject{
		PRID:         pr.ID.String(),
		PRNo:         pr.PRNo,
		Action:       action,
		CurrentStage: pr.WorkflowCurrentStage,
	}
}

// Submit sends a draft into its workflow.
func (s *Service) Submit(ctx context.Context, prID id.ID, in SubmitPayload) (*Result, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := s.loadInStatus(ctx, prID, StatusDraft)
	if err != nil {
		return nil, err
	}
	if pr.RequestorID != actor.ID {
		return nil, apperror.NewUnauthorized("Only the requestor can submit a purchase request")
	}
	if err := checkVersion(pr, in.DocVersion); err != nil {
		return nil, err
	}
	if err := ValidateForSubmit(pr); err != nil {
		return nil, err
	}
	expected := pr.DocVersion

	def, err := s.loadWorkflow(ctx, pr)
	if err != nil {
		return nil, err
	}
	total := pr.Total()

	baseline := pr.WorkflowCurrentStage
	var nav *workflow.Navigation
	err = s.navigate(ctx, func(ctx context.Context) error {
		if baseline == "" {
			first, err := s.navigator.InitialStage(ctx, def)
			if err != nil {
				return err
			}
			baseline = first.Name
		}
		var err error
		nav, err = s.navigator.Forward(ctx, def, baseline, "", workflow.AmountRequest(total))
		return err
	})
	if err != nil {
		return nil, err
	}
	ua, err := s.resolveUserAction(ctx, pr, nav.CurrentStage)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pr.recordAction(LastActionSubmitted, actor, now, baseline, nav.CurrentStage.Name)
	pr.WorkflowPreviousStage = nav.PreviousStep
	pr.WorkflowCurrentStage = nav.CurrentStage.Name
	pr.WorkflowNextStage = nav.NextStageName()
	pr.UserAction = ua

	stage := pr.WorkflowPreviousStage
	decisions := decisionsByID(in.Lines)
	changed := make([]Line, 0, len(pr.Lines))
	for i := range pr.Lines {
		l := &pr.Lines[i]
		d := decisions[l.ID]
		if d.Status == LineApprove || l.StagesStatus.LastStatus() == LineApprove {
			continue
		}
		status := d.Status
		if status == "" {
			status = LineSubmit
		}
		message := d.Message
		switch {
		case status == LineSubmit:
			if message == "" {
				message = defaultSubmitMessage
			}
			l.StagesStatus = l.StagesStatus.Append(status, stage, message)
		case l.StagesStatus.PendingAt(stage):
			l.StagesStatus = l.StagesStatus.ReplaceLast(status, message, stage)
		default:
			l.StagesStatus = l.StagesStatus.Append(status, stage, message)
		}
		l.addHistory(status, stage, message, actor, now)

		l.ApprovedQty = l.RequestedQty
		l.ApprovedUnitID = l.RequestedUnitID
		l.ApprovedUnitName = l.RequestedUnitName
		l.ApprovedUnitConversionFactor = l.RequestedUnitConversionFactor
		if err := l.Reprice(); err != nil {
			return nil, err
		}
		l.touch(actor.ID, now)
		changed = append(changed, *l)
	}

	if err := pr.transition(StatusInProgress); err != nil {
		return nil, err
	}
	pr.Touch(actor.ID)

	var intents []notification.Intent
	err = s.inTx(ctx, func(ctx context.Context) error {
		prNo, err := s.numerator.GetNextNumber(ctx, s.numberCfg, numerator.DefaultOptions(), pr.PRDate)
		if err != nil {
			return fmt.Errorf("generate pr_no: %w", err)
		}
		pr.PRNo = prNo
		if !ua.IsEmpty() {
			intents = []notification.Intent{notification.Submitted(
				subject(pr, string(LastActionSubmitted)), ua.UserIDs(), actor.ID, actor.Name)}
		}

		if err := s.repo.Update(ctx, pr, expected); err != nil {
			return err
		}
		if err := s.repo.UpdateLines(ctx, changed); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}
		if err := s.publish(ctx, intents); err != nil {
			return err
		}
		if err := s.record(ctx, audit.ActionSubmit, pr, map[string]any{
			"from_stage": baseline,
			"to_stage":   pr.WorkflowCurrentStage,
			"amount":     total.String(),
		}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterTransition, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request submitted",
		"id", pr.ID,
		"pr_no", pr.PRNo,
		"stage", pr.WorkflowCurrentStage)
	return &Result{ID: pr.ID, PRNo: pr.PRNo, Status: pr.Status, Intents: intents}, nil
}

// Approve moves a request to its next stage, or approves it at the last one.
func (s *Service) Approve(ctx context.Context, prID id.ID, in ApprovePayload) (*Result, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := s.loadInStatus(ctx, prID, StatusInProgress)
	if err != nil {
		return nil, err
	}
	if err := requireExecutor(pr, actor.ID); err != nil {
		return nil, err
	}
	if err := checkVersion(pr, in.DocVersion); err != nil {
		return nil, err
	}
	expected := pr.DocVersion

	edits := make([]ApproverLineEdit, 0, len(in.Lines))
	decisions := make(map[id.ID]ApproveLine, len(in.Lines))
	for _, l := range in.Lines {
		decisions[l.ID] = l
		if line := pr.Line(l.ID); line != nil && line.StagesStatus.LastStatus() == LineReject {
			if l.hasChanges() {
				return nil, apperror.NewInvalidArgument("A rejected line cannot be edited").
					WithDetail("line_id", l.ID.String())
			}
			continue
		}
		edits = append(edits, l.ApproverLineEdit)
	}
	if _, err := s.applyEdits(ctx, pr, edits, actor); err != nil {
		return nil, err
	}

	def, err := s.loadWorkflow(ctx, pr)
	if err != nil {
		return nil, err
	}
	total := pr.Total()

	var nav *workflow.Navigation
	err = s.navigate(ctx, func(ctx context.Context) error {
		var err error
		nav, err = s.navigator.Forward(ctx, def, pr.WorkflowCurrentStage, pr.WorkflowPreviousStage, workflow.AmountRequest(total))
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := pr.WorkflowCurrentStage
	final := nav.IsFinal()
	if final {
		pr.recordAction(LastActionApproved, actor, now, nav.CurrentStage.Name, FinalStageMarker)
		pr.WorkflowPreviousStage = from
		pr.WorkflowCurrentStage = nav.CurrentStage.Name
		pr.WorkflowNextStage = FinalStageMarker
		pr.UserAction = nil
		if err := pr.transition(StatusApproved); err != nil {
			return nil, err
		}
	} else {
		ua, err := s.resolveUserAction(ctx, pr, nav.CurrentStage)
		if err != nil {
			return nil, err
		}
		pr.recordAction(LastActionApproved, actor, now, from, nav.CurrentStage.Name)
		pr.WorkflowPreviousStage = nav.PreviousStep
		pr.WorkflowCurrentStage = nav.CurrentStage.Name
		pr.WorkflowNextStage = nav.NextStageName()
		pr.UserAction = ua
	}

	stage := pr.WorkflowPreviousStage
	changed := make([]Line, 0, len(pr.Lines))
	for i := range pr.Lines {
		l := &pr.Lines[i]
		if l.StagesStatus.LastStatus() == LineReject {
			continue
		}
		d := decisions[l.ID]
		status := d.Status
		if status == "" {
			status = LineApprove
		}
		if l.StagesStatus.PendingAt(stage) {
			l.StagesStatus = l.StagesStatus.ReplaceLast(status, d.Message, stage)
		} else {
			l.StagesStatus = l.StagesStatus.Append(status, stage, d.Message)
		}
		l.addHistory(status, stage, d.Message, actor, now)
		l.touch(actor.ID, now)
		changed = append(changed, *l)
	}
	pr.Touch(actor.ID)

	subj := subject(pr, string(LastActionApproved))
	var intents []notification.Intent
	if final {
		intents = append(intents, notification.Approved(subj, pr.RequestorID, actor.ID, actor.Name))
	} else {
		intents = append(intents, notification.Progress(subj, pr.RequestorID, actor.ID, actor.Name))
		if !pr.UserAction.IsEmpty() {
			intents = append(intents, notification.PendingApproval(subj, pr.UserAction.UserIDs(), actor.ID))
		}
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, pr, expected); err != nil {
			return err
		}
		if err := s.repo.UpdateLines(ctx, changed); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}
		if err := s.publish(ctx, intents); err != nil {
			return err
		}
		if err := s.record(ctx, audit.ActionApprove, pr, map[string]any{
			"from_stage": from,
			"to_stage":   pr.WorkflowCurrentStage,
			"final":      final,
		}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterTransition, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request approved",
		"id", pr.ID,
		"pr_no", pr.PRNo,
		"stage", pr.WorkflowCurrentStage,
		"final", final)
	return &Result{ID: pr.ID, PRNo: pr.PRNo, Status: pr.Status, Intents: intents}, nil
}

// Review sends a request back to an earlier stage.
func (s *Service) Review(ctx context.Context, prID id.ID, in ReviewPayload) (*Result, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := s.loadInStatus(ctx, prID, StatusInProgress)
	if err != nil {
		return nil, err
	}
	if err := requireExecutor(pr, actor.ID); err != nil {
		return nil, err
	}
	if err := checkVersion(pr, in.DocVersion); err != nil {
		return nil, err
	}
	expected := pr.DocVersion

	def, err := s.loadWorkflow(ctx, pr)
	if err != nil {
		return nil, err
	}
	total := pr.Total()

	var nav *workflow.Navigation
	err = s.navigate(ctx, func(ctx context.Context) error {
		var err error
		nav, err = s.navigator.Back(ctx, def, pr.VisitedStages(), pr.WorkflowCurrentStage, in.DesStage, workflow.AmountRequest(total))
		return err
	})
	if err != nil {
		return nil, err
	}
	ua, err := s.resolveUserAction(ctx, pr, nav.CurrentStage)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := pr.WorkflowCurrentStage
	pr.recordAction(LastActionReviewed, actor, now, from, nav.CurrentStage.Name)
	pr.WorkflowPreviousStage = from
	pr.WorkflowCurrentStage = nav.CurrentStage.Name
	pr.WorkflowNextStage = nav.NextStep
	pr.UserAction = ua

	decisions := decisionsByID(in.Lines)
	changed := make([]Line, 0, len(pr.Lines))
	for i := range pr.Lines {
		l := &pr.Lines[i]
		d := decisions[l.ID]
		if d.Status == LineApprove {
			continue
		}
		l.addHistory(LineReview, from, d.Message, actor, now)
		if rewound, ok := l.StagesStatus.TruncateAfter(in.DesStage); ok {
			l.StagesStatus = rewound
		} else {
			logger.Debug(ctx, "line never reached review target",
				"line_id", l.ID,
				"stage", in.DesStage)
		}
		l.touch(actor.ID, now)
		changed = append(changed, *l)
	}
	pr.Touch(actor.ID)

	subj := subject(pr, string(LastActionReviewed))
	intents := []notification.Intent{
		notification.Returned(subj, pr.RequestorID, actor.ID, actor.Name),
	}
	if others := notification.Without(pr.UserAction.UserIDs(), pr.RequestorID); len(others) > 0 {
		intents = append(intents, notification.ReviewPending(subj, others, actor.ID))
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, pr, expected); err != nil {
			return err
		}
		if err := s.repo.UpdateLines(ctx, changed); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}
		if err := s.publish(ctx, intents); err != nil {
			return err
		}
		if err := s.record(ctx, audit.ActionReview, pr, map[string]any{
			"from_stage": from,
			"to_stage":   pr.WorkflowCurrentStage,
		}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterTransition, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request sent back",
		"id", pr.ID,
		"pr_no", pr.PRNo,
		"from", from,
		"to", pr.WorkflowCurrentStage)
	return &Result{ID: pr.ID, PRNo: pr.PRNo, Status: pr.Status, Intents: intents}, nil
}

// Reject voids a request. Nobody is notified.
func (s *Service) Reject(ctx context.Context, prID id.ID, in RejectPayload) (*Result, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := s.loadInStatus(ctx, prID, StatusInProgress)
	if err != nil {
		return nil, err
	}
	if err := requireExecutor(pr, actor.ID); err != nil {
		return nil, err
	}
	if err := checkVersion(pr, in.DocVersion); err != nil {
		return nil, err
	}
	expected := pr.DocVersion

	now := s.now()
	stage := pr.WorkflowCurrentStage
	decisions := decisionsByID(in.Lines)
	for i := range pr.Lines {
		l := &pr.Lines[i]
		d := decisions[l.ID]
		l.StagesStatus = l.StagesStatus.MarkAll(LineReject).Append(LineReject, stage, d.Message)
		l.addHistory(LineReject, stage, d.Message, actor, now)
		l.touch(actor.ID, now)
	}

	pr.recordAction(LastActionRejected, actor, now, stage, "")
	if err := pr.transition(StatusVoided); err != nil {
		return nil, err
	}
	pr.UserAction = nil
	pr.Touch(actor.ID)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, pr, expected); err != nil {
			return err
		}
		if err := s.repo.UpdateLines(ctx, pr.Lines); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}
		if err := s.record(ctx, audit.ActionReject, pr, map[string]any{"stage": stage}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterTransition, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request rejected",
		"id", pr.ID,
		"pr_no", pr.PRNo,
		"stage", stage)
	return &Result{ID: pr.ID, PRNo: pr.PRNo, Status: pr.Status}, nil
}
