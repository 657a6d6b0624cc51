package purchase_request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tenant"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/approver"
	"procura/internal/domain/audit"
	"procura/internal/domain/lookup"
	"procura/internal/domain/notification"
	"procura/internal/domain/pricing"
	"procura/internal/domain/workflow"
	"procura/pkg/logger"
)

const entityName = "purchase request"

// DefaultNavigatorTimeout bounds every navigator and approver lookup.
const DefaultNavigatorTimeout = 5 * time.Second

// LookupResolver decorates ids with display data.
type LookupResolver interface {
	Resolve(ctx context.Context, keys lookup.Keys) (*lookup.Result, error)
}

// HODChecker answers whether a department has a head assigned.
type HODChecker interface {
	HasHOD(ctx context.Context, departmentID string) (bool, error)
}

// ActionResolver computes user_action for a stage.
type ActionResolver interface {
	Resolve(ctx context.Context, stage workflow.StageInfo, dept approver.DepartmentRef) (*approver.UserAction, error)
}

// Config holds service settings.
type Config struct {
	// PRNoPattern is the numerator template for permanent numbers.
	PRNoPattern      string
	NavigatorTimeout time.Duration
}

// Deps are the collaborators of Service. TxManager may be nil; the tenant
// transaction manager is then taken from the request context.
type Deps struct {
	Repo        Repository
	Workflows   lookup.WorkflowLoader
	Lookups     LookupResolver
	Departments HODChecker
	Navigator   workflow.Navigator
	Approvers   ActionResolver
	Numerator   numerator.Generator
	Publisher   notification.Publisher
	Audit       audit.Recorder
	TxManager   tx.Manager
}

// Result is returned by status-changing operations. Intents were already
// handed to the publisher inside the transaction.
type Result struct {
	ID      id.ID                 `json:"id"`
	PRNo    string                `json:"pr_no"`
	Status  Status                `json:"pr_status"`
	Intents []notification.Intent `json:"-"`
}

// Service provides business operations for purchase requests.
// In Database-per-Tenant architecture, TxManager is obtained from context.
type Service struct {
	repo        Repository
	workflows   lookup.WorkflowLoader
	lookups     LookupResolver
	departments HODChecker
	navigator   workflow.Navigator
	approvers   ActionResolver
	numerator   numerator.Generator
	publisher   notification.Publisher
	audit       audit.Recorder
	txManager   tx.Manager
	hooks       *domain.HookRegistry[*PurchaseRequest]

	numberCfg  numerator.Config
	navTimeout time.Duration
	now        func() time.Time
}

// NewService creates a new purchase request service.
func NewService(deps Deps, cfg Config) *Service {
	if cfg.NavigatorTimeout <= 0 {
		cfg.NavigatorTimeout = DefaultNavigatorTimeout
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop
	}
	return &Service{
		repo:        deps.Repo,
		workflows:   deps.Workflows,
		lookups:     deps.Lookups,
		departments: deps.Departments,
		navigator:   deps.Navigator,
		approvers:   deps.Approvers,
		numerator:   deps.Numerator,
		publisher:   deps.Publisher,
		audit:       deps.Audit,
		txManager:   deps.TxManager,
		hooks:       domain.NewHookRegistry[*PurchaseRequest](),
		numberCfg:   numerator.PurchaseRequestConfig(cfg.PRNoPattern),
		navTimeout:  cfg.NavigatorTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*PurchaseRequest] {
	return s.hooks
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	return txm.RunInTransaction(ctx, fn)
}

// Create creates a draft purchase request.
func (s *Service) Create(ctx context.Context, in CreatePayload) (*PurchaseRequest, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.lookups.Resolve(ctx, KeysFromCreatorPayload(in.HeaderInput, in.Lines, actor.ID))
	if err != nil {
		return nil, err
	}

	now := s.now()
	pr := &PurchaseRequest{
		BaseDocument:  entity.NewBaseDocument(actor.ID),
		PRNo:          draftNumber(now),
		Status:        StatusDraft,
		RequestorID:   actor.ID,
		RequestorName: actor.Name,
	}
	if u := res.User(); u != nil && u.Name != "" {
		pr.RequestorName = u.Name
	}
	if err := s.applyHeader(ctx, pr, in.HeaderInput, res, "create"); err != nil {
		return nil, err
	}

	for _, li := range in.Lines {
		l := newLine(pr.ID, actor.ID)
		l.applyInput(li, res)
		pr.Lines = append(pr.Lines, l)
	}
	pr.Renumber()
	if err := repriceAll(pr.Lines); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, pr); err != nil {
			return fmt.Errorf("create purchase request: %w", err)
		}
		if err := s.repo.InsertLines(ctx, pr.Lines); err != nil {
			return fmt.Errorf("insert lines: %w", err)
		}
		if err := s.record(ctx, audit.ActionCreate, pr, map[string]any{
			"pr_no":      pr.PRNo,
			"line_count": len(pr.Lines),
		}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterCreate, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request created",
		"id", pr.ID,
		"pr_no", pr.PRNo,
		"lines", len(pr.Lines))
	return pr, nil
}

// SaveAsCreator replaces the header of a draft and applies line changes.
func (s *Service) SaveAsCreator(ctx context.Context, prID id.ID, in SaveAsCreatorPayload) (*PurchaseRequest, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := s.GetByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if DeriveRole(pr, actor.ID, "") != workflow.RoleCreate {
		return nil, apperror.NewUnauthorized("Only the requestor can edit a draft purchase request")
	}
	if err := checkVersion(pr, in.DocVersion); err != nil {
		return nil, err
	}
	expected := pr.DocVersion

	inputs := make([]LineInput, 0, len(in.Lines.Add)+len(in.Lines.Update))
	inputs = append(inputs, in.Lines.Add...)
	for _, u := range in.Lines.Update {
		inputs = append(inputs, u.LineInput)
	}
	res, err := s.lookups.Resolve(ctx, KeysFromCreatorPayload(in.HeaderInput, inputs, ""))
	if err != nil {
		return nil, err
	}
	if err := s.applyHeader(ctx, pr, in.HeaderInput, res, "save"); err != nil {
		return nil, err
	}

	now := s.now()
	removed := make(map[id.ID]struct{}, len(in.Lines.Remove))
	for _, lineID := range in.Lines.Remove {
		if pr.Line(lineID) == nil {
			return nil, apperror.NewNotFound("purchase request line", lineID)
		}
		removed[lineID] = struct{}{}
	}
	for _, u := range in.Lines.Update {
		l := pr.Line(u.ID)
		if l == nil {
			return nil, apperror.NewNotFound("purchase request line", u.ID)
		}
		if _, ok := removed[u.ID]; ok {
			return nil, apperror.NewInvalidArgument("a line cannot be updated and removed in the same save").
				WithDetail("line_id", u.ID.String())
		}
		l.applyInput(u.LineInput, res)
		l.touch(actor.ID, now)
	}

	kept := pr.Lines[:0]
	for _, l := range pr.Lines {
		if _, ok := removed[l.ID]; !ok {
			kept = append(kept, l)
		}
	}
	existing := len(kept)
	pr.Lines = kept
	for _, li := range in.Lines.Add {
		l := newLine(pr.ID, actor.ID)
		l.applyInput(li, res)
		pr.Lines = append(pr.Lines, l)
	}
	pr.Renumber()
	if err := repriceAll(pr.Lines); err != nil {
		return nil, err
	}
	pr.Touch(actor.ID)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, pr, expected); err != nil {
			return err
		}
		if len(in.Lines.Remove) > 0 {
			if err := s.repo.DeleteLines(ctx, in.Lines.Remove); err != nil {
				return fmt.Errorf("delete lines: %w", err)
			}
		}
		if existing > 0 {
			if err := s.repo.UpdateLines(ctx, pr.Lines[:existing]); err != nil {
				return fmt.Errorf("update lines: %w", err)
			}
		}
		if len(pr.Lines) > existing {
			if err := s.repo.InsertLines(ctx, pr.Lines[existing:]); err != nil {
				return fmt.Errorf("insert lines: %w", err)
			}
		}
		if err := s.record(ctx, audit.ActionUpdate, pr, map[string]any{
			"role":    string(workflow.RoleCreate),
			"added":   len(in.Lines.Add),
			"updated": len(in.Lines.Update),
			"removed": len(in.Lines.Remove),
		}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterUpdate, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request saved",
		"id", pr.ID,
		"role", workflow.RoleCreate,
		"doc_version", pr.DocVersion)
	return pr, nil
}

// SaveAsApprover applies sourcing and pricing edits of a purchaser or approver.
func (s *Service) SaveAsApprover(ctx context.Context, prID id.ID, in SaveAsApproverPayload) (*PurchaseRequest, error) {
	if err := ValidatePayload(&in); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := s.GetByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	role, err := s.roleOf(ctx, pr, actor.ID)
	if err != nil {
		return nil, err
	}
	if role != workflow.RolePurchase && role != workflow.RoleApprove {
		return nil, apperror.NewUnauthorized("You are not allowed to edit this purchase request at its current stage").
			WithDetail("role", string(role))
	}
	if err := checkVersion(pr, in.DocVersion); err != nil {
		return nil, err
	}
	expected := pr.DocVersion

	changed, err := s.applyEdits(ctx, pr, in.Lines, actor)
	if err != nil {
		return nil, err
	}
	pr.Touch(actor.ID)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, pr, expected); err != nil {
			return err
		}
		if err := s.repo.UpdateLines(ctx, changed); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}
		if err := s.record(ctx, audit.ActionUpdate, pr, map[string]any{
			"role":    string(role),
			"updated": len(changed),
		}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterUpdate, pr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase request saved",
		"id", pr.ID,
		"role", role,
		"doc_version", pr.DocVersion)
	return pr, nil
}

// applyEdits applies approver line edits and returns the changed lines.
func (s *Service) applyEdits(ctx context.Context, pr *PurchaseRequest, edits []ApproverLineEdit, actor Actor) ([]Line, error) {
	if len(edits) == 0 {
		return nil, nil
	}
	res, err := s.lookups.Resolve(ctx, KeysFromApproverLines(edits))
	if err != nil {
		return nil, err
	}
	now := s.now()
	changed := make([]Line, 0, len(edits))
	for _, e := range edits {
		l := pr.Line(e.ID)
		if l == nil {
			return nil, apperror.NewNotFound("purchase request line", e.ID)
		}
		l.applyEdit(e, res)
		if e.changesPricing() {
			if err := l.Reprice(); err != nil {
				return nil, err
			}
		}
		l.touch(actor.ID, now)
		changed = append(changed, *l)
	}
	return changed, nil
}

// GetByID retrieves a purchase request with lines.
func (s *Service) GetByID(ctx context.Context, prID id.ID) (*PurchaseRequest, error) {
	pr, err := s.repo.GetByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, prID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	pr.Lines = lines
	return pr, nil
}

// List returns purchase request headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseRequest], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListMyPending returns in-progress requests the caller may act on.
func (s *Service) ListMyPending(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*PurchaseRequest], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return domain.ListResult[*PurchaseRequest]{}, err
	}
	filter.Normalize()
	return s.repo.ListPendingFor(ctx, actor.ID, filter)
}

// CountMyPending counts in-progress requests the caller may act on.
func (s *Service) CountMyPending(ctx context.Context) (int64, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.CountPendingFor(ctx, actor.ID)
}

// Delete removes a draft and its lines.
func (s *Service) Delete(ctx context.Context, prID id.ID) error {
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	pr, err := s.repo.GetByID(ctx, prID)
	if err != nil {
		return err
	}
	if pr.Status != StatusDraft {
		return apperror.NewInvalidArgument("Only draft purchase requests can be deleted").
			WithDetail("pr_status", string(pr.Status))
	}
	if pr.RequestorID != actor.ID {
		return apperror.NewUnauthorized("Only the requestor can delete a draft purchase request")
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, prID); err != nil {
			return err
		}
		if err := s.record(ctx, audit.ActionDelete, pr, map[string]any{"pr_no": pr.PRNo}); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterDelete, pr)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "purchase request deleted", "id", prID, "pr_no", pr.PRNo)
	return nil
}

// LineHistory returns the action trail of one line.
func (s *Service) LineHistory(ctx context.Context, prID, lineID id.ID) ([]LineHistoryEntry, error) {
	l, err := s.repo.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if l.PurchaseRequestID != prID {
		return nil, apperror.NewNotFound("purchase request line", lineID)
	}
	return l.History, nil
}

// PriceInfo recomputes the price breakdown of one line.
func (s *Service) PriceInfo(ctx context.Context, prID, lineID id.ID) (pricing.Breakdown, error) {
	l, err := s.repo.GetLine(ctx, lineID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if l.PurchaseRequestID != prID {
		return pricing.Breakdown{}, apperror.NewNotFound("purchase request line", lineID)
	}
	b, err := pricing.Calculate(l.PricingInput())
	if err != nil {
		return pricing.Breakdown{}, apperror.NewInvalidArgument(err.Error()).WithCause(err)
	}
	return b, nil
}

// PreviousStages lists the stages a request can be sent back to.
func (s *Service) PreviousStages(ctx context.Context, prID id.ID) ([]string, error) {
	pr, err := s.repo.GetByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	return workflow.AvailablePreviousStages(pr.VisitedStages(), pr.WorkflowCurrentStage), nil
}

// RoleFor returns the role callerID holds on a request.
func (s *Service) RoleFor(ctx context.Context, prID id.ID, callerID string) (Role, error) {
	pr, err := s.repo.GetByID(ctx, prID)
	if err != nil {
		return "", err
	}
	return s.roleOf(ctx, pr, callerID)
}

func (s *Service) roleOf(ctx context.Context, pr *PurchaseRequest, callerID string) (Role, error) {
	if pr.Status == StatusDraft && pr.RequestorID == callerID {
		return workflow.RoleCreate, nil
	}
	if pr.WorkflowID == nil || pr.WorkflowCurrentStage == "" || !pr.UserAction.CanExecute(callerID) {
		return workflow.RoleViewOnly, nil
	}
	def, err := s.loadWorkflow(ctx, pr)
	if err != nil {
		return "", err
	}
	var stageRole Role
	err = s.navigate(ctx, func(ctx context.Context) error {
		var err error
		stageRole, err = s.navigator.StageRole(ctx, def, pr.WorkflowCurrentStage)
		return err
	})
	if err != nil {
		return "", err
	}
	return DeriveRole(pr, callerID, stageRole), nil
}

// applyHeader copies draft header fields, decorates names, enforces the HOD
// requirement and previews the first workflow stage.
func (s *Service) applyHeader(ctx context.Context, pr *PurchaseRequest, h HeaderInput, res *lookup.Result, verb string) error {
	pr.PRDate = h.PRDate
	pr.WorkflowID = h.WorkflowID
	pr.DepartmentID = h.DepartmentID
	pr.Description = h.Description
	pr.Note = h.Note
	pr.Info = h.Info
	pr.Dimension = h.Dimension

	pr.DepartmentName = ""
	if h.DepartmentID != nil {
		d := res.Department()
		if d == nil {
			return apperror.NewNotFound("department", *h.DepartmentID)
		}
		pr.DepartmentName = d.Name
	}

	pr.WorkflowName = ""
	pr.WorkflowCurrentStage = ""
	if h.WorkflowID == nil {
		return nil
	}
	def := res.Workflow()
	if def == nil {
		return apperror.NewNotFound("workflow", *h.WorkflowID)
	}
	pr.WorkflowName = def.Name

	if h.DepartmentID != nil && def.HasHODStage() {
		ok, err := s.departments.HasHOD(ctx, h.DepartmentID.String())
		if err != nil {
			return apperror.NewServiceUnavailable("department directory", err)
		}
		if !ok {
			return apperror.NewInvalidArgument(fmt.Sprintf(
				"Cannot %s PR with this workflow: The workflow requires HOD approval, but department %q "+
					"does not have a Head of Department (HOD) assigned. Please assign an HOD to this "+
					"department or select a different workflow.", verb, pr.DepartmentName)).
				WithDetail("department_id", h.DepartmentID.String())
		}
	}

	return s.navigate(ctx, func(ctx context.Context) error {
		first, err := s.navigator.InitialStage(ctx, def)
		if err != nil {
			return err
		}
		pr.WorkflowCurrentStage = first.Name
		return nil
	})
}

func (s *Service) loadWorkflow(ctx context.Context, pr *PurchaseRequest) (*workflow.Definition, error) {
	if pr.WorkflowID == nil {
		return nil, apperror.NewInvalidArgument("Purchase request has no workflow")
	}
	def, err := s.workflows.GetByID(ctx, *pr.WorkflowID)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// navigate runs fn under the navigator timeout. Failures that are not
// business rule rejections become SERVICE_UNAVAILABLE.
func (s *Service) navigate(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewServiceUnavailable("workflow navigator", err).WithDetail("timeout", s.navTimeout.String())
	}
	return apperror.NewServiceUnavailable("workflow navigator", err)
}

func (s *Service) resolveUserAction(ctx context.Context, pr *PurchaseRequest, stage workflow.StageInfo) (*approver.UserAction, error) {
	var ua *approver.UserAction
	err := s.navigate(ctx, func(ctx context.Context) error {
		var err error
		ua, err = s.approvers.Resolve(ctx, stage, pr.departmentRef())
		return err
	})
	if err != nil {
		return nil, err
	}
	if ua.IsEmpty() {
		logger.Warn(ctx, "no users assigned to stage",
			"id", pr.ID,
			"stage", stage.Name)
	}
	return ua, nil
}

func (s *Service) publish(ctx context.Context, intents []notification.Intent) error {
	if s.publisher == nil || len(intents) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, intents); err != nil {
		return fmt.Errorf("publish notifications: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, pr *PurchaseRequest, changes map[string]any) error {
	if changes == nil {
		changes = map[string]any{}
	}
	changes["pr_status"] = string(pr.Status)
	changes["doc_version"] = pr.DocVersion
	err := s.audit.Record(ctx, audit.Entry{
		EntityType: EntityType,
		EntityID:   pr.ID,
		Action:     action,
		Changes:    changes,
		Metadata:   map[string]any{"pr_no": pr.PRNo},
	})
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

func actorFrom(ctx context.Context) (Actor, error) {
	u := appctx.GetUser(ctx)
	if u == nil || u.UserID == "" {
		return Actor{}, apperror.NewUnauthenticated("user not found in context")
	}
	return Actor{ID: u.UserID, Name: u.DisplayName()}, nil
}

// checkVersion rejects a payload built from a stale copy. Zero means the
// client did not send a version.
func checkVersion(pr *PurchaseRequest, expected int) error {
	if expected > 0 && expected != pr.DocVersion {
		return apperror.NewConcurrentModification(entityName, pr.ID).
			WithDetail("expected_version", expected).
			WithDetail("actual_version", pr.DocVersion)
	}
	return nil
}

func draftNumber(t time.Time) string {
	return "draft-" + t.Format("20060102150405")
}

func repriceAll(lines []Line) error {
	for i := range lines {
		if err := lines[i].Reprice(); err != nil {
			return err
		}
	}
	return nil
}
