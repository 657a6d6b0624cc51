package purchase_request

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/approver"
	"procura/internal/domain/audit"
	"procura/internal/domain/lookup"
	"procura/internal/domain/notification"
	"procura/internal/domain/workflow"
)

// memRepo is an in-memory Repository with the same version semantics as
// the PostgreSQL one.
type memRepo struct {
	mu      sync.Mutex
	headers map[id.ID]PurchaseRequest
	lines   map[id.ID]Line
}

func newMemRepo() *memRepo {
	return &memRepo{headers: map[id.ID]PurchaseRequest{}, lines: map[id.ID]Line{}}
}

func cloneLine(l Line) Line {
	l.StagesStatus = l.StagesStatus.clone()
	l.History = append([]LineHistoryEntry(nil), l.History...)
	return l
}

func cloneHeader(pr PurchaseRequest) PurchaseRequest {
	pr.WorkflowHistory = append([]HistoryEntry(nil), pr.WorkflowHistory...)
	pr.Lines = nil
	return pr
}

func (r *memRepo) Create(_ context.Context, pr *PurchaseRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers[pr.ID] = cloneHeader(*pr)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, prID id.ID) (*PurchaseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.headers[prID]
	if !ok {
		return nil, apperror.NewNotFound(entityName, prID)
	}
	out := cloneHeader(pr)
	return &out, nil
}

func (r *memRepo) GetByIDs(ctx context.Context, prIDs []id.ID) ([]*PurchaseRequest, error) {
	var out []*PurchaseRequest
	for _, prID := range prIDs {
		pr, err := r.GetByID(ctx, prID)
		if apperror.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, pr *PurchaseRequest, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.headers[pr.ID]
	if !ok || stored.DocVersion != expectedVersion {
		return apperror.NewConcurrentModification(entityName, pr.ID)
	}
	r.headers[pr.ID] = cloneHeader(*pr)
	return nil
}

func (r *memRepo) Delete(_ context.Context, prID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.headers[prID]; !ok {
		return apperror.NewNotFound(entityName, prID)
	}
	delete(r.headers, prID)
	for lineID, l := range r.lines {
		if l.PurchaseRequestID == prID {
			delete(r.lines, lineID)
		}
	}
	return nil
}

func (r *memRepo) GetLines(_ context.Context, prID id.ID) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, l := range r.lines {
		if l.PurchaseRequestID == prID {
			out = append(out, cloneLine(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNo < out[j].SequenceNo })
	return out, nil
}

func (r *memRepo) GetLine(_ context.Context, lineID id.ID) (*Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("purchase request line", lineID)
	}
	out := cloneLine(l)
	return &out, nil
}

func (r *memRepo) InsertLines(_ context.Context, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range lines {
		r.lines[l.ID] = cloneLine(l)
	}
	return nil
}

func (r *memRepo) UpdateLines(ctx context.Context, lines []Line) error {
	return r.InsertLines(ctx, lines)
}

func (r *memRepo) DeleteLines(_ context.Context, lineIDs []id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lineID := range lineIDs {
		delete(r.lines, lineID)
	}
	return nil
}

func (r *memRepo) List(_ context.Context, filter ListFilter) (domain.ListResult[*PurchaseRequest], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*PurchaseRequest
	for _, pr := range r.headers {
		if filter.RequestorID != "" && pr.RequestorID != filter.RequestorID {
			continue
		}
		out := cloneHeader(pr)
		items = append(items, &out)
	}
	return domain.ListResult[*PurchaseRequest]{Items: items, TotalCount: int64(len(items)), Limit: filter.Limit}, nil
}

func (r *memRepo) ListPendingFor(_ context.Context, userID string, filter domain.ListFilter) (domain.ListResult[*PurchaseRequest], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*PurchaseRequest
	for _, pr := range r.headers {
		if pr.Status == StatusInProgress && pr.UserAction.CanExecute(userID) {
			out := cloneHeader(pr)
			items = append(items, &out)
		}
	}
	return domain.ListResult[*PurchaseRequest]{Items: items, TotalCount: int64(len(items)), Limit: filter.Limit}, nil
}

func (r *memRepo) CountPendingFor(ctx context.Context, userID string) (int64, error) {
	res, err := r.ListPendingFor(ctx, userID, domain.ListFilter{})
	return res.TotalCount, err
}

// masterSource serves a fixed set of master data.
type masterSource struct {
	products   []lookup.Product
	units      []lookup.Ref
	locations  []lookup.Ref
	vendors    []lookup.Ref
	taxes      []lookup.TaxProfile
	currencies []lookup.Currency
	depts      map[id.ID]*lookup.Ref
}

func (m *masterSource) Products(context.Context, []id.ID) ([]lookup.Product, error) {
	return m.products, nil
}
func (m *masterSource) Vendors(context.Context, []id.ID) ([]lookup.Ref, error) { return m.vendors, nil }
func (m *masterSource) Locations(context.Context, []id.ID) ([]lookup.Ref, error) {
	return m.locations, nil
}
func (m *masterSource) Units(context.Context, []id.ID) ([]lookup.Ref, error) { return m.units, nil }
func (m *masterSource) Currencies(context.Context, []id.ID) ([]lookup.Currency, error) {
	return m.currencies, nil
}
func (m *masterSource) DeliveryPoints(context.Context, []id.ID) ([]lookup.Ref, error) {
	return nil, nil
}
func (m *masterSource) PriceListDetails(context.Context, []id.ID) ([]lookup.PriceListDetail, error) {
	return nil, nil
}
func (m *masterSource) TaxProfiles(context.Context, []id.ID) ([]lookup.TaxProfile, error) {
	return m.taxes, nil
}
func (m *masterSource) Department(_ context.Context, depID id.ID) (*lookup.Ref, error) {
	return m.depts[depID], nil
}
func (m *masterSource) User(_ context.Context, userID string) (*lookup.User, error) {
	return &lookup.User{ID: userID, Name: "Rita Requestor"}, nil
}

type workflowStore map[id.ID]*workflow.Definition

func (w workflowStore) GetByID(_ context.Context, wfID id.ID) (*workflow.Definition, error) {
	def, ok := w[wfID]
	if !ok {
		return nil, apperror.NewNotFound("workflow", wfID)
	}
	return def, nil
}

type hodMap map[string]bool

func (h hodMap) HasHOD(_ context.Context, departmentID string) (bool, error) {
	return h[departmentID], nil
}

// stageUsers resolves user_action from a fixed stage to users table.
type stageUsers map[string][]string

func (s stageUsers) Resolve(_ context.Context, stage workflow.StageInfo, dept approver.DepartmentRef) (*approver.UserAction, error) {
	ids := s[stage.Name]
	if len(ids) == 0 {
		return nil, nil
	}
	ua := &approver.UserAction{}
	for _, uid := range ids {
		ua.Execute = append(ua.Execute, approver.Profile{UserID: uid, FirstName: uid, Department: &dept})
	}
	return ua, nil
}

type capturePublisher struct {
	intents []notification.Intent
}

func (p *capturePublisher) Publish(_ context.Context, intents []notification.Intent) error {
	p.intents = append(p.intents, intents...)
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	published *capturePublisher
	audits    []audit.Entry

	def     *workflow.Definition
	deptID  id.ID
	noHOD   id.ID
	product id.ID
	unit    id.ID
	loc     id.ID
	vendor  id.ID
}

const (
	requestorID = "req-1"
	hodID       = "hod-1"
	buyerID     = "buyer-1"
	gmID        = "gm-1"
)

var prDate = time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)

func testWorkflow() *workflow.Definition {
	return &workflow.Definition{
		ID:       id.New(),
		Name:     "General PR",
		IsActive: true,
		Version:  1,
		Data: workflow.Data{
			Stages: []workflow.Stage{
				{Name: "Create", Role: workflow.RoleCreate},
				{Name: "HOD", Role: workflow.RoleApprove, IsHOD: true},
				{Name: "Purchase", Role: workflow.RolePurchase},
				{Name: "GM", Role: workflow.RoleApprove},
				{Name: "Completed", Role: workflow.RoleViewOnly},
			},
			RoutingRules: []workflow.RoutingRule{{
				Name:         "small amounts skip GM",
				TriggerStage: "Purchase",
				Condition:    workflow.Condition{Field: "amount", Operator: "lt", Value: []string{"10000"}},
				Action: workflow.RuleAction{
					Type:       workflow.RuleActionNextStage,
					Parameters: workflow.RuleActionParameters{TargetStage: "Completed"},
				},
			}},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := workflow.NewEngine()
	require.NoError(t, err)

	f := &fixture{
		repo:      newMemRepo(),
		published: &capturePublisher{},
		def:       testWorkflow(),
		deptID:    id.New(),
		noHOD:     id.New(),
		product:   id.New(),
		unit:      id.New(),
		loc:       id.New(),
		vendor:    id.New(),
	}
	source := &masterSource{
		products:  []lookup.Product{{Ref: lookup.Ref{ID: f.product, Code: "P-1", Name: "Printer paper"}, LocalName: "Papier"}},
		units:     []lookup.Ref{{ID: f.unit, Name: "Box"}},
		locations: []lookup.Ref{{ID: f.loc, Code: "MAIN", Name: "Main store"}},
		vendors:   []lookup.Ref{{ID: f.vendor, Name: "Paper Co"}},
		depts: map[id.ID]*lookup.Ref{
			f.deptID: {ID: f.deptID, Name: "Finance"},
			f.noHOD:  {ID: f.noHOD, Name: "Kitchen"},
		},
	}
	workflows := workflowStore{f.def.ID: f.def}

	f.svc = NewService(Deps{
		Repo:        f.repo,
		Workflows:   workflows,
		Lookups:     lookup.NewResolver(source, workflows),
		Departments: hodMap{f.deptID.String(): true},
		Navigator:   engine,
		Approvers: stageUsers{
			"HOD":      {hodID},
			"Purchase": {buyerID},
			"GM":       {gmID},
		},
		Numerator: &numerator.MockGenerator{},
		Publisher: f.published,
		Audit: audit.RecorderFunc(func(_ context.Context, e audit.Entry) error {
			f.audits = append(f.audits, e)
			return nil
		}),
		TxManager: tx.Passthrough,
	}, Config{})
	return f
}

func as(userID string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID, Name: userID})
}

func (f *fixture) lineInput(qty, price int64) LineInput {
	p := decimal.NewFromInt(price)
	return LineInput{
		ProductID:       &f.product,
		LocationID:      &f.loc,
		RequestedQty:    decimal.NewFromInt(qty),
		RequestedUnitID: &f.unit,
		Price:           &p,
	}
}

func (f *fixture) createPayload(lines ...LineInput) CreatePayload {
	wf, dept := f.def.ID, f.deptID
	return CreatePayload{
		HeaderInput: HeaderInput{
			PRDate:       prDate,
			WorkflowID:   &wf,
			DepartmentID: &dept,
			Description:  "Office supplies",
		},
		Lines: lines,
	}
}

// create makes a draft with the given lines as the requestor.
func (f *fixture) create(t *testing.T, lines ...LineInput) *PurchaseRequest {
	t.Helper()
	pr, err := f.svc.Create(as(requestorID), f.createPayload(lines...))
	require.NoError(t, err)
	return pr
}

func (f *fixture) submitted(t *testing.T, lines ...LineInput) *PurchaseRequest {
	t.Helper()
	pr := f.create(t, lines...)
	_, err := f.svc.Submit(as(requestorID), pr.ID, SubmitPayload{})
	require.NoError(t, err)
	return f.reload(t, pr.ID)
}

func (f *fixture) reload(t *testing.T, prID id.ID) *PurchaseRequest {
	t.Helper()
	pr, err := f.svc.GetByID(context.Background(), prID)
	require.NoError(t, err)
	return pr
}

func stageNames(log StageLog) []string {
	out := make([]string, len(log))
	for i, e := range log {
		out[i] = e.Name + ":" + string(e.Status)
	}
	return out
}
