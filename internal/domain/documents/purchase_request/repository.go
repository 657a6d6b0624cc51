package purchase_request

import (
	"context"
	"time"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines persistence for purchase requests.
// Every method runs on the transaction found in ctx, if any.
type Repository interface {
	// Header operations
	Create(ctx context.Context, pr *PurchaseRequest) error
	GetByID(ctx context.Context, prID id.ID) (*PurchaseRequest, error)
	GetByIDs(ctx context.Context, prIDs []id.ID) ([]*PurchaseRequest, error)
	// Update writes the header when the stored doc_version equals
	// expectedVersion and returns CONFLICT otherwise.
	Update(ctx context.Context, pr *PurchaseRequest, expectedVersion int) error
	// Delete removes the header; lines cascade.
	Delete(ctx context.Context, prID id.ID) error

	// Line operations
	GetLines(ctx context.Context, prID id.ID) ([]Line, error)
	GetLine(ctx context.Context, lineID id.ID) (*Line, error)
	InsertLines(ctx context.Context, lines []Line) error
	UpdateLines(ctx context.Context, lines []Line) error
	DeleteLines(ctx context.Context, lineIDs []id.ID) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseRequest], error)
	// ListPendingFor returns in-progress requests whose user_action lists userID.
	ListPendingFor(ctx context.Context, userID string, filter domain.ListFilter) (domain.ListResult[*PurchaseRequest], error)
	CountPendingFor(ctx context.Context, userID string) (int64, error)
}

// ListFilter for filtering purchase requests.
type ListFilter struct {
	domain.ListFilter

	Statuses     []Status
	RequestorID  string
	DepartmentID *id.ID
	WorkflowID   *id.ID
	Stage        string
	DateFrom     *time.Time
	DateTo       *time.Time
}
