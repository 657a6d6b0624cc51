package numerator

import (
	"context"
	"time"
)

// Generator mints running codes. Implementations live in the infrastructure layer
// and obtain the tenant connection from ctx.
type Generator interface {
	// GetNextNumber allocates the next running number of the series for
	// issueDate and renders it through cfg.Pattern.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, issueDate time.Time) (string, error)

	// SetNextNumber overrides the last used number (data migration).
	SetNextNumber(ctx context.Context, cfg Config, issueDate time.Time, value int64) error
}
