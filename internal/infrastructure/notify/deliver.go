package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"procura/internal/domain/notification"
	"procura/pkg/logger"
)

// TenantScope runs fn with the tenant database of buCode bound to ctx.
type TenantScope func(ctx context.Context, buCode string, fn func(ctx context.Context) error) error

// Deliverer consumes TaskTypeSend tasks into the tenant inbox.
type Deliverer struct {
	scope TenantScope
	inbox notification.Inbox
}

func NewDeliverer(scope TenantScope, inbox notification.Inbox) *Deliverer {
	return &Deliverer{scope: scope, inbox: inbox}
}

// Register adds the handler to an asynq mux.
func (d *Deliverer) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeSend, d.HandleSend)
}

// HandleSend stores the intent. Malformed payloads are not retried; every
// other failure is returned so asynq retries with backoff.
func (d *Deliverer) HandleSend(ctx context.Context, t *asynq.Task) error {
	var p SendPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TaskTypeSend, err, asynq.SkipRetry)
	}
	if p.BUCode == "" || len(p.Intent.ToUserIDs) == 0 {
		return fmt.Errorf("%s without tenant or recipients: %w", TaskTypeSend, asynq.SkipRetry)
	}

	err := d.scope(ctx, p.BUCode, func(ctx context.Context) error {
		return d.inbox.Store(ctx, p.Intent)
	})
	if err != nil {
		logger.Warn(ctx, "notification delivery failed",
			"bu_code", p.BUCode,
			"kind", p.Intent.Kind,
			"error", err)
		return err
	}
	logger.Debug(ctx, "notification delivered",
		"bu_code", p.BUCode,
		"kind", p.Intent.Kind,
		"recipients", len(p.Intent.ToUserIDs))
	return nil
}
