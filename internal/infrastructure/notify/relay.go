package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"procura/internal/domain/notification"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer is the outbox handler for one business unit: every relayed
// message becomes a TaskTypeSend task.
type Enqueuer struct {
	client   TaskEnqueuer
	buCode   string
	maxRetry int
}

func NewEnqueuer(client TaskEnqueuer, buCode string, maxRetry int) *Enqueuer {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &Enqueuer{client: client, buCode: buCode, maxRetry: maxRetry}
}

// Handle implements postgres.OutboxHandler. The outbox message id is the
// task id, so a message relayed twice is queued once.
func (e *Enqueuer) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	var intent notification.Intent
	if err := json.Unmarshal(msg.Payload, &intent); err != nil {
		return fmt.Errorf("decode intent %s: %w", msg.ID, err)
	}

	task, err := NewSendTask(SendPayload{BUCode: e.buCode, Intent: intent})
	if err != nil {
		return err
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(e.maxRetry),
		asynq.TaskID(msg.ID.String()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Debug(ctx, "notification already queued", "outbox_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskTypeSend, err)
	}
	return nil
}

var _ postgres.OutboxHandler = (*Enqueuer)(nil)
