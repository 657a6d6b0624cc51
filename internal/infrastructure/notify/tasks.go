// Package notify moves notification intents from the transactional outbox to
// the asynq queue and from the queue into the recipient inboxes.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"procura/internal/domain/notification"
)

const (
	// TaskTypeSend delivers one intent to its recipients' inboxes.
	TaskTypeSend = "notification:send"

	// QueueNotifications is the asynq queue carrying TaskTypeSend.
	QueueNotifications = "notifications"
)

// SendPayload is the asynq task body. The business unit travels with the
// task because the worker serves every tenant.
type SendPayload struct {
	BUCode string              `json:"bu_code"`
	Intent notification.Intent `json:"intent"`
}

// NewSendTask builds a TaskTypeSend task.
func NewSendTask(p SendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TaskTypeSend, err)
	}
	return asynq.NewTask(TaskTypeSend, data), nil
}
