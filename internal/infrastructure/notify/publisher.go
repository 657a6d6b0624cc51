package notify

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain/notification"
	"procura/internal/infrastructure/storage/postgres"
)

const aggregatePurchaseRequest = "purchase_request"

// EventWriter appends events to the outbox in the caller's transaction.
type EventWriter interface {
	PublishBatch(ctx context.Context, events []postgres.DomainEvent) error
}

// OutboxPublisher implements notification.Publisher on top of sys_outbox.
type OutboxPublisher struct {
	outbox EventWriter
}

func NewOutboxPublisher(outbox EventWriter) *OutboxPublisher {
	return &OutboxPublisher{outbox: outbox}
}

// Publish writes one outbox row per intent. Intents without recipients are
// dropped.
func (p *OutboxPublisher) Publish(ctx context.Context, intents []notification.Intent) error {
	events := make([]postgres.DomainEvent, 0, len(intents))
	for _, in := range intents {
		if len(in.ToUserIDs) == 0 {
			continue
		}
		var aggregateID id.ID
		if raw, ok := in.Metadata["pr_id"].(string); ok {
			aggregateID, _ = id.Parse(raw)
		}
		events = append(events, postgres.DomainEvent{
			AggregateType: aggregatePurchaseRequest,
			AggregateID:   aggregateID,
			EventType:     string(in.Kind),
			Payload:       in,
		})
	}
	return p.outbox.PublishBatch(ctx, events)
}

var _ notification.Publisher = (*OutboxPublisher)(nil)
