// Package notification_repo stores delivered notifications per recipient.
package notification_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain/notification"
	"procura/internal/infrastructure/storage/postgres"
)

const notificationTable = "notifications"

var notificationColumns = postgres.ExtractDBColumns[notification.Notification]()

// Inbox implements notification.Inbox.
type Inbox struct{}

func NewInbox() *Inbox {
	return &Inbox{}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func storeQuery(in notification.Intent, now time.Time) squirrel.InsertBuilder {
	q := builder().
		Insert(notificationTable).
		Columns("id", "to_user_id", "from_user_id", "title", "message", "type", "metadata", "is_read", "created_at")
	for _, to := range in.ToUserIDs {
		q = q.Values(id.New(), to, in.FromUserID, in.Title, in.Message, in.Type, in.Metadata, false, now)
	}
	return q
}

// Store writes one row per recipient.
func (r *Inbox) Store(ctx context.Context, in notification.Intent) error {
	if len(in.ToUserIDs) == 0 {
		return nil
	}
	sql, args, err := storeQuery(in, time.Now().UTC()).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

func listQuery(userID string, unreadOnly bool, limit, offset int) squirrel.SelectBuilder {
	q := builder().
		Select(notificationColumns...).
		From(notificationTable).
		Where(squirrel.Eq{"to_user_id": userID})
	if unreadOnly {
		q = q.Where(squirrel.Eq{"is_read": false})
	}
	q = q.OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

// ListForUser returns the newest notifications first.
func (r *Inbox) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]notification.Notification, error) {
	sql, args, err := listQuery(userID, unreadOnly, limit, offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []notification.Notification{}
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead flags one of the user's notifications as read.
func (r *Inbox) MarkRead(ctx context.Context, userID, notificationID string) error {
	nID, err := id.Parse(notificationID)
	if err != nil {
		return apperror.NewNotFound("notification", notificationID)
	}
	sql, args, err := builder().
		Update(notificationTable).
		Set("is_read", true).
		Where(squirrel.Eq{"id": nID, "to_user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := postgres.QuerierFromContext(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("notification", notificationID)
	}
	return nil
}

var _ notification.Inbox = (*Inbox)(nil)
