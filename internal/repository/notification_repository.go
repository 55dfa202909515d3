package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// NotificationRepository serves both the delivery worker and the user-facing
// notification inbox. Fan-out rows are written by
// WorkflowRepository.CommitTransition.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, entity_kind, entity_id, recipient_id, channel, template_name, metadata,
       status, attempts, last_error, sent_at, read_at, created_at, updated_at`

// ClaimPending atomically marks up to limit undelivered notifications as
// delivering and returns them. SKIP LOCKED keeps concurrent workers from
// claiming the same rows; the status flip makes the claim durable, and
// delivering rows whose updated_at is older than staleBefore are treated as
// abandoned by a dead worker and claimed again.
func (r *NotificationRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`UPDATE notifications SET status = $1, updated_at = $2
	WHERE id IN (
		SELECT id FROM notifications
		WHERE status = $3 OR (status = $1 AND updated_at < $4)
		ORDER BY created_at
		LIMIT $5
		FOR UPDATE SKIP LOCKED
	)
	RETURNING %s`, notificationColumns)

	var records []models.NotificationRecord
	if err := r.db.SelectContext(ctx, &records, query,
		models.NotificationStatusDelivering, time.Now().UTC(), models.NotificationStatusPending, staleBefore, limit,
	); err != nil {
		return nil, fmt.Errorf("claim pending notifications: %w", err)
	}
	return records, nil
}

// MarkSent records a successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE notifications SET status = $1, sent_at = $2, updated_at = $2, attempts = attempts + 1 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, models.NotificationStatusSent, now, id); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter; the row returns to pending until
// maxAttempts is exhausted.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, deliveryErr error, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	const query = `UPDATE notifications
	SET attempts = attempts + 1,
	    last_error = $1,
	    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE $4 END,
	    updated_at = $6
	WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query,
		deliveryErr.Error(), maxAttempts, models.NotificationStatusFailed, models.NotificationStatusPending, id, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// ListByRecipient returns a user's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]models.NotificationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE recipient_id = $1`, notificationColumns)
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	var records []models.NotificationRecord
	if err := r.db.SelectContext(ctx, &records, query, recipientID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return records, nil
}

// MarkRead stamps a notification as read by its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	const query = `UPDATE notifications SET read_at = $1 WHERE id = $2 AND recipient_id = $3 AND read_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, recipientID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// CountUnread returns the recipient's unread notification count.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
