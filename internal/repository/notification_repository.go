package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// NotificationRepository handles the notification outbox.
type NotificationRepository struct {
	db database.Querier
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db database.Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertNotification queues a notification row.
func (r *NotificationRepository) InsertNotification(ctx context.Context, n *models.Notification) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, expense_id, type, title, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, n.UserID, n.ExpenseID, n.Type, n.Title, n.Message).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// PendingNotifications returns undelivered rows that still have attempts left,
// oldest first. Rows are locked and skipped by concurrent dispatchers when the
// repository runs inside a transaction.
func (r *NotificationRepository) PendingNotifications(ctx context.Context, limit, maxAttempts int) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, expense_id, type, title, message, attempts, last_error, delivered_at, created_at
		FROM notifications
		WHERE delivered_at IS NULL AND attempts < $2
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ExpenseID, &n.Type, &n.Title, &n.Message, &n.Attempts,
			&n.LastError, &n.DeliveredAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}

// MarkDelivered records a successful delivery.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET delivered_at = NOW(), attempts = attempts + 1, last_error = ''
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return approval.NotFound("notification", id)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return approval.NotFound("notification", id)
	}
	return nil
}
