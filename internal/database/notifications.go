package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification types recorded for submission activity.
const (
	NotificationSubmissionReceived = "submission_received"
	NotificationSubmissionApproved = "submission_approved"
	NotificationSubmissionRejected = "submission_rejected"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    int        `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Data      string     `json:"data"` // JSON string
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateNotification creates a new notification
func (s *service) CreateNotification(ctx context.Context, notification *Notification) error {
	data := notification.Data
	if data == "" {
		data = "{}"
	}

	query := `
		INSERT INTO notifications (user_id, type, title, message, data, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx,
		query,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		data,
		notification.ExpiresAt,
	).Scan(&notification.ID, &notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetUserNotifications retrieves unexpired notifications for a user
func (s *service) GetUserNotifications(ctx context.Context, userID int, limit int) ([]*Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, data, is_read, created_at, expires_at
		FROM notifications
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*Notification{}
	for rows.Next() {
		notification := &Notification{}
		err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.Data,
			&notification.IsRead,
			&notification.CreatedAt,
			&notification.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}

	return notifications, rows.Err()
}

// MarkNotificationAsRead marks a notification as read
func (s *service) MarkNotificationAsRead(ctx context.Context, notificationID uuid.UUID, userID int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}

	return nil
}
