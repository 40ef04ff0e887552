package repository

import (
	"context"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// PostgresNotificationRepository stores in-app notifications.
type PostgresNotificationRepository struct {
	q Querier
}

// NewNotificationRepository creates a notification repository.
func NewNotificationRepository(q Querier) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{q: q}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, message, entity_type, entity_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_read, created_at
	`

	err := r.q.QueryRow(ctx, query,
		n.UserID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return writeError(err, "failed to create notification")
	}
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, entity_type, entity_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	out := make([]*Notification, 0)
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.EntityType, &n.EntityID, &n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan notification")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notifications")
	}
	return out, nil
}

// MarkRead flags a notification owned by userID as read.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return writeError(err, "failed to mark notification read")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("notification", id)
	}
	return nil
}
