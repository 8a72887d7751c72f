package postgres

import (
	"context"
	"fmt"

	"coin-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create stores an unread, unsent in-app notification.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	data, err := marshalNullable(n.Data, len(n.Data) == 0)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, kind, title, body, data, read, sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Body, data, n.Read, n.Sent, n.CreatedAt,
	)
	if err != nil {
		return classify("insert notification", err)
	}
	return nil
}

// MarkSent flags the notification as handed to push delivery.
func (r *NotificationRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return classify("mark notification sent", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}
	return nil
}

