package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"riskwatch/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type NotificationRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewNotificationRepository(pool PgxPool, tracer trace.Tracer) *NotificationRepository {
	return &NotificationRepository{pool: pool, tracer: tracer}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	ctx, span := r.tracer.Start(ctx, "notification-repo.create-notification")
	defer span.End()

	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("encode notification metadata: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, message, metadata)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		n.UserID, n.Message, meta,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *NotificationRepository) ListNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "notification-repo.list-notifications")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, metadata, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var meta []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &meta, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of notification %d: %w", n.ID, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNotification removes a notification addressed to userID.
func (r *NotificationRepository) DeleteNotification(ctx context.Context, id, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "notification-repo.delete-notification")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
