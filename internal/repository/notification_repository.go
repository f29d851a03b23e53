package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldvault/support-messaging/internal/domain"
)

// NotificationRepository manages durable notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientType domain.RecipientType, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientType domain.RecipientType, recipientID string) error
	MarkActioned(ctx context.Context, id string) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_type, recipient_id, type, title, body, link_ref, priority, action_required)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.RecipientType,
		n.RecipientID,
		n.Type,
		n.Title,
		n.Body,
		n.LinkRef,
		n.Priority,
		n.ActionRequired,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
        SELECT id, recipient_type, recipient_id, type, title, body, link_ref, priority,
               action_required, actioned, read_at, created_at
        FROM notifications WHERE id=$1`
	var n domain.Notification
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.RecipientType,
		&n.RecipientID,
		&n.Type,
		&n.Title,
		&n.Body,
		&n.LinkRef,
		&n.Priority,
		&n.ActionRequired,
		&n.Actioned,
		&n.ReadAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientType domain.RecipientType, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
        SELECT id, recipient_type, recipient_id, type, title, body, link_ref, priority,
               action_required, actioned, read_at, created_at
        FROM notifications
        WHERE recipient_type=$1 AND recipient_id=$2`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, recipientType, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientType,
			&n.RecipientID,
			&n.Type,
			&n.Title,
			&n.Body,
			&n.LinkRef,
			&n.Priority,
			&n.ActionRequired,
			&n.Actioned,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkRead is idempotent: re-marking an already-read notification keeps the
// original read timestamp.
func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at=COALESCE(read_at, NOW()) WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientType domain.RecipientType, recipientID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at=NOW() WHERE recipient_type=$1 AND recipient_id=$2 AND read_at IS NULL`,
		recipientType, recipientID)
	return err
}

func (r *notificationRepository) MarkActioned(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE notifications SET actioned=TRUE, read_at=COALESCE(read_at, NOW()) WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
