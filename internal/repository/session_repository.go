package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldvault/support-messaging/internal/domain"
)

// SessionRepository encapsulates chat session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	SetStatus(ctx context.Context, id string, status domain.SessionStatus) error
	LinkTicket(ctx context.Context, id, ticketID string) error
	TouchActivity(ctx context.Context, id string) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository instantiates repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	const query = `
        INSERT INTO chat_sessions (customer_email, customer_name, user_id, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, last_activity`
	return r.pool.QueryRow(ctx, query,
		session.CustomerEmail,
		session.CustomerName,
		session.UserID,
		session.Status,
	).Scan(&session.ID, &session.CreatedAt, &session.LastActivity)
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	const query = `
        SELECT id, customer_email, customer_name, user_id, status, ticket_id, created_at, last_activity
        FROM chat_sessions WHERE id=$1`
	var session domain.ChatSession
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.CustomerEmail,
		&session.CustomerName,
		&session.UserID,
		&session.Status,
		&session.TicketID,
		&session.CreatedAt,
		&session.LastActivity,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) SetStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *sessionRepository) LinkTicket(ctx context.Context, id, ticketID string) error {
	const query = `
        UPDATE chat_sessions SET ticket_id=$1, status=$2 WHERE id=$3 AND ticket_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, ticketID, domain.SessionStatusTransferred, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *sessionRepository) TouchActivity(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET last_activity=NOW() WHERE id=$1`, id)
	return err
}
