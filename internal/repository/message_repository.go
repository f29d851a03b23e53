package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldvault/support-messaging/internal/domain"
)

// MessageRepository manages conversation transcripts. Insert order is the
// only order: seq comes from a database sequence, so concurrent appends to
// one conversation serialize at the store without application locks.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByRef(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error)
	StampTicketID(ctx context.Context, sessionID, ticketID string) error
	MarkRead(ctx context.Context, ref domain.ConversationRef, forCustomer bool) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return err
	}
	if msg.Attachments == nil {
		attachments = []byte("[]")
	}
	const query = `
        INSERT INTO messages (session_id, ticket_id, body, is_customer, sender_user_id, kind, attachments)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, seq, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.SessionID,
		msg.TicketID,
		msg.Body,
		msg.IsCustomer,
		msg.SenderUserID,
		msg.Kind,
		attachments,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt)
}

func (r *messageRepository) ListByRef(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error) {
	const query = `
        SELECT id, seq, session_id, ticket_id, body, is_customer, sender_user_id, kind, attachments, is_read, created_at
        FROM messages
        WHERE (session_id = $1 AND $1 IS NOT NULL) OR (ticket_id = $2 AND $2 IS NOT NULL)
        ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ref.SessionID, ref.TicketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// StampTicketID backfills the ticket id onto session messages after a
// promotion, so the ticket transcript includes the pre-promotion history.
func (r *messageRepository) StampTicketID(ctx context.Context, sessionID, ticketID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET ticket_id=$1 WHERE session_id=$2 AND ticket_id IS NULL`,
		ticketID, sessionID)
	return err
}

func (r *messageRepository) MarkRead(ctx context.Context, ref domain.ConversationRef, forCustomer bool) error {
	const query = `
        UPDATE messages SET is_read=TRUE
        WHERE is_customer=$1 AND is_read=FALSE
          AND ((session_id = $2 AND $2 IS NOT NULL) OR (ticket_id = $3 AND $3 IS NOT NULL))`
	_, err := r.pool.Exec(ctx, query, forCustomer, ref.SessionID, ref.TicketID)
	return err
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		var attachments []byte
		if err := rows.Scan(
			&msg.ID,
			&msg.Seq,
			&msg.SessionID,
			&msg.TicketID,
			&msg.Body,
			&msg.IsCustomer,
			&msg.SenderUserID,
			&msg.Kind,
			&attachments,
			&msg.Read,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, err
			}
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
