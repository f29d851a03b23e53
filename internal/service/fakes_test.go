package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/repository"
)

// In-memory repository fakes. They mirror the Postgres semantics the
// services rely on: pgx.ErrNoRows for misses, a sequence for message order,
// and a unique-violation error for duplicate ticket numbers.

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChatSession
	n        int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*domain.ChatSession)}
}

func (r *memSessionRepo) Create(_ context.Context, session *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	session.ID = fmt.Sprintf("sess-%d", r.n)
	session.CreatedAt = time.Now()
	session.LastActivity = session.CreatedAt
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memSessionRepo) SetStatus(_ context.Context, id string, status domain.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = status
	return nil
}

func (r *memSessionRepo) LinkTicket(_ context.Context, id, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok || stored.TicketID != nil {
		return pgx.ErrNoRows
	}
	stored.TicketID = &ticketID
	stored.Status = domain.SessionStatusTransferred
	return nil
}

func (r *memSessionRepo) TouchActivity(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.sessions[id]; ok {
		stored.LastActivity = time.Now()
	}
	return nil
}

type memTicketRepo struct {
	mu             sync.Mutex
	tickets        map[string]*domain.Ticket
	numbers        map[string]string
	n              int
	uniqueFailures int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{
		tickets: make(map[string]*domain.Ticket),
		numbers: make(map[string]string),
	}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uniqueFailures > 0 {
		r.uniqueFailures--
		return &pgconn.PgError{Code: "23505", ConstraintName: "tickets_ticket_number_key"}
	}
	if _, dup := r.numbers[ticket.TicketNumber]; dup {
		return &pgconn.PgError{Code: "23505", ConstraintName: "tickets_ticket_number_key"}
	}
	r.n++
	ticket.ID = fmt.Sprintf("tick-%d", r.n)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	r.numbers[ticket.TicketNumber] = ticket.ID
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.numbers[number]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *r.tickets[id]
	return &copied, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, stored := range r.tickets {
		if filter.UserID != nil && (stored.UserID == nil || *stored.UserID != *filter.UserID) {
			continue
		}
		if filter.AssigneeID != nil && (stored.AssignedAdminID == nil || *stored.AssignedAdminID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		if filter.Category != nil && stored.Category != *filter.Category {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (r *memTicketRepo) TouchActivity(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.tickets[id]; ok {
		stored.UpdatedAt = time.Now()
	}
	return nil
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*domain.Message
	seq      int64
	n        int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	r.seq++
	msg.ID = fmt.Sprintf("msg-%d", r.n)
	msg.Seq = r.seq
	msg.CreatedAt = time.Now()
	stored := *msg
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *memMessageRepo) ListByRef(_ context.Context, ref domain.ConversationRef) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, 0)
	for _, stored := range r.messages {
		if matchesRef(stored, ref) {
			out = append(out, *stored)
		}
	}
	return out, nil
}

func (r *memMessageRepo) StampTicketID(_ context.Context, sessionID, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.messages {
		if stored.SessionID != nil && *stored.SessionID == sessionID && stored.TicketID == nil {
			id := ticketID
			stored.TicketID = &id
		}
	}
	return nil
}

func (r *memMessageRepo) MarkRead(_ context.Context, ref domain.ConversationRef, forCustomer bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.messages {
		if matchesRef(stored, ref) && stored.IsCustomer != forCustomer {
			stored.Read = true
		}
	}
	return nil
}

func matchesRef(msg *domain.Message, ref domain.ConversationRef) bool {
	if ref.SessionID != nil && msg.SessionID != nil && *msg.SessionID == *ref.SessionID {
		return true
	}
	if ref.TicketID != nil && msg.TicketID != nil && *msg.TicketID == *ref.TicketID {
		return true
	}
	return false
}

type memNotificationRepo struct {
	mu      sync.Mutex
	records []*domain.Notification
	n       int
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{}
}

func (r *memNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	n.ID = fmt.Sprintf("ntf-%d", r.n)
	n.CreatedAt = time.Now()
	stored := *n
	r.records = append(r.records, &stored)
	return nil
}

func (r *memNotificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.records {
		if stored.ID == id {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memNotificationRepo) ListByRecipient(_ context.Context, recipientType domain.RecipientType, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notification, 0)
	for _, stored := range r.records {
		if stored.RecipientType != recipientType || stored.RecipientID != recipientID {
			continue
		}
		if unreadOnly && stored.ReadAt != nil {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.records {
		if stored.ID == id {
			if stored.ReadAt == nil {
				now := time.Now()
				stored.ReadAt = &now
			}
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memNotificationRepo) MarkAllRead(_ context.Context, recipientType domain.RecipientType, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, stored := range r.records {
		if stored.RecipientType == recipientType && stored.RecipientID == recipientID && stored.ReadAt == nil {
			t := now
			stored.ReadAt = &t
		}
	}
	return nil
}

func (r *memNotificationRepo) MarkActioned(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.records {
		if stored.ID == id {
			stored.Actioned = true
			if stored.ReadAt == nil {
				now := time.Now()
				stored.ReadAt = &now
			}
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memAdminRepo struct {
	mu     sync.Mutex
	admins map[string]*domain.Admin
}

func newMemAdminRepo(admins ...domain.Admin) *memAdminRepo {
	repo := &memAdminRepo{admins: make(map[string]*domain.Admin)}
	for i := range admins {
		stored := admins[i]
		repo.admins[stored.ID] = &stored
	}
	return repo
}

func (r *memAdminRepo) GetByID(_ context.Context, id string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memAdminRepo) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.admins {
		if stored.Email == email {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memAdminRepo) ListActive(_ context.Context) ([]domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Admin, 0, len(r.admins))
	for _, stored := range r.admins {
		if stored.Active {
			out = append(out, *stored)
		}
	}
	return out, nil
}
