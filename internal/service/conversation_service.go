package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/events"
	"github.com/goldvault/support-messaging/internal/repository"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// ConversationService is the single source of truth for conversations and
// their transcripts. Message ordering is delegated to the store's sequence,
// so two appends to the same conversation never race in application code.
type ConversationService struct {
	sessions   repository.SessionRepository
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ConversationDependencies bundles repositories for the service.
type ConversationDependencies struct {
	SessionRepo repository.SessionRepository
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewConversationService constructs the service.
func NewConversationService(deps ConversationDependencies) *ConversationService {
	return &ConversationService{
		sessions:   deps.SessionRepo,
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Category    string
	Priority    domain.TicketPriority
	Description string
	Identity    domain.CustomerIdentity
}

// AppendMessageInput describes one message append.
type AppendMessageInput struct {
	Body         string
	IsCustomer   bool
	SenderUserID *string
	Kind         domain.MessageKind
	Attachments  []domain.AttachmentReference
}

// ConversationView is the router-facing summary of one conversation: enough
// to compute the delivery set without exposing repository types.
type ConversationView struct {
	Ref             domain.ConversationRef
	TicketID        string
	TicketNumber    string
	Subject         string
	Status          string
	AcceptsMessages bool
	AssignedAdminID *string
	CustomerUserID  *string
	CustomerName    string
}

// CreateSession creates an ephemeral guest conversation.
func (s *ConversationService) CreateSession(ctx context.Context, identity domain.CustomerIdentity) (*domain.ChatSession, error) {
	if !identity.Valid() {
		return nil, apperrors.NewValidationError("customer email or user id required", nil)
	}
	session := &domain.ChatSession{
		CustomerEmail: strings.TrimSpace(identity.Email),
		CustomerName:  strings.TrimSpace(identity.Name),
		UserID:        identity.UserID,
		Status:        domain.SessionStatusActive,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:  events.EventSessionCreated,
		Ref:   domain.ConversationRef{SessionID: &session.ID},
		Actor: customerActor(identity.UserID),
	})
	return session, nil
}

// CreateTicket creates a durable conversation in status open. The ticket
// number is human-readable and unique; collisions are retried, not surfaced.
func (s *ConversationService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if !input.Identity.Valid() {
		return nil, apperrors.NewValidationError("customer email or user id required", nil)
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}

	ticket := &domain.Ticket{
		Subject:       strings.TrimSpace(input.Subject),
		Category:      strings.TrimSpace(input.Category),
		Priority:      input.Priority,
		Status:        domain.TicketStatusOpen,
		CustomerEmail: strings.TrimSpace(input.Identity.Email),
		CustomerName:  strings.TrimSpace(input.Identity.Name),
		UserID:        input.Identity.UserID,
	}
	if ticket.Category == "" {
		ticket.Category = "general"
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	const maxNumberAttempts = 5
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		ticket.TicketNumber = generateTicketNumber()
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, apperrors.MapError(err)
		}
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if body := strings.TrimSpace(input.Description); body != "" {
		msg := &domain.Message{
			TicketID:     &ticket.ID,
			Body:         body,
			IsCustomer:   true,
			SenderUserID: input.Identity.UserID,
			Kind:         domain.MessageKindText,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventTicketCreated,
		Ref:   domain.ConversationRef{TicketID: &ticket.ID},
		Actor: customerActor(input.Identity.UserID),
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Subject:      ticket.Subject,
			Category:     ticket.Category,
			Priority:     ticket.Priority,
			Customer:     customerDisplay(ticket.CustomerName, ticket.CustomerEmail),
		},
	})
	return ticket, nil
}

// Lookup resolves a conversation id (session or ticket) into a view.
func (s *ConversationService) Lookup(ctx context.Context, conversationID string) (*ConversationView, error) {
	session, ticket, err := s.resolveID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return buildView(session, ticket), nil
}

// AppendMessage persists one message and touches the conversation's
// last-activity timestamp. Persistence always precedes any broadcast the
// caller performs.
func (s *ConversationService) AppendMessage(ctx context.Context, ref domain.ConversationRef, input AppendMessageInput) (*domain.Message, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", nil)
	}

	session, ticket, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ticket != nil && !ticket.Status.AcceptsMessages() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}
	if session != nil && session.Status == domain.SessionStatusEnded {
		return nil, apperrors.NewConflict("session has ended", map[string]any{"session_id": session.ID})
	}

	kind := input.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	msg := &domain.Message{
		Body:         body,
		IsCustomer:   input.IsCustomer,
		SenderUserID: input.SenderUserID,
		Kind:         kind,
		Attachments:  input.Attachments,
	}
	if session != nil {
		msg.SessionID = &session.ID
	}
	if ticket != nil {
		msg.TicketID = &ticket.ID
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.touchActivity(ctx, session, ticket)

	s.publishEvent(ctx, events.Event{
		Type:  events.EventMessageAdded,
		Ref:   domain.ConversationRef{SessionID: msg.SessionID, TicketID: msg.TicketID},
		Actor: messageActor(input.IsCustomer, input.SenderUserID),
		Payload: events.MessageAddedPayload{
			MessageID:   msg.ID,
			Kind:        msg.Kind,
			IsCustomer:  msg.IsCustomer,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// ListMessages returns the transcript oldest-first. The call is restartable;
// no cursor state is held server side.
func (s *ConversationService) ListMessages(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error) {
	session, ticket, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	resolved := domain.ConversationRef{}
	if session != nil {
		resolved.SessionID = &session.ID
	}
	if ticket != nil {
		resolved.TicketID = &ticket.ID
	}
	msgs, err := s.messages.ListByRef(ctx, resolved)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// MarkMessagesRead flags the counterparty's messages as read.
func (s *ConversationService) MarkMessagesRead(ctx context.Context, ref domain.ConversationRef, forCustomer bool) error {
	if err := s.messages.MarkRead(ctx, ref, forCustomer); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TransitionStatus moves a ticket through its lifecycle and appends a
// system message so the transcript documents the change.
func (s *ConversationService) TransitionStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actor events.Actor, comment string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !domain.IsValidTicketTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	if newStatus == domain.TicketStatusClosed {
		now := time.Now()
		ticket.ClosedAt = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	body := fmt.Sprintf("Status changed from %s to %s", oldStatus, newStatus)
	if comment != "" {
		body += ": " + comment
	}
	s.appendSystemMessage(ctx, ticket.ID, body, domain.MessageKindSystem)

	s.publishEvent(ctx, events.Event{
		Type:  events.EventStatusChanged,
		Ref:   domain.ConversationRef{TicketID: &ticket.ID},
		Actor: actor,
		Payload: events.StatusChangedPayload{
			OldStatus:      oldStatus,
			NewStatus:      newStatus,
			Comment:        comment,
			CustomerUserID: ticket.UserID,
		},
	})
	return ticket, nil
}

// PromoteSessionToTicket converts a guest session into a durable ticket.
// Idempotent: promoting an already-promoted session returns the existing
// ticket and appends nothing.
func (s *ConversationService) PromoteSessionToTicket(ctx context.Context, sessionID string, input TicketCreateInput) (*domain.Ticket, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TicketID != nil {
		return s.getTicket(ctx, *session.TicketID)
	}

	if input.Identity.Email == "" && input.Identity.UserID == nil {
		input.Identity = domain.CustomerIdentity{
			Email:  session.CustomerEmail,
			Name:   session.CustomerName,
			UserID: session.UserID,
		}
	}
	ticket, err := s.CreateTicket(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.LinkTicket(ctx, session.ID, ticket.ID); err != nil {
		// Lost the promotion race: another caller linked first. Return theirs.
		if errors.Is(err, pgx.ErrNoRows) {
			refreshed, lookupErr := s.getSession(ctx, sessionID)
			if lookupErr == nil && refreshed.TicketID != nil {
				return s.getTicket(ctx, *refreshed.TicketID)
			}
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.messages.StampTicketID(ctx, session.ID, ticket.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.appendSystemMessage(ctx, ticket.ID,
		fmt.Sprintf("Chat session promoted to ticket %s", ticket.TicketNumber),
		domain.MessageKindSystem)

	s.publishEvent(ctx, events.Event{
		Type:  events.EventSessionPromoted,
		Ref:   domain.ConversationRef{SessionID: &session.ID, TicketID: &ticket.ID},
		Actor: customerActor(session.UserID),
		Payload: events.SessionPromotedPayload{
			SessionID:    session.ID,
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
		},
	})
	return ticket, nil
}

// EndSession marks a guest session ended.
func (s *ConversationService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.SetStatus(ctx, sessionID, domain.SessionStatusEnded); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("session", map[string]any{"session_id": sessionID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *ConversationService) getSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("session", map[string]any{"session_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

func (s *ConversationService) getTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// resolveID finds whichever conversation kind the id names. A promoted
// session resolves to both the session and its ticket.
func (s *ConversationService) resolveID(ctx context.Context, id string) (*domain.ChatSession, *domain.Ticket, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err == nil {
		if session.TicketID != nil {
			ticket, terr := s.getTicket(ctx, *session.TicketID)
			if terr != nil {
				return nil, nil, terr
			}
			return session, ticket, nil
		}
		return session, nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.MapError(err)
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("conversation", map[string]any{"conversation_id": id})
		}
		return nil, nil, apperrors.MapError(err)
	}
	return nil, ticket, nil
}

func (s *ConversationService) resolveRef(ctx context.Context, ref domain.ConversationRef) (*domain.ChatSession, *domain.Ticket, error) {
	switch {
	case ref.SessionID != nil:
		return s.resolveID(ctx, *ref.SessionID)
	case ref.TicketID != nil:
		ticket, err := s.getTicket(ctx, *ref.TicketID)
		if err != nil {
			return nil, nil, err
		}
		return nil, ticket, nil
	default:
		return nil, nil, apperrors.NewNotFound("conversation", nil)
	}
}

func (s *ConversationService) touchActivity(ctx context.Context, session *domain.ChatSession, ticket *domain.Ticket) {
	if session != nil {
		if err := s.sessions.TouchActivity(ctx, session.ID); err != nil {
			s.logger.Warn("touch session activity", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	if ticket != nil {
		if err := s.tickets.TouchActivity(ctx, ticket.ID); err != nil {
			s.logger.Warn("touch ticket activity", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
}

func (s *ConversationService) appendSystemMessage(ctx context.Context, ticketID, body string, kind domain.MessageKind) {
	msg := &domain.Message{
		TicketID:   &ticketID,
		Body:       body,
		IsCustomer: false,
		Kind:       kind,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Warn("append system message", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// AppendSystemNote records a non-customer transcript entry for triage
// operations (escalation reasons, resolution notes).
func (s *ConversationService) AppendSystemNote(ctx context.Context, ticketID, body string, kind domain.MessageKind) {
	s.appendSystemMessage(ctx, ticketID, body, kind)
}

func (s *ConversationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func buildView(session *domain.ChatSession, ticket *domain.Ticket) *ConversationView {
	view := &ConversationView{AcceptsMessages: true}
	if session != nil {
		view.Ref.SessionID = &session.ID
		view.CustomerUserID = session.UserID
		view.CustomerName = customerDisplay(session.CustomerName, session.CustomerEmail)
		view.Status = string(session.Status)
		if session.Status == domain.SessionStatusEnded {
			view.AcceptsMessages = false
		}
	}
	if ticket != nil {
		view.Ref.TicketID = &ticket.ID
		view.TicketID = ticket.ID
		view.TicketNumber = ticket.TicketNumber
		view.Subject = ticket.Subject
		view.Status = string(ticket.Status)
		view.AssignedAdminID = ticket.AssignedAdminID
		view.CustomerUserID = ticket.UserID
		view.CustomerName = customerDisplay(ticket.CustomerName, ticket.CustomerEmail)
		view.AcceptsMessages = ticket.Status.AcceptsMessages()
	}
	return view
}

func generateTicketNumber() string {
	return "GLD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func customerActor(userID *string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeCustomer, UserID: userID}
}

func adminActor(adminID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeAdmin, AdminID: &adminID}
}

func messageActor(isCustomer bool, userID *string) events.Actor {
	if isCustomer {
		return customerActor(userID)
	}
	if userID != nil {
		return adminActor(*userID)
	}
	return events.Actor{Type: domain.SubjectTypeAdmin}
}

func customerDisplay(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

// stringPreview truncates to at most max bytes without splitting a rune.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max
	if max > 3 {
		cut = max - 3
	}
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	if max <= 3 {
		return body[:cut]
	}
	return body[:cut] + "..."
}
