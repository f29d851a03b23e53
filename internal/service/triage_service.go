package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/events"
	"github.com/goldvault/support-messaging/internal/repository"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// TriageService covers the admin workflow: assignment, escalation,
// resolution and priority control. Each mutation appends a system message
// so the transcript stays self-documenting.
type TriageService struct {
	tickets       repository.TicketRepository
	admins        repository.AdminRepository
	conversations *ConversationService
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// TriageDependencies bundles collaborators.
type TriageDependencies struct {
	TicketRepo    repository.TicketRepository
	AdminRepo     repository.AdminRepository
	Conversations *ConversationService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	return &TriageService{
		tickets:       deps.TicketRepo,
		admins:        deps.AdminRepo,
		conversations: deps.Conversations,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
	}
}

// ListTickets returns tickets matching the filter, newest activity first.
func (t *TriageService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	list, err := t.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// GetTicket loads one ticket by id.
func (t *TriageService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return t.loadTicket(ctx, ticketID)
}

// Assign hands a ticket to an admin and moves open tickets to in_progress.
func (t *TriageService) Assign(ctx context.Context, ticketID, adminID, actorAdminID string) (*domain.Ticket, error) {
	admin, err := t.admins.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("admin", map[string]any{"admin_id": adminID})
		}
		return nil, apperrors.MapError(err)
	}
	if !admin.Active {
		return nil, apperrors.NewConflict("admin is inactive", map[string]any{"admin_id": adminID})
	}

	ticket, err := t.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.AcceptsMessages() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	ticket.AssignedAdminID = &admin.ID
	if ticket.Status == domain.TicketStatusOpen {
		ticket.Status = domain.TicketStatusInProgress
	}
	if err := t.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	t.conversations.AppendSystemNote(ctx, ticket.ID,
		fmt.Sprintf("Ticket assigned to %s", admin.Name), domain.MessageKindSystem)
	t.publish(ctx, events.Event{
		Type:    events.EventTicketAssigned,
		Ref:     domain.ConversationRef{TicketID: &ticket.ID},
		Actor:   adminActor(actorAdminID),
		Payload: events.TicketAssignedPayload{AssignedAdminID: admin.ID},
	})
	return ticket, nil
}

// Escalate bumps priority one level and records the reason in the
// transcript. Escalating an urgent ticket is a conflict.
func (t *TriageService) Escalate(ctx context.Context, ticketID, reason, actorAdminID string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason required", nil)
	}

	ticket, err := t.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.AcceptsMessages() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	oldPriority := ticket.Priority
	newPriority, ok := nextPriority(oldPriority)
	if !ok {
		return nil, apperrors.NewConflict("ticket is already at maximum priority", map[string]any{
			"ticket_id": ticketID,
			"priority":  oldPriority,
		})
	}

	ticket.Priority = newPriority
	if err := t.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	t.conversations.AppendSystemNote(ctx, ticket.ID,
		fmt.Sprintf("Ticket escalated from %s to %s: %s", oldPriority, newPriority, reason),
		domain.MessageKindEscalation)
	t.publish(ctx, events.Event{
		Type:  events.EventTicketEscalated,
		Ref:   domain.ConversationRef{TicketID: &ticket.ID},
		Actor: adminActor(actorAdminID),
		Payload: events.TicketEscalatedPayload{
			Reason:      reason,
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
	return ticket, nil
}

// Resolve transitions the ticket to resolved and records the resolution
// notes as a transcript entry.
func (t *TriageService) Resolve(ctx context.Context, ticketID, notes, actorAdminID string) (*domain.Ticket, error) {
	ticket, err := t.conversations.TransitionStatus(ctx, ticketID, domain.TicketStatusResolved, adminActor(actorAdminID), "")
	if err != nil {
		return nil, err
	}

	if notes = strings.TrimSpace(notes); notes != "" {
		t.conversations.AppendSystemNote(ctx, ticket.ID,
			"Resolution: "+notes, domain.MessageKindResolution)
	}
	t.publish(ctx, events.Event{
		Type:  events.EventTicketResolved,
		Ref:   domain.ConversationRef{TicketID: &ticket.ID},
		Actor: adminActor(actorAdminID),
		Payload: events.TicketResolvedPayload{
			Notes:          notes,
			CustomerUserID: ticket.UserID,
		},
	})
	return ticket, nil
}

// ChangePriority sets an explicit priority without the escalation ceremony.
func (t *TriageService) ChangePriority(ctx context.Context, ticketID string, priority domain.TicketPriority, actorAdminID string) (*domain.Ticket, error) {
	if !isValidPriority(priority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	ticket, err := t.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Priority == priority {
		return ticket, nil
	}

	oldPriority := ticket.Priority
	ticket.Priority = priority
	if err := t.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	t.conversations.AppendSystemNote(ctx, ticket.ID,
		fmt.Sprintf("Priority changed from %s to %s", oldPriority, priority),
		domain.MessageKindSystem)
	return ticket, nil
}

// ChangeStatus delegates to the conversation store's transition rules.
func (t *TriageService) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus, actorAdminID, comment string) (*domain.Ticket, error) {
	return t.conversations.TransitionStatus(ctx, ticketID, status, adminActor(actorAdminID), comment)
}

func (t *TriageService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := t.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (t *TriageService) publish(ctx context.Context, event events.Event) {
	if t.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = t.dispatcher.Publish(ctx, event)
}

func nextPriority(priority domain.TicketPriority) (domain.TicketPriority, bool) {
	switch priority {
	case domain.TicketPriorityLow:
		return domain.TicketPriorityMedium, true
	case domain.TicketPriorityMedium:
		return domain.TicketPriorityHigh, true
	case domain.TicketPriorityHigh:
		return domain.TicketPriorityUrgent, true
	default:
		return priority, false
	}
}

func isValidPriority(priority domain.TicketPriority) bool {
	switch priority {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium,
		domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
		return true
	}
	return false
}
