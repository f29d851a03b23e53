package events

import (
	"time"

	"github.com/goldvault/support-messaging/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventSessionPromoted EventType = "session_promoted"
	EventTicketCreated   EventType = "ticket_created"
	EventMessageAdded    EventType = "message_added"
	EventStatusChanged   EventType = "status_changed"
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketEscalated EventType = "ticket_escalated"
	EventTicketResolved  EventType = "ticket_resolved"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	UserID  *string            `json:"user_id,omitempty"`
	AdminID *string            `json:"admin_id,omitempty"`
}

// Event represents a domain event emitted by services. Events are published
// only after the triggering row is durably stored, so a handler can never
// observe a reference to unpersisted state.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	Ref       domain.ConversationRef `json:"ref"`
	Actor     Actor               `json:"actor"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Subject      string                `json:"subject"`
	Category     string                `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Customer     string                `json:"customer"`
}

// MessageAddedPayload payload.
type MessageAddedPayload struct {
	MessageID   string             `json:"message_id"`
	Kind        domain.MessageKind `json:"kind"`
	IsCustomer  bool               `json:"is_customer"`
	BodyPreview string             `json:"body_preview"`
}

// StatusChangedPayload payload. CustomerUserID is the ticket's linked user
// id, when one exists, so handlers can address the customer without a
// repository lookup.
type StatusChangedPayload struct {
	OldStatus      domain.TicketStatus `json:"old_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
	Comment        string              `json:"comment,omitempty"`
	CustomerUserID *string             `json:"customer_user_id,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedAdminID string `json:"assigned_admin_id"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Reason      string                `json:"reason"`
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Notes          string  `json:"notes"`
	CustomerUserID *string `json:"customer_user_id,omitempty"`
}

// SessionPromotedPayload payload.
type SessionPromotedPayload struct {
	SessionID    string `json:"session_id"`
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
}
