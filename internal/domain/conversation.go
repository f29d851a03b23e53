package domain

import "time"

// SessionStatus enumerates lifecycle states for guest chat sessions.
type SessionStatus string

const (
	SessionStatusActive      SessionStatus = "ACTIVE"
	SessionStatusEnded       SessionStatus = "ENDED"
	SessionStatusTransferred SessionStatus = "TRANSFERRED"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "OPEN"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingCustomer TicketStatus = "WAITING_CUSTOMER"
	TicketStatusResolved        TicketStatus = "RESOLVED"
	TicketStatusClosed          TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ChatSession is an ephemeral guest conversation. It may later be promoted
// to a Ticket, in which case TicketID is set permanently.
type ChatSession struct {
	ID            string
	CustomerEmail string
	CustomerName  string
	UserID        *string
	Status        SessionStatus
	TicketID      *string
	CreatedAt     time.Time
	LastActivity  time.Time
}

// Ticket is a durable, triaged support conversation.
type Ticket struct {
	ID              string
	TicketNumber    string
	Subject         string
	Category        string
	Priority        TicketPriority
	Status          TicketStatus
	CustomerEmail   string
	CustomerName    string
	UserID          *string
	AssignedAdminID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// ConversationRef addresses a conversation by session id, ticket id, or both
// once a session has been promoted.
type ConversationRef struct {
	SessionID *string
	TicketID  *string
}

// IsZero reports whether the ref carries no identifier.
func (r ConversationRef) IsZero() bool {
	return r.SessionID == nil && r.TicketID == nil
}

// WAITING_CUSTOMER and IN_PROGRESS may alternate freely before a ticket is
// resolved; RESOLVED and CLOSED are otherwise terminal (no reopen).
var allowedTicketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:            {TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved},
	TicketStatusInProgress:      {TicketStatusWaitingCustomer, TicketStatusResolved, TicketStatusClosed},
	TicketStatusWaitingCustomer: {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:        {TicketStatusClosed},
	TicketStatusClosed:          {},
}

// IsValidTicketTransition reports whether current -> next is a legal move.
func IsValidTicketTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTicketTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AcceptsMessages reports whether new messages may be appended to a ticket
// in the given status. Closed tickets reject messages outright.
func (s TicketStatus) AcceptsMessages() bool {
	return s != TicketStatusClosed
}
