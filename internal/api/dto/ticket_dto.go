package dto

import (
	"time"

	"github.com/goldvault/support-messaging/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject       string                `json:"subject"`
	Category      string                `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Description   string                `json:"description"`
	CustomerEmail string                `json:"customer_email"`
	CustomerName  string                `json:"customer_name"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	TicketNumber    string                `json:"ticket_number"`
	Subject         string                `json:"subject"`
	Category        string                `json:"category"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	CustomerName    string                `json:"customer_name"`
	AssignedAdminID *string               `json:"assigned_admin_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AdminID string `json:"admin_id"`
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	Reason string `json:"reason"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Notes string `json:"notes"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}
