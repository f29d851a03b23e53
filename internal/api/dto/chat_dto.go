package dto

import (
	"time"

	"github.com/goldvault/support-messaging/internal/domain"
)

// CreateSessionRequest payload.
type CreateSessionRequest struct {
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
}

// SessionResponse describes a chat session.
type SessionResponse struct {
	ID                  string               `json:"id"`
	Status              domain.SessionStatus `json:"status"`
	TicketID            *string              `json:"ticket_id,omitempty"`
	PollIntervalSeconds int                  `json:"poll_interval_seconds"`
	CreatedAt           time.Time            `json:"created_at"`
}

// PostMessageRequest is the fallback-channel message payload.
type PostMessageRequest struct {
	Body        string              `json:"body"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// MessageResponse represents one transcript entry.
type MessageResponse struct {
	ID          string               `json:"id"`
	Seq         int64                `json:"seq"`
	Body        string               `json:"body"`
	IsCustomer  bool                 `json:"is_customer"`
	Kind        domain.MessageKind   `json:"kind"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// PromoteSessionRequest payload.
type PromoteSessionRequest struct {
	Subject  string                `json:"subject"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}
