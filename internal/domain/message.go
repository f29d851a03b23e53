package domain

import "time"

// MessageKind differentiates customer/admin chatter from synthesized entries.
type MessageKind string

const (
	MessageKindText       MessageKind = "TEXT"
	MessageKindSystem     MessageKind = "SYSTEM"
	MessageKindEscalation MessageKind = "ESCALATION_NOTICE"
	MessageKindResolution MessageKind = "RESOLUTION_NOTICE"
)

// Message is one immutable entry in a conversation transcript. Messages are
// totally ordered per conversation by Seq; CreatedAt is informational.
type Message struct {
	ID           string
	SessionID    *string
	TicketID     *string
	Seq          int64
	Body         string
	IsCustomer   bool
	SenderUserID *string
	Kind         MessageKind
	Attachments  []AttachmentReference
	Read         bool
	CreatedAt    time.Time
}

// AttachmentReference points at an externally stored file referenced by a
// message. Storage itself is outside the messaging core.
type AttachmentReference struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}
