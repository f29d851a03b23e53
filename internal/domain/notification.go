package domain

import "time"

// RecipientType addresses a notification to an admin or a customer.
type RecipientType string

const (
	RecipientAdmin    RecipientType = "ADMIN"
	RecipientCustomer RecipientType = "CUSTOMER"
)

// NotificationType enumerates the structural events that produce
// notifications.
type NotificationType string

const (
	NotificationNewTicket        NotificationType = "NEW_TICKET"
	NotificationCustomerResponse NotificationType = "CUSTOMER_RESPONSE"
	NotificationAdminResponse    NotificationType = "ADMIN_RESPONSE"
	NotificationAssignment       NotificationType = "ASSIGNMENT"
	NotificationEscalation       NotificationType = "ESCALATION"
	NotificationResolution       NotificationType = "RESOLUTION"
	NotificationStatusUpdate     NotificationType = "STATUS_UPDATE"
)

// NotificationPriority orders notifications in recipient inboxes.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityNormal NotificationPriority = "NORMAL"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// Notification is a durable, recipient-addressed record of an event,
// independent of whether the recipient holds a live connection.
type Notification struct {
	ID             string
	RecipientType  RecipientType
	RecipientID    string
	Type           NotificationType
	Title          string
	Body           string
	LinkRef        *string
	Priority       NotificationPriority
	ActionRequired bool
	Actioned       bool
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Unread reports whether the notification has not been read yet.
func (n *Notification) Unread() bool {
	return n.ReadAt == nil
}
