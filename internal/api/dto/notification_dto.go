package dto

import (
	"time"

	"github.com/goldvault/support-messaging/internal/domain"
)

// NotificationResponse describes one notification record.
type NotificationResponse struct {
	ID             string                      `json:"id"`
	Type           domain.NotificationType     `json:"type"`
	Title          string                      `json:"title"`
	Body           string                      `json:"body,omitempty"`
	LinkRef        *string                     `json:"link_ref,omitempty"`
	Priority       domain.NotificationPriority `json:"priority"`
	ActionRequired bool                        `json:"action_required"`
	Actioned       bool                        `json:"actioned"`
	ReadAt         *time.Time                  `json:"read_at,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
}

// NotificationListResponse wraps a page of notifications with the unread
// badge count.
type NotificationListResponse struct {
	Items       []NotificationResponse `json:"items"`
	UnreadCount int64                  `json:"unread_count"`
}
