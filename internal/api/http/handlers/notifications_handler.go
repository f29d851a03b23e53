package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/api/dto"
	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// NotificationsHandler exposes the per-recipient notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
	unread        *service.UnreadCounter
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService, unread *service.UnreadCounter) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, unread: unread}
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	recipientType, recipientID, err := recipient(c)
	if err != nil {
		return err
	}

	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)

	items, err := h.notifications.ListFor(c.Context(), recipientType, recipientID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}

	resp := dto.NotificationListResponse{
		Items:       make([]dto.NotificationResponse, 0, len(items)),
		UnreadCount: h.unread.Count(c.Context(), recipientType, recipientID),
	}
	for i := range items {
		resp.Items = append(resp.Items, notificationResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// MarkRead handles POST /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	recipientType, recipientID, err := recipient(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Context(), recipientType, recipientID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	recipientType, recipientID, err := recipient(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkAllRead(c.Context(), recipientType, recipientID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Action handles POST /api/notifications/:id/action.
func (h *NotificationsHandler) Action(c *fiber.Ctx) error {
	recipientType, recipientID, err := recipient(c)
	if err != nil {
		return err
	}
	if err := h.notifications.RespondWithAction(c.Context(), recipientType, recipientID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func recipient(c *fiber.Ctx) (domain.RecipientType, string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return "", "", apperrors.NewUnauthorized("authentication required")
	}
	if principal.SubjectType == domain.SubjectTypeAdmin {
		if principal.Admin == nil {
			return "", "", apperrors.NewForbidden("admin required")
		}
		return domain.RecipientAdmin, principal.Admin.ID, nil
	}
	return domain.RecipientCustomer, principal.UserID, nil
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:             n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		LinkRef:        n.LinkRef,
		Priority:       n.Priority,
		ActionRequired: n.ActionRequired,
		Actioned:       n.Actioned,
		ReadAt:         n.ReadAt,
		CreatedAt:      n.CreatedAt,
	}
}
