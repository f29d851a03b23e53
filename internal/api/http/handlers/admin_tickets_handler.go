package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/api/dto"
	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/realtime"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// AdminTicketsHandler exposes the triage endpoints.
type AdminTicketsHandler struct {
	conversations *service.ConversationService
	triage        *service.TriageService
	router        *realtime.Router
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(conversations *service.ConversationService, triage *service.TriageService, router *realtime.Router) *AdminTicketsHandler {
	return &AdminTicketsHandler{conversations: conversations, triage: triage, router: router}
}

// ListTickets handles GET /api/admin/tickets.
func (h *AdminTicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	if assignee := c.Query("assignee"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	tickets, err := h.triage.ListTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// Assign handles POST /api/admin/tickets/:id/assign.
func (h *AdminTicketsHandler) Assign(c *fiber.Ctx) error {
	principal := mustAdmin(c)
	if principal == nil {
		return apperrors.NewForbidden("admin required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	adminID := req.AdminID
	if adminID == "" {
		adminID = principal.Admin.ID
	}
	ticket, err := h.triage.Assign(c.Context(), c.Params("id"), adminID, principal.Admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Escalate handles POST /api/admin/tickets/:id/escalate.
func (h *AdminTicketsHandler) Escalate(c *fiber.Ctx) error {
	principal := mustAdmin(c)
	if principal == nil {
		return apperrors.NewForbidden("admin required")
	}
	var req dto.EscalateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.triage.Escalate(c.Context(), c.Params("id"), req.Reason, principal.Admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Resolve handles POST /api/admin/tickets/:id/resolve.
func (h *AdminTicketsHandler) Resolve(c *fiber.Ctx) error {
	principal := mustAdmin(c)
	if principal == nil {
		return apperrors.NewForbidden("admin required")
	}
	var req dto.ResolveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.triage.Resolve(c.Context(), c.Params("id"), req.Notes, principal.Admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ChangePriority handles POST /api/admin/tickets/:id/priority.
func (h *AdminTicketsHandler) ChangePriority(c *fiber.Ctx) error {
	principal := mustAdmin(c)
	if principal == nil {
		return apperrors.NewForbidden("admin required")
	}
	var req dto.ChangePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.triage.ChangePriority(c.Context(), c.Params("id"), req.Priority, principal.Admin.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ChangeStatus handles POST /api/admin/tickets/:id/status.
func (h *AdminTicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal := mustAdmin(c)
	if principal == nil {
		return apperrors.NewForbidden("admin required")
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.triage.ChangeStatus(c.Context(), c.Params("id"), req.Status, principal.Admin.ID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListMessages handles GET /api/admin/tickets/:id/messages.
func (h *AdminTicketsHandler) ListMessages(c *fiber.Ctx) error {
	view, err := h.conversations.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	msgs, err := h.conversations.ListMessages(c.Context(), view.Ref)
	if err != nil {
		return err
	}
	if err := h.conversations.MarkMessagesRead(c.Context(), view.Ref, false); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponses(msgs)})
}

// AddMessage handles POST /api/admin/tickets/:id/messages.
func (h *AdminTicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal := mustAdmin(c)
	if principal == nil {
		return apperrors.NewForbidden("admin required")
	}
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.conversations.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	msg, err := h.conversations.AppendMessage(c.Context(), view.Ref, service.AppendMessageInput{
		Body:         req.Body,
		IsCustomer:   false,
		SenderUserID: &principal.Admin.ID,
		Kind:         domain.MessageKindText,
		Attachments:  attachmentInputs(req.Attachments),
	})
	if err != nil {
		return err
	}
	h.router.DeliverMessage(c.Context(), view, msg)

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

func mustAdmin(c *fiber.Ctx) *auth.Principal {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectType != domain.SubjectTypeAdmin || principal.Admin == nil {
		return nil
	}
	return principal
}
