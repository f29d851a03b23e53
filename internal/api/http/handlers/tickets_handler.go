package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/api/dto"
	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/realtime"
	"github.com/goldvault/support-messaging/internal/repository"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// TicketsHandler manages customer-facing ticket endpoints.
type TicketsHandler struct {
	conversations *service.ConversationService
	triage        *service.TriageService
	router        *realtime.Router
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(conversations *service.ConversationService, triage *service.TriageService, router *realtime.Router) *TicketsHandler {
	return &TicketsHandler{conversations: conversations, triage: triage, router: router}
}

// CreateTicket handles POST /api/tickets. Guests identify by email;
// authenticated customers get the ticket linked to their user id.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	identity := domain.CustomerIdentity{Email: req.CustomerEmail, Name: req.CustomerName}
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.SubjectType == domain.SubjectTypeCustomer {
		identity.UserID = &principal.UserID
	}

	ticket, err := h.conversations.CreateTicket(c.Context(), service.TicketCreateInput{
		Subject:     req.Subject,
		Category:    req.Category,
		Priority:    req.Priority,
		Description: req.Description,
		Identity:    identity,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets handles GET /api/tickets for the authenticated customer.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectType != domain.SubjectTypeCustomer {
		return apperrors.NewUnauthorized("customer authentication required")
	}
	filter := parseTicketQuery(c)
	filter.UserID = &principal.UserID

	tickets, err := h.triage.ListTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// GetTicket handles GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	view, err := h.conversations.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if view.TicketID == "" {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": c.Params("id")})
	}
	ticket, err := h.triage.GetTicket(c.Context(), view.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListMessages handles GET /api/tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	view, err := h.conversations.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	msgs, err := h.conversations.ListMessages(c.Context(), view.Ref)
	if err != nil {
		return err
	}
	if err := h.conversations.MarkMessagesRead(c.Context(), view.Ref, isCustomerCaller(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponses(msgs)})
}

// AddMessage handles POST /api/tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.conversations.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	var senderUserID *string
	if principal, ok := auth.PrincipalFromContext(c); ok {
		senderUserID = &principal.UserID
	}

	msg, err := h.conversations.AppendMessage(c.Context(), view.Ref, service.AppendMessageInput{
		Body:         req.Body,
		IsCustomer:   true,
		SenderUserID: senderUserID,
		Kind:         domain.MessageKindText,
		Attachments:  attachmentInputs(req.Attachments),
	})
	if err != nil {
		return err
	}
	h.router.DeliverMessage(c.Context(), view, msg)

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return items
}
