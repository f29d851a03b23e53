package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/api/dto"
	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/config"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/realtime"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// ChatHandler serves the HTTP fallback channel: session lifecycle plus
// polled reads and posted messages for clients without a websocket. Posted
// messages go through the same delivery path as socket traffic, so live
// subscribers still see them immediately.
type ChatHandler struct {
	conversations *service.ConversationService
	router        *realtime.Router
	chatCfg       config.ChatConfig
}

// NewChatHandler constructs handler.
func NewChatHandler(conversations *service.ConversationService, router *realtime.Router, chatCfg config.ChatConfig) *ChatHandler {
	return &ChatHandler{conversations: conversations, router: router, chatCfg: chatCfg}
}

// CreateSession handles POST /api/chat/sessions.
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	identity := domain.CustomerIdentity{Email: req.CustomerEmail, Name: req.CustomerName}
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.SubjectType == domain.SubjectTypeCustomer {
		identity.UserID = &principal.UserID
	}

	session, err := h.conversations.CreateSession(c.Context(), identity)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		ID:                  session.ID,
		Status:              session.Status,
		TicketID:            session.TicketID,
		PollIntervalSeconds: h.chatCfg.PollIntervalSeconds,
		CreatedAt:           session.CreatedAt,
	}})
}

// ListMessages handles GET /api/chat/sessions/:id/messages. Reading the
// transcript marks the counterparty's messages as read for the caller's side.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
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

// PostMessage handles POST /api/chat/sessions/:id/messages.
func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.conversations.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	isCustomer := isCustomerCaller(c)
	var senderUserID *string
	if principal, ok := auth.PrincipalFromContext(c); ok {
		senderUserID = &principal.UserID
	}

	msg, err := h.conversations.AppendMessage(c.Context(), view.Ref, service.AppendMessageInput{
		Body:         req.Body,
		IsCustomer:   isCustomer,
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

// PromoteSession handles POST /api/chat/sessions/:id/promote.
func (h *ChatHandler) PromoteSession(c *fiber.Ctx) error {
	var req dto.PromoteSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Subject:  req.Subject,
		Category: req.Category,
		Priority: req.Priority,
	}
	ticket, err := h.conversations.PromoteSessionToTicket(c.Context(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// EndSession handles POST /api/chat/sessions/:id/end.
func (h *ChatHandler) EndSession(c *fiber.Ctx) error {
	if err := h.conversations.EndSession(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func isCustomerCaller(c *fiber.Ctx) bool {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return true
	}
	return principal.SubjectType != domain.SubjectTypeAdmin
}

func attachmentInputs(reqs []dto.AttachmentRequest) []domain.AttachmentReference {
	if len(reqs) == 0 {
		return nil
	}
	refs := make([]domain.AttachmentReference, 0, len(reqs))
	for _, att := range reqs {
		refs = append(refs, domain.AttachmentReference{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}
	return refs
}

func messageResponses(msgs []domain.Message) []dto.MessageResponse {
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return items
}

func messageResponse(msg *domain.Message) dto.MessageResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			FileName:  att.FileName,
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
		})
	}
	return dto.MessageResponse{
		ID:          msg.ID,
		Seq:         msg.Seq,
		Body:        msg.Body,
		IsCustomer:  msg.IsCustomer,
		Kind:        msg.Kind,
		Attachments: attachments,
		CreatedAt:   msg.CreatedAt,
	}
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		TicketNumber:    ticket.TicketNumber,
		Subject:         ticket.Subject,
		Category:        ticket.Category,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		CustomerName:    ticket.CustomerName,
		AssignedAdminID: ticket.AssignedAdminID,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		ClosedAt:        ticket.ClosedAt,
	}
}
