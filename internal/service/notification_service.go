package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/config"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/events"
	"github.com/goldvault/support-messaging/internal/observability"
	"github.com/goldvault/support-messaging/internal/repository"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// NotificationService creates and manages durable notification records.
// Creation is best-effort relative to the triggering business action: a
// failure here is logged and swallowed, never propagated to the trigger.
type NotificationService struct {
	notifications repository.NotificationRepository
	admins        repository.AdminRepository
	unread        *UnreadCounter
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           config.NotificationConfig
	baseURL       string
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	AdminRepo        repository.AdminRepository
	Unread           *UnreadCounter
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Config           config.NotificationConfig
	BaseURL          string
}

// NotifyInput describes one notification to create.
type NotifyInput struct {
	RecipientType  domain.RecipientType
	RecipientID    string
	Type           domain.NotificationType
	Title          string
	Body           string
	LinkRef        *string
	Priority       domain.NotificationPriority
	ActionRequired bool
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		admins:        deps.AdminRepo,
		unread:        deps.Unread,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		cfg:           deps.Config,
		baseURL:       deps.BaseURL,
	}
}

// Notify creates one notification record. Idempotency per (recipient, event)
// is the caller's responsibility; this is a pure create.
func (n *NotificationService) Notify(ctx context.Context, input NotifyInput) (*domain.Notification, error) {
	if input.RecipientID == "" {
		return nil, apperrors.NewValidationError("recipient required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.NotificationPriorityNormal
	}
	record := &domain.Notification{
		RecipientType:  input.RecipientType,
		RecipientID:    input.RecipientID,
		Type:           input.Type,
		Title:          input.Title,
		Body:           input.Body,
		LinkRef:        input.LinkRef,
		Priority:       priority,
		ActionRequired: input.ActionRequired,
	}
	if err := n.notifications.Create(ctx, record); err != nil {
		return nil, apperrors.MapError(err)
	}
	n.metrics.RecordNotification(1)
	n.unread.Incr(ctx, input.RecipientType, input.RecipientID)
	n.deliverOutOfBand(ctx, record)
	return record, nil
}

// FanOutToAllAdmins resolves the admin roster at call time and creates one
// notification per admin, minus any excluded (already live) recipients.
// Per-admin failures are logged and skipped so one bad row never starves
// the rest of the pool.
func (n *NotificationService) FanOutToAllAdmins(ctx context.Context, input NotifyInput, exclude map[string]struct{}) ([]domain.Notification, error) {
	roster, err := n.admins.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	created := make([]domain.Notification, 0, len(roster))
	for _, admin := range roster {
		if _, skip := exclude[admin.ID]; skip {
			continue
		}
		in := input
		in.RecipientType = domain.RecipientAdmin
		in.RecipientID = admin.ID
		record, err := n.Notify(ctx, in)
		if err != nil {
			n.logger.Error("notify admin", zap.String("admin_id", admin.ID), zap.Error(err))
			continue
		}
		created = append(created, *record)
	}
	return created, nil
}

// ListFor returns a recipient's notifications, newest first.
func (n *NotificationService) ListFor(ctx context.Context, recipientType domain.RecipientType, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	list, err := n.notifications.ListByRecipient(ctx, recipientType, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// MarkRead transitions one notification to read. Re-marking is a no-op.
func (n *NotificationService) MarkRead(ctx context.Context, recipientType domain.RecipientType, recipientID, notificationID string) error {
	record, err := n.getOwned(ctx, recipientType, recipientID, notificationID)
	if err != nil {
		return err
	}
	if err := n.notifications.MarkRead(ctx, notificationID); err != nil {
		return apperrors.MapError(err)
	}
	if record.Unread() {
		n.unread.Decr(ctx, recipientType, recipientID)
	}
	return nil
}

// MarkAllRead clears a recipient's unread set.
func (n *NotificationService) MarkAllRead(ctx context.Context, recipientType domain.RecipientType, recipientID string) error {
	if err := n.notifications.MarkAllRead(ctx, recipientType, recipientID); err != nil {
		return apperrors.MapError(err)
	}
	n.unread.Reset(ctx, recipientType, recipientID)
	return nil
}

// RespondWithAction records that the recipient acted on a notification.
func (n *NotificationService) RespondWithAction(ctx context.Context, recipientType domain.RecipientType, recipientID, notificationID string) error {
	record, err := n.getOwned(ctx, recipientType, recipientID, notificationID)
	if err != nil {
		return err
	}
	if !record.ActionRequired {
		return apperrors.NewConflict("notification does not require action", nil)
	}
	if err := n.notifications.MarkActioned(ctx, notificationID); err != nil {
		return apperrors.MapError(err)
	}
	if record.Unread() {
		n.unread.Decr(ctx, recipientType, recipientID)
	}
	return nil
}

func (n *NotificationService) getOwned(ctx context.Context, recipientType domain.RecipientType, recipientID, notificationID string) (*domain.Notification, error) {
	record, err := n.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return nil, apperrors.MapError(err)
	}
	if record.RecipientType != recipientType || record.RecipientID != recipientID {
		return nil, apperrors.NewForbidden("notification belongs to another recipient")
	}
	return record, nil
}

// RegisterHandlers subscribes to structural events. Message-level
// notifications are presence-aware and created by the delivery path, not
// here, so a single customer message never produces duplicate records.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	dispatcher.Subscribe(events.EventStatusChanged, n.handleStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || event.Ref.TicketID == nil {
		return nil
	}
	link := n.ticketLink(*event.Ref.TicketID)
	_, err := n.FanOutToAllAdmins(ctx, NotifyInput{
		Type:           domain.NotificationNewTicket,
		Title:          fmt.Sprintf("New ticket %s", payload.TicketNumber),
		Body:           fmt.Sprintf("%s opened %q (%s, %s)", payload.Customer, payload.Subject, payload.Category, payload.Priority),
		LinkRef:        &link,
		Priority:       notificationPriorityFor(payload.Priority),
		ActionRequired: true,
	}, nil)
	if err != nil {
		n.logger.Error("fan out ticket created", zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || event.Ref.TicketID == nil || payload.AssignedAdminID == "" {
		return nil
	}
	link := n.ticketLink(*event.Ref.TicketID)
	if _, err := n.Notify(ctx, NotifyInput{
		RecipientType:  domain.RecipientAdmin,
		RecipientID:    payload.AssignedAdminID,
		Type:           domain.NotificationAssignment,
		Title:          "Ticket assigned to you",
		LinkRef:        &link,
		ActionRequired: true,
	}); err != nil {
		n.logger.Error("notify assignment", zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok || event.Ref.TicketID == nil {
		return nil
	}
	link := n.ticketLink(*event.Ref.TicketID)
	if _, err := n.FanOutToAllAdmins(ctx, NotifyInput{
		Type:     domain.NotificationEscalation,
		Title:    "Ticket escalated",
		Body:     payload.Reason,
		LinkRef:  &link,
		Priority: domain.NotificationPriorityHigh,
	}, nil); err != nil {
		n.logger.Error("fan out escalation", zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok || event.Ref.TicketID == nil {
		return nil
	}
	n.notifyCustomer(ctx, event, payload.CustomerUserID, domain.NotificationResolution,
		"Your ticket has been resolved", payload.Notes)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok || event.Ref.TicketID == nil {
		return nil
	}
	// Resolution carries its own richer notification.
	if payload.NewStatus == domain.TicketStatusResolved {
		return nil
	}
	n.notifyCustomer(ctx, event, payload.CustomerUserID, domain.NotificationStatusUpdate,
		fmt.Sprintf("Ticket status changed to %s", payload.NewStatus), payload.Comment)
	return nil
}

// notifyCustomer addresses the ticket's linked user, when one exists. Guests
// without a linked user id have no durable inbox; they catch up via the
// transcript itself. Customers are not notified about their own actions.
func (n *NotificationService) notifyCustomer(ctx context.Context, event events.Event, customerUserID *string, notifType domain.NotificationType, title, body string) {
	if customerUserID == nil || event.Ref.TicketID == nil {
		return
	}
	if event.Actor.Type == domain.SubjectTypeCustomer {
		return
	}
	customerID := *customerUserID
	link := n.ticketLink(*event.Ref.TicketID)
	if _, err := n.Notify(ctx, NotifyInput{
		RecipientType: domain.RecipientCustomer,
		RecipientID:   customerID,
		Type:          notifType,
		Title:         title,
		Body:          body,
		LinkRef:       &link,
	}); err != nil {
		n.logger.Error("notify customer", zap.Error(err))
	}
}

func (n *NotificationService) ticketLink(ticketID string) string {
	return strings.TrimRight(n.baseURL, "/") + "/tickets/" + ticketID
}

// deliverOutOfBand attempts email/webhook delivery per the recipient's
// notification method. Delivery failure never affects record durability.
func (n *NotificationService) deliverOutOfBand(ctx context.Context, record *domain.Notification) {
	if record.RecipientType != domain.RecipientAdmin {
		return
	}
	admin, err := n.admins.GetByID(ctx, record.RecipientID)
	if err != nil {
		n.logger.Debug("out-of-band delivery skipped", zap.Error(err))
		return
	}
	switch admin.NotificationMethod {
	case domain.NotificationMethodEmail:
		n.sendEmailStub(admin.Email, record)
	case domain.NotificationMethodWebhook:
		n.sendWebhookStub(record)
	}
}

func (n *NotificationService) sendEmailStub(to string, record *domain.Notification) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("notification_id", record.ID),
		zap.String("type", string(record.Type)))
}

func (n *NotificationService) sendWebhookStub(record *domain.Notification) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("notification_id", record.ID),
		zap.String("type", string(record.Type)))
}

func notificationPriorityFor(priority domain.TicketPriority) domain.NotificationPriority {
	switch priority {
	case domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
		return domain.NotificationPriorityHigh
	case domain.TicketPriorityLow:
		return domain.NotificationPriorityLow
	default:
		return domain.NotificationPriorityNormal
	}
}
