package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/observability"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// ConversationStore is the router's view of the conversation service.
type ConversationStore interface {
	Lookup(ctx context.Context, conversationID string) (*service.ConversationView, error)
	AppendMessage(ctx context.Context, ref domain.ConversationRef, input service.AppendMessageInput) (*domain.Message, error)
}

// NotificationSink receives durable notifications for recipients with no
// live subscription.
type NotificationSink interface {
	Notify(ctx context.Context, input service.NotifyInput) (*domain.Notification, error)
	FanOutToAllAdmins(ctx context.Context, input service.NotifyInput, exclude map[string]struct{}) ([]domain.Notification, error)
}

// TokenVerifier validates bearer tokens presented over the socket.
type TokenVerifier interface {
	ParseToken(token string) (*auth.Claims, error)
}

// Router drives the per-connection protocol and owns the single delivery
// path for messages: persist first, broadcast to live subscribers, then
// create notifications for intended recipients who were not reachable.
// HTTP fallback handlers reuse DeliverMessage so polling clients' messages
// still reach live subscribers.
type Router struct {
	presence *Presence
	store    ConversationStore
	notifier NotificationSink
	tokens   TokenVerifier
	metrics  *observability.Metrics
	logger   *zap.Logger
	greeting string
}

// RouterDependencies bundles collaborators.
type RouterDependencies struct {
	Presence *Presence
	Store    ConversationStore
	Notifier NotificationSink
	Tokens   TokenVerifier
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Greeting string
}

// NewRouter constructs a Router.
func NewRouter(deps RouterDependencies) *Router {
	return &Router{
		presence: deps.Presence,
		store:    deps.Store,
		notifier: deps.Notifier,
		tokens:   deps.Tokens,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		greeting: deps.Greeting,
	}
}

// Presence exposes the registry for transports that register connections.
func (r *Router) Presence() *Presence {
	return r.presence
}

// Dispatch handles one inbound frame. Malformed frames produce an error
// frame and leave the connection open; protocol violations do the same. The
// connection's lifecycle belongs to the transport read loop, not to Dispatch.
func (r *Router) Dispatch(ctx context.Context, sender Sender, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.reply(sender, encodeError("malformed envelope"))
		return
	}
	r.metrics.RecordEnvelope(env.Type)

	switch env.Type {
	case TypeAuthenticate:
		r.handleAuthenticate(sender, env)
	case TypeSubscribe:
		r.handleSubscribe(ctx, sender, env)
	case TypeUnsubscribe:
		r.handleUnsubscribe(ctx, sender, env)
	case TypeChatMessage:
		r.handleChatMessage(ctx, sender, env)
	case TypeTyping:
		r.handleTyping(ctx, sender, env)
	default:
		r.reply(sender, encodeError("unknown envelope type"))
	}
}

func (r *Router) handleAuthenticate(sender Sender, env Envelope) {
	var identity Identity

	switch {
	case env.Token != "":
		claims, err := r.tokens.ParseToken(env.Token)
		if err != nil {
			r.reply(sender, encodeError("invalid token"))
			return
		}
		subjectID := claims.SubjectID
		identity = Identity{UserID: &subjectID, IsAdmin: claims.IsAdmin()}
	case env.IsAdmin:
		// Admin identity requires a token; a bare flag proves nothing.
		r.reply(sender, encodeError("admin authentication requires a token"))
		return
	default:
		identity = Identity{UserID: env.UserID}
	}

	if !r.presence.Authenticate(sender.ID(), identity) {
		r.reply(sender, encodeError("connection not registered"))
		return
	}
	r.reply(sender, encodeAuthenticated(identity.UserID, identity.IsAdmin))

	// Courtesy greeting for customers. Synthesized per connection, never
	// stored, so reconnects see it again and transcripts stay clean.
	if r.greeting != "" && !identity.IsAdmin {
		r.reply(sender, encodeGreeting(r.greeting))
	}
}

func (r *Router) handleSubscribe(ctx context.Context, sender Sender, env Envelope) {
	if !r.requireAuthed(sender) {
		return
	}
	if env.SessionID == "" {
		r.reply(sender, encodeError("sessionId required"))
		return
	}
	view, err := r.store.Lookup(ctx, env.SessionID)
	if err != nil {
		r.replyDomainError(sender, err)
		return
	}
	for _, room := range roomIDsFor(view) {
		r.presence.Subscribe(sender.ID(), room)
	}
	r.reply(sender, encodeAck(TypeSubscribed, env.SessionID))
}

func (r *Router) handleUnsubscribe(ctx context.Context, sender Sender, env Envelope) {
	if env.SessionID == "" {
		r.reply(sender, encodeError("sessionId required"))
		return
	}
	rooms := []string{env.SessionID}
	if view, err := r.store.Lookup(ctx, env.SessionID); err == nil {
		rooms = roomIDsFor(view)
	}
	for _, room := range rooms {
		r.presence.Unsubscribe(sender.ID(), room)
	}
	r.reply(sender, encodeAck(TypeUnsubscribed, env.SessionID))
}

func (r *Router) handleChatMessage(ctx context.Context, sender Sender, env Envelope) {
	identity, authed := r.presence.IdentityOf(sender.ID())
	if !authed {
		r.reply(sender, encodeError("authenticate first"))
		return
	}
	if env.SessionID == "" {
		r.reply(sender, encodeError("sessionId required"))
		return
	}
	if strings.TrimSpace(env.Message) == "" {
		r.reply(sender, encodeError("message required"))
		return
	}

	view, err := r.store.Lookup(ctx, env.SessionID)
	if err != nil {
		r.replyDomainError(sender, err)
		return
	}

	msg, err := r.store.AppendMessage(ctx, view.Ref, service.AppendMessageInput{
		Body:         env.Message,
		IsCustomer:   !identity.IsAdmin,
		SenderUserID: identity.UserID,
		Kind:         domain.MessageKindText,
	})
	if err != nil {
		r.replyDomainError(sender, err)
		return
	}

	// The sender sees their own message echoed back, so subscribe them
	// before delivery in case they skipped the subscribe frame.
	for _, room := range roomIDsFor(view) {
		r.presence.Subscribe(sender.ID(), room)
	}
	r.DeliverMessage(ctx, view, msg)
}

func (r *Router) handleTyping(ctx context.Context, sender Sender, env Envelope) {
	identity, authed := r.presence.IdentityOf(sender.ID())
	if !authed || env.SessionID == "" {
		return
	}
	rooms := []string{env.SessionID}
	if view, err := r.store.Lookup(ctx, env.SessionID); err == nil {
		rooms = roomIDsFor(view)
	}
	r.presence.BroadcastExcept(rooms, encodeTyping(env.SessionID, !identity.IsAdmin), sender.ID())
}

// DeliverMessage broadcasts an already persisted message to live
// subscribers, then creates notifications for intended recipients with no
// live subscription. Returns the live delivery count.
func (r *Router) DeliverMessage(ctx context.Context, view *service.ConversationView, msg *domain.Message) int {
	rooms := roomIDsFor(view)
	payload := EncodeMessage(msg, primaryConversationID(view))
	delivered := r.presence.Broadcast(rooms, payload)
	r.metrics.RecordBroadcast(delivered)
	r.notifyOffline(ctx, view, msg, rooms)
	return delivered
}

func (r *Router) notifyOffline(ctx context.Context, view *service.ConversationView, msg *domain.Message, rooms []string) {
	// Transcript bookkeeping entries never page anyone.
	if msg.Kind != domain.MessageKindText {
		return
	}

	if msg.IsCustomer {
		liveAdmins := r.presence.SubscribedAdminIDs(rooms)
		input := service.NotifyInput{
			RecipientType: domain.RecipientAdmin,
			Type:          domain.NotificationCustomerResponse,
			Title:         "New customer message",
			Body:          preview(msg.Body, 120),
		}
		if view.AssignedAdminID != nil {
			if _, live := liveAdmins[*view.AssignedAdminID]; live {
				return
			}
			input.RecipientID = *view.AssignedAdminID
			if _, err := r.notifier.Notify(ctx, input); err != nil {
				r.logger.Error("notify assigned admin", zap.Error(err))
			}
			return
		}
		if _, err := r.notifier.FanOutToAllAdmins(ctx, input, liveAdmins); err != nil {
			r.logger.Error("fan out customer message", zap.Error(err))
		}
		return
	}

	if view.CustomerUserID == nil {
		return
	}
	if r.presence.IsUserSubscribed(*view.CustomerUserID, rooms) {
		return
	}
	if _, err := r.notifier.Notify(ctx, service.NotifyInput{
		RecipientType: domain.RecipientCustomer,
		RecipientID:   *view.CustomerUserID,
		Type:          domain.NotificationAdminResponse,
		Title:         "New reply from support",
		Body:          preview(msg.Body, 120),
	}); err != nil {
		r.logger.Error("notify customer", zap.Error(err))
	}
}

func (r *Router) requireAuthed(sender Sender) bool {
	if _, authed := r.presence.IdentityOf(sender.ID()); !authed {
		r.reply(sender, encodeError("authenticate first"))
		return false
	}
	return true
}

func (r *Router) reply(sender Sender, payload []byte) {
	if err := sender.Send(payload); err != nil && !errors.Is(err, ErrConnectionClosed) {
		r.logger.Debug("reply failed", zap.String("conn_id", sender.ID()), zap.Error(err))
	}
}

func (r *Router) replyDomainError(sender Sender, err error) {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		r.reply(sender, encodeError(domainErr.Message))
		return
	}
	r.reply(sender, encodeError("internal error"))
}

// roomIDsFor returns every room a conversation answers to. A promoted
// session spans two ids; subscribers on either see the same traffic.
func roomIDsFor(view *service.ConversationView) []string {
	rooms := make([]string, 0, 2)
	if view.Ref.SessionID != nil {
		rooms = append(rooms, *view.Ref.SessionID)
	}
	if view.Ref.TicketID != nil {
		rooms = append(rooms, *view.Ref.TicketID)
	}
	return rooms
}

func primaryConversationID(view *service.ConversationView) string {
	if view.Ref.SessionID != nil {
		return *view.Ref.SessionID
	}
	if view.Ref.TicketID != nil {
		return *view.Ref.TicketID
	}
	return ""
}

// preview truncates to at most max bytes without splitting a rune.
func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max
	if max > 3 {
		cut = max - 3
	}
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	if max <= 3 {
		return body[:cut]
	}
	return body[:cut] + "..."
}
