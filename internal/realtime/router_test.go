package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/observability"
	"github.com/goldvault/support-messaging/internal/service"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

type fakeStore struct {
	views     map[string]*service.ConversationView
	appended  []service.AppendMessageInput
	appendErr error
	seq       int64
}

func (s *fakeStore) Lookup(_ context.Context, conversationID string) (*service.ConversationView, error) {
	view, ok := s.views[conversationID]
	if !ok {
		return nil, apperrors.NewNotFound("conversation", map[string]any{"conversation_id": conversationID})
	}
	return view, nil
}

func (s *fakeStore) AppendMessage(_ context.Context, ref domain.ConversationRef, input service.AppendMessageInput) (*domain.Message, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	s.appended = append(s.appended, input)
	s.seq++
	msg := &domain.Message{
		ID:           "msg-1",
		Seq:          s.seq,
		Body:         input.Body,
		IsCustomer:   input.IsCustomer,
		SenderUserID: input.SenderUserID,
		Kind:         input.Kind,
		CreatedAt:    time.Now(),
	}
	if ref.SessionID != nil {
		msg.SessionID = ref.SessionID
	}
	if ref.TicketID != nil {
		msg.TicketID = ref.TicketID
	}
	return msg, nil
}

type fanoutCall struct {
	input   service.NotifyInput
	exclude map[string]struct{}
}

type fakeNotifier struct {
	direct  []service.NotifyInput
	fanouts []fanoutCall
}

func (n *fakeNotifier) Notify(_ context.Context, input service.NotifyInput) (*domain.Notification, error) {
	n.direct = append(n.direct, input)
	return &domain.Notification{ID: "n-1"}, nil
}

func (n *fakeNotifier) FanOutToAllAdmins(_ context.Context, input service.NotifyInput, exclude map[string]struct{}) ([]domain.Notification, error) {
	n.fanouts = append(n.fanouts, fanoutCall{input: input, exclude: exclude})
	return nil, nil
}

type fakeVerifier struct {
	claims map[string]*auth.Claims
}

func (v *fakeVerifier) ParseToken(token string) (*auth.Claims, error) {
	claims, ok := v.claims[token]
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return claims, nil
}

func sessionView(sessionID string) *service.ConversationView {
	id := sessionID
	return &service.ConversationView{
		Ref:             domain.ConversationRef{SessionID: &id},
		AcceptsMessages: true,
	}
}

func newTestRouter(store *fakeStore, notifier *fakeNotifier) *Router {
	verifier := &fakeVerifier{claims: map[string]*auth.Claims{
		"admin-token": {SubjectID: "adm-1", Subject: domain.SubjectTypeAdmin},
	}}
	return NewRouter(RouterDependencies{
		Presence: NewPresence(),
		Store:    store,
		Notifier: notifier,
		Tokens:   verifier,
		Metrics:  observability.NewMetrics(),
		Logger:   zap.NewNop(),
	})
}

func dispatch(t *testing.T, r *Router, sender Sender, frame any) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	r.Dispatch(context.Background(), sender, data)
}

func frameType(t *testing.T, data []byte) string {
	t.Helper()
	var decoded struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return decoded.Type
}

func lastFrameType(t *testing.T, conn *fakeSender) string {
	t.Helper()
	if len(conn.frames) == 0 {
		t.Fatalf("expected at least one frame")
	}
	return frameType(t, conn.frames[len(conn.frames)-1])
}

func authenticateGuest(t *testing.T, r *Router, conn *fakeSender, userID *string) {
	t.Helper()
	r.Presence().Register(conn)
	dispatch(t, r, conn, Envelope{Type: TypeAuthenticate, UserID: userID})
	if got := lastFrameType(t, conn); got != TypeAuthenticated {
		t.Fatalf("expected authenticated frame, got %s", got)
	}
}

func authenticateAdmin(t *testing.T, r *Router, conn *fakeSender) {
	t.Helper()
	r.Presence().Register(conn)
	dispatch(t, r, conn, Envelope{Type: TypeAuthenticate, Token: "admin-token"})
	if got := lastFrameType(t, conn); got != TypeAuthenticated {
		t.Fatalf("expected authenticated frame, got %s", got)
	}
}

func TestAuthenticateSendsGreetingToCustomers(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, &fakeNotifier{})
	r.greeting = "Hello! How can we help you today?"

	conn := newFakeSender("c1")
	r.Presence().Register(conn)
	dispatch(t, r, conn, Envelope{Type: TypeAuthenticate})

	if got := lastFrameType(t, conn); got != TypeChatMessage {
		t.Fatalf("expected greeting frame, got %s", got)
	}
	var frame MessageFrame
	if err := json.Unmarshal(conn.frames[len(conn.frames)-1], &frame); err != nil {
		t.Fatalf("decode greeting: %v", err)
	}
	if frame.Message != r.greeting || frame.IsCustomer {
		t.Fatalf("unexpected greeting payload: %+v", frame)
	}
	if len(store.appended) != 0 {
		t.Fatalf("greeting must not be persisted")
	}

	adminConn := newFakeSender("c2")
	r.Presence().Register(adminConn)
	dispatch(t, r, adminConn, Envelope{Type: TypeAuthenticate, Token: "admin-token"})
	if got := lastFrameType(t, adminConn); got != TypeAuthenticated {
		t.Fatalf("admins should not be greeted, got %s", got)
	}
}

func TestDispatchMalformedEnvelope(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeNotifier{})
	conn := newFakeSender("c1")
	r.Presence().Register(conn)

	r.Dispatch(context.Background(), conn, []byte("{not json"))
	if got := lastFrameType(t, conn); got != TypeError {
		t.Fatalf("expected error frame, got %s", got)
	}

	// The connection stays usable after a malformed frame.
	dispatch(t, r, conn, Envelope{Type: TypeAuthenticate})
	if got := lastFrameType(t, conn); got != TypeAuthenticated {
		t.Fatalf("expected authenticated frame after recovery, got %s", got)
	}
}

func TestAuthenticateAdminRequiresToken(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeNotifier{})
	conn := newFakeSender("c1")
	r.Presence().Register(conn)

	dispatch(t, r, conn, Envelope{Type: TypeAuthenticate, IsAdmin: true})
	if got := lastFrameType(t, conn); got != TypeError {
		t.Fatalf("expected error frame, got %s", got)
	}
}

func TestChatMessageRequiresAuthentication(t *testing.T) {
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": sessionView("s1")}}
	r := newTestRouter(store, &fakeNotifier{})
	conn := newFakeSender("c1")
	r.Presence().Register(conn)

	dispatch(t, r, conn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "hi"})
	if got := lastFrameType(t, conn); got != TypeError {
		t.Fatalf("expected error frame, got %s", got)
	}
	if len(store.appended) != 0 {
		t.Fatalf("nothing should be persisted before authentication")
	}
}

func TestChatMessageEchoesToSender(t *testing.T) {
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": sessionView("s1")}}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	conn := newFakeSender("c1")
	authenticateGuest(t, r, conn, nil)
	dispatch(t, r, conn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "hello"})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(store.appended))
	}
	if !store.appended[0].IsCustomer {
		t.Fatalf("guest message should be flagged as customer")
	}
	if got := lastFrameType(t, conn); got != TypeChatMessage {
		t.Fatalf("expected chat_message echo, got %s", got)
	}

	var frame MessageFrame
	if err := json.Unmarshal(conn.frames[len(conn.frames)-1], &frame); err != nil {
		t.Fatalf("decode echo: %v", err)
	}
	if frame.Message != "hello" || frame.SessionID != "s1" {
		t.Fatalf("unexpected echo payload: %+v", frame)
	}
}

func TestCustomerMessageNotifiesOfflineAssignee(t *testing.T) {
	view := sessionView("s1")
	adminID := "adm-1"
	view.AssignedAdminID = &adminID
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": view}}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	conn := newFakeSender("c1")
	authenticateGuest(t, r, conn, nil)
	dispatch(t, r, conn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "anyone there?"})

	if len(notifier.direct) != 1 {
		t.Fatalf("expected 1 direct notification, got %d", len(notifier.direct))
	}
	got := notifier.direct[0]
	if got.RecipientID != adminID || got.RecipientType != domain.RecipientAdmin {
		t.Fatalf("notification should target the assignee, got %+v", got)
	}
	if got.Type != domain.NotificationCustomerResponse {
		t.Fatalf("expected customer_response notification, got %s", got.Type)
	}
	if len(notifier.fanouts) != 0 {
		t.Fatalf("assigned tickets must not fan out")
	}
}

func TestCustomerMessageSkipsLiveAssignee(t *testing.T) {
	view := sessionView("s1")
	adminID := "adm-1"
	view.AssignedAdminID = &adminID
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": view}}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	adminConn := newFakeSender("admin-conn")
	authenticateAdmin(t, r, adminConn)
	dispatch(t, r, adminConn, Envelope{Type: TypeSubscribe, SessionID: "s1"})
	if got := lastFrameType(t, adminConn); got != TypeSubscribed {
		t.Fatalf("expected subscribed ack, got %s", got)
	}

	guestConn := newFakeSender("guest-conn")
	authenticateGuest(t, r, guestConn, nil)
	dispatch(t, r, guestConn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "hi"})

	if len(notifier.direct) != 0 || len(notifier.fanouts) != 0 {
		t.Fatalf("live assignee must not be notified")
	}
	if got := lastFrameType(t, adminConn); got != TypeChatMessage {
		t.Fatalf("live admin should receive the broadcast, got %s", got)
	}
}

func TestCustomerMessageFansOutWhenUnassigned(t *testing.T) {
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": sessionView("s1")}}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	adminConn := newFakeSender("admin-conn")
	authenticateAdmin(t, r, adminConn)
	dispatch(t, r, adminConn, Envelope{Type: TypeSubscribe, SessionID: "s1"})

	guestConn := newFakeSender("guest-conn")
	authenticateGuest(t, r, guestConn, nil)
	dispatch(t, r, guestConn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "hi"})

	if len(notifier.fanouts) != 1 {
		t.Fatalf("expected 1 fan-out, got %d", len(notifier.fanouts))
	}
	if _, excluded := notifier.fanouts[0].exclude["adm-1"]; !excluded {
		t.Fatalf("live admin should be excluded from fan-out")
	}
}

func TestAdminMessageNotifiesOfflineCustomer(t *testing.T) {
	view := sessionView("s1")
	customerID := "u1"
	view.CustomerUserID = &customerID
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": view}}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	adminConn := newFakeSender("admin-conn")
	authenticateAdmin(t, r, adminConn)
	dispatch(t, r, adminConn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "how can I help?"})

	if len(store.appended) != 1 || store.appended[0].IsCustomer {
		t.Fatalf("admin message should persist with is_customer=false")
	}
	if len(notifier.direct) != 1 {
		t.Fatalf("expected 1 customer notification, got %d", len(notifier.direct))
	}
	got := notifier.direct[0]
	if got.RecipientType != domain.RecipientCustomer || got.RecipientID != customerID {
		t.Fatalf("notification should target the customer, got %+v", got)
	}
	if got.Type != domain.NotificationAdminResponse {
		t.Fatalf("expected admin_response notification, got %s", got.Type)
	}
}

func TestAdminMessageSkipsLiveCustomer(t *testing.T) {
	view := sessionView("s1")
	customerID := "u1"
	view.CustomerUserID = &customerID
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": view}}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	customerConn := newFakeSender("cust-conn")
	authenticateGuest(t, r, customerConn, &customerID)
	dispatch(t, r, customerConn, Envelope{Type: TypeSubscribe, SessionID: "s1"})

	adminConn := newFakeSender("admin-conn")
	authenticateAdmin(t, r, adminConn)
	dispatch(t, r, adminConn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "hello"})

	if len(notifier.direct) != 0 {
		t.Fatalf("live customer must not be notified")
	}
	if got := lastFrameType(t, customerConn); got != TypeChatMessage {
		t.Fatalf("live customer should receive the broadcast, got %s", got)
	}
}

func TestFailedPersistSuppressesBroadcast(t *testing.T) {
	store := &fakeStore{
		views:     map[string]*service.ConversationView{"s1": sessionView("s1")},
		appendErr: apperrors.NewConflict("ticket is closed", nil),
	}
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier)

	peerConn := newFakeSender("peer")
	authenticateGuest(t, r, peerConn, nil)
	dispatch(t, r, peerConn, Envelope{Type: TypeSubscribe, SessionID: "s1"})
	peerFrames := len(peerConn.frames)

	senderConn := newFakeSender("sender")
	authenticateGuest(t, r, senderConn, nil)
	dispatch(t, r, senderConn, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "hi"})

	if got := lastFrameType(t, senderConn); got != TypeError {
		t.Fatalf("sender should get the store error, got %s", got)
	}
	if len(peerConn.frames) != peerFrames {
		t.Fatalf("nothing may be broadcast when persistence fails")
	}
	if len(notifier.direct) != 0 || len(notifier.fanouts) != 0 {
		t.Fatalf("no notifications when persistence fails")
	}
}

func TestTypingBroadcastExcludesSender(t *testing.T) {
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": sessionView("s1")}}
	r := newTestRouter(store, &fakeNotifier{})

	a := newFakeSender("a")
	authenticateGuest(t, r, a, nil)
	dispatch(t, r, a, Envelope{Type: TypeSubscribe, SessionID: "s1"})

	b := newFakeSender("b")
	authenticateGuest(t, r, b, nil)
	dispatch(t, r, b, Envelope{Type: TypeSubscribe, SessionID: "s1"})

	aFrames := len(a.frames)
	dispatch(t, r, a, Envelope{Type: TypeTyping, SessionID: "s1"})

	if len(a.frames) != aFrames {
		t.Fatalf("typing must not echo to the sender")
	}
	if got := lastFrameType(t, b); got != TypeTyping {
		t.Fatalf("peer should see typing frame, got %s", got)
	}
}

func TestSubscribeUnknownConversation(t *testing.T) {
	r := newTestRouter(&fakeStore{views: map[string]*service.ConversationView{}}, &fakeNotifier{})
	conn := newFakeSender("c1")
	authenticateGuest(t, r, conn, nil)

	dispatch(t, r, conn, Envelope{Type: TypeSubscribe, SessionID: "missing"})
	if got := lastFrameType(t, conn); got != TypeError {
		t.Fatalf("expected error frame, got %s", got)
	}
}

func TestPreviewKeepsRuneBoundaries(t *testing.T) {
	got := preview(strings.Repeat("é", 120), 120)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if len(got) > 120 {
		t.Fatalf("preview exceeds byte limit: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated preview should end with an ellipsis, got %q", got)
	}
	if got := preview("short", 120); got != "short" {
		t.Fatalf("short bodies must pass through untouched, got %q", got)
	}
}

func TestPromotedSessionSpansBothRooms(t *testing.T) {
	sessionID := "s1"
	ticketID := "t1"
	view := &service.ConversationView{
		Ref:             domain.ConversationRef{SessionID: &sessionID, TicketID: &ticketID},
		TicketID:        ticketID,
		AcceptsMessages: true,
	}
	store := &fakeStore{views: map[string]*service.ConversationView{"s1": view, "t1": view}}
	r := newTestRouter(store, &fakeNotifier{})

	// One subscriber joins via the session id, the other via the ticket id.
	bySession := newFakeSender("by-session")
	authenticateGuest(t, r, bySession, nil)
	dispatch(t, r, bySession, Envelope{Type: TypeSubscribe, SessionID: "s1"})

	byTicket := newFakeSender("by-ticket")
	authenticateAdmin(t, r, byTicket)
	dispatch(t, r, byTicket, Envelope{Type: TypeSubscribe, SessionID: "t1"})

	sender := newFakeSender("sender")
	authenticateGuest(t, r, sender, nil)
	dispatch(t, r, sender, Envelope{Type: TypeChatMessage, SessionID: "s1", Message: "both sides"})

	if got := lastFrameType(t, bySession); got != TypeChatMessage {
		t.Fatalf("session subscriber missed the message, got %s", got)
	}
	if got := lastFrameType(t, byTicket); got != TypeChatMessage {
		t.Fatalf("ticket subscriber missed the message, got %s", got)
	}
}
