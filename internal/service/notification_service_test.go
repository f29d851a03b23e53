package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/config"
	"github.com/goldvault/support-messaging/internal/domain"
	"github.com/goldvault/support-messaging/internal/events"
	"github.com/goldvault/support-messaging/internal/observability"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

func activeAdmin(id string) domain.Admin {
	return domain.Admin{ID: id, Email: id + "@example.com", Name: id, Active: true}
}

func newNotificationFixture(admins ...domain.Admin) (*NotificationService, *memNotificationRepo) {
	repo := newMemNotificationRepo()
	svc := NewNotificationService(NotificationDependencies{
		NotificationRepo: repo,
		AdminRepo:        newMemAdminRepo(admins...),
		Unread:           NewUnreadCounter(nil, zap.NewNop()),
		Logger:           zap.NewNop(),
		Metrics:          observability.NewMetrics(),
		Config:           config.NotificationConfig{},
		BaseURL:          "http://localhost:8080",
	})
	return svc, repo
}

func TestNotifyDefaultsPriority(t *testing.T) {
	svc, _ := newNotificationFixture(activeAdmin("adm-1"))
	record, err := svc.Notify(context.Background(), NotifyInput{
		RecipientType: domain.RecipientAdmin,
		RecipientID:   "adm-1",
		Type:          domain.NotificationAssignment,
		Title:         "Assigned",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if record.ID == "" {
		t.Fatalf("record not persisted")
	}
	if record.Priority != domain.NotificationPriorityNormal {
		t.Fatalf("expected normal priority default, got %s", record.Priority)
	}
}

func TestNotifyRequiresRecipient(t *testing.T) {
	svc, _ := newNotificationFixture()
	_, err := svc.Notify(context.Background(), NotifyInput{Type: domain.NotificationNewTicket})
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFanOutExcludesLiveAdmins(t *testing.T) {
	svc, repo := newNotificationFixture(activeAdmin("adm-1"), activeAdmin("adm-2"), activeAdmin("adm-3"))

	created, err := svc.FanOutToAllAdmins(context.Background(), NotifyInput{
		Type:  domain.NotificationCustomerResponse,
		Title: "New message",
	}, map[string]struct{}{"adm-2": {}})
	if err != nil {
		t.Fatalf("FanOutToAllAdmins: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(created))
	}
	for _, record := range created {
		if record.RecipientID == "adm-2" {
			t.Fatalf("excluded admin received a notification")
		}
	}
	if len(repo.records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(repo.records))
	}
}

func TestMarkReadEnforcesOwnership(t *testing.T) {
	svc, _ := newNotificationFixture(activeAdmin("adm-1"))
	record, err := svc.Notify(context.Background(), NotifyInput{
		RecipientType: domain.RecipientAdmin,
		RecipientID:   "adm-1",
		Type:          domain.NotificationNewTicket,
		Title:         "t",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	err = svc.MarkRead(context.Background(), domain.RecipientCustomer, "u1", record.ID)
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := svc.MarkRead(context.Background(), domain.RecipientAdmin, "adm-1", record.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	// Re-marking stays a no-op.
	if err := svc.MarkRead(context.Background(), domain.RecipientAdmin, "adm-1", record.ID); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
}

func TestRespondWithActionRequiresFlag(t *testing.T) {
	svc, _ := newNotificationFixture(activeAdmin("adm-1"))
	plain, _ := svc.Notify(context.Background(), NotifyInput{
		RecipientType: domain.RecipientAdmin,
		RecipientID:   "adm-1",
		Type:          domain.NotificationStatusUpdate,
		Title:         "t",
	})
	err := svc.RespondWithAction(context.Background(), domain.RecipientAdmin, "adm-1", plain.ID)
	if !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("expected conflict, got %v", err)
	}

	actionable, _ := svc.Notify(context.Background(), NotifyInput{
		RecipientType:  domain.RecipientAdmin,
		RecipientID:    "adm-1",
		Type:           domain.NotificationNewTicket,
		Title:          "t",
		ActionRequired: true,
	})
	if err := svc.RespondWithAction(context.Background(), domain.RecipientAdmin, "adm-1", actionable.ID); err != nil {
		t.Fatalf("RespondWithAction: %v", err)
	}
	stored, _ := svc.ListFor(context.Background(), domain.RecipientAdmin, "adm-1", false, 10, 0)
	var acted bool
	for _, record := range stored {
		if record.ID == actionable.ID && record.Actioned {
			acted = true
		}
	}
	if !acted {
		t.Fatalf("notification should be marked actioned")
	}
}

func TestTicketCreatedFansOutToRoster(t *testing.T) {
	svc, repo := newNotificationFixture(activeAdmin("adm-1"), activeAdmin("adm-2"))
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	ticketID := "tick-1"
	_ = dispatcher.Publish(context.Background(), events.Event{
		ID:        "evt-1",
		Type:      events.EventTicketCreated,
		Ref:       domain.ConversationRef{TicketID: &ticketID},
		Actor:     events.Actor{Type: domain.SubjectTypeCustomer},
		Timestamp: time.Now(),
		Payload: events.TicketCreatedPayload{
			TicketNumber: "GLD-ABCDEF01",
			Subject:      "Refund",
			Category:     "billing",
			Priority:     domain.TicketPriorityHigh,
			Customer:     "Guest",
		},
	})

	if len(repo.records) != 2 {
		t.Fatalf("expected fan-out to 2 admins, got %d records", len(repo.records))
	}
	for _, record := range repo.records {
		if record.Type != domain.NotificationNewTicket {
			t.Errorf("expected new_ticket type, got %s", record.Type)
		}
		if !record.ActionRequired {
			t.Errorf("new ticket notifications require action")
		}
		if record.Priority != domain.NotificationPriorityHigh {
			t.Errorf("high ticket priority should map to high notification priority, got %s", record.Priority)
		}
		if record.LinkRef == nil || *record.LinkRef != "http://localhost:8080/tickets/tick-1" {
			t.Errorf("unexpected link ref: %v", record.LinkRef)
		}
	}
}

func TestStatusChangeNotifiesLinkedCustomer(t *testing.T) {
	svc, repo := newNotificationFixture(activeAdmin("adm-1"))
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	ticketID := "tick-1"
	adminID := "adm-1"
	customerID := "u1"

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:  events.EventStatusChanged,
		Ref:   domain.ConversationRef{TicketID: &ticketID},
		Actor: events.Actor{Type: domain.SubjectTypeAdmin, AdminID: &adminID},
		Payload: events.StatusChangedPayload{
			OldStatus:      domain.TicketStatusOpen,
			NewStatus:      domain.TicketStatusInProgress,
			CustomerUserID: &customerID,
		},
	})

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 customer notification, got %d", len(repo.records))
	}
	record := repo.records[0]
	if record.RecipientType != domain.RecipientCustomer || record.RecipientID != customerID {
		t.Fatalf("unexpected recipient: %+v", record)
	}
	if record.Type != domain.NotificationStatusUpdate {
		t.Fatalf("expected status_update, got %s", record.Type)
	}
}

func TestStatusChangeToResolvedIsSilent(t *testing.T) {
	// The resolution event carries its own notification; status_changed to
	// resolved must not double-notify.
	svc, repo := newNotificationFixture(activeAdmin("adm-1"))
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	ticketID := "tick-1"
	customerID := "u1"
	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:  events.EventStatusChanged,
		Ref:   domain.ConversationRef{TicketID: &ticketID},
		Actor: events.Actor{Type: domain.SubjectTypeAdmin},
		Payload: events.StatusChangedPayload{
			OldStatus:      domain.TicketStatusInProgress,
			NewStatus:      domain.TicketStatusResolved,
			CustomerUserID: &customerID,
		},
	})
	if len(repo.records) != 0 {
		t.Fatalf("resolved transition must not create a status_update, got %d", len(repo.records))
	}

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketResolved,
		Ref:     domain.ConversationRef{TicketID: &ticketID},
		Actor:   events.Actor{Type: domain.SubjectTypeAdmin},
		Payload: events.TicketResolvedPayload{Notes: "fixed", CustomerUserID: &customerID},
	})
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 resolution notification, got %d", len(repo.records))
	}
	if repo.records[0].Type != domain.NotificationResolution {
		t.Fatalf("expected resolution type, got %s", repo.records[0].Type)
	}
}
