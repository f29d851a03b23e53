package worker

import (
	"github.com/goldvault/support-messaging/internal/events"
	"github.com/goldvault/support-messaging/internal/service"
)

// StartNotificationWorker subscribes the notification service to structural
// conversation events. Message-level notifications are handled by the
// delivery path, which knows who is live.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil || dispatcher == nil {
		return
	}
	notificationService.RegisterHandlers(dispatcher)
}
