package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/api/http/handlers"
	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/config"
	"github.com/goldvault/support-messaging/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Chat           *handlers.ChatHandler
	Tickets        *handlers.TicketsHandler
	AdminTickets   *handlers.AdminTicketsHandler
	Notifications  *handlers.NotificationsHandler
	Realtime       *realtime.Router
	AuthMiddleware *auth.AuthMiddleware
	ChatConfig     config.ChatConfig
}

// RegisterRoutes wires HTTP and websocket routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/admin/login", cfg.Auth.AdminLogin)

	app.Use("/ws", realtime.UpgradeGuard())
	app.Get("/ws/chat", cfg.Realtime.Handler(cfg.ChatConfig.SendBufferSize, cfg.ChatConfig.WriteTimeout()))

	api := app.Group("/api")

	// Chat sessions are capability-addressed: knowing the session id grants
	// access, so the principal is optional.
	chat := api.Group("/chat", cfg.AuthMiddleware.HandleOptional)
	chat.Post("/sessions", cfg.Chat.CreateSession)
	chat.Get("/sessions/:id/messages", cfg.Chat.ListMessages)
	chat.Post("/sessions/:id/messages", cfg.Chat.PostMessage)
	chat.Post("/sessions/:id/promote", cfg.Chat.PromoteSession)
	chat.Post("/sessions/:id/end", cfg.Chat.EndSession)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.HandleOptional)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	notifications := api.Group("/notifications", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	notifications.Get("/", cfg.Notifications.List)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Post("/:id/action", cfg.Notifications.Action)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/tickets", cfg.AdminTickets.ListTickets)
	admin.Post("/tickets/:id/assign", cfg.AdminTickets.Assign)
	admin.Post("/tickets/:id/escalate", cfg.AdminTickets.Escalate)
	admin.Post("/tickets/:id/resolve", cfg.AdminTickets.Resolve)
	admin.Post("/tickets/:id/priority", cfg.AdminTickets.ChangePriority)
	admin.Post("/tickets/:id/status", cfg.AdminTickets.ChangeStatus)
	admin.Get("/tickets/:id/messages", cfg.AdminTickets.ListMessages)
	admin.Post("/tickets/:id/messages", cfg.AdminTickets.AddMessage)
}
