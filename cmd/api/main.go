package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/goldvault/support-messaging/internal/api/http"
	"github.com/goldvault/support-messaging/internal/api/http/handlers"
	"github.com/goldvault/support-messaging/internal/auth"
	"github.com/goldvault/support-messaging/internal/config"
	"github.com/goldvault/support-messaging/internal/events"
	"github.com/goldvault/support-messaging/internal/observability"
	"github.com/goldvault/support-messaging/internal/persistence"
	"github.com/goldvault/support-messaging/internal/realtime"
	"github.com/goldvault/support-messaging/internal/repository"
	"github.com/goldvault/support-messaging/internal/service"
	"github.com/goldvault/support-messaging/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	sessionRepo := repository.NewSessionRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	unread := service.NewUnreadCounter(redis.Client, logger)

	conversationService := service.NewConversationService(service.ConversationDependencies{
		SessionRepo: sessionRepo,
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		AdminRepo:        adminRepo,
		Unread:           unread,
		Logger:           logger,
		Metrics:          metrics,
		Config:           cfg.Notification,
		BaseURL:          cfg.App.BaseURL,
	})
	triageService := service.NewTriageService(service.TriageDependencies{
		TicketRepo:    ticketRepo,
		AdminRepo:     adminRepo,
		Conversations: conversationService,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	authService := service.NewAuthService(adminRepo, tokens, logger)

	worker.StartNotificationWorker(notificationService, dispatcher)

	rtRouter := realtime.NewRouter(realtime.RouterDependencies{
		Presence: realtime.NewPresence(),
		Store:    conversationService,
		Notifier: notificationService,
		Tokens:   tokens,
		Metrics:  metrics,
		Logger:   logger,
		Greeting: cfg.Chat.GreetingText,
	})

	authMiddleware := auth.NewAuthMiddleware(tokens, adminRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Chat:           handlers.NewChatHandler(conversationService, rtRouter, cfg.Chat),
		Tickets:        handlers.NewTicketsHandler(conversationService, triageService, rtRouter),
		AdminTickets:   handlers.NewAdminTicketsHandler(conversationService, triageService, rtRouter),
		Notifications:  handlers.NewNotificationsHandler(notificationService, unread),
		Realtime:       rtRouter,
		AuthMiddleware: authMiddleware,
		ChatConfig:     cfg.Chat,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	rtRouter.Shutdown()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
