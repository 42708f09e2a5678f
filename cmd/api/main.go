package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-desk/internal/api/http"
	"github.com/spec-kit/complaint-desk/internal/api/http/handlers"
	"github.com/spec-kit/complaint-desk/internal/auth"
	"github.com/spec-kit/complaint-desk/internal/config"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	"github.com/spec-kit/complaint-desk/internal/observability"
	"github.com/spec-kit/complaint-desk/internal/persistence"
	"github.com/spec-kit/complaint-desk/internal/repository/memory"
	"github.com/spec-kit/complaint-desk/internal/service"
	"github.com/spec-kit/complaint-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := persistence.OpenStore(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer backend.Close()

	redisClient := persistence.NewRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL())
	if backend.Memory != nil {
		seedDemo(backend.Memory, tokens, cfg.App, logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	var notifier service.Notifier = service.NewLogNotifier(logger)
	if redisClient != nil {
		notifier = service.NewRedisStreamNotifier(redisClient, cfg.Notification.Stream)
	}
	service.NewNotificationService(dispatcher, notifier, logger).RegisterHandlers()

	deps := service.TicketDependencies{Store: backend.Store, Dispatcher: dispatcher, Logger: logger}
	ticketService := service.NewTicketService(deps, cfg.Tickets)
	assignmentService := service.NewAssignmentService(deps)
	activityService := service.NewActivityService(backend.Store)
	analyticsService := service.NewAnalyticsService(backend.Store, redisClient, cfg.Analytics.CacheTTL, logger)
	departmentService := service.NewDepartmentService(backend.Store, logger)
	identityService := service.NewIdentityService(tokens, backend.Store.Repositories().Users, logger)

	if redisClient != nil {
		notificationWorker := worker.NewNotificationWorker(redisClient, backend.Store, worker.NewLogMailer(logger), worker.Options{
			Stream:     cfg.Notification.Stream,
			From:       cfg.Notification.EmailFrom,
			RetryEvery: cfg.Notification.RetryInterval,
		}, logger)
		go func() {
			if err := notificationWorker.Run(ctx); err != nil {
				logger.Error("notification worker exited", zap.Error(err))
			}
		}()
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())

	validate := handlers.NewValidator()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, backend.Store, redisClient),
		Tickets:     handlers.NewTicketsHandler(ticketService, assignmentService, validate),
		Thread:      handlers.NewThreadHandler(ticketService, activityService, validate),
		Analytics:   handlers.NewAnalyticsHandler(analyticsService),
		Departments: handlers.NewDepartmentsHandler(departmentService, validate),
		Identity:    auth.NewIdentityMiddleware(identityService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// seedDemo gives the in-memory store an organization to work with and logs
// development tokens outside production.
func seedDemo(store *memory.Store, tokens *auth.TokenManager, app config.AppConfig, logger *zap.Logger) {
	const org = "org-demo"
	now := time.Now().UTC()
	dept := "dept-general"
	store.PutDepartment(domain.Department{ID: dept, OrganizationID: org, Name: "General", IsActive: true, CreatedAt: now, UpdatedAt: now})

	users := []domain.User{
		{ID: "admin-demo", Name: "Demo Admin", Email: "admin@example.com", Role: domain.RoleAdmin},
		{ID: "supervisor-demo", Name: "Demo Supervisor", Email: "supervisor@example.com", Role: domain.RoleSupervisor, DepartmentID: &dept},
		{ID: "user-demo", Name: "Demo User", Email: "user@example.com", Role: domain.RoleUser, DepartmentID: &dept},
	}
	for _, u := range users {
		u.OrganizationID = org
		u.Status = domain.UserStatusActive
		u.CreatedAt, u.UpdatedAt = now, now
		store.PutUser(u)
		if app.Env == "production" {
			continue
		}
		token, _, err := tokens.GenerateToken(u.ID)
		if err != nil {
			logger.Warn("failed to mint development token", zap.Error(err))
			continue
		}
		logger.Info("development token", zap.String("user_id", u.ID), zap.String("role", string(u.Role)), zap.String("token", token))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
