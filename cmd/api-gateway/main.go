package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fixhub/repair-workflow-api/api/swagger"
	"github.com/fixhub/repair-workflow-api/internal/handler"
	"github.com/fixhub/repair-workflow-api/internal/middleware"
	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/internal/repository"
	"github.com/fixhub/repair-workflow-api/internal/service"
	"github.com/fixhub/repair-workflow-api/pkg/cache"
	"github.com/fixhub/repair-workflow-api/pkg/config"
	"github.com/fixhub/repair-workflow-api/pkg/database"
	"github.com/fixhub/repair-workflow-api/pkg/logger"
	corsmiddleware "github.com/fixhub/repair-workflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fixhub/repair-workflow-api/pkg/middleware/requestid"
)

// @title Repair Workflow API
// @version 1.0.0
// @description Workflow transition engine for the device repair marketplace
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, entity cache disabled", "error", err)
		redisClient = nil
	}

	metrics := service.NewMetricsService()

	// Repositories.
	workflowRepo := repository.NewWorkflowRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	transitionLogRepo := repository.NewTransitionLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Side-effect registry. A table referencing an unregistered action is a
	// wiring bug, so the process refuses to start.
	table := service.DefaultTransitionTable()
	dispatcher := service.NewActionDispatcher(logr)
	for tag, h := range service.DefaultActionHandlers(logr) {
		dispatcher.Register(tag, h)
	}
	if err := dispatcher.ValidateTable(table); err != nil {
		logr.Sugar().Fatalw("transition table validation failed", "error", err)
	}

	// Workers.
	outboxWorker := service.NewOutboxWorker(outboxRepo, dispatcher, metrics, logr, service.OutboxWorkerConfig{
		PollInterval:  cfg.Workflow.OutboxPollInterval,
		BatchSize:     cfg.Workflow.OutboxBatchSize,
		Concurrency:   cfg.Workflow.WorkerConcurrency,
		MaxAttempts:   cfg.Workflow.MaxAttempts,
		LeaseDuration: cfg.Workflow.ClaimLease,
	})

	var sender service.EmailSender
	if cfg.Notifications.Enabled && cfg.Notifications.ResendAPIKey != "" {
		sender = service.NewResendEmailSender(cfg.Notifications.ResendAPIKey, cfg.Notifications.FromAddress)
	} else {
		sender = service.NewLogEmailSender(logr)
	}
	notificationWorker := service.NewNotificationWorker(notificationRepo, userRepo, sender, logr, service.NotificationWorkerConfig{
		PollInterval:  cfg.Notifications.PollInterval,
		BatchSize:     cfg.Notifications.BatchSize,
		MaxAttempts:   cfg.Notifications.MaxAttempts,
		LeaseDuration: cfg.Notifications.ClaimLease,
	})

	// Services.
	notificationSvc := service.NewNotificationService(notificationRepo, logr)

	workflowOpts := []service.WorkflowServiceOption{
		service.WithTransitionTable(table),
		service.WithTransitionHistory(transitionLogRepo),
		service.WithWorkflowMetrics(metrics),
		service.WithWakeHook(outboxWorker.Wake),
	}
	if cfg.Cache.Enabled {
		workflowOpts = append(workflowOpts, service.WithCacheInvalidator(cacheRepo))
	}
	workflowSvc := service.NewWorkflowService(workflowRepo, notificationSvc, logr, workflowOpts...)

	quoteOpts := []service.QuoteServiceOption{service.WithQuoteMetrics(metrics)}
	appointmentOpts := []service.AppointmentServiceOption{service.WithAppointmentMetrics(metrics)}
	if cfg.Cache.Enabled {
		quoteOpts = append(quoteOpts, service.WithQuoteCache(cacheRepo, cfg.Cache.EntityTTL))
		appointmentOpts = append(appointmentOpts, service.WithAppointmentCache(cacheRepo, cfg.Cache.EntityTTL))
	}
	quoteSvc := service.NewQuoteService(quoteRepo, logr, quoteOpts...)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, logr, appointmentOpts...)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "repair-workflow-api",
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc)
	quoteHandler := handler.NewQuoteHandler(quoteSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
			auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		}

		authed := api.Group("")
		authed.Use(middleware.JWT(authSvc))
		{
			authed.POST("/workflow/transitions", workflowHandler.Transition)
			authed.GET("/workflow/:entityType/:id/transitions", workflowHandler.History)

			authed.POST("/quotes", middleware.RequireRoles(models.RoleRepairer, models.RoleAdmin), quoteHandler.Create)
			authed.GET("/quotes", quoteHandler.List)
			authed.GET("/quotes/:id", quoteHandler.Get)

			authed.POST("/appointments", middleware.RequireRoles(models.RoleClient, models.RoleAdmin), appointmentHandler.Create)
			authed.GET("/appointments", appointmentHandler.List)
			authed.GET("/appointments/:id", appointmentHandler.Get)

			authed.GET("/notifications", notificationHandler.List)
			authed.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outboxWorker.Start(ctx)
	notificationWorker.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	outboxWorker.Stop()
	notificationWorker.Stop()
	logr.Info("server stopped")
}
