package main

import (
	"context"
	"errors"
	"net/http"
	"order_dispatch/internal/broker"
	"order_dispatch/internal/config"
	"order_dispatch/internal/database"
	"order_dispatch/internal/handlers"
	"order_dispatch/internal/logger"
	"order_dispatch/internal/migrations"
	"order_dispatch/internal/realtime"
	"order_dispatch/internal/redis"
	"order_dispatch/internal/repository"
	"order_dispatch/internal/services"
	"order_dispatch/pkg/webhook"
	"os/signal"
	"syscall"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/avito-tech/go-transaction-manager/trm/manager"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get database handle")
	}
	defer sqlDB.Close()

	trm, err := manager.New(trmgorm.NewDefaultFactory(db))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create transaction manager")
	}

	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	// the broker is optional; a nil interface keeps notifications local
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := broker.Connect(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer mq.Close()
		publisher = mq
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, broker publishing disabled")
	}

	webhooks := webhook.NewClient(cfg.WebhookSecret, time.Duration(cfg.WebhookTimeout)*time.Second, cfg.WebhookRetries)

	hub := realtime.NewHub()
	go hub.Run(ctx)

	// Repositories
	orderRepo := repository.NewOrderRepository(db, trmgorm.DefaultCtxGetter)
	itemRepo := repository.NewOrderItemRepository(db, trmgorm.DefaultCtxGetter)
	restaurantRepo := repository.NewRestaurantRepository(db, trmgorm.DefaultCtxGetter)
	assignmentRepo := repository.NewAssignmentRepository(db, trmgorm.DefaultCtxGetter)
	historyRepo := repository.NewHistoryRepository(db, trmgorm.DefaultCtxGetter)
	preparationRepo := repository.NewPreparationRepository(db, trmgorm.DefaultCtxGetter)
	deliveryRepo := repository.NewDeliveryRepository(db, trmgorm.DefaultCtxGetter)
	paymentRepo := repository.NewPaymentRepository(db, trmgorm.DefaultCtxGetter)
	notificationRepo := repository.NewNotificationRepository(db, trmgorm.DefaultCtxGetter)

	// Services
	notificationService := services.NewNotificationService(notificationRepo, publisher, hub)
	restaurantService := services.NewRestaurantService(restaurantRepo)
	dispatchService := services.NewDispatchService(
		services.DispatchConfig{
			RadiusKm:      cfg.DispatchRadiusKm,
			MaxCandidates: cfg.DispatchMaxCandidates,
			MaxAttempts:   cfg.MaxDispatchAttempts,
			AssignmentTTL: cfg.AssignmentTTL(),
		},
		trm, orderRepo, restaurantRepo, assignmentRepo, historyRepo,
		redisClient, notificationService, webhooks,
	)
	orderService := services.NewOrderService(
		trm, orderRepo, itemRepo, assignmentRepo, historyRepo,
		dispatchService, redisClient, cfg.CacheDuration(),
		decimal.NewFromFloat(cfg.DefaultDeliveryFee),
	)
	statusService := services.NewStatusService(trm, orderRepo, assignmentRepo, historyRepo)
	assignmentService := services.NewAssignmentService(trm, orderRepo, assignmentRepo, historyRepo, preparationRepo)
	preparationService := services.NewPreparationService(trm, orderRepo, preparationRepo, historyRepo)
	expiryService := services.NewExpiryService(trm, orderRepo, assignmentRepo, historyRepo)
	deliveryService := services.NewDeliveryService(
		services.DeliveryConfig{NearbyMeters: cfg.DriverNearbyMeters},
		trm, orderRepo, deliveryRepo, historyRepo,
		redisClient, redisClient, notificationService, hub,
	)
	paymentService := services.NewPaymentService(trm, orderRepo, paymentRepo, redisClient, notificationService)

	// Background workers
	listener := realtime.NewStatusListener(cfg.DatabaseURL, hub, notificationService, orderService)
	go func() {
		lctx := log.With().Str("worker", "status_listener").Logger().WithContext(ctx)
		if err := listener.Run(lctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("status listener stopped")
		}
	}()
	go expiryService.Run(log.With().Str("worker", "expiry").Logger().WithContext(ctx), cfg.SweepInterval())

	router := handlers.NewRouter(handlers.Handlers{
		API: handlers.NewAPIHandler(map[string]handlers.HealthCheck{
			"postgres": sqlDB.PingContext,
			"redis":    redisClient.Ping,
		}),
		Orders:        handlers.NewOrderHandler(orderService, statusService, dispatchService, preparationService),
		Restaurants:   handlers.NewRestaurantHandler(restaurantService, assignmentService, preparationService),
		Deliveries:    handlers.NewDeliveryHandler(deliveryService),
		Payments:      handlers.NewPaymentHandler(paymentService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Realtime:      handlers.NewRealtimeHandler(hub),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	dispatchService.Wait()
	log.Info().Msg("server stopped")
}
