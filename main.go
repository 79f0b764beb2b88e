package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "grocery-backend/cmd/api"
	authdomain "grocery-backend/internal/auth/domain"
	authRepo "grocery-backend/internal/auth/repository"
	authUsecase "grocery-backend/internal/auth/usecase"
	"grocery-backend/internal/notification"
	notificationDelivery "grocery-backend/internal/notification/delivery"
	"grocery-backend/internal/notification/router"
	orderdomain "grocery-backend/internal/order/domain"
	orderRepo "grocery-backend/internal/order/repository"
	trackingDelivery "grocery-backend/internal/tracking/delivery"
	"grocery-backend/internal/tracking/milestone"
	trackingRepo "grocery-backend/internal/tracking/repository"
	"grocery-backend/internal/tracking/scheduler"
	"grocery-backend/internal/tracking/session"
	"grocery-backend/pkg/config"
	"grocery-backend/pkg/database"
	"grocery-backend/pkg/fcm"
	"grocery-backend/pkg/logger"
	"grocery-backend/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.LogLevel)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &orderdomain.TrackedOrder{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	rdb, err := database.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer rdb.Close()

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	tokenRepo := authRepo.NewTokenRepository(db)
	orders := orderRepo.NewGormOrderRepository(db)
	positions := trackingRepo.NewPositionStore(rdb, cfg.PositionTTL)
	feed := trackingRepo.NewFeed(orders, positions)

	// Initialize FCM client. Without credentials the ambient Google
	// application default credentials are used.
	fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize FCM client")
	}

	dispatcher := notification.NewDispatcher(fcmClient, userRepo, tokenRepo, orders, log)
	detector := milestone.NewDetector(milestone.Config{
		NearbyRadiusMeters:  cfg.NearbyRadiusMeters,
		ArrivalRadiusMeters: cfg.ArrivalRadiusMeters,
	}, orders, dispatcher, log)

	sessions := session.NewManager(session.Config{
		Cadence:          cfg.TrackingPollInterval,
		Steps:            cfg.TrackingInterpolationSteps,
		FailureThreshold: cfg.TrackingFailureThreshold,
	}, feed, detector, orders, log)
	defer sessions.Shutdown()

	if err := sessions.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resume tracking sessions")
	}

	// Periodically repair sessions after missed order events
	reconciler := scheduler.NewSessionReconciler(orders, sessions, cfg.TrackingReconcileInterval, log)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	// Initialize order event consumer (Pub/Sub)
	// Only start if project ID is configured
	if cfg.GoogleProjectID != "" {
		events, err := notification.NewService(ctx, cfg.GoogleProjectID, cfg.OrderEventsTopic, cfg.OrderEventsSubscription, cfg.GoogleCredentials, dispatcher, orders, sessions, detector, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize order event consumer")
		} else {
			defer events.Close()
			go events.Start(ctx)
		}
	} else {
		log.Warn().Msg("GOOGLE_PROJECT_ID not configured, order event consumer disabled")
	}

	// Initialize use cases and HTTP handler
	authUsecaseInstance := authUsecase.NewAuthUsecase(tokenRepo, cfg.JWTSecret)
	handler := api.NewHandler(
		authUsecaseInstance,
		trackingDelivery.NewTrackingHandler(positions, feed, orders, sessions, log),
		notificationDelivery.NewNotificationHandler(router.New(log)),
		log,
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := handler.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	log.Info().Msg("Server stopped")
}
