package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/climb-review-api/internal/config"
	"github.com/noah-isme/climb-review-api/internal/database"
	"github.com/noah-isme/climb-review-api/internal/handler"
	"github.com/noah-isme/climb-review-api/internal/middleware"
	"github.com/noah-isme/climb-review-api/internal/repository"
	"github.com/noah-isme/climb-review-api/internal/router"
	"github.com/noah-isme/climb-review-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database pool: %v", err)
	}
	defer sqlDB.Close()

	healthChecks := map[string]handler.Pinger{"database": sqlDB}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		healthChecks["redis"] = database.RedisPinger{Client: redisClient}
	} else {
		logger.Warn().Msg("redis disabled: reputation cache and notification fan-out are off")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		healthChecks["nats"] = database.NATSPinger{Conn: natsConn}
	} else {
		logger.Warn().Msg("nats disabled: activity events are not consumed")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	chainRepo := repository.NewReviewChainRepository(db)
	obligationRepo := repository.NewReviewObligationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RedisChannel, natsConn, validate, logger)
	reputationService := service.NewReputationService(chainRepo, obligationRepo, redisClient, cfg.ReputationCacheTTL, logger)
	chainService := service.NewChainService(chainRepo, obligationRepo, validate, service.ChainTiming{
		GracePeriod:  cfg.ReviewGracePeriod,
		ReviewWindow: cfg.ReviewWindow,
	}, logger)
	submissionService := service.NewReviewSubmissionService(chainRepo, obligationRepo, reputationService, validate, cfg.CommentMaxLength, logger)
	sweeper := service.NewChainLifecycleSweeper(chainRepo, obligationRepo, notificationService, cfg.NotificationWorkers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var background sync.WaitGroup

	if natsConn != nil {
		consumer, err := service.NewActivityEventConsumer(chainService, natsConn, cfg.ActivitySubject, validate, logger)
		if err != nil {
			log.Fatalf("failed to build activity consumer: %v", err)
		}
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("failed to subscribe to activity events: %v", err)
		}
		logger.Info().Str("subject", cfg.ActivitySubject).Msg("consuming activity events")
	}

	background.Add(1)
	go func() {
		defer background.Done()
		sweeper.Start(ctx, cfg.SweeperInterval)
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReviewHandler: handler.NewReviewHandler(
			submissionService,
			reputationService,
			middleware.RateLimit("review_submit", cfg.SubmissionRateLimit, cfg.SubmissionRateWindow),
			logger,
		),
		ChainHandler:        handler.NewChainHandler(chainService, sweeper, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		HealthChecks:        healthChecks,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdown(app, &background, logger)
}

func shutdown(app *fiber.App, background *sync.WaitGroup, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	background.Wait()
	logger.Info().Msg("server stopped")
}
