/**
 * @description
 * This is the main entry point for the engine-service. It wires together
 * configuration, database connection, schema capabilities, repositories,
 * services, the cron scheduler, the RabbitMQ event consumers, and the HTTP
 * router, then starts the server and handles graceful shutdown.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/fanforge/engine-service/internal/api"
	"github.com/fanforge/engine-service/internal/app"
	"github.com/fanforge/engine-service/internal/config"
	"github.com/fanforge/engine-service/internal/store"
	"github.com/fanforge/engine-service/pkg/mailer"
	"github.com/fanforge/engine-service/pkg/rabbitmq"
	"github.com/fanforge/engine-service/pkg/stripeclient"
)

func main() {
	// Load .env in local development; ignored when absent.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statements to work with PgBouncer transaction pooling.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Detect which optional tables and columns this deployment has. Schema
	// only changes during deploys, so once at startup is enough.
	probe := store.NewSchemaProbe(dbpool)
	detectCtx, detectCancel := context.WithTimeout(ctx, 15*time.Second)
	caps := probe.DetectCapabilities(detectCtx, logger)
	detectCancel()
	logger.Info("schema capabilities detected",
		"profiles", caps.ProfilesTable,
		"connectivity", caps.ConnectivityTable,
		"memberships", caps.MembershipsTable,
		"notifications", caps.NotificationsTable,
	)

	repository := store.NewRepository(dbpool, caps)
	stripeClient := stripeclient.NewClient(cfg.StripeSecretKey)
	mailClient := mailer.NewClient(cfg.PostmarkServerToken, cfg.EmailFromAddress)

	var publisher rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect event producer, falling back to noop", "error", err)
			publisher = &rabbitmq.NoopPublisher{Logger: logger}
		} else {
			publisher = producer
		}
	} else {
		publisher = &rabbitmq.NoopPublisher{Logger: logger}
	}
	defer publisher.Close()

	// Initialize application layers
	activationService := app.NewActivationService(repository, caps, logger)
	connectivityService := app.NewConnectivityService(repository, stripeClient, caps, logger)
	notificationService := app.NewNotificationService(repository, logger)
	fanoutService := app.NewFanoutService(repository, mailClient, publisher, caps, logger, cfg.FanoutMaxConcurrent)
	sweepService := app.NewSweepService(repository, fanoutService, caps, logger)

	scheduler := app.NewScheduler(sweepService, logger)
	scheduler.Start(cfg.RenewalSweepSchedule)

	if cfg.AMQPURL != "" {
		eventHandler := app.NewEventHandler(fanoutService, logger)
		startConsumer(cfg, logger, "post-published", "content.post.published", eventHandler.HandlePostPublished)
		startConsumer(cfg, logger, "purchase-completed", "order.purchase.completed", eventHandler.HandlePurchaseCompleted)
		startConsumer(cfg, logger, "request-delivered", "request.delivered", eventHandler.HandleRequestDelivered)
	} else {
		logger.Info("AMQP_URL not set, event consumers disabled")
	}

	handler := api.NewHandler(activationService, connectivityService, notificationService, fanoutService, sweepService, logger)
	router := api.NewRouter(handler, cfg.JWTSecret)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Let a running sweep finish its current row, then join in-flight fanout.
	<-scheduler.Stop().Done()
	fanoutService.Drain()

	logger.Info("server stopped")
}

// startConsumer opens a dedicated connection per binding and consumes in the
// background. Consumer errors are non-fatal; the HTTP surface stays up.
func startConsumer(cfg config.Config, logger *slog.Logger, name, routingKey string, handler rabbitmq.MessageHandler) {
	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("failed to connect consumer", "consumer", name, "error", err)
		return
	}

	queueName := fmt.Sprintf("%s.%s", cfg.EventsQueue, name)
	go func() {
		logger.Info("starting consumer", "consumer", name, "routing_key", routingKey, "queue", queueName)
		if err := consumer.Consume(cfg.EventsExchange, queueName, routingKey, handler); err != nil {
			logger.Error("consumer stopped", "consumer", name, "error", err)
		}
	}()
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
