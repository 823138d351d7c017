package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	"github.com/felixgeelhaar/tempora/internal/availability/application/subscribers"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/tempora/pkg/config"
	"github.com/felixgeelhaar/tempora/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting tempora worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The worker relays outbox messages to the broker; it only runs in
	// server mode. Local mode publishes through the in-process bus.
	if database.DetectDriver(cfg.DatabaseURL) != database.DriverPostgres {
		logger.Error("worker requires a PostgreSQL DATABASE_URL")
		os.Exit(1)
	}

	pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(cfg.DatabaseURL))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	outboxRepo := outbox.NewPostgresRepository(pool)

	var publisher eventbus.Publisher
	rabbitPublisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			publisher = eventbus.NewNoopPublisher(logger)
		} else {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
	} else {
		publisher = rabbitPublisher
		defer rabbitPublisher.Close()
	}
	logger.Info("event publisher initialized")

	processorConfig := outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}
	processor := outbox.NewProcessor(outboxRepo, publisher, processorConfig, logger)

	logger.Info("starting outbox processor",
		"poll_interval", processorConfig.PollInterval,
		"batch_size", processorConfig.BatchSize,
		"max_retries", processorConfig.MaxRetries,
	)
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	// Consume booking and event type changes to drop stale slot grids
	// from the Redis cache.
	if cfg.SlotCacheEnabled && cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid Redis URL, cache invalidation disabled", "error", err)
		} else {
			client := redis.NewClient(opt)
			defer client.Close()

			registry := eventbus.NewConsumerRegistry(logger)
			consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
				URL:       cfg.RabbitMQURL,
				QueueName: "tempora.cache-invalidation",
				Logger:    logger,
			}, registry)
			if err != nil {
				logger.Warn("cache invalidation consumer unavailable", "error", err)
			} else {
				defer consumer.Close()
				consumer.RegisterConsumer(subscribers.NewCacheInvalidationSubscriber(
					services.NewRedisSlotCache(client), logger,
				))
				if err := consumer.Start(ctx); err != nil {
					logger.Warn("failed to start cache invalidation consumer", "error", err)
				}
			}
		}
	}

	// Scheduled cleanup of published messages past retention.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.OutboxCleanupSchedule, func() {
		deleted, err := outboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
		if err != nil {
			logger.Error("outbox cleanup failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("outbox cleanup completed",
				"deleted", deleted,
				"retention_days", cfg.OutboxRetentionDays,
			)
		}
	})
	if err != nil {
		logger.Error("invalid outbox cleanup schedule",
			"schedule", cfg.OutboxCleanupSchedule,
			"error", err,
		)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.WorkerHealthAddr != "" {
		health := observability.NewHealthChecker(2 * time.Second)
		health.Register("database", func(checkCtx context.Context) error {
			return pool.Ping(checkCtx)
		})
		health.Register("outbox_processor", func(context.Context) error {
			if !processor.IsRunning() {
				return errProcessorStopped
			}
			return nil
		})

		mux := http.NewServeMux()
		mux.Handle("/healthz", health.Handler())

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	// Periodic stats logging.
	statsTicker := time.NewTicker(time.Minute)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				stats := processor.GetStats()
				logger.Info("outbox stats",
					"running", processor.IsRunning(),
					"published", stats.PublishedCount,
					"failed", stats.FailedCount,
					"dead", stats.DeadCount,
					"last_error", stats.LastError,
				)
			}
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutting down worker")

	processor.Stop()
	logger.Info("worker stopped")
}

var errProcessorStopped = errors.New("outbox processor not running")
