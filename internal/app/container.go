// Package app wires the application's dependencies for both server
// mode (Postgres, Redis, RabbitMQ) and local mode (SQLite, in-process
// bus, in-memory cache).
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	availabilityQueries "github.com/felixgeelhaar/tempora/internal/availability/application/queries"
	availabilityServices "github.com/felixgeelhaar/tempora/internal/availability/application/services"
	availabilitySubs "github.com/felixgeelhaar/tempora/internal/availability/application/subscribers"
	bookingCommands "github.com/felixgeelhaar/tempora/internal/booking/application/commands"
	bookingQueries "github.com/felixgeelhaar/tempora/internal/booking/application/queries"
	bookingDomain "github.com/felixgeelhaar/tempora/internal/booking/domain"
	bookingPersistence "github.com/felixgeelhaar/tempora/internal/booking/infrastructure/persistence"
	eventtypesApp "github.com/felixgeelhaar/tempora/internal/eventtypes/application"
	eventtypesDomain "github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	eventtypesPersistence "github.com/felixgeelhaar/tempora/internal/eventtypes/infrastructure/persistence"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	sourcesDomain "github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/felixgeelhaar/tempora/internal/sources/infrastructure/bookingstore"
	"github.com/felixgeelhaar/tempora/internal/sources/infrastructure/caldav"
	"github.com/felixgeelhaar/tempora/internal/sources/infrastructure/googlecal"
	sourcesPersistence "github.com/felixgeelhaar/tempora/internal/sources/infrastructure/persistence"
	"github.com/felixgeelhaar/tempora/pkg/config"
)

// UnitOfWork defines the interface for transaction management.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BookingStore is the full booking persistence surface: the aggregate
// repository plus the read sides used by the availability pipeline.
type BookingStore interface {
	bookingDomain.Repository
	bookingstore.ConfirmedBookingReader
}

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DB       *pgxpool.Pool
	SQLiteDB *sql.DB
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	EventTypeRepo eventtypesDomain.Repository
	SourceRepo    sourcesDomain.Repository
	BookingRepo   BookingStore
	OutboxRepo    outbox.Repository

	// Publishers
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus

	// Unit of Work
	UnitOfWork UnitOfWork

	// Availability
	ProviderRegistry *sourcesApp.ProviderRegistry
	BusyCollector    *availabilityServices.BusyCollector
	SlotCache        availabilityServices.SlotCache
	GetSlots         *availabilityQueries.GetAvailableSlotsQuery

	// Booking
	AttemptBooking *bookingCommands.AttemptBookingService
	CancelBooking  *bookingCommands.CancelBookingService
	GetBooking     *bookingQueries.GetBookingQuery
	ListBookings   *bookingQueries.ListBookingsQuery

	// Event types
	EventTypeService *eventtypesApp.EventTypeService

	// Sources
	ConnectSource    *sourcesApp.ConnectSourceService
	DisconnectSource *sourcesApp.DisconnectSourceService
	ListSources      *sourcesApp.ListSourcesQuery

	// Event Subscribers
	CacheInvalidation *availabilitySubs.CacheInvalidationSubscriber

	// Outbox Processor
	OutboxProcessor *outbox.Processor
}

// NewContainer creates and wires all dependencies. The database URL
// decides the mode: Postgres URLs get the full stack, anything else
// runs local mode on SQLite with in-process substitutes.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   logger,
		DBDriver: database.DetectDriver(cfg.DatabaseURL),
	}

	var err error
	switch c.DBDriver {
	case database.DriverPostgres:
		err = c.wireServerMode(ctx)
	default:
		err = c.wireLocalMode(ctx)
	}
	if err != nil {
		return nil, err
	}

	c.wireServices()
	return c, nil
}

// wireServerMode connects Postgres, Redis and RabbitMQ.
func (c *Container) wireServerMode(ctx context.Context) error {
	cfg := c.Config

	pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = pool
	c.Logger.Info("connected to database", "driver", c.DBDriver)

	c.EventTypeRepo = eventtypesPersistence.NewPostgresEventTypeRepository(pool)
	c.SourceRepo = sourcesPersistence.NewPostgresSourceRepository(pool)
	c.BookingRepo = bookingPersistence.NewPostgresBookingRepository(pool)
	c.OutboxRepo = outbox.NewPostgresRepository(pool)
	c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)

	// Slot cache on Redis; degrade to no caching when unreachable.
	c.SlotCache = availabilityServices.NoopSlotCache{}
	if cfg.SlotCacheEnabled && cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			c.Logger.Warn("invalid Redis URL, slot caching disabled", "error", err)
		} else {
			client := redis.NewClient(opt)
			if err := client.Ping(ctx).Err(); err != nil {
				c.Logger.Warn("Redis not available, slot caching disabled", "error", err)
				_ = client.Close()
			} else {
				c.RedisClient = client
				c.SlotCache = availabilityServices.NewRedisSlotCache(client)
				c.Logger.Info("connected to Redis")
			}
		}
	}

	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
	if err != nil {
		if cfg.IsDevelopment() {
			c.Logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		} else {
			pool.Close()
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	} else {
		c.EventPublisher = publisher
	}

	return nil
}

// wireLocalMode runs everything in process on SQLite.
func (c *Container) wireLocalMode(ctx context.Context) error {
	db, err := database.OpenSQLite(sqlitePath(c.Config.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	c.SQLiteDB = db
	c.Logger.Info("local mode", "driver", c.DBDriver)

	c.EventTypeRepo = eventtypesPersistence.NewSQLiteEventTypeRepository(db)
	c.SourceRepo = sourcesPersistence.NewSQLiteSourceRepository(db)
	c.BookingRepo = bookingPersistence.NewSQLiteBookingRepository(db)
	c.OutboxRepo = outbox.NewSQLiteRepository(db)
	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)

	c.SlotCache = availabilityServices.NewMemorySlotCache()

	c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Logger)
	c.EventPublisher = c.InProcessEventBus

	return nil
}

// wireServices builds the application layer on whatever persistence
// mode was selected.
func (c *Container) wireServices() {
	cfg := c.Config

	c.ProviderRegistry = sourcesApp.NewProviderRegistry()
	c.ProviderRegistry.Register(sourcesDomain.SourceTypeCalDAV, caldav.NewFactory(c.Logger))
	c.ProviderRegistry.Register(sourcesDomain.SourceTypeBookings, bookingstore.NewFactory(c.BookingRepo))
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		tokens := googlecal.NewEnvTokenProvider(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenURL, cfg.GoogleRefreshToken,
		)
		c.ProviderRegistry.Register(sourcesDomain.SourceTypeGoogle, googlecal.NewFactory(tokens, c.Logger))
	}

	collectorCfg := availabilityServices.DefaultCollectorConfig()
	if cfg.SourceFetchTimeout > 0 {
		collectorCfg.SourceTimeout = cfg.SourceFetchTimeout
	}
	c.BusyCollector = availabilityServices.NewBusyCollector(c.SourceRepo, c.ProviderRegistry, collectorCfg, c.Logger)

	cacheTTL := cfg.SlotCacheTTL
	if !cfg.SlotCacheEnabled {
		cacheTTL = 0
	}
	c.GetSlots = availabilityQueries.NewGetAvailableSlotsQuery(
		c.EventTypeRepo, c.BookingRepo, c.BusyCollector, c.SlotCache, cacheTTL, c.Logger,
	)

	c.AttemptBooking = bookingCommands.NewAttemptBookingService(
		c.BookingRepo, c.EventTypeRepo, c.BusyCollector, c.OutboxRepo, c.UnitOfWork, c.Logger,
	)
	c.CancelBooking = bookingCommands.NewCancelBookingService(c.BookingRepo, c.OutboxRepo, c.UnitOfWork, c.Logger)
	c.GetBooking = bookingQueries.NewGetBookingQuery(c.BookingRepo)
	c.ListBookings = bookingQueries.NewListBookingsQuery(c.BookingRepo)

	c.EventTypeService = eventtypesApp.NewEventTypeService(c.EventTypeRepo, c.OutboxRepo, c.UnitOfWork, c.Logger)

	c.ConnectSource = sourcesApp.NewConnectSourceService(c.SourceRepo, c.OutboxRepo, c.UnitOfWork, c.ProviderRegistry, c.Logger)
	c.DisconnectSource = sourcesApp.NewDisconnectSourceService(c.SourceRepo, c.OutboxRepo, c.UnitOfWork, c.Logger)
	c.ListSources = sourcesApp.NewListSourcesQuery(c.SourceRepo)

	c.CacheInvalidation = availabilitySubs.NewCacheInvalidationSubscriber(c.SlotCache, c.Logger)
	if c.InProcessEventBus != nil {
		c.InProcessEventBus.RegisterConsumer(c.CacheInvalidation)
	}

	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, c.Logger)
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		} else {
			c.Logger.Info("SQLite connection closed")
		}
	}
}

// sqlitePath normalizes a SQLite connection string to a file path.
func sqlitePath(url string) string {
	return strings.TrimPrefix(url, "sqlite://")
}
