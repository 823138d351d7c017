package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	"github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// UnitOfWork defines the interface for transaction management.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WindowInput describes one weekly availability window.
type WindowInput struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Timezone    string
}

// CreateEventTypeCommand contains the data needed to create an event type.
type CreateEventTypeCommand struct {
	UserID            uuid.UUID
	Slug              string
	Title             string
	Description       string
	Duration          time.Duration
	Increment         time.Duration
	Timezone          string
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	MinimumNotice     time.Duration
	MaxBookingsPerDay int
	Windows           []WindowInput
}

// UpdateEventTypeCommand contains the fields to change on an event type.
// Nil pointers leave the current value untouched.
type UpdateEventTypeCommand struct {
	UserID   uuid.UUID
	Slug     string
	Title    *string
	Duration *time.Duration
	Windows  []WindowInput
	Limits   *availability.LimitRule
}

// EventTypeService handles event type lifecycle use cases.
type EventTypeService struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        UnitOfWork
	logger     *slog.Logger
}

// NewEventTypeService creates a new EventTypeService.
func NewEventTypeService(
	repo domain.Repository,
	outboxRepo outbox.Repository,
	uow UnitOfWork,
	logger *slog.Logger,
) *EventTypeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventTypeService{
		repo:       repo,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
	}
}

// Create creates a new event type for the host.
func (s *EventTypeService) Create(ctx context.Context, cmd CreateEventTypeCommand) (*domain.EventType, error) {
	existing, err := s.repo.FindByUserAndSlug(ctx, cmd.UserID, cmd.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("event type %q already exists", cmd.Slug)
	}

	eventType, err := domain.NewEventType(cmd.UserID, cmd.Slug, cmd.Title, cmd.Duration, cmd.Increment)
	if err != nil {
		return nil, err
	}
	eventType.SetDescription(cmd.Description)
	if err := eventType.SetTimezone(cmd.Timezone); err != nil {
		return nil, err
	}

	limits, err := availability.NewLimitRule(cmd.BufferBefore, cmd.BufferAfter, cmd.MinimumNotice, cmd.MaxBookingsPerDay)
	if err != nil {
		return nil, err
	}
	eventType.SetLimits(limits)

	windows, err := buildWindows(cmd.Windows)
	if err != nil {
		return nil, err
	}
	if len(windows) > 0 {
		eventType.SetWindows(windows)
	}

	if err := s.persist(ctx, "create_event_type", func(txCtx context.Context) error {
		return s.repo.Save(txCtx, eventType)
	}, eventType); err != nil {
		return nil, err
	}

	s.logger.Info("event type created",
		slog.String("event_type_id", eventType.ID().String()),
		slog.String("user_id", cmd.UserID.String()),
		slog.String("slug", cmd.Slug),
	)

	return eventType, nil
}

// Update applies changes to an existing event type.
func (s *EventTypeService) Update(ctx context.Context, cmd UpdateEventTypeCommand) (*domain.EventType, error) {
	eventType, err := s.repo.FindByUserAndSlug(ctx, cmd.UserID, cmd.Slug)
	if err != nil {
		return nil, err
	}
	if eventType == nil {
		return nil, domain.ErrEventTypeNotFound
	}

	if cmd.Title != nil {
		if err := eventType.SetTitle(*cmd.Title); err != nil {
			return nil, err
		}
	}
	if cmd.Duration != nil {
		if err := eventType.SetDuration(*cmd.Duration); err != nil {
			return nil, err
		}
	}
	if cmd.Limits != nil {
		eventType.SetLimits(*cmd.Limits)
	}
	if cmd.Windows != nil {
		windows, err := buildWindows(cmd.Windows)
		if err != nil {
			return nil, err
		}
		eventType.SetWindows(windows)
	}

	if err := s.persist(ctx, "update_event_type", func(txCtx context.Context) error {
		return s.repo.Save(txCtx, eventType)
	}, eventType); err != nil {
		return nil, err
	}

	return eventType, nil
}

// Delete removes an event type owned by the user.
func (s *EventTypeService) Delete(ctx context.Context, userID uuid.UUID, slug string) error {
	eventType, err := s.repo.FindByUserAndSlug(ctx, userID, slug)
	if err != nil {
		return err
	}
	if eventType == nil {
		return domain.ErrEventTypeNotFound
	}

	eventType.MarkDeleted()

	return s.persist(ctx, "delete_event_type", func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, eventType.ID())
	}, eventType)
}

// GetBySlug returns an event type by owner and slug.
func (s *EventTypeService) GetBySlug(ctx context.Context, userID uuid.UUID, slug string) (*domain.EventType, error) {
	eventType, err := s.repo.FindByUserAndSlug(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if eventType == nil {
		return nil, domain.ErrEventTypeNotFound
	}
	return eventType, nil
}

// List returns all event types owned by the user.
func (s *EventTypeService) List(ctx context.Context, userID uuid.UUID) ([]*domain.EventType, error) {
	return s.repo.FindByUser(ctx, userID)
}

// persist runs the mutation and outbox writes in one transaction.
func (s *EventTypeService) persist(ctx context.Context, operation string, mutate func(context.Context) error, eventType *domain.EventType) error {
	txCtx, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := s.uow.Rollback(txCtx); rollbackErr != nil {
				s.logger.Error("failed to rollback transaction",
					slog.String("operation", operation),
					slog.String("error", rollbackErr.Error()),
				)
			}
		}
	}()

	if err := mutate(txCtx); err != nil {
		return err
	}

	if err := saveEvents(txCtx, s.outboxRepo, eventType.DomainEvents()); err != nil {
		return err
	}
	eventType.ClearDomainEvents()

	if err := s.uow.Commit(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func buildWindows(inputs []WindowInput) ([]availability.AvailabilityWindow, error) {
	windows := make([]availability.AvailabilityWindow, 0, len(inputs))
	for _, in := range inputs {
		window, err := availability.NewAvailabilityWindow(in.Weekday, in.StartMinute, in.EndMinute, in.Timezone)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	return windows, nil
}

func saveEvents(ctx context.Context, repo outbox.Repository, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("failed to build outbox messages: %w", err)
	}
	if err := repo.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("failed to save outbox messages: %w", err)
	}
	return nil
}
