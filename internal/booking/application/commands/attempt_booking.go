package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	"github.com/felixgeelhaar/tempora/internal/booking/domain"
	eventtypesDomain "github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
)

// UnitOfWork defines the interface for transaction management.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AttemptBookingCommand contains the data needed to claim a slot.
type AttemptBookingCommand struct {
	UserID        uuid.UUID
	Slug          string
	StartAt       time.Time
	AttendeeName  string
	AttendeeEmail string
}

// AttemptBookingService runs the conflict guard: verify the slot is
// still free against a fresh busy set, then claim it. The claim write
// is the arbiter under concurrency; the verification only keeps obvious
// losers from reaching it.
type AttemptBookingService struct {
	bookings   domain.Repository
	eventTypes eventtypesDomain.Repository
	collector  *services.BusyCollector
	outboxRepo outbox.Repository
	uow        UnitOfWork
	now        func() time.Time
	logger     *slog.Logger
}

// NewAttemptBookingService creates a new AttemptBookingService.
func NewAttemptBookingService(
	bookings domain.Repository,
	eventTypes eventtypesDomain.Repository,
	collector *services.BusyCollector,
	outboxRepo outbox.Repository,
	uow UnitOfWork,
	logger *slog.Logger,
) *AttemptBookingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptBookingService{
		bookings:   bookings,
		eventTypes: eventTypes,
		collector:  collector,
		outboxRepo: outboxRepo,
		uow:        uow,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// WithClock overrides the time source, for tests.
func (s *AttemptBookingService) WithClock(now func() time.Time) *AttemptBookingService {
	s.now = now
	return s
}

// Attempt tries to claim the slot. On success the returned booking is
// confirmed. When the slot is unavailable the booking is persisted as
// rejected and ErrSlotUnavailable is returned alongside it.
func (s *AttemptBookingService) Attempt(ctx context.Context, cmd AttemptBookingCommand) (*domain.Booking, error) {
	eventType, err := s.eventTypes.FindByUserAndSlug(ctx, cmd.UserID, cmd.Slug)
	if err != nil {
		return nil, err
	}
	if eventType == nil {
		return nil, eventtypesDomain.ErrEventTypeNotFound
	}

	startAt := cmd.StartAt.UTC()
	endAt := startAt.Add(eventType.Duration())

	booking, err := domain.NewBooking(cmd.UserID, eventType.ID(),
		domain.Attendee{Name: cmd.AttendeeName, Email: cmd.AttendeeEmail},
		startAt, endAt)
	if err != nil {
		return nil, err
	}

	if reason := s.verifySlot(ctx, eventType, startAt, endAt); reason != "" {
		return s.persistRejected(ctx, booking, reason)
	}

	if err := booking.Confirm(); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrSlotUnavailable) {
			// Lost the claim race. Record the loser as rejected.
			return s.persistRejected(ctx, s.asPending(booking), "slot claimed concurrently")
		}
		return nil, err
	}

	s.logger.Info("booking confirmed",
		slog.String("booking_id", booking.ID().String()),
		slog.String("user_id", cmd.UserID.String()),
		slog.Time("start_at", startAt),
	)

	return booking, nil
}

// verifySlot re-runs the availability pipeline over a range covering
// the slot. A non-empty return is the rejection reason. Degraded collection
// rejects: an unreachable source may hide busy time, so unknown is
// treated as busy.
func (s *AttemptBookingService) verifySlot(ctx context.Context, eventType *eventtypesDomain.EventType, startAt, endAt time.Time) string {
	rule := eventType.Limits()

	if startAt.Before(rule.NoticeCutoff(s.now())) {
		return "slot is inside the minimum notice period"
	}

	dayStart := startAt.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	// Verify over the slot's UTC day, stretched so the range always
	// contains the slot itself. Timezone-shifted windows can offer slots
	// that straddle UTC midnight.
	from := dayStart
	if startAt.Before(from) {
		from = startAt
	}
	to := dayEnd
	if endAt.After(to) {
		to = endAt
	}
	from = from.Add(-rule.BufferBefore)
	to = to.Add(rule.BufferAfter)

	collected, err := s.collector.Collect(ctx, eventType.UserID(), from, to)
	if err != nil {
		return "busy sources unavailable"
	}
	if collected.Degraded {
		s.logger.Warn("booking rejected on degraded sources",
			slog.String("user_id", eventType.UserID().String()),
			slog.Any("excluded", collected.Excluded),
		)
		return "busy sources unavailable"
	}

	merged, err := availability.ComputeFreeIntervals(eventType.Windows(), collected.Busy, rule, from, to)
	if err != nil {
		return "availability could not be computed"
	}
	if !slotFits(merged.Free, startAt, endAt) {
		return "slot overlaps busy time"
	}

	if rule.MaxBookingsPerDay > 0 {
		counts, err := s.bookings.CountConfirmedPerDay(ctx, eventType.UserID(), dayStart, dayEnd)
		if err != nil {
			return "availability could not be computed"
		}
		if counts[dayStart.Format("2006-01-02")] >= rule.MaxBookingsPerDay {
			return "daily booking limit reached"
		}
	}

	return ""
}

func slotFits(free []availability.Interval, startAt, endAt time.Time) bool {
	for _, f := range free {
		if !startAt.Before(f.Start) && !endAt.After(f.End) {
			return true
		}
	}
	return false
}

// asPending rebuilds the aggregate in its pending state after a failed
// claim so it can transition to rejected.
func (s *AttemptBookingService) asPending(b *domain.Booking) *domain.Booking {
	return domain.RehydrateBooking(b.ID(), b.UserID(), b.EventTypeID(), b.Attendee(),
		b.StartAt(), b.EndAt(), domain.StatusPending, "",
		b.CreatedAt(), b.CreatedAt(), 0)
}

func (s *AttemptBookingService) persistRejected(ctx context.Context, booking *domain.Booking, reason string) (*domain.Booking, error) {
	if err := booking.Reject(reason); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, booking); err != nil {
		return nil, err
	}
	return booking, domain.ErrSlotUnavailable
}

// persist saves the booking and its events in one transaction.
func (s *AttemptBookingService) persist(ctx context.Context, booking *domain.Booking) error {
	txCtx, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := s.uow.Rollback(txCtx); rollbackErr != nil {
				s.logger.Error("failed to rollback transaction",
					slog.String("booking_id", booking.ID().String()),
					slog.String("error", rollbackErr.Error()),
				)
			}
		}
	}()

	if err := s.bookings.Save(txCtx, booking); err != nil {
		return err
	}
	if err := saveEvents(txCtx, s.outboxRepo, booking.DomainEvents()); err != nil {
		return err
	}
	booking.ClearDomainEvents()

	if err := s.uow.Commit(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
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
