package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/booking/domain"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
)

// CancelBookingService cancels confirmed bookings and frees their slots.
type CancelBookingService struct {
	bookings   domain.Repository
	outboxRepo outbox.Repository
	uow        UnitOfWork
	logger     *slog.Logger
}

// NewCancelBookingService creates a new CancelBookingService.
func NewCancelBookingService(
	bookings domain.Repository,
	outboxRepo outbox.Repository,
	uow UnitOfWork,
	logger *slog.Logger,
) *CancelBookingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancelBookingService{
		bookings:   bookings,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
	}
}

// Cancel cancels a confirmed booking.
func (s *CancelBookingService) Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}

	if err := booking.Cancel(); err != nil {
		return nil, err
	}

	txCtx, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := s.uow.Rollback(txCtx); rollbackErr != nil {
				s.logger.Error("failed to rollback transaction",
					slog.String("booking_id", bookingID.String()),
					slog.String("error", rollbackErr.Error()),
				)
			}
		}
	}()

	if err := s.bookings.Save(txCtx, booking); err != nil {
		return nil, err
	}
	if err := saveEvents(txCtx, s.outboxRepo, booking.DomainEvents()); err != nil {
		return nil, err
	}
	booking.ClearDomainEvents()

	if err := s.uow.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	s.logger.Info("booking cancelled",
		slog.String("booking_id", bookingID.String()),
		slog.String("user_id", booking.UserID().String()),
	)

	return booking, nil
}
