package queries

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/booking/domain"
)

// GetBookingQuery returns a single booking by ID.
type GetBookingQuery struct {
	bookings domain.Repository
}

// NewGetBookingQuery creates a new GetBookingQuery.
func NewGetBookingQuery(bookings domain.Repository) *GetBookingQuery {
	return &GetBookingQuery{bookings: bookings}
}

// Execute loads the booking.
func (q *GetBookingQuery) Execute(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := q.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

// ListBookingsQuery returns all bookings for a host.
type ListBookingsQuery struct {
	bookings domain.Repository
}

// NewListBookingsQuery creates a new ListBookingsQuery.
func NewListBookingsQuery(bookings domain.Repository) *ListBookingsQuery {
	return &ListBookingsQuery{bookings: bookings}
}

// Execute lists the host's bookings, newest first.
func (q *ListBookingsQuery) Execute(ctx context.Context, userID uuid.UUID) ([]*domain.Booking, error) {
	return q.bookings.FindByUser(ctx, userID)
}
