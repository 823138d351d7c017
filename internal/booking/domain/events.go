package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/google/uuid"
)

// Routing keys for booking lifecycle events.
const (
	RoutingKeyBookingConfirmed = "booking.confirmed"
	RoutingKeyBookingRejected  = "booking.rejected"
	RoutingKeyBookingCancelled = "booking.cancelled"
)

const aggregateTypeBooking = "booking"

// BookingConfirmedEvent is published when a slot is claimed.
type BookingConfirmedEvent struct {
	sharedDomain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	EventTypeID uuid.UUID `json:"event_type_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}

// NewBookingConfirmedEvent creates a new booking confirmed event.
func NewBookingConfirmedEvent(bookingID, userID, eventTypeID uuid.UUID, startAt, endAt time.Time) *BookingConfirmedEvent {
	return &BookingConfirmedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(bookingID, aggregateTypeBooking, RoutingKeyBookingConfirmed),
		UserID:      userID,
		EventTypeID: eventTypeID,
		StartAt:     startAt,
		EndAt:       endAt,
	}
}

// BookingRejectedEvent is published when an attempt loses its slot.
type BookingRejectedEvent struct {
	sharedDomain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	EventTypeID uuid.UUID `json:"event_type_id"`
	Reason      string    `json:"reason"`
}

// NewBookingRejectedEvent creates a new booking rejected event.
func NewBookingRejectedEvent(bookingID, userID, eventTypeID uuid.UUID, reason string) *BookingRejectedEvent {
	return &BookingRejectedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(bookingID, aggregateTypeBooking, RoutingKeyBookingRejected),
		UserID:      userID,
		EventTypeID: eventTypeID,
		Reason:      reason,
	}
}

// BookingCancelledEvent is published when a confirmed booking is
// cancelled and its slot freed.
type BookingCancelledEvent struct {
	sharedDomain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	EventTypeID uuid.UUID `json:"event_type_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}

// NewBookingCancelledEvent creates a new booking cancelled event.
func NewBookingCancelledEvent(bookingID, userID, eventTypeID uuid.UUID, startAt, endAt time.Time) *BookingCancelledEvent {
	return &BookingCancelledEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(bookingID, aggregateTypeBooking, RoutingKeyBookingCancelled),
		UserID:      userID,
		EventTypeID: eventTypeID,
		StartAt:     startAt,
		EndAt:       endAt,
	}
}
