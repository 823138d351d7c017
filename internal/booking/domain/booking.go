package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/google/uuid"
)

// Status is the booking lifecycle state.
type Status string

const (
	// StatusPending is the initial state while the slot is verified.
	StatusPending Status = "pending"
	// StatusConfirmed means the slot was claimed.
	StatusConfirmed Status = "confirmed"
	// StatusRejected means the slot was unavailable at attempt time.
	StatusRejected Status = "rejected"
	// StatusCancelled means a confirmed booking was cancelled.
	StatusCancelled Status = "cancelled"
)

// Domain errors for Booking validation and state transitions.
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrEmptyEventTypeID  = errors.New("event type ID cannot be empty")
	ErrEmptyAttendee     = errors.New("attendee name and email are required")
	ErrInvalidSlotRange  = errors.New("slot start must be before slot end")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrBookingNotFound   = errors.New("booking not found")

	// ErrSlotUnavailable is returned when the requested slot overlaps
	// busy time or a confirmed booking. Repositories map their
	// conflict primitive onto this error.
	ErrSlotUnavailable = errors.New("slot is no longer available")
)

// Attendee identifies who the booking is for.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Booking is an attempt to claim a slot on a host's calendar. It starts
// pending and resolves to confirmed or rejected; confirmed bookings may
// later be cancelled. This is an Aggregate Root that publishes domain
// events.
type Booking struct {
	sharedDomain.BaseAggregateRoot
	userID       uuid.UUID
	eventTypeID  uuid.UUID
	attendee     Attendee
	startAt      time.Time
	endAt        time.Time
	status       Status
	rejectReason string
}

// NewBooking creates a pending booking for the given slot. No event is
// recorded until the attempt resolves.
func NewBooking(userID, eventTypeID uuid.UUID, attendee Attendee, startAt, endAt time.Time) (*Booking, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if eventTypeID == uuid.Nil {
		return nil, ErrEmptyEventTypeID
	}
	if strings.TrimSpace(attendee.Name) == "" || strings.TrimSpace(attendee.Email) == "" {
		return nil, ErrEmptyAttendee
	}
	if !startAt.Before(endAt) {
		return nil, ErrInvalidSlotRange
	}

	return &Booking{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		eventTypeID:       eventTypeID,
		attendee:          attendee,
		startAt:           startAt.UTC(),
		endAt:             endAt.UTC(),
		status:            StatusPending,
	}, nil
}

// Getters
func (b *Booking) UserID() uuid.UUID      { return b.userID }
func (b *Booking) EventTypeID() uuid.UUID { return b.eventTypeID }
func (b *Booking) Attendee() Attendee     { return b.attendee }
func (b *Booking) StartAt() time.Time     { return b.startAt }
func (b *Booking) EndAt() time.Time       { return b.endAt }
func (b *Booking) Status() Status         { return b.status }
func (b *Booking) RejectReason() string   { return b.rejectReason }

// IsActive reports whether this booking still occupies its slot.
func (b *Booking) IsActive() bool {
	return b.status == StatusConfirmed
}

// Confirm transitions pending to confirmed and records a
// BookingConfirmedEvent.
func (b *Booking) Confirm() error {
	if b.status != StatusPending {
		return ErrInvalidTransition
	}
	b.status = StatusConfirmed
	b.Touch()
	b.AddDomainEvent(NewBookingConfirmedEvent(b.ID(), b.userID, b.eventTypeID, b.startAt, b.endAt))
	return nil
}

// Reject transitions pending to rejected and records a
// BookingRejectedEvent with the reason.
func (b *Booking) Reject(reason string) error {
	if b.status != StatusPending {
		return ErrInvalidTransition
	}
	b.status = StatusRejected
	b.rejectReason = reason
	b.Touch()
	b.AddDomainEvent(NewBookingRejectedEvent(b.ID(), b.userID, b.eventTypeID, reason))
	return nil
}

// Cancel transitions confirmed to cancelled, freeing the slot, and
// records a BookingCancelledEvent.
func (b *Booking) Cancel() error {
	if b.status != StatusConfirmed {
		return ErrInvalidTransition
	}
	b.status = StatusCancelled
	b.Touch()
	b.AddDomainEvent(NewBookingCancelledEvent(b.ID(), b.userID, b.eventTypeID, b.startAt, b.endAt))
	return nil
}

// RehydrateBooking recreates a booking from persisted data without
// recording domain events.
func RehydrateBooking(
	id uuid.UUID,
	userID, eventTypeID uuid.UUID,
	attendee Attendee,
	startAt, endAt time.Time,
	status Status,
	rejectReason string,
	createdAt, updatedAt time.Time,
	version int,
) *Booking {
	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)

	return &Booking{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(baseEntity, version),
		userID:            userID,
		eventTypeID:       eventTypeID,
		attendee:          attendee,
		startAt:           startAt.UTC(),
		endAt:             endAt.UTC(),
		status:            status,
		rejectReason:      rejectReason,
	}
}

// Repository defines the interface for booking persistence.
//
// Save is the claim primitive: persisting a confirmed booking whose
// range overlaps another confirmed booking for the same host must fail
// with ErrSlotUnavailable. Under Postgres an exclusion constraint
// enforces this; under SQLite an overlap check runs inside the ambient
// single-writer transaction.
type Repository interface {
	// Save persists a booking (create or update).
	Save(ctx context.Context, booking *Booking) error

	// FindByID finds a booking by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByUser finds all bookings for a host, newest first.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Booking, error)

	// CountConfirmedPerDay returns confirmed booking counts keyed by
	// UTC day ("2006-01-02") within [from, to).
	CountConfirmedPerDay(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[string]int, error)
}
