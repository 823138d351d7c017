package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	b, err := NewBooking(uuid.New(), uuid.New(), Attendee{Name: "Ada", Email: "ada@example.com"}, start, start.Add(30*time.Minute))
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	t.Run("starts pending without events", func(t *testing.T) {
		b := newTestBooking(t)
		assert.Equal(t, StatusPending, b.Status())
		assert.False(t, b.IsActive())
		assert.Empty(t, b.DomainEvents())
	})

	t.Run("requires a host", func(t *testing.T) {
		_, err := NewBooking(uuid.Nil, uuid.New(), Attendee{Name: "Ada", Email: "ada@example.com"}, start, start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("requires an event type", func(t *testing.T) {
		_, err := NewBooking(uuid.New(), uuid.Nil, Attendee{Name: "Ada", Email: "ada@example.com"}, start, start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrEmptyEventTypeID)
	})

	t.Run("requires attendee details", func(t *testing.T) {
		_, err := NewBooking(uuid.New(), uuid.New(), Attendee{Name: "  ", Email: "ada@example.com"}, start, start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrEmptyAttendee)

		_, err = NewBooking(uuid.New(), uuid.New(), Attendee{Name: "Ada"}, start, start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrEmptyAttendee)
	})

	t.Run("rejects inverted slot", func(t *testing.T) {
		_, err := NewBooking(uuid.New(), uuid.New(), Attendee{Name: "Ada", Email: "ada@example.com"}, start, start)
		assert.ErrorIs(t, err, ErrInvalidSlotRange)
	})
}

func TestBookingTransitions(t *testing.T) {
	t.Run("confirm records event", func(t *testing.T) {
		b := newTestBooking(t)
		require.NoError(t, b.Confirm())

		assert.Equal(t, StatusConfirmed, b.Status())
		assert.True(t, b.IsActive())

		events := b.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, RoutingKeyBookingConfirmed, events[0].RoutingKey())
	})

	t.Run("reject records reason", func(t *testing.T) {
		b := newTestBooking(t)
		require.NoError(t, b.Reject("slot taken"))

		assert.Equal(t, StatusRejected, b.Status())
		assert.Equal(t, "slot taken", b.RejectReason())

		events := b.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, RoutingKeyBookingRejected, events[0].RoutingKey())
	})

	t.Run("cancel frees a confirmed slot", func(t *testing.T) {
		b := newTestBooking(t)
		require.NoError(t, b.Confirm())
		b.ClearDomainEvents()

		require.NoError(t, b.Cancel())
		assert.Equal(t, StatusCancelled, b.Status())
		assert.False(t, b.IsActive())

		events := b.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, RoutingKeyBookingCancelled, events[0].RoutingKey())
	})

	t.Run("cannot confirm twice", func(t *testing.T) {
		b := newTestBooking(t)
		require.NoError(t, b.Confirm())
		assert.ErrorIs(t, b.Confirm(), ErrInvalidTransition)
	})

	t.Run("cannot reject after confirm", func(t *testing.T) {
		b := newTestBooking(t)
		require.NoError(t, b.Confirm())
		assert.ErrorIs(t, b.Reject("late"), ErrInvalidTransition)
	})

	t.Run("cannot cancel pending", func(t *testing.T) {
		b := newTestBooking(t)
		assert.ErrorIs(t, b.Cancel(), ErrInvalidTransition)
	})

	t.Run("cannot cancel twice", func(t *testing.T) {
		b := newTestBooking(t)
		require.NoError(t, b.Confirm())
		require.NoError(t, b.Cancel())
		assert.ErrorIs(t, b.Cancel(), ErrInvalidTransition)
	})
}

func TestRehydrateBooking(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()
	eventTypeID := uuid.New()
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	created := start.Add(-time.Hour)

	b := RehydrateBooking(id, userID, eventTypeID,
		Attendee{Name: "Ada", Email: "ada@example.com"},
		start, start.Add(30*time.Minute),
		StatusConfirmed, "", created, created, 2)

	assert.Equal(t, id, b.ID())
	assert.Equal(t, userID, b.UserID())
	assert.Equal(t, StatusConfirmed, b.Status())
	assert.Equal(t, 2, b.Version())
	assert.Empty(t, b.DomainEvents())
}
