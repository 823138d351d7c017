package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
)

func TestNewEventType(t *testing.T) {
	userID := uuid.New()

	t.Run("creates event type with created event", func(t *testing.T) {
		et, err := NewEventType(userID, "intro-call", "Intro Call", 30*time.Minute, 30*time.Minute)
		require.NoError(t, err)

		assert.Equal(t, "intro-call", et.Slug())
		assert.Equal(t, 30*time.Minute, et.Duration())
		assert.Equal(t, "UTC", et.Timezone())

		events := et.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, RoutingKeyEventTypeCreated, events[0].RoutingKey())
	})

	t.Run("zero increment defaults to duration", func(t *testing.T) {
		et, err := NewEventType(userID, "intro-call", "Intro Call", 45*time.Minute, 0)
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, et.Increment())
	})

	t.Run("rejects invalid slugs", func(t *testing.T) {
		for _, slug := range []string{"", "Intro Call", "intro_call", "-intro", "intro-", "INTRO"} {
			_, err := NewEventType(userID, slug, "Intro Call", 30*time.Minute, 30*time.Minute)
			assert.ErrorIs(t, err, ErrInvalidSlug, "slug %q", slug)
		}
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		_, err := NewEventType(userID, "intro-call", "Intro Call", 0, 0)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	})

	t.Run("rejects blank title", func(t *testing.T) {
		_, err := NewEventType(userID, "intro-call", "  ", 30*time.Minute, 0)
		assert.ErrorIs(t, err, ErrEmptyTitle)
	})
}

func TestEventType_Updates(t *testing.T) {
	newEventType := func(t *testing.T) *EventType {
		t.Helper()
		et, err := NewEventType(uuid.New(), "intro-call", "Intro Call", 30*time.Minute, 30*time.Minute)
		require.NoError(t, err)
		et.ClearDomainEvents()
		return et
	}

	t.Run("setting duration records one updated event", func(t *testing.T) {
		et := newEventType(t)

		require.NoError(t, et.SetDuration(time.Hour))
		require.NoError(t, et.SetIncrement(15*time.Minute))

		events := et.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, RoutingKeyEventTypeUpdated, events[0].RoutingKey())
	})

	t.Run("unchanged value records nothing", func(t *testing.T) {
		et := newEventType(t)
		require.NoError(t, et.SetDuration(30*time.Minute))
		assert.Empty(t, et.DomainEvents())
	})

	t.Run("setting windows records updated event", func(t *testing.T) {
		et := newEventType(t)

		window, err := availability.NewAvailabilityWindow(time.Monday, 9*60, 17*60, "UTC")
		require.NoError(t, err)
		et.SetWindows([]availability.AvailabilityWindow{window})

		require.Len(t, et.Windows(), 1)
		require.Len(t, et.DomainEvents(), 1)
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		et := newEventType(t)
		assert.ErrorIs(t, et.SetTimezone("Mars/Olympus"), availability.ErrUnknownTimezone)
	})
}

func TestRehydrateEventType(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()
	now := time.Now().UTC()
	limits := availability.LimitRule{MinimumNotice: time.Hour, MaxBookingsPerDay: 4}

	et := RehydrateEventType(
		id, userID, "intro-call", "Intro Call", "Say hi",
		30*time.Minute, 15*time.Minute, "Europe/Berlin",
		limits, nil, now, now, 2,
	)

	assert.Equal(t, id, et.ID())
	assert.Equal(t, limits, et.Limits())
	assert.Equal(t, 2, et.Version())
	assert.Empty(t, et.DomainEvents())
}
