package commands

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	bookingPersistence "github.com/felixgeelhaar/tempora/internal/booking/infrastructure/persistence"

	"github.com/felixgeelhaar/tempora/internal/booking/domain"
	eventtypesDomain "github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	eventtypesPersistence "github.com/felixgeelhaar/tempora/internal/eventtypes/infrastructure/persistence"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	sourcesDomain "github.com/felixgeelhaar/tempora/internal/sources/domain"
	sourcesPersistence "github.com/felixgeelhaar/tempora/internal/sources/infrastructure/persistence"
)

type attemptFixture struct {
	service    *AttemptBookingService
	bookings   *bookingPersistence.SQLiteBookingRepository
	eventTypes *eventtypesPersistence.SQLiteEventTypeRepository
	outboxRepo *outbox.SQLiteRepository
	userID     uuid.UUID
}

type fixedProvider struct {
	ranges []sourcesApp.BusyRange
	err    error
}

func (p *fixedProvider) FetchBusy(context.Context, uuid.UUID, time.Time, time.Time) ([]sourcesApp.BusyRange, error) {
	return p.ranges, p.err
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.RunSQLiteMigrations(context.Background(), db))
	return db
}

// Fixture with a Monday 09:00-17:00 UTC event type and one CalDAV
// source served by the given provider. The clock is pinned to
// 2026-09-01 so the Monday 2026-09-07 is bookable.
func newAttemptFixture(t *testing.T, busy []sourcesApp.BusyRange, busyErr error, limits *availability.LimitRule) *attemptFixture {
	t.Helper()
	ctx := context.Background()
	db := openTestDB(t)
	userID := uuid.New()

	eventTypes := eventtypesPersistence.NewSQLiteEventTypeRepository(db)
	et, err := eventtypesDomain.NewEventType(userID, "intro-call", "Intro Call", 30*time.Minute, 30*time.Minute)
	require.NoError(t, err)
	window, err := availability.NewAvailabilityWindow(time.Monday, 9*60, 17*60, "UTC")
	require.NoError(t, err)
	et.SetWindows([]availability.AvailabilityWindow{window})
	if limits != nil {
		et.SetLimits(*limits)
	}
	et.ClearDomainEvents()
	require.NoError(t, eventTypes.Save(ctx, et))

	sources := sourcesPersistence.NewSQLiteSourceRepository(db)
	source, err := sourcesDomain.NewConnectedSource(userID, sourcesDomain.SourceTypeCalDAV, "Work")
	require.NoError(t, err)
	source.ClearDomainEvents()
	require.NoError(t, sources.Save(ctx, source))

	registry := sourcesApp.NewProviderRegistry()
	registry.Register(sourcesDomain.SourceTypeCalDAV, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
		return &fixedProvider{ranges: busy, err: busyErr}, nil
	})
	collector := services.NewBusyCollector(sources, registry, services.DefaultCollectorConfig(), nil)

	bookings := bookingPersistence.NewSQLiteBookingRepository(db)
	outboxRepo := outbox.NewSQLiteRepository(db)
	uow := sharedPersistence.NewSQLiteUnitOfWork(db)

	service := NewAttemptBookingService(bookings, eventTypes, collector, outboxRepo, uow, nil).
		WithClock(func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) })

	return &attemptFixture{service: service, bookings: bookings, eventTypes: eventTypes, outboxRepo: outboxRepo, userID: userID}
}

func (f *attemptFixture) attempt(startAt time.Time) (*domain.Booking, error) {
	return f.service.Attempt(context.Background(), AttemptBookingCommand{
		UserID:        f.userID,
		Slug:          "intro-call",
		StartAt:       startAt,
		AttendeeName:  "Ada",
		AttendeeEmail: "ada@example.com",
	})
}

func (f *attemptFixture) outboxKeys(t *testing.T) []string {
	t.Helper()
	msgs, err := f.outboxRepo.GetUnpublished(context.Background(), 100)
	require.NoError(t, err)
	keys := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}

func TestAttemptBookingService_Attempt(t *testing.T) {
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	t.Run("free slot is confirmed and persisted", func(t *testing.T) {
		f := newAttemptFixture(t, nil, nil, nil)

		booking, err := f.attempt(monday.Add(10 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, booking.Status())

		stored, err := f.bookings.FindByID(context.Background(), booking.ID())
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, domain.StatusConfirmed, stored.Status())

		assert.Equal(t, []string{domain.RoutingKeyBookingConfirmed}, f.outboxKeys(t))
	})

	t.Run("busy slot is rejected", func(t *testing.T) {
		busy := []sourcesApp.BusyRange{
			{Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour)},
		}
		f := newAttemptFixture(t, busy, nil, nil)

		booking, err := f.attempt(monday.Add(10 * time.Hour))
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
		require.NotNil(t, booking)
		assert.Equal(t, domain.StatusRejected, booking.Status())
		assert.Equal(t, "slot overlaps busy time", booking.RejectReason())

		assert.Equal(t, []string{domain.RoutingKeyBookingRejected}, f.outboxKeys(t))
	})

	t.Run("slot outside windows is rejected", func(t *testing.T) {
		f := newAttemptFixture(t, nil, nil, nil)

		_, err := f.attempt(monday.Add(7 * time.Hour))
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	})

	t.Run("degraded sources reject the attempt", func(t *testing.T) {
		f := newAttemptFixture(t, nil, assert.AnError, nil)

		booking, err := f.attempt(monday.Add(10 * time.Hour))
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
		require.NotNil(t, booking)
		assert.Equal(t, "busy sources unavailable", booking.RejectReason())
	})

	t.Run("minimum notice rejects near-term slots", func(t *testing.T) {
		limits, err := availability.NewLimitRule(0, 0, 14*24*time.Hour, 0)
		require.NoError(t, err)
		f := newAttemptFixture(t, nil, nil, &limits)

		booking, err := f.attempt(monday.Add(10 * time.Hour))
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
		assert.Equal(t, "slot is inside the minimum notice period", booking.RejectReason())
	})

	t.Run("daily cap rejects once reached", func(t *testing.T) {
		limits, err := availability.NewLimitRule(0, 0, 0, 1)
		require.NoError(t, err)
		f := newAttemptFixture(t, nil, nil, &limits)

		_, err = f.attempt(monday.Add(9 * time.Hour))
		require.NoError(t, err)

		booking, err := f.attempt(monday.Add(14 * time.Hour))
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
		assert.Equal(t, "daily booking limit reached", booking.RejectReason())
	})

	t.Run("slot straddling UTC midnight is confirmed", func(t *testing.T) {
		f := newAttemptFixture(t, nil, nil, nil)

		// Monday 20:15-23:45 in Sao Paulo is Monday 23:15 to Tuesday
		// 02:45 in UTC, so the grid offers slots across UTC midnight.
		et, err := eventtypesDomain.NewEventType(f.userID, "evening-call", "Evening Call", 30*time.Minute, 30*time.Minute)
		require.NoError(t, err)
		window, err := availability.NewAvailabilityWindow(time.Monday, 20*60+15, 23*60+45, "America/Sao_Paulo")
		require.NoError(t, err)
		et.SetWindows([]availability.AvailabilityWindow{window})
		et.ClearDomainEvents()
		require.NoError(t, f.eventTypes.Save(context.Background(), et))

		booking, err := f.service.Attempt(context.Background(), AttemptBookingCommand{
			UserID:        f.userID,
			Slug:          "evening-call",
			StartAt:       monday.Add(23*time.Hour + 45*time.Minute),
			AttendeeName:  "Ada",
			AttendeeEmail: "ada@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, booking.Status())
		assert.Equal(t, time.Date(2026, 9, 8, 0, 15, 0, 0, time.UTC), booking.EndAt())
	})

	t.Run("concurrent attempts produce exactly one confirmed", func(t *testing.T) {
		f := newAttemptFixture(t, nil, nil, nil)
		slot := monday.Add(10 * time.Hour)

		const attempts = 8
		var wg sync.WaitGroup
		var confirmed atomic.Int32
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				booking, err := f.service.Attempt(context.Background(), AttemptBookingCommand{
					UserID:        f.userID,
					Slug:          "intro-call",
					StartAt:       slot,
					AttendeeName:  fmt.Sprintf("Attendee %d", n),
					AttendeeEmail: fmt.Sprintf("a%d@example.com", n),
				})
				if err == nil && booking.Status() == domain.StatusConfirmed {
					confirmed.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), confirmed.Load())

		all, err := f.bookings.FindByUser(context.Background(), f.userID)
		require.NoError(t, err)
		stored := 0
		for _, b := range all {
			if b.Status() == domain.StatusConfirmed {
				stored++
			}
		}
		assert.Equal(t, 1, stored)
	})

	t.Run("second attempt on a claimed slot loses", func(t *testing.T) {
		f := newAttemptFixture(t, nil, nil, nil)
		slot := monday.Add(10 * time.Hour)

		winner, err := f.attempt(slot)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, winner.Status())

		loser, err := f.attempt(slot)
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
		require.NotNil(t, loser)
		assert.Equal(t, domain.StatusRejected, loser.Status())

		// Exactly one confirmed row in the store.
		all, err := f.bookings.FindByUser(context.Background(), f.userID)
		require.NoError(t, err)
		confirmed := 0
		for _, b := range all {
			if b.Status() == domain.StatusConfirmed {
				confirmed++
			}
		}
		assert.Equal(t, 1, confirmed)
	})

	t.Run("unknown event type fails without persisting", func(t *testing.T) {
		f := newAttemptFixture(t, nil, nil, nil)

		_, err := f.service.Attempt(context.Background(), AttemptBookingCommand{
			UserID:        f.userID,
			Slug:          "missing",
			StartAt:       monday.Add(10 * time.Hour),
			AttendeeName:  "Ada",
			AttendeeEmail: "ada@example.com",
		})
		assert.ErrorIs(t, err, eventtypesDomain.ErrEventTypeNotFound)
		assert.Empty(t, f.outboxKeys(t))
	})
}
