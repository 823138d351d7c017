package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	"github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/migrations"
)

func setupRepo(t *testing.T) *SQLiteEventTypeRepository {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(context.Background(), db))

	return NewSQLiteEventTypeRepository(db)
}

func newEventType(t *testing.T, userID uuid.UUID) *domain.EventType {
	t.Helper()

	et, err := domain.NewEventType(userID, "intro-call", "Intro Call", 30*time.Minute, 30*time.Minute)
	require.NoError(t, err)

	window, err := availability.NewAvailabilityWindow(time.Monday, 9*60, 17*60, "Europe/Berlin")
	require.NoError(t, err)
	et.SetWindows([]availability.AvailabilityWindow{window})

	limits, err := availability.NewLimitRule(10*time.Minute, 5*time.Minute, time.Hour, 6)
	require.NoError(t, err)
	et.SetLimits(limits)

	return et
}

func TestSQLiteEventTypeRepository_SaveAndFind(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	et := newEventType(t, userID)
	require.NoError(t, repo.Save(ctx, et))

	found, err := repo.FindByUserAndSlug(ctx, userID, "intro-call")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, et.ID(), found.ID())
	assert.Equal(t, 30*time.Minute, found.Duration())
	assert.Equal(t, 10*time.Minute, found.Limits().BufferBefore)
	assert.Equal(t, 6, found.Limits().MaxBookingsPerDay)

	require.Len(t, found.Windows(), 1)
	assert.Equal(t, time.Monday, found.Windows()[0].Weekday)
	assert.Equal(t, "Europe/Berlin", found.Windows()[0].Timezone)

	// Rehydration must not carry pending events.
	assert.Empty(t, found.DomainEvents())
}

func TestSQLiteEventTypeRepository_FindByUserAndSlug_NotFound(t *testing.T) {
	repo := setupRepo(t)

	found, err := repo.FindByUserAndSlug(context.Background(), uuid.New(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteEventTypeRepository_SaveReplacesWindows(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	et := newEventType(t, userID)
	require.NoError(t, repo.Save(ctx, et))

	tuesday, err := availability.NewAvailabilityWindow(time.Tuesday, 10*60, 12*60, "UTC")
	require.NoError(t, err)
	wednesday, err := availability.NewAvailabilityWindow(time.Wednesday, 13*60, 15*60, "UTC")
	require.NoError(t, err)
	et.SetWindows([]availability.AvailabilityWindow{tuesday, wednesday})
	require.NoError(t, repo.Save(ctx, et))

	found, err := repo.FindByID(ctx, et.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Windows(), 2)
	assert.Equal(t, time.Tuesday, found.Windows()[0].Weekday)
}

func TestSQLiteEventTypeRepository_FindByUser(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	first := newEventType(t, userID)
	require.NoError(t, repo.Save(ctx, first))

	second, err := domain.NewEventType(userID, "deep-dive", "Deep Dive", time.Hour, time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, second))

	all, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "deep-dive", all[0].Slug())
	assert.Equal(t, "intro-call", all[1].Slug())
}

func TestSQLiteEventTypeRepository_Delete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	et := newEventType(t, uuid.New())
	require.NoError(t, repo.Save(ctx, et))
	require.NoError(t, repo.Delete(ctx, et.ID()))

	found, err := repo.FindByID(ctx, et.ID())
	require.NoError(t, err)
	assert.Nil(t, found)
}
