package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	availabilityQueries "github.com/felixgeelhaar/tempora/internal/availability/application/queries"
	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	bookingCommands "github.com/felixgeelhaar/tempora/internal/booking/application/commands"
	bookingQueries "github.com/felixgeelhaar/tempora/internal/booking/application/queries"
	bookingPersistence "github.com/felixgeelhaar/tempora/internal/booking/infrastructure/persistence"
	eventtypesDomain "github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	eventtypesPersistence "github.com/felixgeelhaar/tempora/internal/eventtypes/infrastructure/persistence"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	sourcesPersistence "github.com/felixgeelhaar/tempora/internal/sources/infrastructure/persistence"
)

type apiFixture struct {
	server *Server
	userID uuid.UUID
}

// In-memory SQLite stack with a Monday 09:00-17:00 UTC event type, no
// connected sources, and the clock pinned to 2026-09-01.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db))

	userID := uuid.New()

	eventTypes := eventtypesPersistence.NewSQLiteEventTypeRepository(db)
	et, err := eventtypesDomain.NewEventType(userID, "intro-call", "Intro Call", 30*time.Minute, 30*time.Minute)
	require.NoError(t, err)
	window, err := availability.NewAvailabilityWindow(time.Monday, 9*60, 17*60, "UTC")
	require.NoError(t, err)
	et.SetWindows([]availability.AvailabilityWindow{window})
	et.ClearDomainEvents()
	require.NoError(t, eventTypes.Save(ctx, et))

	sources := sourcesPersistence.NewSQLiteSourceRepository(db)
	registry := sourcesApp.NewProviderRegistry()
	collector := services.NewBusyCollector(sources, registry, services.DefaultCollectorConfig(), nil)

	bookings := bookingPersistence.NewSQLiteBookingRepository(db)
	outboxRepo := outbox.NewSQLiteRepository(db)
	uow := sharedPersistence.NewSQLiteUnitOfWork(db)

	clock := func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }

	slots := availabilityQueries.NewGetAvailableSlotsQuery(eventTypes, bookings, collector, services.NoopSlotCache{}, 0, nil).
		WithClock(clock)
	attempt := bookingCommands.NewAttemptBookingService(bookings, eventTypes, collector, outboxRepo, uow, nil).
		WithClock(clock)
	cancel := bookingCommands.NewCancelBookingService(bookings, outboxRepo, uow, nil)

	handler := NewSchedulingHandler(SchedulingHandlerConfig{
		Slots:          slots,
		AttemptBooking: attempt,
		CancelBooking:  cancel,
		GetBooking:     bookingQueries.NewGetBookingQuery(bookings),
		ListBookings:   bookingQueries.NewListBookingsQuery(bookings),
	})

	return &apiFixture{
		server: NewServer(DefaultServerConfig(), handler, nil),
		userID: userID,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	f.server.mux.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) book(t *testing.T, start time.Time) bookingResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"user_id":        f.userID,
		"slug":           "intro-call",
		"start_at":       start.Format(time.RFC3339),
		"attendee_name":  "Ada",
		"attendee_email": "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp bookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestGetSlots(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("returns the grid", func(t *testing.T) {
		rec := f.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/users/%s/event-types/intro-call/slots?from=2026-09-07&to=2026-09-08", f.userID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp availabilityQueries.SlotsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Slots, 16)
		assert.False(t, resp.Degraded)
	})

	t.Run("unknown slug is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/users/%s/event-types/missing/slots?from=2026-09-07&to=2026-09-08", f.userID), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad range is 400", func(t *testing.T) {
		rec := f.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/users/%s/event-types/intro-call/slots?from=2026-09-08&to=2026-09-07", f.userID), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed time is 400", func(t *testing.T) {
		rec := f.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/users/%s/event-types/intro-call/slots?from=tomorrow&to=2026-09-08", f.userID), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookingLifecycle(t *testing.T) {
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	t.Run("book get cancel", func(t *testing.T) {
		f := newAPIFixture(t)

		created := f.book(t, monday.Add(10*time.Hour))
		assert.Equal(t, "confirmed", created.Status)

		rec := f.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodDelete, "/api/v1/bookings/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cancelled bookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
		assert.Equal(t, "cancelled", cancelled.Status)
	})

	t.Run("conflicting attempt is 409", func(t *testing.T) {
		f := newAPIFixture(t)
		slot := monday.Add(10 * time.Hour)
		f.book(t, slot)

		rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
			"user_id":        f.userID,
			"slug":           "intro-call",
			"start_at":       slot.Format(time.RFC3339),
			"attendee_name":  "Grace",
			"attendee_email": "grace@example.com",
		})
		require.Equal(t, http.StatusConflict, rec.Code)

		var resp bookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "rejected", resp.Status)
		assert.NotEmpty(t, resp.RejectReason)
	})

	t.Run("unknown event type is 404", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
			"user_id":        f.userID,
			"slug":           "missing",
			"start_at":       monday.Add(10 * time.Hour).Format(time.RFC3339),
			"attendee_name":  "Ada",
			"attendee_email": "ada@example.com",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing attendee is 400", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
			"user_id":  f.userID,
			"slug":     "intro-call",
			"start_at": monday.Add(10 * time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cancelling twice is 409", func(t *testing.T) {
		f := newAPIFixture(t)
		created := f.book(t, monday.Add(10*time.Hour))

		rec := f.do(t, http.MethodDelete, "/api/v1/bookings/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodDelete, "/api/v1/bookings/"+created.ID.String(), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown booking is 404", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("lists the host's bookings", func(t *testing.T) {
		f := newAPIFixture(t)
		f.book(t, monday.Add(9*time.Hour))
		f.book(t, monday.Add(11*time.Hour))

		rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%s/bookings", f.userID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Bookings []bookingResponse `json:"bookings"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Bookings, 2)
	})
}
