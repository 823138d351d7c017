package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	availabilityQueries "github.com/felixgeelhaar/tempora/internal/availability/application/queries"
	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	bookingCommands "github.com/felixgeelhaar/tempora/internal/booking/application/commands"
	bookingQueries "github.com/felixgeelhaar/tempora/internal/booking/application/queries"
	bookingDomain "github.com/felixgeelhaar/tempora/internal/booking/domain"
	eventtypesDomain "github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
)

// SchedulingHandler handles slot and booking API requests.
type SchedulingHandler struct {
	slots          *availabilityQueries.GetAvailableSlotsQuery
	attemptBooking *bookingCommands.AttemptBookingService
	cancelBooking  *bookingCommands.CancelBookingService
	getBooking     *bookingQueries.GetBookingQuery
	listBookings   *bookingQueries.ListBookingsQuery
	logger         *slog.Logger
}

// SchedulingHandlerConfig holds dependencies for the scheduling handler.
type SchedulingHandlerConfig struct {
	Slots          *availabilityQueries.GetAvailableSlotsQuery
	AttemptBooking *bookingCommands.AttemptBookingService
	CancelBooking  *bookingCommands.CancelBookingService
	GetBooking     *bookingQueries.GetBookingQuery
	ListBookings   *bookingQueries.ListBookingsQuery
	Logger         *slog.Logger
}

// NewSchedulingHandler creates a new scheduling handler.
func NewSchedulingHandler(cfg SchedulingHandlerConfig) *SchedulingHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SchedulingHandler{
		slots:          cfg.Slots,
		attemptBooking: cfg.AttemptBooking,
		cancelBooking:  cfg.CancelBooking,
		getBooking:     cfg.GetBooking,
		listBookings:   cfg.ListBookings,
		logger:         cfg.Logger,
	}
}

type bookingResponse struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	EventTypeID  uuid.UUID `json:"event_type_id"`
	Attendee     string    `json:"attendee_name"`
	Email        string    `json:"attendee_email"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Status       string    `json:"status"`
	RejectReason string    `json:"reject_reason,omitempty"`
}

func toBookingResponse(b *bookingDomain.Booking) bookingResponse {
	return bookingResponse{
		ID:           b.ID(),
		UserID:       b.UserID(),
		EventTypeID:  b.EventTypeID(),
		Attendee:     b.Attendee().Name,
		Email:        b.Attendee().Email,
		StartAt:      b.StartAt(),
		EndAt:        b.EndAt(),
		Status:       string(b.Status()),
		RejectReason: b.RejectReason(),
	}
}

// GetSlots handles GET /api/v1/users/{userID}/event-types/{slug}/slots
func (h *SchedulingHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	slug := r.PathValue("slug")

	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' parameter")
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' parameter")
		return
	}

	result, err := h.slots.Execute(r.Context(), availabilityQueries.SlotsRequest{
		UserID: userID,
		Slug:   slug,
		From:   from,
		To:     to,
	})
	if err != nil {
		switch {
		case errors.Is(err, eventtypesDomain.ErrEventTypeNotFound):
			writeError(w, http.StatusNotFound, "Event type not found")
		case errors.Is(err, availability.ErrInvalidTimeRange),
			errors.Is(err, availabilityQueries.ErrRangeTooLarge):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to compute slots", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to compute slots")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type createBookingRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	Slug          string    `json:"slug"`
	StartAt       time.Time `json:"start_at"`
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
}

// CreateBooking handles POST /api/v1/bookings
func (h *SchedulingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.attemptBooking.Attempt(r.Context(), bookingCommands.AttemptBookingCommand{
		UserID:        req.UserID,
		Slug:          req.Slug,
		StartAt:       req.StartAt,
		AttendeeName:  req.AttendeeName,
		AttendeeEmail: req.AttendeeEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, bookingDomain.ErrSlotUnavailable):
			// The attempt resolved to a rejected booking; surface it.
			writeJSON(w, http.StatusConflict, toBookingResponse(booking))
		case errors.Is(err, eventtypesDomain.ErrEventTypeNotFound):
			writeError(w, http.StatusNotFound, "Event type not found")
		case errors.Is(err, bookingDomain.ErrEmptyAttendee),
			errors.Is(err, bookingDomain.ErrInvalidSlotRange),
			errors.Is(err, bookingDomain.ErrEmptyUserID):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("booking attempt failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Booking attempt failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /api/v1/bookings/{bookingID}
func (h *SchedulingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(r.PathValue("bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.getBooking.Execute(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, bookingDomain.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		h.logger.Error("failed to load booking", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load booking")
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

// ListBookings handles GET /api/v1/users/{userID}/bookings
func (h *SchedulingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	bookings, err := h.listBookings.Execute(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list bookings")
		return
	}

	result := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": result})
}

// CancelBooking handles DELETE /api/v1/bookings/{bookingID}
func (h *SchedulingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(r.PathValue("bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.cancelBooking.Cancel(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, bookingDomain.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "Booking not found")
		case errors.Is(err, bookingDomain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "Only confirmed bookings can be cancelled")
		default:
			h.logger.Error("failed to cancel booking", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to cancel booking")
		}
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates (UTC midnight).
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
