package queries

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	eventtypesDomain "github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
)

// ErrRangeTooLarge is returned when the query window exceeds the cap.
var ErrRangeTooLarge = errors.New("query range exceeds maximum window")

// MaxQueryWindow bounds slot queries to keep expansion and fan-out cheap.
const MaxQueryWindow = 62 * 24 * time.Hour

// BookedCounter exposes the confirmed booking counts needed for the
// daily cap. The booking repository implements this.
type BookedCounter interface {
	CountConfirmedPerDay(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[string]int, error)
}

// SlotsRequest identifies the grid to compute.
type SlotsRequest struct {
	UserID uuid.UUID
	Slug   string
	From   time.Time
	To     time.Time
}

// SlotsResponse carries the computed grid. Degraded marks a grid built
// from an incomplete busy set; it is served but never cached, and
// booking attempts are rejected while sources are degraded.
type SlotsResponse struct {
	Slots           []availability.Slot `json:"slots"`
	Degraded        bool                `json:"degraded"`
	ExcludedSources []string            `json:"excluded_sources,omitempty"`
}

// GetAvailableSlotsQuery computes the bookable slot grid for an event
// type: expand windows, merge busy from all sources, subtract, apply
// limits, step the grid.
type GetAvailableSlotsQuery struct {
	eventTypes eventtypesDomain.Repository
	bookings   BookedCounter
	collector  *services.BusyCollector
	cache      services.SlotCache
	cacheTTL   time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewGetAvailableSlotsQuery creates a new slot grid query.
func NewGetAvailableSlotsQuery(
	eventTypes eventtypesDomain.Repository,
	bookings BookedCounter,
	collector *services.BusyCollector,
	cache services.SlotCache,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *GetAvailableSlotsQuery {
	if cache == nil {
		cache = services.NoopSlotCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetAvailableSlotsQuery{
		eventTypes: eventTypes,
		bookings:   bookings,
		collector:  collector,
		cache:      cache,
		cacheTTL:   cacheTTL,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// WithClock overrides the time source, for tests.
func (q *GetAvailableSlotsQuery) WithClock(now func() time.Time) *GetAvailableSlotsQuery {
	q.now = now
	return q
}

// Execute computes (or serves from cache) the slot grid.
func (q *GetAvailableSlotsQuery) Execute(ctx context.Context, req SlotsRequest) (*SlotsResponse, error) {
	if !req.From.Before(req.To) {
		return nil, availability.ErrInvalidTimeRange
	}
	if req.To.Sub(req.From) > MaxQueryWindow {
		return nil, ErrRangeTooLarge
	}

	key := services.SlotCacheKey(req.UserID, req.Slug, req.From, req.To)
	if cached, err := q.cache.Get(ctx, key); err != nil {
		q.logger.Warn("slot cache read failed", slog.String("error", err.Error()))
	} else if cached != nil {
		return &SlotsResponse{Slots: cached.Slots}, nil
	}

	eventType, err := q.eventTypes.FindByUserAndSlug(ctx, req.UserID, req.Slug)
	if err != nil {
		return nil, err
	}
	if eventType == nil {
		return nil, eventtypesDomain.ErrEventTypeNotFound
	}

	collected, err := q.collector.Collect(ctx, req.UserID, req.From, req.To)
	if err != nil {
		return nil, err
	}

	merged, err := availability.ComputeFreeIntervals(
		eventType.Windows(), collected.Busy, eventType.Limits(), req.From, req.To,
	)
	if err != nil {
		return nil, err
	}
	for _, skipped := range merged.Skipped {
		q.logger.Warn("dropped malformed busy interval",
			slog.String("source", skipped.Source),
			slog.Time("start", skipped.Start),
			slog.Time("end", skipped.End),
		)
	}

	var bookedPerDay map[string]int
	if eventType.Limits().MaxBookingsPerDay > 0 && q.bookings != nil {
		bookedPerDay, err = q.bookings.CountConfirmedPerDay(ctx, req.UserID, req.From, req.To)
		if err != nil {
			return nil, err
		}
	}

	slots, err := availability.GenerateSlots(merged.Free, availability.GridParams{
		Duration:     eventType.Duration(),
		Increment:    eventType.Increment(),
		Now:          q.now(),
		Rule:         eventType.Limits(),
		BookedPerDay: bookedPerDay,
	})
	if err != nil {
		return nil, err
	}

	resp := &SlotsResponse{
		Slots:           slots,
		Degraded:        collected.Degraded,
		ExcludedSources: collected.Excluded,
	}

	// A degraded grid may hide busy time; cache only complete results.
	if !resp.Degraded && q.cacheTTL > 0 {
		if err := q.cache.Set(ctx, key, &services.CachedSlots{Slots: slots, ComputedAt: q.now()}, q.cacheTTL); err != nil {
			q.logger.Warn("slot cache write failed", slog.String("error", err.Error()))
		}
	}

	return resp, nil
}
