package subscribers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/eventbus"
)

// CacheInvalidationSubscriber drops a host's cached slot grids whenever
// anything that feeds the grid changes: bookings, event type settings,
// or the connected source set.
type CacheInvalidationSubscriber struct {
	cache  services.SlotCache
	logger *slog.Logger
}

// NewCacheInvalidationSubscriber creates a new cache invalidation subscriber.
func NewCacheInvalidationSubscriber(cache services.SlotCache, logger *slog.Logger) *CacheInvalidationSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidationSubscriber{cache: cache, logger: logger}
}

// EventTypes returns the routing keys that invalidate slot grids.
func (s *CacheInvalidationSubscriber) EventTypes() []string {
	return []string{
		"booking.confirmed",
		"booking.cancelled",
		"eventtype.updated",
		"eventtype.deleted",
		"source.connected",
		"source.updated",
		"source.disconnected",
	}
}

// Handle invalidates all cached grids for the event's host.
func (s *CacheInvalidationSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	userID := s.extractUserID(event)
	if userID == uuid.Nil {
		s.logger.Warn("cache invalidation event without user",
			slog.String("routing_key", event.RoutingKey),
			slog.String("event_id", event.EventID.String()),
		)
		return nil
	}

	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Debug("slot cache invalidated",
		slog.String("user_id", userID.String()),
		slog.String("routing_key", event.RoutingKey),
	)
	return nil
}

func (s *CacheInvalidationSubscriber) extractUserID(event *eventbus.ConsumedEvent) uuid.UUID {
	var payload struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err == nil && payload.UserID != uuid.Nil {
			return payload.UserID
		}
	}
	return event.Metadata.UserID
}
