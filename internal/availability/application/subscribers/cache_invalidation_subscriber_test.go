package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tempora/internal/availability/application/services"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/eventbus"
)

type recordingCache struct {
	services.NoopSlotCache
	invalidated []uuid.UUID
}

func (c *recordingCache) InvalidateUser(_ context.Context, userID uuid.UUID) error {
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type failingCache struct {
	services.NoopSlotCache
}

func (failingCache) InvalidateUser(context.Context, uuid.UUID) error {
	return fmt.Errorf("cache unavailable")
}

func TestCacheInvalidationSubscriber(t *testing.T) {
	ctx := context.Background()

	t.Run("covers every grid-affecting routing key", func(t *testing.T) {
		sub := NewCacheInvalidationSubscriber(nil, nil)
		keys := sub.EventTypes()

		for _, key := range []string{
			"booking.confirmed", "booking.cancelled",
			"eventtype.updated", "eventtype.deleted",
			"source.connected", "source.updated", "source.disconnected",
		} {
			assert.Contains(t, keys, key)
		}
	})

	t.Run("invalidates the user from the payload", func(t *testing.T) {
		cache := &recordingCache{}
		sub := NewCacheInvalidationSubscriber(cache, nil)

		userID := uuid.New()
		payload, err := json.Marshal(map[string]string{"user_id": userID.String()})
		require.NoError(t, err)

		err = sub.Handle(ctx, &eventbus.ConsumedEvent{
			EventID:    uuid.New(),
			RoutingKey: "booking.confirmed",
			OccurredAt: time.Now(),
			Payload:    payload,
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{userID}, cache.invalidated)
	})

	t.Run("falls back to metadata", func(t *testing.T) {
		cache := &recordingCache{}
		sub := NewCacheInvalidationSubscriber(cache, nil)

		userID := uuid.New()
		err := sub.Handle(ctx, &eventbus.ConsumedEvent{
			EventID:    uuid.New(),
			RoutingKey: "eventtype.updated",
			Metadata:   eventbus.EventMetadata{UserID: userID},
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{userID}, cache.invalidated)
	})

	t.Run("ignores events without a user", func(t *testing.T) {
		cache := &recordingCache{}
		sub := NewCacheInvalidationSubscriber(cache, nil)

		err := sub.Handle(ctx, &eventbus.ConsumedEvent{
			EventID:    uuid.New(),
			RoutingKey: "source.updated",
			Payload:    json.RawMessage(`{"name":"Work"}`),
		})
		require.NoError(t, err)
		assert.Empty(t, cache.invalidated)
	})

	t.Run("surfaces cache failures", func(t *testing.T) {
		sub := NewCacheInvalidationSubscriber(failingCache{}, nil)

		err := sub.Handle(ctx, &eventbus.ConsumedEvent{
			EventID:    uuid.New(),
			RoutingKey: "booking.cancelled",
			Metadata:   eventbus.EventMetadata{UserID: uuid.New()},
		})
		assert.Error(t, err)
	})
}
