package domain

import (
	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/google/uuid"
)

// Routing keys for event type lifecycle events.
const (
	RoutingKeyEventTypeCreated = "eventtype.created"
	RoutingKeyEventTypeUpdated = "eventtype.updated"
	RoutingKeyEventTypeDeleted = "eventtype.deleted"
)

const aggregateTypeEventType = "event_type"

// EventTypeCreatedEvent is published when a host creates an event type.
type EventTypeCreatedEvent struct {
	sharedDomain.BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Slug   string    `json:"slug"`
}

// NewEventTypeCreatedEvent creates a new event type created event.
func NewEventTypeCreatedEvent(eventTypeID, userID uuid.UUID, slug string) *EventTypeCreatedEvent {
	return &EventTypeCreatedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(eventTypeID, aggregateTypeEventType, RoutingKeyEventTypeCreated),
		UserID:    userID,
		Slug:      slug,
	}
}

// EventTypeUpdatedEvent is published when scheduling-relevant settings
// change. Cached slot grids for the event type become stale.
type EventTypeUpdatedEvent struct {
	sharedDomain.BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Slug   string    `json:"slug"`
}

// NewEventTypeUpdatedEvent creates a new event type updated event.
func NewEventTypeUpdatedEvent(eventTypeID, userID uuid.UUID, slug string) *EventTypeUpdatedEvent {
	return &EventTypeUpdatedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(eventTypeID, aggregateTypeEventType, RoutingKeyEventTypeUpdated),
		UserID:    userID,
		Slug:      slug,
	}
}

// EventTypeDeletedEvent is published when a host removes an event type.
type EventTypeDeletedEvent struct {
	sharedDomain.BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Slug   string    `json:"slug"`
}

// NewEventTypeDeletedEvent creates a new event type deleted event.
func NewEventTypeDeletedEvent(eventTypeID, userID uuid.UUID, slug string) *EventTypeDeletedEvent {
	return &EventTypeDeletedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(eventTypeID, aggregateTypeEventType, RoutingKeyEventTypeDeleted),
		UserID:    userID,
		Slug:      slug,
	}
}
