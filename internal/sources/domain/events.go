package domain

import (
	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/google/uuid"
)

// Routing keys for source lifecycle events.
const (
	RoutingKeySourceConnected    = "source.connected"
	RoutingKeySourceUpdated      = "source.updated"
	RoutingKeySourceDisconnected = "source.disconnected"
)

const aggregateTypeSource = "connected_source"

// SourceConnectedEvent is published when a host connects a busy-time source.
type SourceConnectedEvent struct {
	sharedDomain.BaseEvent
	UserID     uuid.UUID  `json:"user_id"`
	SourceType SourceType `json:"source_type"`
	Name       string     `json:"name"`
}

// NewSourceConnectedEvent creates a new source connected event.
func NewSourceConnectedEvent(sourceID, userID uuid.UUID, sourceType SourceType, name string) *SourceConnectedEvent {
	return &SourceConnectedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(sourceID, aggregateTypeSource, RoutingKeySourceConnected),
		UserID:     userID,
		SourceType: sourceType,
		Name:       name,
	}
}

// SourceUpdatedEvent is published when a source's configuration changes.
type SourceUpdatedEvent struct {
	sharedDomain.BaseEvent
	UserID     uuid.UUID  `json:"user_id"`
	SourceType SourceType `json:"source_type"`
}

// NewSourceUpdatedEvent creates a new source updated event.
func NewSourceUpdatedEvent(sourceID, userID uuid.UUID, sourceType SourceType) *SourceUpdatedEvent {
	return &SourceUpdatedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(sourceID, aggregateTypeSource, RoutingKeySourceUpdated),
		UserID:     userID,
		SourceType: sourceType,
	}
}

// SourceDisconnectedEvent is published when a host removes a source.
type SourceDisconnectedEvent struct {
	sharedDomain.BaseEvent
	UserID     uuid.UUID  `json:"user_id"`
	SourceType SourceType `json:"source_type"`
}

// NewSourceDisconnectedEvent creates a new source disconnected event.
func NewSourceDisconnectedEvent(sourceID, userID uuid.UUID, sourceType SourceType) *SourceDisconnectedEvent {
	return &SourceDisconnectedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(sourceID, aggregateTypeSource, RoutingKeySourceDisconnected),
		UserID:     userID,
		SourceType: sourceType,
	}
}
