package domain

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/google/uuid"
)

// Domain errors for EventType validation.
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrInvalidSlug       = errors.New("slug must be lowercase letters, digits and hyphens")
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrInvalidIncrement  = errors.New("increment must be positive")
	ErrEventTypeNotFound = errors.New("event type not found")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// EventType defines a bookable meeting kind a host offers: its
// duration, the grid increment slots are offered on, the weekly
// availability windows, and the booking limits. This is an Aggregate
// Root that publishes domain events.
type EventType struct {
	sharedDomain.BaseAggregateRoot
	userID      uuid.UUID
	slug        string
	title       string
	description string
	duration    time.Duration
	increment   time.Duration
	timezone    string
	limits      availability.LimitRule
	windows     []availability.AvailabilityWindow
}

// NewEventType creates an event type and records a created event.
func NewEventType(userID uuid.UUID, slug, title string, duration, increment time.Duration) (*EventType, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if increment <= 0 {
		increment = duration
	}

	e := &EventType{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		slug:              slug,
		title:             title,
		duration:          duration,
		increment:         increment,
		timezone:          "UTC",
	}

	e.AddDomainEvent(NewEventTypeCreatedEvent(e.ID(), userID, slug))

	return e, nil
}

// Getters
func (e *EventType) UserID() uuid.UUID                            { return e.userID }
func (e *EventType) Slug() string                                 { return e.slug }
func (e *EventType) Title() string                                { return e.title }
func (e *EventType) Description() string                          { return e.description }
func (e *EventType) Duration() time.Duration                      { return e.duration }
func (e *EventType) Increment() time.Duration                     { return e.increment }
func (e *EventType) Timezone() string                             { return e.timezone }
func (e *EventType) Limits() availability.LimitRule               { return e.limits }
func (e *EventType) Windows() []availability.AvailabilityWindow   { return e.windows }

// SetDescription updates the description.
func (e *EventType) SetDescription(description string) {
	if e.description != description {
		e.description = description
		e.markUpdated()
	}
}

// SetTitle updates the display title.
func (e *EventType) SetTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if e.title != title {
		e.title = title
		e.markUpdated()
	}
	return nil
}

// SetDuration updates the slot duration.
func (e *EventType) SetDuration(duration time.Duration) error {
	if duration <= 0 {
		return ErrInvalidDuration
	}
	if e.duration != duration {
		e.duration = duration
		e.markUpdated()
	}
	return nil
}

// SetIncrement updates the grid increment.
func (e *EventType) SetIncrement(increment time.Duration) error {
	if increment <= 0 {
		return ErrInvalidIncrement
	}
	if e.increment != increment {
		e.increment = increment
		e.markUpdated()
	}
	return nil
}

// SetTimezone updates the default display timezone.
func (e *EventType) SetTimezone(timezone string) error {
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return availability.ErrUnknownTimezone
	}
	if e.timezone != timezone {
		e.timezone = timezone
		e.markUpdated()
	}
	return nil
}

// SetLimits replaces the booking limits.
func (e *EventType) SetLimits(limits availability.LimitRule) {
	if e.limits != limits {
		e.limits = limits
		e.markUpdated()
	}
}

// SetWindows replaces the weekly availability windows.
func (e *EventType) SetWindows(windows []availability.AvailabilityWindow) {
	e.windows = windows
	e.markUpdated()
}

// MarkDeleted records that this event type is being removed.
func (e *EventType) MarkDeleted() {
	e.AddDomainEvent(NewEventTypeDeletedEvent(e.ID(), e.userID, e.slug))
}

// markUpdated touches the entity and records a single updated event per
// uncommitted change set. Downstream consumers invalidate cached slot
// grids on this event.
func (e *EventType) markUpdated() {
	e.Touch()
	for _, event := range e.DomainEvents() {
		if event.RoutingKey() == RoutingKeyEventTypeUpdated {
			return
		}
	}
	e.AddDomainEvent(NewEventTypeUpdatedEvent(e.ID(), e.userID, e.slug))
}

// RehydrateEventType recreates an event type from persisted data
// without recording domain events.
func RehydrateEventType(
	id uuid.UUID,
	userID uuid.UUID,
	slug, title, description string,
	duration, increment time.Duration,
	timezone string,
	limits availability.LimitRule,
	windows []availability.AvailabilityWindow,
	createdAt, updatedAt time.Time,
	version int,
) *EventType {
	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)

	return &EventType{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(baseEntity, version),
		userID:            userID,
		slug:              slug,
		title:             title,
		description:       description,
		duration:          duration,
		increment:         increment,
		timezone:          timezone,
		limits:            limits,
		windows:           windows,
	}
}

// Repository defines the interface for event type persistence. Windows
// are persisted together with the aggregate.
type Repository interface {
	// Save persists an event type and its windows (create or update).
	Save(ctx context.Context, eventType *EventType) error

	// FindByID finds an event type by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*EventType, error)

	// FindByUserAndSlug finds an event type by its owner and slug.
	FindByUserAndSlug(ctx context.Context, userID uuid.UUID, slug string) (*EventType, error)

	// FindByUser finds all event types for a user.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*EventType, error)

	// Delete removes an event type and its windows.
	Delete(ctx context.Context, id uuid.UUID) error
}
