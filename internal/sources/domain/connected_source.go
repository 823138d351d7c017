package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/google/uuid"
)

// Domain errors for ConnectedSource validation.
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrInvalidSourceType = errors.New("invalid source type")
	ErrEmptyName         = errors.New("source name cannot be empty")
	ErrSourceNotFound    = errors.New("connected source not found")
)

// ConnectedSource represents an external busy-time source a host has
// connected. Each enabled source contributes busy intervals to the
// availability merge. This is an Aggregate Root that publishes domain
// events.
type ConnectedSource struct {
	sharedDomain.BaseAggregateRoot
	userID      uuid.UUID
	sourceType  SourceType
	name        string
	enabled     bool
	settings    map[string]string // Provider-specific configuration
	lastFetchAt time.Time         // Last successful busy fetch
}

// NewConnectedSource creates a connected source and records a
// SourceConnectedEvent.
func NewConnectedSource(userID uuid.UUID, sourceType SourceType, name string) (*ConnectedSource, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if !sourceType.IsValid() {
		return nil, ErrInvalidSourceType
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	s := &ConnectedSource{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		sourceType:        sourceType,
		name:              name,
		enabled:           true,
		settings:          make(map[string]string),
	}

	s.AddDomainEvent(NewSourceConnectedEvent(s.ID(), userID, sourceType, name))

	return s, nil
}

// Getters
func (s *ConnectedSource) UserID() uuid.UUID      { return s.userID }
func (s *ConnectedSource) SourceType() SourceType { return s.sourceType }
func (s *ConnectedSource) Name() string           { return s.name }
func (s *ConnectedSource) IsEnabled() bool        { return s.enabled }
func (s *ConnectedSource) LastFetchAt() time.Time { return s.lastFetchAt }

// Setting returns a provider-specific configuration value.
func (s *ConnectedSource) Setting(key string) string {
	if s.settings == nil {
		return ""
	}
	return s.settings[key]
}

// SetSetting stores a provider-specific configuration value.
func (s *ConnectedSource) SetSetting(key, value string) {
	if s.settings == nil {
		s.settings = make(map[string]string)
	}
	s.settings[key] = value
	s.Touch()
}

// SettingsJSON returns the settings as a JSON string for persistence.
func (s *ConnectedSource) SettingsJSON() string {
	if len(s.settings) == 0 {
		return "{}"
	}
	data, err := json.Marshal(s.settings)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SetEnabled toggles whether this source contributes busy intervals.
func (s *ConnectedSource) SetEnabled(enabled bool) {
	if s.enabled != enabled {
		s.enabled = enabled
		s.Touch()
		s.AddDomainEvent(NewSourceUpdatedEvent(s.ID(), s.userID, s.sourceType))
	}
}

// MarkFetched records a successful busy fetch.
func (s *ConnectedSource) MarkFetched() {
	s.lastFetchAt = time.Now().UTC()
	s.Touch()
}

// MarkDisconnected records that this source is being removed.
func (s *ConnectedSource) MarkDisconnected() {
	s.AddDomainEvent(NewSourceDisconnectedEvent(s.ID(), s.userID, s.sourceType))
}

// CalDAV setting keys. Credentials for the CalDAV account live in the
// settings map; the password is expected to come from the environment
// in local mode.
const (
	SettingCalDAVURL      = "caldav_url"
	SettingCalDAVUsername = "caldav_username"
	SettingCalDAVPassword = "caldav_password"
	SettingCalendarPath   = "calendar_path"
	SettingGoogleCalendar = "google_calendar_id"
)

// RehydrateConnectedSource recreates a connected source from persisted
// data without recording domain events.
func RehydrateConnectedSource(
	id uuid.UUID,
	userID uuid.UUID,
	sourceType SourceType,
	name string,
	enabled bool,
	settingsJSON string,
	createdAt, updatedAt time.Time,
	version int,
) *ConnectedSource {
	settings := make(map[string]string)
	if settingsJSON != "" && settingsJSON != "{}" {
		_ = json.Unmarshal([]byte(settingsJSON), &settings)
	}

	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)

	return &ConnectedSource{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(baseEntity, version),
		userID:            userID,
		sourceType:        sourceType,
		name:              name,
		enabled:           enabled,
		settings:          settings,
	}
}

// Repository defines the interface for connected source persistence.
type Repository interface {
	// Save persists a connected source (create or update).
	Save(ctx context.Context, source *ConnectedSource) error

	// FindByID finds a connected source by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*ConnectedSource, error)

	// FindByUser finds all connected sources for a user.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*ConnectedSource, error)

	// FindEnabledByUser finds the user's enabled sources, ordered by name.
	FindEnabledByUser(ctx context.Context, userID uuid.UUID) ([]*ConnectedSource, error)

	// Delete removes a connected source.
	Delete(ctx context.Context, id uuid.UUID) error
}
