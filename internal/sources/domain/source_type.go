package domain

// SourceType identifies the kind of external busy-time source.
type SourceType string

const (
	SourceTypeCalDAV   SourceType = "caldav"
	SourceTypeGoogle   SourceType = "google"
	SourceTypeBookings SourceType = "bookings"
)

// IsValid returns true for known source types.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeCalDAV, SourceTypeGoogle, SourceTypeBookings:
		return true
	}
	return false
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// DisplayName returns a human-readable name for the source type.
func (t SourceType) DisplayName() string {
	switch t {
	case SourceTypeCalDAV:
		return "CalDAV"
	case SourceTypeGoogle:
		return "Google Calendar"
	case SourceTypeBookings:
		return "Internal Bookings"
	default:
		return string(t)
	}
}
