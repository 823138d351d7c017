package bookingstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/sources/application"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
)

// ConfirmedBookingReader exposes the confirmed booking ranges of a host.
// The booking repository implements this so the engine's own bookings
// block time like any external calendar.
type ConfirmedBookingReader interface {
	FindConfirmedRanges(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]application.BusyRange, error)
}

// Provider adapts the booking store into a busy provider.
type Provider struct {
	reader ConfirmedBookingReader
}

// NewProvider creates a booking-store busy provider.
func NewProvider(reader ConfirmedBookingReader) *Provider {
	return &Provider{reader: reader}
}

// NewFactory returns a provider factory for the internal booking source.
func NewFactory(reader ConfirmedBookingReader) application.ProviderFactory {
	return func(_ context.Context, _ *domain.ConnectedSource) (application.BusyProvider, error) {
		if reader == nil {
			return nil, fmt.Errorf("booking reader not configured")
		}
		return NewProvider(reader), nil
	}
}

// FetchBusy returns the host's confirmed booking ranges.
func (p *Provider) FetchBusy(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]application.BusyRange, error) {
	return p.reader.FindConfirmedRanges(ctx, userID, from, to)
}
