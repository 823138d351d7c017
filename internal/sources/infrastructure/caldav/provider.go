package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/tempora/internal/sources/application"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
)

// Provider fetches busy intervals from a CalDAV server (Apple Calendar,
// Fastmail, Nextcloud, Radicale, etc.) via a time-range calendar-query.
type Provider struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	logger       *slog.Logger
}

// NewProvider creates a CalDAV busy provider.
func NewProvider(baseURL, username, password string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logger,
	}
}

// WithCalendarPath pins the provider to a specific calendar collection.
func (p *Provider) WithCalendarPath(path string) *Provider {
	p.calendarPath = path
	return p
}

// NewFactory returns a provider factory that configures clients from a
// connected source's settings.
func NewFactory(logger *slog.Logger) application.ProviderFactory {
	return func(_ context.Context, source *domain.ConnectedSource) (application.BusyProvider, error) {
		baseURL := source.Setting(domain.SettingCalDAVURL)
		if baseURL == "" {
			return nil, fmt.Errorf("caldav source %s has no server URL", source.ID())
		}
		provider := NewProvider(
			baseURL,
			source.Setting(domain.SettingCalDAVUsername),
			source.Setting(domain.SettingCalDAVPassword),
			logger,
		)
		if path := source.Setting(domain.SettingCalendarPath); path != "" {
			provider = provider.WithCalendarPath(path)
		}
		return provider, nil
	}
}

// FetchBusy queries VEVENTs overlapping [from, to) and converts them to
// busy ranges. Transparent and cancelled events do not block time.
func (p *Provider) FetchBusy(ctx context.Context, _ uuid.UUID, from, to time.Time) ([]application.BusyRange, error) {
	client, err := p.getClient()
	if err != nil {
		return nil, err
	}

	calPath, err := p.findCalendarPath(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{
					Name:  "VEVENT",
					Props: []string{"UID", "DTSTART", "DTEND", "STATUS", "TRANSP"},
				},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var ranges []application.BusyRange
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		ranges = append(ranges, busyRangesFromCalendar(obj.Data)...)
	}

	return ranges, nil
}

// busyRangesFromCalendar extracts the blocking VEVENT ranges from a
// parsed iCalendar object.
func busyRangesFromCalendar(cal *ical.Calendar) []application.BusyRange {
	var ranges []application.BusyRange

	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if !blocksTime(child) {
			continue
		}

		event := &ical.Event{Component: child}
		start, err := event.DateTimeStart(time.UTC)
		if err != nil {
			continue
		}
		end, err := event.DateTimeEnd(time.UTC)
		if err != nil || !start.Before(end) {
			continue
		}

		ranges = append(ranges, application.BusyRange{Start: start.UTC(), End: end.UTC()})
	}

	return ranges
}

// blocksTime returns false for events that do not occupy the calendar:
// TRANSP:TRANSPARENT or STATUS:CANCELLED.
func blocksTime(event *ical.Component) bool {
	if props := event.Props[ical.PropTransparency]; len(props) > 0 {
		if strings.EqualFold(props[0].Value, "TRANSPARENT") {
			return false
		}
	}
	if props := event.Props[ical.PropStatus]; len(props) > 0 {
		if strings.EqualFold(props[0].Value, "CANCELLED") {
			return false
		}
	}
	return true
}

func (p *Provider) getClient() (*caldav.Client, error) {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &basicAuthTransport{
			username: p.username,
			password: p.password,
			base:     http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, p.username, p.password), p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

func (p *Provider) findCalendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if p.calendarPath != "" {
		return p.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found")
	}

	return cals[0].Path, nil
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}
