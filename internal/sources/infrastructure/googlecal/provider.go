package googlecal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/tempora/internal/sources/application"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// TokenSourceProvider supplies per-user OAuth token sources.
type TokenSourceProvider interface {
	TokenSource(ctx context.Context, userID uuid.UUID) (oauth2.TokenSource, error)
}

// Provider fetches busy intervals from the Google Calendar freeBusy API.
type Provider struct {
	oauthService TokenSourceProvider
	logger       *slog.Logger
	baseURL      string
	calendarID   string
}

// NewProvider creates a Google Calendar busy provider.
func NewProvider(oauthService TokenSourceProvider, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		oauthService: oauthService,
		logger:       logger,
		baseURL:      defaultBaseURL,
		calendarID:   "primary",
	}
}

// NewProviderWithBaseURL creates a provider with a custom API base URL.
func NewProviderWithBaseURL(oauthService TokenSourceProvider, logger *slog.Logger, baseURL string) *Provider {
	p := NewProvider(oauthService, logger)
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithCalendarID sets the calendar queried for busy time.
func (p *Provider) WithCalendarID(calendarID string) *Provider {
	if calendarID != "" {
		p.calendarID = calendarID
	}
	return p
}

// NewFactory returns a provider factory backed by the OAuth service.
func NewFactory(oauthService TokenSourceProvider, logger *slog.Logger) application.ProviderFactory {
	return func(_ context.Context, source *domain.ConnectedSource) (application.BusyProvider, error) {
		if oauthService == nil {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return NewProvider(oauthService, logger).
			WithCalendarID(source.Setting(domain.SettingGoogleCalendar)), nil
	}
}

type freeBusyRequest struct {
	TimeMin string             `json:"timeMin"`
	TimeMax string             `json:"timeMax"`
	Items   []freeBusyCalendar `json:"items"`
}

type freeBusyCalendar struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"calendars"`
}

// FetchBusy queries the freeBusy endpoint for the user's calendar.
func (p *Provider) FetchBusy(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]application.BusyRange, error) {
	tokenSource, err := p.oauthService.TokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(freeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   []freeBusyCalendar{{ID: p.calendarID}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/freeBusy", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &oauthTransport{
			base:   http.DefaultTransport,
			source: tokenSource,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freebusy request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("freebusy request returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode freebusy response: %w", err)
	}

	cal, ok := parsed.Calendars[p.calendarID]
	if !ok {
		return nil, fmt.Errorf("freebusy response missing calendar %s", p.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy lookup failed: %s", cal.Errors[0].Reason)
	}

	ranges := make([]application.BusyRange, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		ranges = append(ranges, application.BusyRange{Start: b.Start.UTC(), End: b.End.UTC()})
	}
	return ranges, nil
}

type oauthTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	token.SetAuthHeader(clone)
	return t.base.RoundTrip(clone)
}
