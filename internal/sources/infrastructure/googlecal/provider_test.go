package googlecal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type staticTokenProvider struct{}

func (staticTokenProvider) TokenSource(_ context.Context, _ uuid.UUID) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil
}

func TestProvider_FetchBusy(t *testing.T) {
	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	t.Run("parses busy ranges from freebusy response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/freeBusy", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var req freeBusyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "2026-09-07T00:00:00Z", req.TimeMin)

			_, _ = w.Write([]byte(`{
				"calendars": {
					"primary": {
						"busy": [
							{"start": "2026-09-07T10:00:00Z", "end": "2026-09-07T11:00:00Z"},
							{"start": "2026-09-07T14:00:00Z", "end": "2026-09-07T14:30:00Z"}
						]
					}
				}
			}`))
		}))
		defer server.Close()

		provider := NewProviderWithBaseURL(staticTokenProvider{}, nil, server.URL)

		ranges, err := provider.FetchBusy(context.Background(), uuid.New(), from, to)
		require.NoError(t, err)
		require.Len(t, ranges, 2)
		assert.Equal(t, time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), ranges[0].Start)
		assert.Equal(t, time.Date(2026, 9, 7, 14, 30, 0, 0, time.UTC), ranges[1].End)
	})

	t.Run("surfaces calendar-level errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{
				"calendars": {
					"primary": {"busy": [], "errors": [{"reason": "notFound"}]}
				}
			}`))
		}))
		defer server.Close()

		provider := NewProviderWithBaseURL(staticTokenProvider{}, nil, server.URL)

		_, err := provider.FetchBusy(context.Background(), uuid.New(), from, to)
		assert.ErrorContains(t, err, "notFound")
	})

	t.Run("non-200 response fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusForbidden)
		}))
		defer server.Close()

		provider := NewProviderWithBaseURL(staticTokenProvider{}, nil, server.URL)

		_, err := provider.FetchBusy(context.Background(), uuid.New(), from, to)
		assert.ErrorContains(t, err, "403")
	})
}
