package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	sourcesDomain "github.com/felixgeelhaar/tempora/internal/sources/domain"
)

type mockSourceRepo struct {
	mock.Mock
}

func (m *mockSourceRepo) Save(ctx context.Context, source *sourcesDomain.ConnectedSource) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

func (m *mockSourceRepo) FindByID(ctx context.Context, id uuid.UUID) (*sourcesDomain.ConnectedSource, error) {
	args := m.Called(ctx, id)
	if s, ok := args.Get(0).(*sourcesDomain.ConnectedSource); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSourceRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]*sourcesDomain.ConnectedSource, error) {
	args := m.Called(ctx, userID)
	if s, ok := args.Get(0).([]*sourcesDomain.ConnectedSource); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSourceRepo) FindEnabledByUser(ctx context.Context, userID uuid.UUID) ([]*sourcesDomain.ConnectedSource, error) {
	args := m.Called(ctx, userID)
	if s, ok := args.Get(0).([]*sourcesDomain.ConnectedSource); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type fakeProvider struct {
	ranges []sourcesApp.BusyRange
	err    error
	delay  time.Duration
}

func (p *fakeProvider) FetchBusy(ctx context.Context, _ uuid.UUID, _, _ time.Time) ([]sourcesApp.BusyRange, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.ranges, p.err
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) FetchBusy(context.Context, uuid.UUID, time.Time, time.Time) ([]sourcesApp.BusyRange, error) {
	p.calls++
	return nil, p.err
}

func newSource(t *testing.T, userID uuid.UUID, name string, sourceType sourcesDomain.SourceType) *sourcesDomain.ConnectedSource {
	t.Helper()
	source, err := sourcesDomain.NewConnectedSource(userID, sourceType, name)
	require.NoError(t, err)
	return source
}

func TestBusyCollector_Collect(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	t.Run("merges tagged intervals from all sources", func(t *testing.T) {
		repo := new(mockSourceRepo)
		registry := sourcesApp.NewProviderRegistry()

		caldav := newSource(t, userID, "Work", sourcesDomain.SourceTypeCalDAV)
		google := newSource(t, userID, "Personal", sourcesDomain.SourceTypeGoogle)
		repo.On("FindEnabledByUser", ctx, userID).Return([]*sourcesDomain.ConnectedSource{caldav, google}, nil)

		registry.Register(sourcesDomain.SourceTypeCalDAV, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return &fakeProvider{ranges: []sourcesApp.BusyRange{
				{Start: from.Add(10 * time.Hour), End: from.Add(11 * time.Hour)},
			}}, nil
		})
		registry.Register(sourcesDomain.SourceTypeGoogle, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return &fakeProvider{ranges: []sourcesApp.BusyRange{
				{Start: from.Add(14 * time.Hour), End: from.Add(15 * time.Hour)},
			}}, nil
		})

		collector := NewBusyCollector(repo, registry, DefaultCollectorConfig(), nil)

		result, err := collector.Collect(ctx, userID, from, to)
		require.NoError(t, err)
		assert.False(t, result.Degraded)
		require.Len(t, result.Busy, 2)

		names := []string{result.Busy[0].Source, result.Busy[1].Source}
		assert.ElementsMatch(t, []string{"Work", "Personal"}, names)
	})

	t.Run("failing source degrades but does not fail", func(t *testing.T) {
		repo := new(mockSourceRepo)
		registry := sourcesApp.NewProviderRegistry()

		caldav := newSource(t, userID, "Work", sourcesDomain.SourceTypeCalDAV)
		google := newSource(t, userID, "Personal", sourcesDomain.SourceTypeGoogle)
		repo.On("FindEnabledByUser", ctx, userID).Return([]*sourcesDomain.ConnectedSource{caldav, google}, nil)

		registry.Register(sourcesDomain.SourceTypeCalDAV, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return &fakeProvider{err: errors.New("server unreachable")}, nil
		})
		registry.Register(sourcesDomain.SourceTypeGoogle, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return &fakeProvider{ranges: []sourcesApp.BusyRange{
				{Start: from.Add(9 * time.Hour), End: from.Add(10 * time.Hour)},
			}}, nil
		})

		collector := NewBusyCollector(repo, registry, DefaultCollectorConfig(), nil)

		result, err := collector.Collect(ctx, userID, from, to)
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, []string{"Work"}, result.Excluded)
		require.Len(t, result.Busy, 1)
		assert.Equal(t, "Personal", result.Busy[0].Source)
	})

	t.Run("slow source is cut off by the timeout", func(t *testing.T) {
		repo := new(mockSourceRepo)
		registry := sourcesApp.NewProviderRegistry()

		caldav := newSource(t, userID, "Slow", sourcesDomain.SourceTypeCalDAV)
		repo.On("FindEnabledByUser", ctx, userID).Return([]*sourcesDomain.ConnectedSource{caldav}, nil)

		registry.Register(sourcesDomain.SourceTypeCalDAV, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return &fakeProvider{delay: time.Second}, nil
		})

		cfg := DefaultCollectorConfig()
		cfg.SourceTimeout = 10 * time.Millisecond
		collector := NewBusyCollector(repo, registry, cfg, nil)

		result, err := collector.Collect(ctx, userID, from, to)
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, []string{"Slow"}, result.Excluded)
	})

	t.Run("malformed intervals are skipped", func(t *testing.T) {
		repo := new(mockSourceRepo)
		registry := sourcesApp.NewProviderRegistry()

		caldav := newSource(t, userID, "Work", sourcesDomain.SourceTypeCalDAV)
		repo.On("FindEnabledByUser", ctx, userID).Return([]*sourcesDomain.ConnectedSource{caldav}, nil)

		registry.Register(sourcesDomain.SourceTypeCalDAV, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return &fakeProvider{ranges: []sourcesApp.BusyRange{
				{Start: from.Add(11 * time.Hour), End: from.Add(10 * time.Hour)}, // inverted
				{Start: from.Add(13 * time.Hour), End: from.Add(14 * time.Hour)},
			}}, nil
		})

		collector := NewBusyCollector(repo, registry, DefaultCollectorConfig(), nil)

		result, err := collector.Collect(ctx, userID, from, to)
		require.NoError(t, err)
		assert.False(t, result.Degraded)
		require.Len(t, result.Busy, 1)
	})

	t.Run("no sources yields empty result", func(t *testing.T) {
		repo := new(mockSourceRepo)
		repo.On("FindEnabledByUser", ctx, userID).Return([]*sourcesDomain.ConnectedSource{}, nil)

		collector := NewBusyCollector(repo, sourcesApp.NewProviderRegistry(), DefaultCollectorConfig(), nil)

		result, err := collector.Collect(ctx, userID, from, to)
		require.NoError(t, err)
		assert.Empty(t, result.Busy)
		assert.False(t, result.Degraded)
	})

	t.Run("repeated failures open the circuit", func(t *testing.T) {
		repo := new(mockSourceRepo)
		registry := sourcesApp.NewProviderRegistry()

		caldav := newSource(t, userID, "Flaky", sourcesDomain.SourceTypeCalDAV)
		repo.On("FindEnabledByUser", ctx, userID).Return([]*sourcesDomain.ConnectedSource{caldav}, nil)

		provider := &countingProvider{err: errors.New("boom")}
		registry.Register(sourcesDomain.SourceTypeCalDAV, func(context.Context, *sourcesDomain.ConnectedSource) (sourcesApp.BusyProvider, error) {
			return provider, nil
		})

		cfg := DefaultCollectorConfig()
		cfg.FailureThreshold = 2
		collector := NewBusyCollector(repo, registry, cfg, nil)

		for i := 0; i < 5; i++ {
			result, err := collector.Collect(ctx, userID, from, to)
			require.NoError(t, err)
			assert.True(t, result.Degraded)
		}

		// After the threshold the open breaker short-circuits without
		// reaching the provider.
		assert.Equal(t, 2, provider.calls)
	})
}
