package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	sourcesDomain "github.com/felixgeelhaar/tempora/internal/sources/domain"
)

// CollectorConfig controls the busy fan-out behavior.
type CollectorConfig struct {
	// SourceTimeout bounds each individual source fetch.
	SourceTimeout time.Duration

	// FailureThreshold is the number of consecutive failures after
	// which a source's circuit opens.
	FailureThreshold uint32

	// BreakerTimeout is how long an open circuit stays open before
	// allowing a probe request.
	BreakerTimeout time.Duration
}

// DefaultCollectorConfig returns sensible defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		SourceTimeout:    3 * time.Second,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// CollectResult is the merged outcome of a busy fan-out. Degraded is
// set when at least one enabled source could not report; callers must
// treat the busy set as incomplete.
type CollectResult struct {
	Busy     []availability.BusyInterval
	Degraded bool
	Excluded []string
}

// BusyCollector fans out to all of a user's enabled sources in
// parallel, bounds each fetch with a timeout and a per-source circuit
// breaker, and returns the combined busy intervals. A failing source
// never fails the whole collection.
type BusyCollector struct {
	sourceRepo sourcesDomain.Repository
	registry   *sourcesApp.ProviderRegistry
	config     CollectorConfig
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[uuid.UUID]*gobreaker.CircuitBreaker[[]sourcesApp.BusyRange]
}

// NewBusyCollector creates a new busy collector.
func NewBusyCollector(
	sourceRepo sourcesDomain.Repository,
	registry *sourcesApp.ProviderRegistry,
	config CollectorConfig,
	logger *slog.Logger,
) *BusyCollector {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = DefaultCollectorConfig().SourceTimeout
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultCollectorConfig().FailureThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = DefaultCollectorConfig().BreakerTimeout
	}
	return &BusyCollector{
		sourceRepo: sourceRepo,
		registry:   registry,
		config:     config,
		logger:     logger,
		breakers:   make(map[uuid.UUID]*gobreaker.CircuitBreaker[[]sourcesApp.BusyRange]),
	}
}

type sourceFetch struct {
	name   string
	ranges []sourcesApp.BusyRange
	err    error
}

// Collect fetches and tags busy intervals from every enabled source.
func (c *BusyCollector) Collect(ctx context.Context, userID uuid.UUID, from, to time.Time) (CollectResult, error) {
	sources, err := c.sourceRepo.FindEnabledByUser(ctx, userID)
	if err != nil {
		return CollectResult{}, err
	}
	if len(sources) == 0 {
		return CollectResult{}, nil
	}

	results := make(chan sourceFetch, len(sources))
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		go func(source *sourcesDomain.ConnectedSource) {
			defer wg.Done()
			ranges, err := c.fetchOne(ctx, source, userID, from, to)
			results <- sourceFetch{name: source.Name(), ranges: ranges, err: err}
		}(source)
	}

	wg.Wait()
	close(results)

	var result CollectResult
	for fetch := range results {
		if fetch.err != nil {
			c.logger.Warn("busy source excluded from merge",
				slog.String("source", fetch.name),
				slog.String("user_id", userID.String()),
				slog.String("error", fetch.err.Error()),
			)
			result.Degraded = true
			result.Excluded = append(result.Excluded, fetch.name)
			continue
		}
		for _, r := range fetch.ranges {
			interval, err := availability.NewBusyInterval(r.Start, r.End, fetch.name)
			if err != nil {
				// Malformed intervals are logged and skipped, never fatal.
				c.logger.Warn("skipping malformed busy interval",
					slog.String("source", fetch.name),
					slog.Time("start", r.Start),
					slog.Time("end", r.End),
				)
				continue
			}
			result.Busy = append(result.Busy, interval)
		}
	}

	return result, nil
}

func (c *BusyCollector) fetchOne(ctx context.Context, source *sourcesDomain.ConnectedSource, userID uuid.UUID, from, to time.Time) ([]sourcesApp.BusyRange, error) {
	provider, err := c.registry.Create(ctx, source)
	if err != nil {
		return nil, err
	}

	breaker := c.getBreaker(source)
	return breaker.Execute(func() ([]sourcesApp.BusyRange, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, c.config.SourceTimeout)
		defer cancel()
		return provider.FetchBusy(fetchCtx, userID, from, to)
	})
}

func (c *BusyCollector) getBreaker(source *sourcesDomain.ConnectedSource) *gobreaker.CircuitBreaker[[]sourcesApp.BusyRange] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if breaker, exists := c.breakers[source.ID()]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:    source.Name(),
		Timeout: c.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("source circuit breaker state changed",
				slog.String("source", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[[]sourcesApp.BusyRange](settings)
	c.breakers[source.ID()] = breaker
	return breaker
}
