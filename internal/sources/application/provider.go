package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/google/uuid"
)

// BusyRange is a raw busy time range reported by a provider, before
// the availability pipeline validates and merges it.
type BusyRange struct {
	Start time.Time
	End   time.Time
}

// BusyProvider fetches busy ranges from a connected source.
type BusyProvider interface {
	// FetchBusy returns the busy ranges for the user within [from, to).
	FetchBusy(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]BusyRange, error)
}

// ProviderFactory creates a BusyProvider for a specific connected source.
type ProviderFactory func(ctx context.Context, source *domain.ConnectedSource) (BusyProvider, error)

// ProviderRegistry manages busy provider implementations. Factories
// are registered per source type and create providers configured from
// a source's settings.
type ProviderRegistry struct {
	mu        sync.RWMutex
	factories map[domain.SourceType]ProviderFactory
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: make(map[domain.SourceType]ProviderFactory),
	}
}

// Register registers a provider factory for a source type.
func (r *ProviderRegistry) Register(sourceType domain.SourceType, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
}

// Create creates a provider for the given connected source.
func (r *ProviderRegistry) Create(ctx context.Context, source *domain.ConnectedSource) (BusyProvider, error) {
	r.mu.RLock()
	factory, ok := r.factories[source.SourceType()]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no provider registered for source type: %s", source.SourceType())
	}
	return factory(ctx, source)
}

// HasProvider returns true if a factory is registered for the type.
func (r *ProviderRegistry) HasProvider(sourceType domain.SourceType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[sourceType]
	return ok
}

// SupportedTypes returns all registered source types.
func (r *ProviderRegistry) SupportedTypes() []domain.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.SourceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
