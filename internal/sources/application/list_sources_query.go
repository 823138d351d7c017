package application

import (
	"context"

	"github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/google/uuid"
)

// ListSourcesQuery returns a user's connected sources.
type ListSourcesQuery struct {
	sourceRepo domain.Repository
}

// NewListSourcesQuery creates a new ListSourcesQuery.
func NewListSourcesQuery(repo domain.Repository) *ListSourcesQuery {
	return &ListSourcesQuery{sourceRepo: repo}
}

// Execute returns all connected sources for the user.
func (q *ListSourcesQuery) Execute(ctx context.Context, userID uuid.UUID) ([]*domain.ConnectedSource, error) {
	return q.sourceRepo.FindByUser(ctx, userID)
}
