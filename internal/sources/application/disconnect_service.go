package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/google/uuid"
)

// DisconnectSourceService handles the use case of removing a source.
type DisconnectSourceService struct {
	sourceRepo domain.Repository
	outboxRepo outbox.Repository
	uow        UnitOfWork
	logger     *slog.Logger
}

// NewDisconnectSourceService creates a new DisconnectSourceService.
func NewDisconnectSourceService(
	repo domain.Repository,
	outboxRepo outbox.Repository,
	uow UnitOfWork,
	logger *slog.Logger,
) *DisconnectSourceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisconnectSourceService{
		sourceRepo: repo,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
	}
}

// Disconnect removes a connected source owned by the user.
func (s *DisconnectSourceService) Disconnect(ctx context.Context, userID, sourceID uuid.UUID) error {
	source, err := s.sourceRepo.FindByID(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil || source.UserID() != userID {
		return domain.ErrSourceNotFound
	}

	source.MarkDisconnected()

	txCtx, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := s.uow.Rollback(txCtx); rollbackErr != nil {
				s.logger.Error("failed to rollback transaction",
					slog.String("operation", "disconnect_source"),
					slog.String("error", rollbackErr.Error()),
				)
			}
		}
	}()

	if err := s.sourceRepo.Delete(txCtx, sourceID); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	if err := saveEvents(txCtx, s.outboxRepo, source.DomainEvents()); err != nil {
		return err
	}
	source.ClearDomainEvents()

	if err := s.uow.Commit(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	s.logger.Info("source disconnected",
		slog.String("source_id", sourceID.String()),
		slog.String("user_id", userID.String()),
	)

	return nil
}
