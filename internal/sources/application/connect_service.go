package application

import (
	"context"
	"fmt"
	"log/slog"

	sharedDomain "github.com/felixgeelhaar/tempora/internal/shared/domain"
	"github.com/felixgeelhaar/tempora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/google/uuid"
)

// UnitOfWork defines the interface for transaction management.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ConnectSourceCommand contains the data needed to connect a busy source.
type ConnectSourceCommand struct {
	UserID     uuid.UUID
	SourceType domain.SourceType
	Name       string
	Settings   map[string]string
}

// ConnectSourceService handles the use case of connecting a source.
type ConnectSourceService struct {
	sourceRepo domain.Repository
	outboxRepo outbox.Repository
	uow        UnitOfWork
	registry   *ProviderRegistry
	logger     *slog.Logger
}

// NewConnectSourceService creates a new ConnectSourceService.
func NewConnectSourceService(
	repo domain.Repository,
	outboxRepo outbox.Repository,
	uow UnitOfWork,
	registry *ProviderRegistry,
	logger *slog.Logger,
) *ConnectSourceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectSourceService{
		sourceRepo: repo,
		outboxRepo: outboxRepo,
		uow:        uow,
		registry:   registry,
		logger:     logger,
	}
}

// Connect registers a new busy source for the user. The aggregate and
// its outbox events are persisted in one transaction.
func (s *ConnectSourceService) Connect(ctx context.Context, cmd ConnectSourceCommand) (*domain.ConnectedSource, error) {
	if s.registry != nil && !s.registry.HasProvider(cmd.SourceType) {
		return nil, fmt.Errorf("unsupported source type: %s", cmd.SourceType)
	}

	source, err := domain.NewConnectedSource(cmd.UserID, cmd.SourceType, cmd.Name)
	if err != nil {
		return nil, err
	}
	for k, v := range cmd.Settings {
		source.SetSetting(k, v)
	}

	txCtx, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := s.uow.Rollback(txCtx); rollbackErr != nil {
				s.logger.Error("failed to rollback transaction",
					slog.String("operation", "connect_source"),
					slog.String("error", rollbackErr.Error()),
				)
			}
		}
	}()

	if err := s.sourceRepo.Save(txCtx, source); err != nil {
		return nil, fmt.Errorf("failed to save source: %w", err)
	}

	if err := saveEvents(txCtx, s.outboxRepo, source.DomainEvents()); err != nil {
		return nil, err
	}
	source.ClearDomainEvents()

	if err := s.uow.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	s.logger.Info("source connected",
		slog.String("source_id", source.ID().String()),
		slog.String("user_id", cmd.UserID.String()),
		slog.String("source_type", cmd.SourceType.String()),
	)

	return source, nil
}

func saveEvents(ctx context.Context, repo outbox.Repository, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("failed to build outbox messages: %w", err)
	}
	if err := repo.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("failed to save outbox messages: %w", err)
	}
	return nil
}
