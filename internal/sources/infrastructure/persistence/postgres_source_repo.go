package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/google/uuid"
)

// PostgresSourceRepository implements domain.Repository using PostgreSQL.
type PostgresSourceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSourceRepository creates a new PostgreSQL source repository.
func NewPostgresSourceRepository(pool *pgxpool.Pool) *PostgresSourceRepository {
	return &PostgresSourceRepository{pool: pool}
}

func (r *PostgresSourceRepository) executor(ctx context.Context) sharedPersistence.DBExecutor {
	return sharedPersistence.Executor(ctx, r.pool)
}

// Save persists a connected source using an upsert.
func (r *PostgresSourceRepository) Save(ctx context.Context, source *domain.ConnectedSource) error {
	_, err := r.executor(ctx).Exec(ctx, `
		INSERT INTO connected_sources (id, user_id, source_type, name, enabled, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
	`,
		source.ID(),
		source.UserID(),
		source.SourceType().String(),
		source.Name(),
		source.IsEnabled(),
		source.SettingsJSON(),
		source.CreatedAt(),
		source.UpdatedAt(),
	)
	return err
}

// FindByID finds a connected source by ID. Returns nil when absent.
func (r *PostgresSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ConnectedSource, error) {
	row := r.executor(ctx).QueryRow(ctx, `
		SELECT id, user_id, source_type, name, enabled, settings, created_at, updated_at
		FROM connected_sources
		WHERE id = $1
	`, id)

	source, err := scanPostgresSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return source, err
}

// FindByUser finds all connected sources for a user.
func (r *PostgresSourceRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConnectedSource, error) {
	return r.findMany(ctx, `
		SELECT id, user_id, source_type, name, enabled, settings, created_at, updated_at
		FROM connected_sources
		WHERE user_id = $1
		ORDER BY name
	`, userID)
}

// FindEnabledByUser finds the user's enabled sources, ordered by name.
func (r *PostgresSourceRepository) FindEnabledByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConnectedSource, error) {
	return r.findMany(ctx, `
		SELECT id, user_id, source_type, name, enabled, settings, created_at, updated_at
		FROM connected_sources
		WHERE user_id = $1 AND enabled = TRUE
		ORDER BY name
	`, userID)
}

// Delete removes a connected source.
func (r *PostgresSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.executor(ctx).Exec(ctx, `DELETE FROM connected_sources WHERE id = $1`, id)
	return err
}

func (r *PostgresSourceRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.ConnectedSource, error) {
	rows, err := r.executor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.ConnectedSource
	for rows.Next() {
		source, err := scanPostgresSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func scanPostgresSource(row pgx.Row) (*domain.ConnectedSource, error) {
	var (
		id         uuid.UUID
		userID     uuid.UUID
		sourceType string
		name       string
		enabled    bool
		settings   string
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&id, &userID, &sourceType, &name, &enabled, &settings, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	return domain.RehydrateConnectedSource(
		id, userID, domain.SourceType(sourceType), name, enabled, settings,
		createdAt, updatedAt, 0,
	), nil
}
