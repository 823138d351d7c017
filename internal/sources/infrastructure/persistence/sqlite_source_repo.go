package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
	"github.com/google/uuid"
)

// SQLiteSourceRepository implements domain.Repository using SQLite.
type SQLiteSourceRepository struct {
	db *sql.DB
}

// NewSQLiteSourceRepository creates a new SQLite source repository.
func NewSQLiteSourceRepository(db *sql.DB) *SQLiteSourceRepository {
	return &SQLiteSourceRepository{db: db}
}

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteSourceRepository) querier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.db
}

// Save persists a connected source using an upsert.
func (r *SQLiteSourceRepository) Save(ctx context.Context, source *domain.ConnectedSource) error {
	_, err := r.querier(ctx).ExecContext(ctx, `
		INSERT INTO connected_sources (id, user_id, source_type, name, enabled, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			settings = excluded.settings,
			updated_at = excluded.updated_at
	`,
		source.ID().String(),
		source.UserID().String(),
		source.SourceType().String(),
		source.Name(),
		boolToInt(source.IsEnabled()),
		source.SettingsJSON(),
		source.CreatedAt().UTC().Format(time.RFC3339Nano),
		source.UpdatedAt().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// FindByID finds a connected source by ID. Returns nil when absent.
func (r *SQLiteSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ConnectedSource, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, source_type, name, enabled, settings, created_at, updated_at
		FROM connected_sources
		WHERE id = ?
	`, id.String())

	source, err := scanSQLiteSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return source, err
}

// FindByUser finds all connected sources for a user.
func (r *SQLiteSourceRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConnectedSource, error) {
	return r.findMany(ctx, `
		SELECT id, user_id, source_type, name, enabled, settings, created_at, updated_at
		FROM connected_sources
		WHERE user_id = ?
		ORDER BY name
	`, userID.String())
}

// FindEnabledByUser finds the user's enabled sources, ordered by name.
func (r *SQLiteSourceRepository) FindEnabledByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConnectedSource, error) {
	return r.findMany(ctx, `
		SELECT id, user_id, source_type, name, enabled, settings, created_at, updated_at
		FROM connected_sources
		WHERE user_id = ? AND enabled = 1
		ORDER BY name
	`, userID.String())
}

// Delete removes a connected source.
func (r *SQLiteSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.querier(ctx).ExecContext(ctx, `DELETE FROM connected_sources WHERE id = ?`, id.String())
	return err
}

func (r *SQLiteSourceRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.ConnectedSource, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.ConnectedSource
	for rows.Next() {
		source, err := scanSQLiteSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSource(row rowScanner) (*domain.ConnectedSource, error) {
	var (
		idStr      string
		userIDStr  string
		sourceType string
		name       string
		enabled    int
		settings   string
		createdAt  string
		updatedAt  string
	)

	if err := row.Scan(&idStr, &userIDStr, &sourceType, &name, &enabled, &settings, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateConnectedSource(
		id, userID, domain.SourceType(sourceType), name, enabled != 0, settings,
		created, updated, 0,
	), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
