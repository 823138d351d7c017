package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	"github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// PostgresEventTypeRepository implements domain.Repository using PostgreSQL.
type PostgresEventTypeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventTypeRepository creates a new PostgreSQL event type repository.
func NewPostgresEventTypeRepository(pool *pgxpool.Pool) *PostgresEventTypeRepository {
	return &PostgresEventTypeRepository{pool: pool}
}

func (r *PostgresEventTypeRepository) executor(ctx context.Context) sharedPersistence.DBExecutor {
	return sharedPersistence.Executor(ctx, r.pool)
}

// eventTypeRecord is the flat row shape shared by the scan helpers.
type eventTypeRecord struct {
	id            uuid.UUID
	userID        uuid.UUID
	slug          string
	title         string
	description   string
	durationMin   int
	incrementMin  int
	timezone      string
	bufferBefore  int
	bufferAfter   int
	minimumNotice int
	maxPerDay     int
	createdAt     time.Time
	updatedAt     time.Time
}

func (rec *eventTypeRecord) rehydrate(windows []availability.AvailabilityWindow) *domain.EventType {
	limits := availability.LimitRule{
		BufferBefore:      time.Duration(rec.bufferBefore) * time.Minute,
		BufferAfter:       time.Duration(rec.bufferAfter) * time.Minute,
		MinimumNotice:     time.Duration(rec.minimumNotice) * time.Minute,
		MaxBookingsPerDay: rec.maxPerDay,
	}

	return domain.RehydrateEventType(
		rec.id, rec.userID, rec.slug, rec.title, rec.description,
		time.Duration(rec.durationMin)*time.Minute,
		time.Duration(rec.incrementMin)*time.Minute,
		rec.timezone, limits, windows, rec.createdAt, rec.updatedAt, 0,
	)
}

const postgresEventTypeColumns = `
	SELECT id, user_id, slug, title, description, duration_min, increment_min, timezone,
	       buffer_before_min, buffer_after_min, minimum_notice_min, max_bookings_per_day,
	       created_at, updated_at
	FROM event_types
`

// Save persists the event type and replaces its windows.
func (r *PostgresEventTypeRepository) Save(ctx context.Context, eventType *domain.EventType) error {
	exec := r.executor(ctx)

	_, err := exec.Exec(ctx, `
		INSERT INTO event_types (id, user_id, slug, title, description, duration_min, increment_min,
		                         timezone, buffer_before_min, buffer_after_min, minimum_notice_min,
		                         max_bookings_per_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			duration_min = EXCLUDED.duration_min,
			increment_min = EXCLUDED.increment_min,
			timezone = EXCLUDED.timezone,
			buffer_before_min = EXCLUDED.buffer_before_min,
			buffer_after_min = EXCLUDED.buffer_after_min,
			minimum_notice_min = EXCLUDED.minimum_notice_min,
			max_bookings_per_day = EXCLUDED.max_bookings_per_day,
			updated_at = EXCLUDED.updated_at
	`,
		eventType.ID(),
		eventType.UserID(),
		eventType.Slug(),
		eventType.Title(),
		eventType.Description(),
		int(eventType.Duration().Minutes()),
		int(eventType.Increment().Minutes()),
		eventType.Timezone(),
		int(eventType.Limits().BufferBefore.Minutes()),
		int(eventType.Limits().BufferAfter.Minutes()),
		int(eventType.Limits().MinimumNotice.Minutes()),
		eventType.Limits().MaxBookingsPerDay,
		eventType.CreatedAt(),
		eventType.UpdatedAt(),
	)
	if err != nil {
		return err
	}

	// Windows are replaced wholesale; the set is small.
	if _, err := exec.Exec(ctx, `DELETE FROM availability_windows WHERE event_type_id = $1`, eventType.ID()); err != nil {
		return err
	}
	for _, w := range eventType.Windows() {
		if _, err := exec.Exec(ctx, `
			INSERT INTO availability_windows (event_type_id, weekday, start_minute, end_minute, timezone)
			VALUES ($1, $2, $3, $4, $5)
		`, eventType.ID(), int(w.Weekday), w.StartMinute, w.EndMinute, w.Timezone); err != nil {
			return err
		}
	}

	return nil
}

// FindByID finds an event type by ID. Returns nil when absent.
func (r *PostgresEventTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.EventType, error) {
	return r.findOne(ctx, postgresEventTypeColumns+`WHERE id = $1`, id)
}

// FindByUserAndSlug finds an event type by owner and slug. Returns nil when absent.
func (r *PostgresEventTypeRepository) FindByUserAndSlug(ctx context.Context, userID uuid.UUID, slug string) (*domain.EventType, error) {
	return r.findOne(ctx, postgresEventTypeColumns+`WHERE user_id = $1 AND slug = $2`, userID, slug)
}

// FindByUser finds all event types for a user.
func (r *PostgresEventTypeRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.EventType, error) {
	rows, err := r.executor(ctx).Query(ctx, postgresEventTypeColumns+`WHERE user_id = $1 ORDER BY slug`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*eventTypeRecord
	for rows.Next() {
		rec, err := scanPostgresEventType(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	eventTypes := make([]*domain.EventType, 0, len(records))
	for _, rec := range records {
		windows, err := r.loadWindows(ctx, rec.id)
		if err != nil {
			return nil, err
		}
		eventTypes = append(eventTypes, rec.rehydrate(windows))
	}

	return eventTypes, nil
}

// Delete removes an event type; windows cascade.
func (r *PostgresEventTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.executor(ctx).Exec(ctx, `DELETE FROM event_types WHERE id = $1`, id)
	return err
}

func (r *PostgresEventTypeRepository) findOne(ctx context.Context, query string, args ...any) (*domain.EventType, error) {
	row := r.executor(ctx).QueryRow(ctx, query, args...)

	rec, err := scanPostgresEventType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	windows, err := r.loadWindows(ctx, rec.id)
	if err != nil {
		return nil, err
	}

	return rec.rehydrate(windows), nil
}

func (r *PostgresEventTypeRepository) loadWindows(ctx context.Context, eventTypeID uuid.UUID) ([]availability.AvailabilityWindow, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT weekday, start_minute, end_minute, timezone
		FROM availability_windows
		WHERE event_type_id = $1
		ORDER BY weekday, start_minute
	`, eventTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []availability.AvailabilityWindow
	for rows.Next() {
		var (
			weekday     int
			startMinute int
			endMinute   int
			timezone    string
		)
		if err := rows.Scan(&weekday, &startMinute, &endMinute, &timezone); err != nil {
			return nil, err
		}
		window, err := availability.NewAvailabilityWindow(time.Weekday(weekday), startMinute, endMinute, timezone)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	return windows, rows.Err()
}

func scanPostgresEventType(row pgx.Row) (*eventTypeRecord, error) {
	var rec eventTypeRecord
	if err := row.Scan(
		&rec.id, &rec.userID, &rec.slug, &rec.title, &rec.description,
		&rec.durationMin, &rec.incrementMin, &rec.timezone,
		&rec.bufferBefore, &rec.bufferAfter, &rec.minimumNotice, &rec.maxPerDay,
		&rec.createdAt, &rec.updatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
