package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	availability "github.com/felixgeelhaar/tempora/internal/availability/domain"
	"github.com/felixgeelhaar/tempora/internal/eventtypes/domain"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLiteEventTypeRepository implements domain.Repository using SQLite.
type SQLiteEventTypeRepository struct {
	db *sql.DB
}

// NewSQLiteEventTypeRepository creates a new SQLite event type repository.
func NewSQLiteEventTypeRepository(db *sql.DB) *SQLiteEventTypeRepository {
	return &SQLiteEventTypeRepository{db: db}
}

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteEventTypeRepository) querier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.db
}

const sqliteEventTypeColumns = `
	SELECT id, user_id, slug, title, description, duration_min, increment_min, timezone,
	       buffer_before_min, buffer_after_min, minimum_notice_min, max_bookings_per_day,
	       created_at, updated_at
	FROM event_types
`

// Save persists the event type and replaces its windows.
func (r *SQLiteEventTypeRepository) Save(ctx context.Context, eventType *domain.EventType) error {
	q := r.querier(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO event_types (id, user_id, slug, title, description, duration_min, increment_min,
		                         timezone, buffer_before_min, buffer_after_min, minimum_notice_min,
		                         max_bookings_per_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			duration_min = excluded.duration_min,
			increment_min = excluded.increment_min,
			timezone = excluded.timezone,
			buffer_before_min = excluded.buffer_before_min,
			buffer_after_min = excluded.buffer_after_min,
			minimum_notice_min = excluded.minimum_notice_min,
			max_bookings_per_day = excluded.max_bookings_per_day,
			updated_at = excluded.updated_at
	`,
		eventType.ID().String(),
		eventType.UserID().String(),
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
		eventType.CreatedAt().UTC().Format(time.RFC3339Nano),
		eventType.UpdatedAt().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM availability_windows WHERE event_type_id = ?`, eventType.ID().String()); err != nil {
		return err
	}
	for _, w := range eventType.Windows() {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO availability_windows (event_type_id, weekday, start_minute, end_minute, timezone)
			VALUES (?, ?, ?, ?, ?)
		`, eventType.ID().String(), int(w.Weekday), w.StartMinute, w.EndMinute, w.Timezone); err != nil {
			return err
		}
	}

	return nil
}

// FindByID finds an event type by ID. Returns nil when absent.
func (r *SQLiteEventTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.EventType, error) {
	return r.findOne(ctx, sqliteEventTypeColumns+`WHERE id = ?`, id.String())
}

// FindByUserAndSlug finds an event type by owner and slug. Returns nil when absent.
func (r *SQLiteEventTypeRepository) FindByUserAndSlug(ctx context.Context, userID uuid.UUID, slug string) (*domain.EventType, error) {
	return r.findOne(ctx, sqliteEventTypeColumns+`WHERE user_id = ? AND slug = ?`, userID.String(), slug)
}

// FindByUser finds all event types for a user.
func (r *SQLiteEventTypeRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.EventType, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, sqliteEventTypeColumns+`WHERE user_id = ? ORDER BY slug`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*eventTypeRecord
	for rows.Next() {
		rec, err := scanSQLiteEventType(rows)
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
func (r *SQLiteEventTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.querier(ctx).ExecContext(ctx, `DELETE FROM event_types WHERE id = ?`, id.String())
	return err
}

func (r *SQLiteEventTypeRepository) findOne(ctx context.Context, query string, args ...any) (*domain.EventType, error) {
	row := r.querier(ctx).QueryRowContext(ctx, query, args...)

	rec, err := scanSQLiteEventType(row)
	if errors.Is(err, sql.ErrNoRows) {
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

func (r *SQLiteEventTypeRepository) loadWindows(ctx context.Context, eventTypeID uuid.UUID) ([]availability.AvailabilityWindow, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT weekday, start_minute, end_minute, timezone
		FROM availability_windows
		WHERE event_type_id = ?
		ORDER BY weekday, start_minute
	`, eventTypeID.String())
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEventType(row rowScanner) (*eventTypeRecord, error) {
	var (
		rec       eventTypeRecord
		idStr     string
		userIDStr string
		createdAt string
		updatedAt string
	)

	if err := row.Scan(
		&idStr, &userIDStr, &rec.slug, &rec.title, &rec.description,
		&rec.durationMin, &rec.incrementMin, &rec.timezone,
		&rec.bufferBefore, &rec.bufferAfter, &rec.minimumNotice, &rec.maxPerDay,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.id, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if rec.userID, err = uuid.Parse(userIDStr); err != nil {
		return nil, err
	}
	if rec.createdAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if rec.updatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}

	return &rec, nil
}
