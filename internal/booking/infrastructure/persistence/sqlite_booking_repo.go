package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/felixgeelhaar/tempora/internal/booking/domain"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	"github.com/google/uuid"
)

// SQLiteBookingRepository implements domain.Repository using SQLite.
// SQLite has no range exclusion constraint, so the claim primitive is
// an overlap check run inside the ambient transaction; the database's
// single writer makes check-then-insert race free.
type SQLiteBookingRepository struct {
	db *sql.DB
}

// NewSQLiteBookingRepository creates a new SQLite booking repository.
func NewSQLiteBookingRepository(db *sql.DB) *SQLiteBookingRepository {
	return &SQLiteBookingRepository{db: db}
}

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteBookingRepository) querier(ctx context.Context) sqliteQuerier {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.db
}

// Save persists a booking using an upsert. A confirmed booking that
// overlaps another confirmed booking fails with ErrSlotUnavailable.
func (r *SQLiteBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	q := r.querier(ctx)

	if booking.Status() == domain.StatusConfirmed {
		var overlapping int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM bookings
			WHERE user_id = ? AND id != ? AND status = 'confirmed'
			  AND start_at < ? AND end_at > ?
		`,
			booking.UserID().String(),
			booking.ID().String(),
			booking.EndAt().UTC().Format(time.RFC3339Nano),
			booking.StartAt().UTC().Format(time.RFC3339Nano),
		).Scan(&overlapping)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return domain.ErrSlotUnavailable
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, event_type_id, attendee_name, attendee_email, start_at, end_at, status, reject_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			reject_reason = excluded.reject_reason,
			updated_at = excluded.updated_at
	`,
		booking.ID().String(),
		booking.UserID().String(),
		booking.EventTypeID().String(),
		booking.Attendee().Name,
		booking.Attendee().Email,
		booking.StartAt().UTC().Format(time.RFC3339Nano),
		booking.EndAt().UTC().Format(time.RFC3339Nano),
		string(booking.Status()),
		booking.RejectReason(),
		booking.CreatedAt().UTC().Format(time.RFC3339Nano),
		booking.UpdatedAt().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// FindByID finds a booking by ID. Returns nil when absent.
func (r *SQLiteBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, event_type_id, attendee_name, attendee_email, start_at, end_at, status, reject_reason, created_at, updated_at
		FROM bookings
		WHERE id = ?
	`, id.String())

	booking, err := scanSQLiteBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

// FindByUser finds all bookings for a host, newest first.
func (r *SQLiteBookingRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Booking, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT id, user_id, event_type_id, attendee_name, attendee_email, start_at, end_at, status, reject_reason, created_at, updated_at
		FROM bookings
		WHERE user_id = ?
		ORDER BY start_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanSQLiteBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// CountConfirmedPerDay returns confirmed booking counts keyed by UTC day.
// Stored timestamps are RFC 3339 UTC, so the day is a string prefix.
func (r *SQLiteBookingRepository) CountConfirmedPerDay(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[string]int, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT substr(start_at, 1, 10), COUNT(*)
		FROM bookings
		WHERE user_id = ? AND status = 'confirmed' AND start_at >= ? AND start_at < ?
		GROUP BY 1
	`,
		userID.String(),
		from.UTC().Format(time.RFC3339Nano),
		to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		counts[day] = n
	}
	return counts, rows.Err()
}

// FindConfirmedRanges returns confirmed bookings overlapping the range
// as busy ranges. This feeds the internal busy source.
func (r *SQLiteBookingRepository) FindConfirmedRanges(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]sourcesApp.BusyRange, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT start_at, end_at
		FROM bookings
		WHERE user_id = ? AND status = 'confirmed' AND start_at < ? AND end_at > ?
		ORDER BY start_at
	`,
		userID.String(),
		to.UTC().Format(time.RFC3339Nano),
		from.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []sourcesApp.BusyRange
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, err
		}
		start, err := time.Parse(time.RFC3339Nano, startStr)
		if err != nil {
			return nil, err
		}
		end, err := time.Parse(time.RFC3339Nano, endStr)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, sourcesApp.BusyRange{Start: start, End: end})
	}
	return ranges, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBooking(row rowScanner) (*domain.Booking, error) {
	var (
		idStr          string
		userIDStr      string
		eventTypeIDStr string
		name           string
		email          string
		startStr       string
		endStr         string
		status         string
		rejectReason   sql.NullString
		createdStr     string
		updatedStr     string
	)

	if err := row.Scan(&idStr, &userIDStr, &eventTypeIDStr, &name, &email, &startStr, &endStr, &status, &rejectReason, &createdStr, &updatedStr); err != nil {
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
	eventTypeID, err := uuid.Parse(eventTypeIDStr)
	if err != nil {
		return nil, err
	}
	startAt, err := time.Parse(time.RFC3339Nano, startStr)
	if err != nil {
		return nil, err
	}
	endAt, err := time.Parse(time.RFC3339Nano, endStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, updatedStr)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateBooking(
		id, userID, eventTypeID,
		domain.Attendee{Name: name, Email: email},
		startAt, endAt, domain.Status(status), rejectReason.String,
		createdAt, updatedAt, 0,
	), nil
}
