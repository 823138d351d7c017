package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/tempora/internal/booking/domain"
	sharedPersistence "github.com/felixgeelhaar/tempora/internal/shared/infrastructure/persistence"
	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	"github.com/google/uuid"
)

// pgExclusionViolation is the SQLSTATE raised by the confirmed-booking
// overlap constraint.
const pgExclusionViolation = "23P01"

// PostgresBookingRepository implements domain.Repository using
// PostgreSQL. The bookings_confirmed_no_overlap exclusion constraint is
// the claim primitive; overlapping confirmed writes lose the race here.
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgreSQL booking repository.
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

func (r *PostgresBookingRepository) executor(ctx context.Context) sharedPersistence.DBExecutor {
	return sharedPersistence.Executor(ctx, r.pool)
}

// Save persists a booking using an upsert. A confirmed booking that
// overlaps another confirmed booking fails with ErrSlotUnavailable.
func (r *PostgresBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	_, err := r.executor(ctx).Exec(ctx, `
		INSERT INTO bookings (id, user_id, event_type_id, attendee_name, attendee_email, start_at, end_at, status, reject_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reject_reason = EXCLUDED.reject_reason,
			updated_at = EXCLUDED.updated_at
	`,
		booking.ID(),
		booking.UserID(),
		booking.EventTypeID(),
		booking.Attendee().Name,
		booking.Attendee().Email,
		booking.StartAt(),
		booking.EndAt(),
		string(booking.Status()),
		booking.RejectReason(),
		booking.CreatedAt(),
		booking.UpdatedAt(),
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return domain.ErrSlotUnavailable
	}
	return err
}

// FindByID finds a booking by ID. Returns nil when absent.
func (r *PostgresBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.executor(ctx).QueryRow(ctx, `
		SELECT id, user_id, event_type_id, attendee_name, attendee_email, start_at, end_at, status, reject_reason, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)

	booking, err := scanPostgresBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

// FindByUser finds all bookings for a host, newest first.
func (r *PostgresBookingRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Booking, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT id, user_id, event_type_id, attendee_name, attendee_email, start_at, end_at, status, reject_reason, created_at, updated_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY start_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanPostgresBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// CountConfirmedPerDay returns confirmed booking counts keyed by UTC day.
func (r *PostgresBookingRepository) CountConfirmedPerDay(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[string]int, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT to_char(start_at AT TIME ZONE 'UTC', 'YYYY-MM-DD'), COUNT(*)
		FROM bookings
		WHERE user_id = $1 AND status = 'confirmed' AND start_at >= $2 AND start_at < $3
		GROUP BY 1
	`, userID, from, to)
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
func (r *PostgresBookingRepository) FindConfirmedRanges(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]sourcesApp.BusyRange, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT start_at, end_at
		FROM bookings
		WHERE user_id = $1 AND status = 'confirmed' AND start_at < $2 AND end_at > $3
		ORDER BY start_at
	`, userID, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []sourcesApp.BusyRange
	for rows.Next() {
		var busy sourcesApp.BusyRange
		if err := rows.Scan(&busy.Start, &busy.End); err != nil {
			return nil, err
		}
		ranges = append(ranges, busy)
	}
	return ranges, rows.Err()
}

func scanPostgresBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		id           uuid.UUID
		userID       uuid.UUID
		eventTypeID  uuid.UUID
		name         string
		email        string
		startAt      time.Time
		endAt        time.Time
		status       string
		rejectReason *string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&id, &userID, &eventTypeID, &name, &email, &startAt, &endAt, &status, &rejectReason, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	reason := ""
	if rejectReason != nil {
		reason = *rejectReason
	}

	return domain.RehydrateBooking(
		id, userID, eventTypeID,
		domain.Attendee{Name: name, Email: email},
		startAt, endAt, domain.Status(status), reason,
		createdAt, updatedAt, 0,
	), nil
}
