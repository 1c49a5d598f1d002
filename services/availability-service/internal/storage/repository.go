package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/bookslots/libs/db"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/availability"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads provider availability from Postgres. It implements availability.Store
// and availability.ServiceDurations.
type Repository struct {
	q Querier
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) WeeklyWindows(ctx context.Context, providerID string) ([]availability.WeeklyWindow, error) {
	rows, err := r.q.Query(ctx, `
		SELECT day_of_week,
			(EXTRACT(HOUR FROM start_time)::int * 60 + EXTRACT(MINUTE FROM start_time)::int) AS start_minute,
			(EXTRACT(HOUR FROM end_time)::int * 60 + EXTRACT(MINUTE FROM end_time)::int) AS end_minute,
			is_active
		FROM provider_availability
		WHERE provider_id = $1
		ORDER BY day_of_week ASC, start_time ASC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("storage: query weekly windows: %w", err)
	}
	defer rows.Close()

	var out []availability.WeeklyWindow
	for rows.Next() {
		var (
			w          availability.WeeklyWindow
			start, end int
		)
		if err := rows.Scan(&w.DayOfWeek, &start, &end, &w.IsActive); err != nil {
			return nil, fmt.Errorf("storage: scan weekly window: %w", err)
		}
		w.Start = availability.Clock(start)
		w.End = availability.Clock(end)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: read weekly windows: %w", err)
	}
	return out, nil
}

// ActiveAppointments loads the pending and confirmed bookings on date. Bookings whose service
// has no duration come back with DurationMinutes 0.
func (r *Repository) ActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]availability.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT a.id::text,
			a.appointment_date,
			(EXTRACT(HOUR FROM a.start_time)::int * 60 + EXTRACT(MINUTE FROM a.start_time)::int) AS start_minute,
			COALESCE(s.duration_minutes, 0),
			a.status
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.provider_id = $1
			AND a.appointment_date = $2::date
			AND a.status IN ('pending', 'confirmed')
		ORDER BY a.start_time ASC
	`, providerID, date.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("storage: query appointments: %w", err)
	}
	defer rows.Close()

	var out []availability.Appointment
	for rows.Next() {
		var (
			a      availability.Appointment
			start  int
			status string
		)
		if err := rows.Scan(&a.ID, &a.Date, &start, &a.DurationMinutes, &status); err != nil {
			return nil, fmt.Errorf("storage: scan appointment: %w", err)
		}
		a.Start = availability.Clock(start)
		a.Status = availability.Status(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: read appointments: %w", err)
	}
	return out, nil
}

func (r *Repository) ServiceDuration(ctx context.Context, providerID, serviceID string) (int, error) {
	var mins int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(duration_minutes, 0)
		FROM services
		WHERE provider_id = $1 AND id::text = $2
	`, providerID, serviceID).Scan(&mins)
	if IsNotFound(err) {
		return 0, availability.ErrServiceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("storage: load service duration: %w", err)
	}
	return mins, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
