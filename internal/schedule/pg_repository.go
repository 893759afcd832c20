package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres implementation of Store. Times of day are stored
// as "HH:MM" text so the half-open interval semantics live entirely in the
// engine, not in SQL time arithmetic.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		packageID  *uuid.UUID
		start, end string
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&packageID,
		&a.ServiceID,
		&a.StaffID,
		&a.RoomID,
		&a.Date,
		&start,
		&end,
		&a.Status,
		&a.HasConflict,
		&a.ConflictReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PackageID = packageID
	if a.Start, err = ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if a.End, err = ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanSchedule(row pgx.Row) (*WorkingSchedule, error) {
	var (
		w                    WorkingSchedule
		day                  int
		start, end           string
		breakStart, breakEnd *string
	)

	err := row.Scan(
		&w.ID,
		&w.StaffID,
		&day,
		&start,
		&end,
		&breakStart,
		&breakEnd,
		&w.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	w.DayOfWeek = time.Weekday(day)
	if w.Start, err = ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if w.End, err = ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	if breakStart != nil && breakEnd != nil {
		bs, err := ParseTimeOfDay(*breakStart)
		if err != nil {
			return nil, err
		}
		be, err := ParseTimeOfDay(*breakEnd)
		if err != nil {
			return nil, err
		}
		w.BreakStart, w.BreakEnd = &bs, &be
	}
	return &w, nil
}

const appointmentColumns = `
	id, patient_id, package_id, service_id, staff_id, room_id,
	scheduled_date, start_time, end_time, status, has_conflict, conflict_reason,
	created_at, updated_at`

// Interface methods

func (r *PgStore) ActiveScheduleFor(ctx context.Context, staffID uuid.UUID, day time.Weekday) (*WorkingSchedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, staff_id, day_of_week, start_time, end_time, break_start, break_end, active
		FROM staff_working_schedules
		WHERE staff_id = $1 AND day_of_week = $2 AND active
		LIMIT 1
	`, staffID, int(day))

	w, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

func (r *PgStore) ApprovedLeaveCovering(ctx context.Context, staffID uuid.UUID, date time.Time) (*Leave, error) {
	var l Leave
	err := r.pool.QueryRow(ctx, `
		SELECT id, staff_id, start_date, end_date, approved
		FROM staff_leaves
		WHERE staff_id = $1 AND approved AND start_date <= $2 AND end_date >= $2
		LIMIT 1
	`, staffID, date).Scan(&l.ID, &l.StaffID, &l.From, &l.To, &l.Approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *PgStore) AppointmentsByStaffDate(ctx context.Context, staffID uuid.UUID, date time.Time) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1 AND scheduled_date = $2 AND status <> 'CANCELLED'
		ORDER BY start_time
	`, staffID, date)
}

func (r *PgStore) AppointmentsByRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE room_id = $1 AND scheduled_date = $2 AND status <> 'CANCELLED'
		ORDER BY start_time
	`, roomID, date)
}

func (r *PgStore) listAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgStore) AppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgStore) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, package_id, service_id, staff_id, room_id,
			scheduled_date, start_time, end_time, status, has_conflict, conflict_reason,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.PackageID, a.ServiceID, a.StaffID, a.RoomID,
		a.Date, a.Start.String(), a.End.String(), a.Status, a.HasConflict, a.ConflictReason)

	return scanAppointment(row)
}

func (r *PgStore) UpdateAppointmentTime(ctx context.Context, id uuid.UUID, date time.Time, start, end TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_date = $2,
		    start_time = $3,
		    end_time = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'SCHEDULED'
		RETURNING `+appointmentColumns+`
	`, id, date, start.String(), end.String())

	return scanAppointment(row)
}

func (r *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

var _ Store = (*PgStore)(nil)
