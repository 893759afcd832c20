package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store contains all record-store interactions the scheduling engine needs.
// The engine never locks or caches through it; serializing concurrent writers
// is the locker's job and invalidation the cache's.
type Store interface {
	// ActiveScheduleFor returns the active roster row for (staffID, day),
	// or (nil, nil) when the staff member has no row for that weekday.
	ActiveScheduleFor(ctx context.Context, staffID uuid.UUID, day time.Weekday) (*WorkingSchedule, error)

	// ApprovedLeaveCovering returns an approved leave record covering date,
	// or (nil, nil) when the staff member is not on leave.
	ApprovedLeaveCovering(ctx context.Context, staffID uuid.UUID, date time.Time) (*Leave, error)

	// Conflict scope: non-cancelled appointments sharing a resource and date,
	// ordered by start time.
	AppointmentsByStaffDate(ctx context.Context, staffID uuid.UUID, date time.Time) ([]Appointment, error)
	AppointmentsByRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]Appointment, error)

	AppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentTime(ctx context.Context, id uuid.UUID, date time.Time, start, end TimeOfDay) (*Appointment, error)

	// UpdateAppointmentStatus applies the change only if the row still holds
	// status `from`, so concurrent transitions cannot both win. Returns
	// ErrAppointmentNotFound when no row matched.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
}
