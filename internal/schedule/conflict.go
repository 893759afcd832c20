package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ConflictKind string

const (
	// ConflictStaff means the staff member is double-booked.
	ConflictStaff ConflictKind = "staff"
	// ConflictRoom means the room is double-booked.
	ConflictRoom ConflictKind = "room"
)

// Conflict names one existing appointment the candidate overlaps with.
type Conflict struct {
	Kind              ConflictKind
	WithAppointmentID uuid.UUID
	Start             TimeOfDay
	End               TimeOfDay
}

// ConflictReport collects every overlap found for a candidate interval.
// Staff and room conflicts can both be present at once.
type ConflictReport struct {
	Conflicts []Conflict
}

func (r ConflictReport) Empty() bool { return len(r.Conflicts) == 0 }

func (r ConflictReport) HasStaffConflict() bool { return r.has(ConflictStaff) }
func (r ConflictReport) HasRoomConflict() bool  { return r.has(ConflictRoom) }

func (r ConflictReport) has(kind ConflictKind) bool {
	for _, c := range r.Conflicts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// Reason renders the report as a single human-readable line, used as the
// conflict_reason of a forced double booking.
func (r ConflictReport) Reason() string {
	if r.Empty() {
		return ""
	}
	parts := make([]string, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		parts = append(parts, fmt.Sprintf("%s overlap with appointment %s (%s-%s)",
			c.Kind, c.WithAppointmentID, c.Start, c.End))
	}
	return strings.Join(parts, "; ")
}

// Detector is the single authority on slot occupancy. Every caller that
// needs to know whether an interval is taken goes through it instead of
// re-deriving occupancy from raw appointment rows.
type Detector struct {
	store Store
}

func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// Check reports every non-cancelled appointment on the candidate's date that
// shares its staff member or room and overlaps its half-open interval.
// excludeID removes the candidate's own persisted row from scope when
// rescheduling; pass uuid.Nil otherwise.
func (d *Detector) Check(ctx context.Context, candidate Appointment, excludeID uuid.UUID) (ConflictReport, error) {
	if candidate.End <= candidate.Start {
		return ConflictReport{}, ErrInvalidInterval
	}

	staffAppts, err := d.store.AppointmentsByStaffDate(ctx, candidate.StaffID, candidate.Date)
	if err != nil {
		return ConflictReport{}, fmt.Errorf("load staff appointments: %w", err)
	}
	report := ConflictReport{
		Conflicts: detect(ConflictStaff, staffAppts, candidate, excludeID),
	}

	roomAppts, err := d.store.AppointmentsByRoomDate(ctx, candidate.RoomID, candidate.Date)
	if err != nil {
		return ConflictReport{}, fmt.Errorf("load room appointments: %w", err)
	}
	// An appointment sharing both resources appears once per dimension.
	report.Conflicts = append(report.Conflicts, detect(ConflictRoom, roomAppts, candidate, excludeID)...)

	return report, nil
}

func detect(kind ConflictKind, existing []Appointment, candidate Appointment, excludeID uuid.UUID) []Conflict {
	var found []Conflict
	for _, a := range existing {
		if a.ID == excludeID || a.ID == candidate.ID {
			continue
		}
		if a.Status == StatusCancelled {
			continue
		}
		if overlaps(candidate.Start, candidate.End, a.Start, a.End) {
			found = append(found, Conflict{
				Kind:              kind,
				WithAppointmentID: a.ID,
				Start:             a.Start,
				End:               a.End,
			})
		}
	}
	return found
}
