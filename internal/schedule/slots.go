package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotGenerator enumerates free bookable start times for a staff member.
// It is pure computation over the calendar and the detector's occupancy
// view; results are safe to cache per (staff, date) until a booking or
// cancellation touches that date.
type SlotGenerator struct {
	cal      *Calendar
	detector *Detector
}

func NewSlotGenerator(cal *Calendar, detector *Detector) *SlotGenerator {
	return &SlotGenerator{cal: cal, detector: detector}
}

// FreeSlots returns the ordered start times on date at which a service of
// durationMin minutes fits: inside the working window, clear of the break,
// and clear of every existing non-cancelled appointment for the staff
// member. The step between candidate starts is stepMin minutes. An
// unavailable staff member (not scheduled, or on leave) yields an empty
// list, not an error.
func (g *SlotGenerator) FreeSlots(ctx context.Context, staffID uuid.UUID, date time.Time, durationMin, stepMin int) ([]TimeOfDay, error) {
	if durationMin <= 0 || stepMin <= 0 {
		return nil, fmt.Errorf("duration and step must be positive, got %d/%d", durationMin, stepMin)
	}

	window, err := g.cal.WorkingWindow(ctx, staffID, date)
	if err != nil {
		if errors.Is(err, ErrStaffNotScheduled) || errors.Is(err, ErrStaffOnLeave) {
			return []TimeOfDay{}, nil
		}
		return nil, err
	}

	booked, err := g.detector.store.AppointmentsByStaffDate(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("load staff appointments: %w", err)
	}

	duration := TimeOfDay(durationMin)
	step := TimeOfDay(stepMin)

	slots := []TimeOfDay{}
	for t := window.Start; t+duration <= window.End; t += step {
		if window.IntersectsBreak(t, t+duration) {
			continue
		}
		candidate := Appointment{StaffID: staffID, Date: date, Start: t, End: t + duration}
		if len(detect(ConflictStaff, booked, candidate, uuid.Nil)) > 0 {
			continue
		}
		slots = append(slots, t)
	}
	return slots, nil
}

// FormatSlots renders start times as the "HH:MM" strings callers consume.
func FormatSlots(slots []TimeOfDay) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
