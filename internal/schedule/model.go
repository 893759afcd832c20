package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Terminal reports whether s is an end state. Rescheduling keeps an
// appointment in SCHEDULED; every other transition is final.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// TimeOfDay is a clock time expressed as minutes since midnight.
// Appointment intervals are half-open: [Start, End).
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in 24h notation.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("time of day: expected quoted HH:MM, got %s", b)
	}
	v, err := ParseTimeOfDay(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// overlaps reports whether two half-open intervals intersect.
// Adjacent intervals (end1 == start2) do not overlap.
func overlaps(start1, end1, start2, end2 TimeOfDay) bool {
	return start1 < end2 && end1 > start2
}

// DateKey renders a date as YYYY-MM-DD, the canonical form for cache and
// lock keys. The time-of-day portion of d is ignored.
func DateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PackageID      *uuid.UUID
	ServiceID      uuid.UUID
	StaffID        uuid.UUID
	RoomID         uuid.UUID
	Date           time.Time // date portion only
	Start          TimeOfDay
	End            TimeOfDay
	Status         AppointmentStatus
	HasConflict    bool
	ConflictReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WorkingSchedule is one recurring weekday row of a staff member's roster.
// Rows are maintained by staff administration; the engine only reads them.
type WorkingSchedule struct {
	ID         uuid.UUID
	StaffID    uuid.UUID
	DayOfWeek  time.Weekday
	Start      TimeOfDay
	End        TimeOfDay
	BreakStart *TimeOfDay
	BreakEnd   *TimeOfDay
	Active     bool
}

// Leave marks a staff member unavailable for every date in [From, To],
// overriding any working-schedule row for those dates.
type Leave struct {
	ID       uuid.UUID
	StaffID  uuid.UUID
	From     time.Time
	To       time.Time
	Approved bool
}

// WorkingWindow is the resolved bookable window for one staff member on one
// date. BreakStart/BreakEnd are either both set or both nil.
type WorkingWindow struct {
	Start      TimeOfDay
	End        TimeOfDay
	BreakStart *TimeOfDay
	BreakEnd   *TimeOfDay
}

func (w WorkingWindow) HasBreak() bool {
	return w.BreakStart != nil && w.BreakEnd != nil
}

// Contains reports whether [start, end) lies fully inside the window.
func (w WorkingWindow) Contains(start, end TimeOfDay) bool {
	return start >= w.Start && end <= w.End
}

// IntersectsBreak reports whether [start, end) touches the break window.
func (w WorkingWindow) IntersectsBreak(start, end TimeOfDay) bool {
	if !w.HasBreak() {
		return false
	}
	return overlaps(start, end, *w.BreakStart, *w.BreakEnd)
}
