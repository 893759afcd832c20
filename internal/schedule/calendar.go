package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Calendar resolves the bookable window for a staff member on a date from
// the recurring roster, with leave records overriding the roster entirely.
type Calendar struct {
	store Store
}

func NewCalendar(store Store) *Calendar {
	return &Calendar{store: store}
}

// WorkingWindow returns the working and break window for (staffID, date).
// It returns ErrStaffOnLeave when an approved leave covers the date and
// ErrStaffNotScheduled when no active roster row exists for the weekday.
// Leave wins over the roster.
func (c *Calendar) WorkingWindow(ctx context.Context, staffID uuid.UUID, date time.Time) (*WorkingWindow, error) {
	leave, err := c.store.ApprovedLeaveCovering(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("check leave: %w", err)
	}
	if leave != nil {
		return nil, ErrStaffOnLeave
	}

	row, err := c.store.ActiveScheduleFor(ctx, staffID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load working schedule: %w", err)
	}
	if row == nil {
		return nil, ErrStaffNotScheduled
	}

	return &WorkingWindow{
		Start:      row.Start,
		End:        row.End,
		BreakStart: row.BreakStart,
		BreakEnd:   row.BreakEnd,
	}, nil
}
