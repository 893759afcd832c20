package schedule

import "errors"

var (
	ErrInvalidInterval   = errors.New("end time must be after start time")
	ErrStaffNotScheduled = errors.New("staff member is not scheduled on this date")
	ErrStaffOnLeave      = errors.New("staff member is on leave on this date")
	ErrOutOfWorkingHours = errors.New("interval is outside the staff member's working hours")
	ErrDuringBreak       = errors.New("interval falls inside the staff member's break")
	ErrStaffConflict     = errors.New("staff member already has an appointment in this interval")
	ErrRoomConflict      = errors.New("room is already occupied in this interval")
	ErrInvalidTransition = errors.New("status transition not permitted from the current state")
	ErrRecomputeFailed   = errors.New("package recompute failed")

	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrScheduleNotFound    = errors.New("working schedule not found")
)
