package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/medisched/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventStatusChanged      = "APPOINTMENT_STATUS_CHANGED"
	EventConflictOverridden = "APPOINTMENT_CONFLICT_OVERRIDDEN"
	EventPackageRecomputed  = "PACKAGE_RECOMPUTED"
)

// ConflictError carries the full report of a rejected booking. It matches
// ErrStaffConflict and/or ErrRoomConflict under errors.Is depending on which
// dimensions collided.
type ConflictError struct {
	Report ConflictReport
}

func (e *ConflictError) Error() string {
	return "booking conflict: " + e.Report.Reason()
}

func (e *ConflictError) Is(target error) bool {
	switch target {
	case ErrStaffConflict:
		return e.Report.HasStaffConflict()
	case ErrRoomConflict:
		return e.Report.HasRoomConflict()
	}
	return false
}

// PackageRecomputer re-derives a package's consumption counters. The
// treatment ledger implements it; the service only needs success or failure.
type PackageRecomputer interface {
	RecomputePackage(ctx context.Context, packageID uuid.UUID) error
}

// SlotCacheInvalidator drops cached free-slot listings for a (staff, date)
// whose timetable changed. A nil invalidator disables caching concerns.
type SlotCacheInvalidator interface {
	InvalidateSlots(ctx context.Context, staffID uuid.UUID, date time.Time) error
}

type CreateRequest struct {
	PatientID uuid.UUID
	PackageID *uuid.UUID
	ServiceID uuid.UUID
	StaffID   uuid.UUID
	RoomID    uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	End       TimeOfDay

	// AllowConflict persists a double booking with has_conflict set instead
	// of rejecting it. Off by default so the conflict contract stays
	// auditable; callers must opt in per request.
	AllowConflict bool
}

type CreateResult struct {
	Appointment *Appointment
	Events      []string
}

type TransitionResult struct {
	Appointment *Appointment
	Events      []string

	// RecomputeWarning reports a failed ledger recompute after a successful
	// transition. The status change is never rolled back for it; the
	// recompute worker retries idempotently.
	RecomputeWarning error
}

// Service orchestrates appointment writes. Validation and persistence run
// inside a per-(resource, date) lock so two concurrent creates cannot both
// observe a clear timetable.
type Service struct {
	store     Store
	cal       *Calendar
	detector  *Detector
	locker    redisclient.Locker
	recompute PackageRecomputer
	slotCache SlotCacheInvalidator
	logger    *zap.Logger
}

func NewService(store Store, cal *Calendar, detector *Detector, locker redisclient.Locker, recompute PackageRecomputer, slotCache SlotCacheInvalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		cal:       cal,
		detector:  detector,
		locker:    locker,
		recompute: recompute,
		slotCache: slotCache,
		logger:    logger,
	}
}

// Create validates and persists a new SCHEDULED appointment.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	candidate := Appointment{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		PackageID: req.PackageID,
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		RoomID:    req.RoomID,
		Date:      req.Date,
		Start:     req.Start,
		End:       req.End,
		Status:    StatusScheduled,
	}

	var result *CreateResult

	err := s.locker.WithScheduleLock(ctx, req.StaffID, req.RoomID, req.Date, func(lockCtx context.Context) error {
		report, err := s.validate(lockCtx, candidate, uuid.Nil)
		if err != nil {
			return err
		}

		events := []string{EventAppointmentCreated}
		if !report.Empty() {
			if !req.AllowConflict {
				return &ConflictError{Report: report}
			}
			candidate.HasConflict = true
			candidate.ConflictReason = report.Reason()
			events = append(events, EventConflictOverridden)
			s.logger.Warn("double booking forced",
				zap.String("staff_id", req.StaffID.String()),
				zap.String("room_id", req.RoomID.String()),
				zap.String("date", DateKey(req.Date)),
				zap.String("reason", candidate.ConflictReason))
		}

		created, err := s.store.CreateAppointment(lockCtx, candidate)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		result = &CreateResult{Appointment: created, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSlots(ctx, candidate.StaffID, candidate.Date)
	return result, nil
}

// Reschedule moves an appointment to a new date and start time, keeping its
// duration and SCHEDULED state. The appointment's own row is excluded from
// conflict scope.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newStart TimeOfDay) (*Appointment, error) {
	appt, err := s.store.AppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	duration := appt.End - appt.Start
	candidate := *appt
	candidate.Date = newDate
	candidate.Start = newStart
	candidate.End = newStart + duration

	var updated *Appointment

	err = s.locker.WithScheduleLock(ctx, appt.StaffID, appt.RoomID, newDate, func(lockCtx context.Context) error {
		report, err := s.validate(lockCtx, candidate, id)
		if err != nil {
			return err
		}
		if !report.Empty() {
			return &ConflictError{Report: report}
		}

		updated, err = s.store.UpdateAppointmentTime(lockCtx, id, newDate, candidate.Start, candidate.End)
		if err != nil {
			return fmt.Errorf("update appointment time: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Both the vacated and the newly occupied date changed.
	s.invalidateSlots(ctx, appt.StaffID, appt.Date)
	s.invalidateSlots(ctx, appt.StaffID, newDate)
	return updated, nil
}

// TransitionStatus moves a SCHEDULED appointment to a terminal state.
// Transitioning to the state the appointment is already in is a no-op.
// A package-linked transition triggers a best-effort ledger recompute.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*TransitionResult, error) {
	if !to.Terminal() {
		return nil, ErrInvalidTransition
	}

	appt, err := s.store.AppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == to {
		return &TransitionResult{Appointment: appt}, nil
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, id, StatusScheduled, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// A concurrent transition won the compare-and-set.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	if to == StatusCancelled {
		// A cancelled interval becomes bookable again immediately.
		s.invalidateSlots(ctx, updated.StaffID, updated.Date)
	}

	result := &TransitionResult{
		Appointment: updated,
		Events:      []string{EventStatusChanged},
	}

	if updated.PackageID != nil && s.recompute != nil {
		if err := s.recompute.RecomputePackage(ctx, *updated.PackageID); err != nil {
			result.RecomputeWarning = fmt.Errorf("%w: %v", ErrRecomputeFailed, err)
			s.logger.Warn("package recompute failed after status transition",
				zap.String("appointment_id", id.String()),
				zap.String("package_id", updated.PackageID.String()),
				zap.Error(err))
		} else {
			result.Events = append(result.Events, EventPackageRecomputed)
		}
	}

	return result, nil
}

// validate runs the shared create/reschedule pipeline: interval sanity,
// working window, break, then conflict detection.
func (s *Service) validate(ctx context.Context, candidate Appointment, excludeID uuid.UUID) (ConflictReport, error) {
	if candidate.End <= candidate.Start {
		return ConflictReport{}, ErrInvalidInterval
	}

	window, err := s.cal.WorkingWindow(ctx, candidate.StaffID, candidate.Date)
	if err != nil {
		return ConflictReport{}, err
	}
	if !window.Contains(candidate.Start, candidate.End) {
		return ConflictReport{}, ErrOutOfWorkingHours
	}
	if window.IntersectsBreak(candidate.Start, candidate.End) {
		return ConflictReport{}, ErrDuringBreak
	}

	return s.detector.Check(ctx, candidate, excludeID)
}

func (s *Service) invalidateSlots(ctx context.Context, staffID uuid.UUID, date time.Time) {
	if s.slotCache == nil {
		return
	}
	if err := s.slotCache.InvalidateSlots(ctx, staffID, date); err != nil {
		s.logger.Warn("slot cache invalidation failed",
			zap.String("staff_id", staffID.String()),
			zap.String("date", DateKey(date)),
			zap.Error(err))
	}
}
