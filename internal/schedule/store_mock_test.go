package schedule

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- In-memory Store --

type memStore struct {
	schedules []WorkingSchedule
	leaves    []Leave
	appts     map[uuid.UUID]*Appointment
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *memStore) ActiveScheduleFor(_ context.Context, staffID uuid.UUID, day time.Weekday) (*WorkingSchedule, error) {
	for i := range m.schedules {
		w := m.schedules[i]
		if w.StaffID == staffID && w.DayOfWeek == day && w.Active {
			return &w, nil
		}
	}
	return nil, nil
}

func (m *memStore) ApprovedLeaveCovering(_ context.Context, staffID uuid.UUID, date time.Time) (*Leave, error) {
	for i := range m.leaves {
		l := m.leaves[i]
		if l.StaffID == staffID && l.Approved && !date.Before(l.From) && !date.After(l.To) {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *memStore) AppointmentsByStaffDate(_ context.Context, staffID uuid.UUID, date time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.StaffID == staffID }, date), nil
}

func (m *memStore) AppointmentsByRoomDate(_ context.Context, roomID uuid.UUID, date time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.RoomID == roomID }, date), nil
}

func (m *memStore) filter(match func(*Appointment) bool, date time.Time) []Appointment {
	var out []Appointment
	for _, a := range m.appts {
		if a.Status == StatusCancelled {
			continue
		}
		if DateKey(a.Date) != DateKey(date) {
			continue
		}
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (m *memStore) AppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.appts[a.ID] = &a
	cp := a
	return &cp, nil
}

func (m *memStore) UpdateAppointmentTime(_ context.Context, id uuid.UUID, date time.Time, start, end TimeOfDay) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}
	a.Date = date
	a.Start = start
	a.End = end
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

var _ Store = (*memStore)(nil)

// -- Test helpers --

// testMonday is a fixed Monday so weekday resolution is deterministic.
var testMonday = func() time.Time {
	d := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}()

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func todPtr(t *testing.T, s string) *TimeOfDay {
	v := tod(t, s)
	return &v
}

// nineToFiveWithLunch adds a Mon-Fri 09:00-17:00 roster with a 12:00-13:00
// break for the staff member.
func nineToFiveWithLunch(t *testing.T, store *memStore, staffID uuid.UUID) {
	t.Helper()
	for day := time.Monday; day <= time.Friday; day++ {
		store.schedules = append(store.schedules, WorkingSchedule{
			ID:         uuid.New(),
			StaffID:    staffID,
			DayOfWeek:  day,
			Start:      tod(t, "09:00"),
			End:        tod(t, "17:00"),
			BreakStart: todPtr(t, "12:00"),
			BreakEnd:   todPtr(t, "13:00"),
			Active:     true,
		})
	}
}

func mustCreate(t *testing.T, store *memStore, a Appointment) *Appointment {
	t.Helper()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	created, err := store.CreateAppointment(context.Background(), a)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return created
}
