package treatment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

// -- In-memory Store --

type memStore struct {
	packages map[uuid.UUID]*Package
	items    map[uuid.UUID][]PackageItem           // by package
	appts    map[uuid.UUID][]schedule.Appointment  // by package, non-cancelled view

	itemWrites   int
	statusWrites int
}

func newMemStore() *memStore {
	return &memStore{
		packages: make(map[uuid.UUID]*Package),
		items:    make(map[uuid.UUID][]PackageItem),
		appts:    make(map[uuid.UUID][]schedule.Appointment),
	}
}

func (m *memStore) PackageByID(_ context.Context, id uuid.UUID) (*Package, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, ErrPackageNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ItemsByPackage(_ context.Context, packageID uuid.UUID) ([]PackageItem, error) {
	out := make([]PackageItem, len(m.items[packageID]))
	copy(out, m.items[packageID])
	return out, nil
}

func (m *memStore) AppointmentsByPackage(_ context.Context, packageID uuid.UUID) ([]schedule.Appointment, error) {
	var out []schedule.Appointment
	for _, a := range m.appts[packageID] {
		if a.Status != schedule.StatusCancelled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) SetItemConsumed(_ context.Context, itemID uuid.UUID, consumed int) error {
	m.itemWrites++
	for pkgID, items := range m.items {
		for i := range items {
			if items[i].ID == itemID {
				m.items[pkgID][i].ConsumedCount = consumed
				return nil
			}
		}
	}
	return errors.New("item not found")
}

func (m *memStore) SetPackageStatus(_ context.Context, id uuid.UUID, status PackageStatus) error {
	m.statusWrites++
	p, ok := m.packages[id]
	if !ok {
		return ErrPackageNotFound
	}
	p.Status = status
	return nil
}

func (m *memStore) ActivePackageIDs(_ context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, p := range m.packages {
		if p.Status == PackageActive && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var _ Store = (*memStore)(nil)

// -- Fixtures --

type pkgBuilder struct {
	store *memStore
	id    uuid.UUID
}

func newPackage(store *memStore, status PackageStatus) *pkgBuilder {
	id := uuid.New()
	store.packages[id] = &Package{ID: id, PatientID: uuid.New(), Status: status}
	return &pkgBuilder{store: store, id: id}
}

func (b *pkgBuilder) item(serviceID uuid.UUID, target, consumed int) *pkgBuilder {
	b.store.items[b.id] = append(b.store.items[b.id], PackageItem{
		ID:            uuid.New(),
		PackageID:     b.id,
		ServiceID:     serviceID,
		SessionCount:  target,
		ConsumedCount: consumed,
	})
	return b
}

func (b *pkgBuilder) appt(serviceID uuid.UUID, status schedule.AppointmentStatus) *pkgBuilder {
	pkgID := b.id
	b.store.appts[b.id] = append(b.store.appts[b.id], schedule.Appointment{
		ID:        uuid.New(),
		PackageID: &pkgID,
		ServiceID: serviceID,
		Status:    status,
	})
	return b
}

// -- Tests --

func TestRecomputeConsumptionRule(t *testing.T) {
	ctx := context.Background()
	serviceID := uuid.New()

	// Target 5: three completed, one no-show, one cancelled.
	build := func(store *memStore) uuid.UUID {
		b := newPackage(store, PackageActive).item(serviceID, 5, 0)
		for i := 0; i < 3; i++ {
			b.appt(serviceID, schedule.StatusCompleted)
		}
		b.appt(serviceID, schedule.StatusNoShow)
		b.appt(serviceID, schedule.StatusCancelled)
		return b.id
	}

	t.Run("no-show counts by default", func(t *testing.T) {
		store := newMemStore()
		pkgID := build(store)

		result, err := NewLedger(store, false, nil).Recompute(ctx, pkgID)
		if err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if got := result.ConsumedByService[serviceID]; got != 4 {
			t.Errorf("consumed = %d, want 4", got)
		}
		if result.Status != PackageActive {
			t.Errorf("status = %s, want ACTIVE", result.Status)
		}
		if store.items[pkgID][0].ConsumedCount != 4 {
			t.Errorf("persisted consumed = %d, want 4", store.items[pkgID][0].ConsumedCount)
		}
	})

	t.Run("completed-only rule", func(t *testing.T) {
		store := newMemStore()
		pkgID := build(store)

		result, err := NewLedger(store, true, nil).Recompute(ctx, pkgID)
		if err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if got := result.ConsumedByService[serviceID]; got != 3 {
			t.Errorf("consumed = %d, want 3", got)
		}
	})
}

func TestRecomputeOverwritesNotAccumulates(t *testing.T) {
	ctx := context.Background()
	serviceID := uuid.New()
	store := newMemStore()

	// Stale counter far above the real tally.
	b := newPackage(store, PackageActive).item(serviceID, 10, 9)
	b.appt(serviceID, schedule.StatusCompleted)
	b.appt(serviceID, schedule.StatusCompleted)

	ledger := NewLedger(store, false, nil)

	first, err := ledger.Recompute(ctx, b.id)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if store.items[b.id][0].ConsumedCount != 2 {
		t.Errorf("consumed = %d, want overwrite to 2", store.items[b.id][0].ConsumedCount)
	}

	// Idempotence: a second run changes nothing and skips the write.
	writesBefore := store.itemWrites
	second, err := ledger.Recompute(ctx, b.id)
	if err != nil {
		t.Fatalf("second Recompute: %v", err)
	}
	if second.ConsumedByService[serviceID] != first.ConsumedByService[serviceID] {
		t.Errorf("second run consumed = %d, first = %d", second.ConsumedByService[serviceID], first.ConsumedByService[serviceID])
	}
	if second.Status != first.Status {
		t.Errorf("second run status = %s, first = %s", second.Status, first.Status)
	}
	if store.itemWrites != writesBefore {
		t.Errorf("idempotent rerun still wrote items (%d -> %d)", writesBefore, store.itemWrites)
	}
}

func TestRecomputeStatusDerivation(t *testing.T) {
	ctx := context.Background()
	svc1 := uuid.New()
	svc2 := uuid.New()

	t.Run("completes when all items reach target", func(t *testing.T) {
		store := newMemStore()
		b := newPackage(store, PackageActive).item(svc1, 2, 0).item(svc2, 1, 0)
		b.appt(svc1, schedule.StatusCompleted)
		b.appt(svc1, schedule.StatusCompleted)
		b.appt(svc2, schedule.StatusNoShow)

		result, err := NewLedger(store, false, nil).Recompute(ctx, b.id)
		if err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if result.Status != PackageCompleted || !result.StatusChanged {
			t.Errorf("status = %s changed=%v, want COMPLETED changed=true", result.Status, result.StatusChanged)
		}
		if store.packages[b.id].Status != PackageCompleted {
			t.Errorf("persisted status = %s, want COMPLETED", store.packages[b.id].Status)
		}
	})

	t.Run("one short item keeps it active", func(t *testing.T) {
		store := newMemStore()
		b := newPackage(store, PackageActive).item(svc1, 2, 0).item(svc2, 1, 0)
		b.appt(svc1, schedule.StatusCompleted)
		b.appt(svc1, schedule.StatusCompleted)

		result, err := NewLedger(store, false, nil).Recompute(ctx, b.id)
		if err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if result.Status != PackageActive {
			t.Errorf("status = %s, want ACTIVE", result.Status)
		}
	})

	t.Run("reverts completed to active when tally drops", func(t *testing.T) {
		store := newMemStore()
		b := newPackage(store, PackageCompleted).item(svc1, 2, 2)
		// One of the two sessions was since reclassified to CANCELLED.
		b.appt(svc1, schedule.StatusCompleted)
		b.appt(svc1, schedule.StatusCancelled)

		result, err := NewLedger(store, false, nil).Recompute(ctx, b.id)
		if err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if result.Status != PackageActive || !result.StatusChanged {
			t.Errorf("status = %s changed=%v, want ACTIVE changed=true", result.Status, result.StatusChanged)
		}
		if store.items[b.id][0].ConsumedCount != 1 {
			t.Errorf("consumed = %d, want 1", store.items[b.id][0].ConsumedCount)
		}
	})

	t.Run("zero consumption overwrites stale counters", func(t *testing.T) {
		store := newMemStore()
		b := newPackage(store, PackageActive).item(svc1, 3, 2)
		// Every linked appointment was cancelled.
		b.appt(svc1, schedule.StatusCancelled)

		if _, err := NewLedger(store, false, nil).Recompute(ctx, b.id); err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if store.items[b.id][0].ConsumedCount != 0 {
			t.Errorf("consumed = %d, want 0", store.items[b.id][0].ConsumedCount)
		}
	})

	t.Run("package without items stays active", func(t *testing.T) {
		store := newMemStore()
		b := newPackage(store, PackageActive)

		result, err := NewLedger(store, false, nil).Recompute(ctx, b.id)
		if err != nil {
			t.Fatalf("Recompute: %v", err)
		}
		if result.Status != PackageActive {
			t.Errorf("empty package became %s, want ACTIVE", result.Status)
		}
	})
}

func TestRecomputeCancelledPackageUntouched(t *testing.T) {
	ctx := context.Background()
	serviceID := uuid.New()
	store := newMemStore()

	b := newPackage(store, PackageCancelled).item(serviceID, 1, 0)
	b.appt(serviceID, schedule.StatusCompleted)

	result, err := NewLedger(store, false, nil).Recompute(ctx, b.id)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if result.Status != PackageCancelled {
		t.Errorf("status = %s, want CANCELLED", result.Status)
	}
	if store.itemWrites != 0 || store.statusWrites != 0 {
		t.Errorf("cancelled package was written to (items=%d status=%d)", store.itemWrites, store.statusWrites)
	}
	if store.items[b.id][0].ConsumedCount != 0 {
		t.Errorf("consumed = %d, want untouched 0", store.items[b.id][0].ConsumedCount)
	}
}

func TestRecomputeUnknownPackage(t *testing.T) {
	store := newMemStore()
	_, err := NewLedger(store, false, nil).Recompute(context.Background(), uuid.New())
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("err = %v, want ErrPackageNotFound", err)
	}
}

func TestRecomputeActiveSweep(t *testing.T) {
	ctx := context.Background()
	serviceID := uuid.New()
	store := newMemStore()

	for i := 0; i < 3; i++ {
		b := newPackage(store, PackageActive).item(serviceID, 1, 0)
		b.appt(serviceID, schedule.StatusCompleted)
	}
	newPackage(store, PackageCancelled)

	done, err := NewLedger(store, false, nil).RecomputeActive(ctx, 100)
	if err != nil {
		t.Fatalf("RecomputeActive: %v", err)
	}
	if done != 3 {
		t.Errorf("swept %d packages, want 3", done)
	}
	for id, p := range store.packages {
		if len(store.items[id]) > 0 && p.Status != PackageCompleted {
			t.Errorf("package %s status = %s, want COMPLETED", id, p.Status)
		}
	}
}
