package treatment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

// Ledger re-derives a package's per-service consumption counters and its
// overall status from the appointments linked to it. Recompute is a pure
// re-derivation: running it any number of times against unchanged
// appointments writes the same counters, so concurrent last-writer races
// only ever overwrite a value with itself.
type Ledger struct {
	store Store

	// completedOnly narrows the consumption rule to COMPLETED appointments.
	// The documented default also counts NO_SHOW: a reserved session that was
	// not cancelled is treated as used whether or not the patient attended.
	completedOnly bool

	logger *zap.Logger
}

func NewLedger(store Store, completedOnly bool, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, completedOnly: completedOnly, logger: logger}
}

// RecomputeResult reports what a recompute wrote.
type RecomputeResult struct {
	PackageID uuid.UUID
	// ConsumedByService maps serviceID to the fresh tally.
	ConsumedByService map[uuid.UUID]int
	Status            PackageStatus
	StatusChanged     bool
}

// Recompute overwrites every item's consumed counter with the current tally
// and derives the package status: COMPLETED iff all items reached their
// target, otherwise ACTIVE. A package that was COMPLETED drops back to
// ACTIVE when a reclassified appointment pulls a tally below target.
// Cancelled packages are returned untouched.
func (l *Ledger) Recompute(ctx context.Context, packageID uuid.UUID) (*RecomputeResult, error) {
	pkg, err := l.store.PackageByID(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}

	if pkg.Status == PackageCancelled {
		return &RecomputeResult{PackageID: packageID, Status: PackageCancelled}, nil
	}

	appts, err := l.store.AppointmentsByPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("load package appointments: %w", err)
	}

	consumed := make(map[uuid.UUID]int)
	for _, a := range appts {
		if l.consumes(a.Status) {
			consumed[a.ServiceID]++
		}
	}

	items, err := l.store.ItemsByPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("load package items: %w", err)
	}

	allReached := len(items) > 0
	for _, item := range items {
		tally := consumed[item.ServiceID]
		if tally != item.ConsumedCount {
			if err := l.store.SetItemConsumed(ctx, item.ID, tally); err != nil {
				return nil, fmt.Errorf("write consumed count: %w", err)
			}
		}
		if tally < item.SessionCount {
			allReached = false
		}
	}

	status := PackageActive
	if allReached {
		status = PackageCompleted
	}

	result := &RecomputeResult{
		PackageID:         packageID,
		ConsumedByService: consumed,
		Status:            status,
		StatusChanged:     status != pkg.Status,
	}

	if result.StatusChanged {
		if err := l.store.SetPackageStatus(ctx, packageID, status); err != nil {
			return nil, fmt.Errorf("write package status: %w", err)
		}
		l.logger.Info("package status changed",
			zap.String("package_id", packageID.String()),
			zap.String("from", string(pkg.Status)),
			zap.String("to", string(status)))
	}

	return result, nil
}

// RecomputePackage satisfies schedule.PackageRecomputer.
func (l *Ledger) RecomputePackage(ctx context.Context, packageID uuid.UUID) error {
	_, err := l.Recompute(ctx, packageID)
	return err
}

// RecomputeActive sweeps every active package once. Failures are logged and
// skipped so one broken package cannot starve the rest; the next sweep
// retries them.
func (l *Ledger) RecomputeActive(ctx context.Context, limit int) (int, error) {
	ids, err := l.store.ActivePackageIDs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list active packages: %w", err)
	}

	done := 0
	for _, id := range ids {
		if _, err := l.Recompute(ctx, id); err != nil {
			l.logger.Warn("recompute failed", zap.String("package_id", id.String()), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

func (l *Ledger) consumes(s schedule.AppointmentStatus) bool {
	if l.completedOnly {
		return s == schedule.StatusCompleted
	}
	return s == schedule.StatusCompleted || s == schedule.StatusNoShow
}
