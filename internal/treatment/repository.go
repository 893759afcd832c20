package treatment

import (
	"context"

	"github.com/google/uuid"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

// Store contains all record-store interactions the ledger needs.
type Store interface {
	// PackageByID returns ErrPackageNotFound when no such package exists.
	PackageByID(ctx context.Context, id uuid.UUID) (*Package, error)

	ItemsByPackage(ctx context.Context, packageID uuid.UUID) ([]PackageItem, error)

	// AppointmentsByPackage returns the non-cancelled appointments linked to
	// the package, the ledger's sole consumption input.
	AppointmentsByPackage(ctx context.Context, packageID uuid.UUID) ([]schedule.Appointment, error)

	// SetItemConsumed overwrites an item's consumed counter with a fresh tally.
	SetItemConsumed(ctx context.Context, itemID uuid.UUID, consumed int) error

	SetPackageStatus(ctx context.Context, id uuid.UUID, status PackageStatus) error

	// ActivePackageIDs feeds the reconciliation sweep.
	ActivePackageIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}
