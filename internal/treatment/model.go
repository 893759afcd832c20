package treatment

import (
	"time"

	"github.com/google/uuid"
)

type PackageStatus string

const (
	PackageActive    PackageStatus = "ACTIVE"
	PackageCompleted PackageStatus = "COMPLETED"
	// PackageCancelled is terminal; a cancelled package is never reopened or
	// otherwise modified by recompute.
	PackageCancelled PackageStatus = "CANCELLED"
)

// Package is a bundle of pre-paid treatment sessions across one or more
// services for a patient.
type Package struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Status    PackageStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PackageItem holds the per-service counters of a package. ConsumedCount is
// owned by the ledger: it is always a fresh recomputed tally, never an
// accumulator, and is never edited anywhere else.
type PackageItem struct {
	ID            uuid.UUID
	PackageID     uuid.UUID
	ServiceID     uuid.UUID
	SessionCount  int
	ConsumedCount int
}
