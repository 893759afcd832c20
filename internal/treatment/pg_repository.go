package treatment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (r *PgStore) PackageByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	var p Package
	err := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, status, created_at, updated_at
		FROM service_packages
		WHERE id = $1
	`, id).Scan(&p.ID, &p.PatientID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgStore) ItemsByPackage(ctx context.Context, packageID uuid.UUID) ([]PackageItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, package_id, service_id, session_count, consumed_count
		FROM package_items
		WHERE package_id = $1
		ORDER BY id
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PackageItem
	for rows.Next() {
		var item PackageItem
		if err := rows.Scan(&item.ID, &item.PackageID, &item.ServiceID, &item.SessionCount, &item.ConsumedCount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PgStore) AppointmentsByPackage(ctx context.Context, packageID uuid.UUID) ([]schedule.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, service_id, status
		FROM appointments
		WHERE package_id = $1 AND status <> 'CANCELLED'
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pkgID := packageID
	var appts []schedule.Appointment
	for rows.Next() {
		var a schedule.Appointment
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.Status); err != nil {
			return nil, err
		}
		a.PackageID = &pkgID
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *PgStore) SetItemConsumed(ctx context.Context, itemID uuid.UUID, consumed int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE package_items
		SET consumed_count = $2
		WHERE id = $1
	`, itemID, consumed)
	return err
}

func (r *PgStore) SetPackageStatus(ctx context.Context, id uuid.UUID, status PackageStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE service_packages
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, status)
	return err
}

func (r *PgStore) ActivePackageIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM service_packages
		WHERE status = 'ACTIVE'
		ORDER BY updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ Store = (*PgStore)(nil)
