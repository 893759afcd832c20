package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisched/clinic-scheduling/internal/db"
)

type seeded struct {
	staff    []uuid.UUID
	rooms    []uuid.UUID
	services []uuid.UUID
	patients []uuid.UUID
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	data := &seeded{}
	bg := context.Background()

	if err := seedStaff(bg, pool, data, 40); err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	if err := seedRooms(bg, pool, data, 15); err != nil {
		log.Fatalf("seed rooms: %v", err)
	}
	if err := seedServices(bg, pool, data); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedWorkingSchedules(bg, pool, data); err != nil {
		log.Fatalf("seed working schedules: %v", err)
	}
	if err := seedPatients(bg, pool, data, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedPackages(bg, pool, data, 600); err != nil {
		log.Fatalf("seed packages: %v", err)
	}

	log.Println("seed complete")
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, data *seeded, count int) error {
	log.Printf("seeding %d staff members", count)

	roles := []string{
		"Physiotherapist",
		"Massage Therapist",
		"Dermatologist",
		"Nutritionist",
		"General Practitioner",
		"Nurse",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		role := roles[gofakeit.Number(0, len(roles)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO staff (id, name, role, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, role)
		if err != nil {
			return err
		}
		data.staff = append(data.staff, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("staff seeded")
	return nil
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, data *seeded, count int) error {
	log.Printf("seeding %d rooms", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, gofakeit.LetterN(1)+gofakeit.DigitN(2))
		if err != nil {
			return err
		}
		data.rooms = append(data.rooms, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("rooms seeded")
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, data *seeded) error {
	services := []struct {
		name        string
		durationMin int
	}{
		{"Initial Consultation", 45},
		{"Physiotherapy Session", 30},
		{"Deep Tissue Massage", 60},
		{"Skin Assessment", 30},
		{"Nutrition Review", 30},
		{"Follow-up", 15},
	}

	log.Printf("seeding %d services", len(services))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, duration_min, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, s.name, s.durationMin)
		if err != nil {
			return err
		}
		data.services = append(data.services, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("services seeded")
	return nil
}

func seedWorkingSchedules(ctx context.Context, pool *pgxpool.Pool, data *seeded) error {
	log.Printf("seeding working schedules for %d staff", len(data.staff))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, staffID := range data.staff {
		// Monday through Friday, 09:00-17:00 with a lunch break.
		for day := 1; day <= 5; day++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO staff_working_schedules
					(id, staff_id, day_of_week, start_time, end_time, break_start, break_end, active)
				VALUES ($1, $2, $3, '09:00', '17:00', '12:00', '13:00', true)
			`, uuid.New(), staffID, day)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("working schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, data *seeded, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
			data.patients = append(data.patients, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedPackages(ctx context.Context, pool *pgxpool.Pool, data *seeded, count int) error {
	log.Printf("seeding %d packages", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		pkgID := uuid.New()
		patientID := data.patients[gofakeit.Number(0, len(data.patients)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO service_packages (id, patient_id, status, created_at, updated_at)
			VALUES ($1, $2, 'ACTIVE', now(), now())
		`, pkgID, patientID)
		if err != nil {
			return err
		}

		// One to three services per package, five to ten sessions each.
		itemCount := gofakeit.Number(1, 3)
		for j := 0; j < itemCount; j++ {
			serviceID := data.services[gofakeit.Number(0, len(data.services)-1)]
			_, err := tx.Exec(ctx, `
				INSERT INTO package_items (id, package_id, service_id, session_count, consumed_count)
				VALUES ($1, $2, $3, $4, 0)
				ON CONFLICT DO NOTHING
			`, uuid.New(), pkgID, serviceID, gofakeit.Number(5, 10))
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("packages seeded")
	return nil
}
