package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citymed/scheduling-core/internal/db"
)

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

	if err := ensureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	if err := seedResources(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed resources: %v", err)
	}

	log.Println("seed complete")
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("ensuring schema")

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS resources (
			id         uuid PRIMARY KEY,
			name       text NOT NULL,
			specialty  text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS appointments (
			id                uuid PRIMARY KEY,
			resource_id       uuid NOT NULL REFERENCES resources(id),
			date              date NOT NULL,
			slot_start_min    int NOT NULL,
			slot_duration_min int NOT NULL,
			subject_id        uuid NOT NULL,
			status            text NOT NULL,
			priority          text NOT NULL DEFAULT 'normal',
			note              text NOT NULL DEFAULT '',
			rescheduled_to    uuid,
			created_at        timestamptz NOT NULL,
			updated_at        timestamptz NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_appointments_resource_date
			ON appointments (resource_id, date);
		CREATE INDEX IF NOT EXISTS idx_appointments_status
			ON appointments (status);

		CREATE TABLE IF NOT EXISTS events (
			id             bigserial PRIMARY KEY,
			event_type     text NOT NULL,
			appointment_id uuid,
			payload        jsonb,
			created_at     timestamptz NOT NULL
		);
	`)
	return err
}

func seedResources(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d resources", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO resources (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("resources seeded")
	return nil
}
