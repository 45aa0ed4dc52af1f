package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetbook/internal/config"
	"github.com/vetdesk/vetbook/internal/db"
	"github.com/vetdesk/vetbook/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	clinicIDs, err := seedClinics(seedCtx, pool, 5)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	providerIDs, err := seedProviders(seedCtx, pool, clinicIDs, 25)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedOwnersAndPets(seedCtx, pool, 500); err != nil {
		log.Fatalf("seed owners: %v", err)
	}
	if err := seedSchedules(seedCtx, pool, cfg, providerIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO clinic (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, gofakeit.Company()+" Veterinary Clinic")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, clinicIDs []uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"General Practice",
		"Surgery",
		"Dermatology",
		"Dentistry",
		"Exotic Animals",
		"Cardiology",
		"Oncology",
	}

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		clinic := clinicIDs[gofakeit.Number(0, len(clinicIDs)-1)]
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO provider (id, clinic_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, clinic, "Dr. "+gofakeit.Name(), spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedOwnersAndPets(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d owners with pets", count)

	species := []string{"dog", "cat", "rabbit", "parrot", "guinea pig", "ferret"}

	const batchSize = 100

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
			ownerID := uuid.New()
			email := gofakeit.Email()

			if _, err := tx.Exec(ctx, `
				INSERT INTO owner (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, ownerID, gofakeit.Name(), email); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			pets := gofakeit.Number(1, 3)
			for p := 0; p < pets; p++ {
				if _, err := tx.Exec(ctx, `
					INSERT INTO pet (id, owner_id, name, species, created_at, updated_at)
					VALUES ($1, $2, $3, $4, now(), now())
				`, uuid.New(), ownerID, gofakeit.PetName(), species[gofakeit.Number(0, len(species)-1)]); err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("owners seeded: %d/%d", end, count)
	}

	return nil
}

// seedSchedules gives every provider a weekday 09:00-17:00 pattern with
// a lunch break, then materializes the booking horizon through the
// normal service path.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, providerIDs []uuid.UUID) error {
	log.Printf("seeding weekly schedules for %d providers", len(providerIDs))

	repo := schedule.NewPgRepository(pool)
	svc := schedule.NewService(repo, schedule.NewValidator(), cfg)

	durations := []int{15, 20, 30, 45, 60}

	for _, providerID := range providerIDs {
		breakStart, breakEnd := "12:00", "13:00"
		day := schedule.DayInput{
			Working:      true,
			Start:        "09:00",
			End:          "17:00",
			BreakStart:   &breakStart,
			BreakEnd:     &breakEnd,
			SlotDuration: durations[gofakeit.Number(0, len(durations)-1)],
		}

		var week schedule.WeekInput
		for wd := schedule.Monday; wd <= schedule.Friday; wd++ {
			week.Days[wd] = day
		}

		if _, err := svc.UpdateWeek(ctx, providerID, providerID, week); err != nil {
			return err
		}
	}

	log.Println("schedules seeded")
	return nil
}
