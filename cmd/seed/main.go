package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/db"
	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
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

	therapists, err := seedTherapists(context.Background(), pool, 10)
	if err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 300)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, therapists, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d therapists", count)

	specialties := []string{
		"Orthopedic Physiotherapy",
		"Sports Physiotherapy",
		"Neurological Physiotherapy",
		"Pilates",
		"Respiratory Physiotherapy",
		"Pediatric Physiotherapy",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("therapists seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedAppointments gives a third of the patients a weekly treatment series
// expanded through the real recurrence engine, laid out on a grid of
// non-overlapping slots so the seed data contains no double-bookings.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, therapists, patients []uuid.UUID) error {
	log.Println("seeding appointment series")

	// Next Monday 07:00, the start of a clean scheduling grid.
	start := time.Now().AddDate(0, 0, 1)
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, 1)
	}
	gridBase := time.Date(start.Year(), start.Month(), start.Day(), 7, 0, 0, 0, time.Local)

	types := []scheduling.AppointmentType{
		scheduling.TypeSession,
		scheduling.TypeSession,
		scheduling.TypePilates,
		scheduling.TypeReturn,
	}

	total := 0
	for i, patientID := range patients {
		if i%3 != 0 {
			continue
		}

		therapistID := therapists[i%len(therapists)]
		// 11 one-hour slots per weekday, 5 weekdays per therapist.
		slotIdx := (i / 3) % 55
		day := slotIdx / 11
		hour := 7 + slotIdx%11

		occurrences := gofakeit.Number(4, 10)
		totalSessions := occurrences

		seed := scheduling.Appointment{
			ID:            uuid.New(),
			PatientID:     patientID,
			TherapistID:   therapistID,
			StartTime:     gridBase.AddDate(0, 0, day).Add(time.Duration(hour-7) * time.Hour),
			Status:        scheduling.StatusScheduled,
			Type:          types[gofakeit.Number(0, len(types)-1)],
			Value:         float64(gofakeit.Number(90, 220)),
			PaymentStatus: scheduling.PaymentPending,
			TotalSessions: &totalSessions,
			Recurrence: &scheduling.RecurrenceRule{
				Type:        scheduling.RecurrenceWeekly,
				Interval:    1,
				Occurrences: &occurrences,
			},
		}
		seed.EndTime = seed.StartTime.Add(time.Hour)

		instances, err := scheduling.GenerateRecurrences(seed)
		if err != nil {
			return err
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for n, inst := range instances {
			session := n + 1
			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, patient_id, therapist_id, start_time, end_time,
					status, type, value, payment_status, series_id, session_number, total_sessions,
					created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
			`, inst.ID, inst.PatientID, inst.TherapistID, inst.StartTime, inst.EndTime,
				inst.Status, inst.Type, inst.Value, inst.PaymentStatus,
				inst.SeriesID, session, inst.TotalSessions)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		total += len(instances)
	}

	log.Printf("appointments seeded: %d", total)
	return nil
}
