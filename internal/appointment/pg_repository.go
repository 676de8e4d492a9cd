package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, therapist_id, start_time, end_time, status, type,
	value, payment_status, series_id, session_number, total_sessions, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	var specialty *string

	err := row.Scan(
		&t.ID,
		&t.Name,
		&specialty,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	t.Specialty = specialty
	return &t, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var seriesID *uuid.UUID
	var sessionNumber, totalSessions *int

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Type,
		&a.Value,
		&a.PaymentStatus,
		&seriesID,
		&sessionNumber,
		&totalSessions,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.SeriesID = seriesID
	a.SessionNumber = sessionNumber
	a.TotalSessions = totalSessions
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]scheduling.Appointment, error) {
	defer rows.Close()

	var result []scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a.Appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM therapists
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListWindow(ctx context.Context, from, to time.Time, therapistID *uuid.UUID) ([]scheduling.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE start_time < $2 AND end_time > $1
	`
	args := []any{from, to}
	if therapistID != nil {
		query += ` AND therapist_id = $3`
		args = append(args, *therapistID)
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertAppointments(ctx context.Context, appts []scheduling.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range appts {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (`+appointmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		`, a.ID, a.PatientID, a.TherapistID, a.StartTime, a.EndTime, a.Status, a.Type,
			a.Value, a.PaymentStatus, a.SeriesID, a.SessionNumber, a.TotalSessions)
		if err != nil {
			return fmt.Errorf("insert appointment %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to scheduling.Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CancelSeriesFrom(ctx context.Context, seriesID uuid.UUID, pivot time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
		    updated_at = now()
		WHERE series_id = $1
		  AND start_time >= $2
		  AND status = $4
	`, seriesID, pivot, scheduling.StatusCanceled, scheduling.StatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("cancel series %s: %w", seriesID, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PgRepository) FindElapsedScheduled(ctx context.Context, before time.Time) ([]scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND end_time < $2
		ORDER BY end_time
	`, scheduling.StatusScheduled, before)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
