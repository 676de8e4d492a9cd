package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrTherapistNotFound   = errors.New("therapist not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Snapshots feeding the scheduling engine. ListByPatient returns the
	// patient's full history ascending by start time; ListWindow returns
	// every appointment intersecting [from, to), optionally filtered to
	// one therapist.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]scheduling.Appointment, error)
	ListWindow(ctx context.Context, from, to time.Time, therapistID *uuid.UUID) ([]scheduling.Appointment, error)

	// InsertAppointments persists a validated batch (a whole series or a
	// batch of one) in a single transaction.
	InsertAppointments(ctx context.Context, appts []scheduling.Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to scheduling.Status) (*Appointment, error)

	// CancelSeriesFrom cancels every scheduled sibling of a series whose
	// start time is on or after the pivot; earlier siblings are untouched.
	CancelSeriesFrom(ctx context.Context, seriesID uuid.UUID, pivot time.Time) (int64, error)

	// Completion worker
	FindElapsedScheduled(ctx context.Context, before time.Time) ([]scheduling.Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
