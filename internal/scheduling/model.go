package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

type AppointmentType string

const (
	TypeEvaluation   AppointmentType = "evaluation"
	TypeSession      AppointmentType = "session"
	TypeReturn       AppointmentType = "return"
	TypePilates      AppointmentType = "pilates"
	TypeUrgent       AppointmentType = "urgent"
	TypeTeleconsulta AppointmentType = "teleconsulta"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentWaived  PaymentStatus = "waived"
)

type RecurrenceType string

const (
	RecurrenceDaily  RecurrenceType = "daily"
	RecurrenceWeekly RecurrenceType = "weekly"
	// RecurrenceBiweekly advances Interval*2 weeks per step: the interval
	// compounds with the fortnight itself, so interval=2 means every 4 weeks.
	RecurrenceBiweekly RecurrenceType = "biweekly"
	RecurrenceMonthly  RecurrenceType = "monthly"
)

// RecurrenceRule describes how an appointment repeats. At most one of
// EndDate and Occurrences may be set; with neither, expansion runs until
// the generation ceiling.
type RecurrenceRule struct {
	Type        RecurrenceType
	Interval    int
	EndDate     *time.Time
	Occurrences *int
}

// Appointment is the scheduled unit. Times carry timezone-naive local
// semantics; no conversion happens anywhere in the engine.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	TherapistID uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	Status      Status
	Type        AppointmentType

	Value         float64
	PaymentStatus PaymentStatus

	// Recurrence marks this appointment as the seed of a series.
	Recurrence *RecurrenceRule
	// SeriesID links sibling instances expanded from one rule.
	SeriesID *uuid.UUID

	// Position within a finite treatment package, advisory only.
	SessionNumber *int
	TotalSessions *int
}

// IsActive reports whether the appointment counts toward conflict and
// capacity checks. Canceled and no-show slots stay in history but do not
// block new bookings.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusScheduled || a.Status == StatusCompleted
}

// Overlaps uses half-open interval semantics: back-to-back appointments
// (one ending exactly when the other starts) do not overlap.
func (a *Appointment) Overlaps(b *Appointment) bool {
	return a.StartTime.Before(b.EndTime) && a.EndTime.After(b.StartTime)
}

// ValidationResult is the engine's verdict for a candidate appointment.
// Errors block persistence; warnings and suggestions never do.
type ValidationResult struct {
	Errors      []string
	Warnings    []string
	Suggestions []string
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *ValidationResult) addSuggestion(msg string) {
	r.Suggestions = append(r.Suggestions, msg)
}
