package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/config"
	redisclient "github.com/rafaelminatto1/fisioflow-scheduling/internal/redis"
	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventSeriesBooked         = "SERIES_BOOKED"
	EventAppointmentCanceled  = "APPOINTMENT_CANCELED"
	EventSeriesCanceled       = "SERIES_CANCELED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	ErrValidationFailed = errors.New("appointment failed validation")
	ErrSlotTaken        = errors.New("time slot was taken by a concurrent booking")
	ErrCalendarBusy     = errors.New("therapist calendar is being modified, please retry")
	ErrNotCancelable    = errors.New("only scheduled appointments can be canceled")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	clock  func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		clock:  time.Now,
	}
}

// ValidateDraft expands a draft into its concrete instances and runs the
// scheduling engine over the batch without persisting anything. The UI
// calls this for pre-flight feedback; Book repeats it before writing.
func (s *Service) ValidateDraft(ctx context.Context, draft scheduling.Appointment) (scheduling.ValidationResult, []scheduling.Appointment, error) {
	var res scheduling.ValidationResult

	if _, err := s.repo.GetPatientByID(ctx, draft.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return res, nil, err
		}
		return res, nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetTherapistByID(ctx, draft.TherapistID); err != nil {
		if errors.Is(err, ErrTherapistNotFound) {
			return res, nil, err
		}
		return res, nil, fmt.Errorf("load therapist: %w", err)
	}

	hydrateDraft(&draft)

	instances, err := scheduling.GenerateRecurrences(draft)
	if err != nil {
		if errors.Is(err, scheduling.ErrInvalidRecurrence) {
			// A malformed rule is an operator mistake, not an internal
			// failure: surface it inside the verdict.
			res.Errors = append(res.Errors, err.Error())
			return res, nil, nil
		}
		return res, nil, fmt.Errorf("expand recurrence: %w", err)
	}

	history, err := s.repo.ListByPatient(ctx, draft.PatientID)
	if err != nil {
		return res, nil, fmt.Errorf("load patient history: %w", err)
	}

	from, to := batchSpan(instances)
	all, err := s.repo.ListWindow(ctx, from, to, nil)
	if err != nil {
		return res, nil, fmt.Errorf("load calendar window: %w", err)
	}

	res = scheduling.ValidateBatch(instances, history, all, draft.ID, s.clock(), s.cfg.Scheduling)
	return res, instances, nil
}

// QuickValidate is the history-free pre-check for form fields.
func (s *Service) QuickValidate(draft scheduling.Appointment) (bool, string) {
	hydrateDraft(&draft)
	return scheduling.QuickValidate(draft, s.clock(), s.cfg.Scheduling)
}

// Book validates a draft and, on a clean verdict, persists every expanded
// instance in one transaction. The write happens under a per-therapist
// lock with a conflict re-check against a fresh snapshot, so two callers
// racing for the same slot cannot both commit.
func (s *Service) Book(ctx context.Context, draft scheduling.Appointment) ([]scheduling.Appointment, scheduling.ValidationResult, error) {
	res, instances, err := s.ValidateDraft(ctx, draft)
	if err != nil {
		return nil, res, err
	}
	if !res.Valid() {
		return nil, res, ErrValidationFailed
	}

	err = s.locker.WithTherapistLock(ctx, draft.TherapistID, func(lockCtx context.Context) error {
		from, to := batchSpan(instances)
		fresh, err := s.repo.ListWindow(lockCtx, from, to, &draft.TherapistID)
		if err != nil {
			return fmt.Errorf("re-check calendar window: %w", err)
		}
		if hit := scheduling.FindConflict(instances, fresh, uuid.Nil); hit != nil {
			return ErrSlotTaken
		}

		if err := s.repo.InsertAppointments(lockCtx, instances); err != nil {
			return fmt.Errorf("persist appointments: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, res, ErrCalendarBusy
		}
		return nil, res, err
	}

	seed := instances[0]
	payload := map[string]any{
		"patient_id":   seed.PatientID.String(),
		"therapist_id": seed.TherapistID.String(),
		"start_time":   seed.StartTime,
		"instances":    len(instances),
	}
	event := EventAppointmentBooked
	if len(instances) > 1 {
		event = EventSeriesBooked
		payload["series_id"] = seed.SeriesID.String()
	}
	s.logEvent(ctx, seed.ID, event, payload)

	return instances, res, nil
}

// Cancel cancels a single appointment. Series siblings are never touched.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != scheduling.StatusScheduled {
		return nil, ErrNotCancelable
	}

	updated, err := s.repo.UpdateStatus(ctx, id, scheduling.StatusScheduled, scheduling.StatusCanceled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another status change.
			return nil, ErrNotCancelable
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCanceled, map[string]any{})
	return updated, nil
}

// CancelSeries cancels every scheduled member of a series starting on or
// after the pivot date and reports how many were affected.
func (s *Service) CancelSeries(ctx context.Context, seriesID uuid.UUID, pivot time.Time) (int64, error) {
	n, err := s.repo.CancelSeriesFrom(ctx, seriesID, pivot)
	if err != nil {
		return 0, fmt.Errorf("cancel series: %w", err)
	}

	if n > 0 {
		s.logEvent(ctx, seriesID, EventSeriesCanceled, map[string]any{
			"series_id": seriesID.String(),
			"pivot":     pivot,
			"canceled":  n,
		})
	}
	return n, nil
}

// CompleteElapsed marks scheduled appointments whose end time passed more
// than the grace period ago as completed. The completion worker calls this
// periodically.
func (s *Service) CompleteElapsed(ctx context.Context) error {
	cutoff := s.clock().Add(-s.cfg.CompletionGrace)

	elapsed, err := s.repo.FindElapsedScheduled(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find elapsed appointments: %w", err)
	}

	for _, appt := range elapsed {
		_, err := s.repo.UpdateStatus(ctx, appt.ID, scheduling.StatusScheduled, scheduling.StatusCompleted)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			log.Printf("failed to complete appointment %s: %v", appt.ID, err)
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

// GetAppointment retrieves one appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListPatientAppointments retrieves a patient's full history.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]scheduling.Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

// ListCalendar retrieves every appointment intersecting a window,
// optionally scoped to one therapist.
func (s *Service) ListCalendar(ctx context.Context, from, to time.Time, therapistID *uuid.UUID) ([]scheduling.Appointment, error) {
	appts, err := s.repo.ListWindow(ctx, from, to, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list calendar window: %w", err)
	}
	return appts, nil
}

func hydrateDraft(draft *scheduling.Appointment) {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	if draft.Status == "" {
		draft.Status = scheduling.StatusScheduled
	}
	if draft.Type == "" {
		draft.Type = scheduling.TypeSession
	}
	if draft.PaymentStatus == "" {
		draft.PaymentStatus = scheduling.PaymentPending
	}
}

// batchSpan is the closed time range covered by a batch, padded by a day
// on each side so gap checks near the edges see their neighbors.
func batchSpan(instances []scheduling.Appointment) (time.Time, time.Time) {
	from := instances[0].StartTime
	to := instances[0].EndTime
	for _, inst := range instances[1:] {
		if inst.StartTime.Before(from) {
			from = inst.StartTime
		}
		if inst.EndTime.After(to) {
			to = inst.EndTime
		}
	}
	return from.AddDate(0, 0, -1), to.AddDate(0, 0, 1)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
