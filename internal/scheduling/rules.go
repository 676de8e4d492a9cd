package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const recentWindowDays = 30

// Validate runs every scheduling rule against a candidate appointment and
// collects the findings. Checks are independent: a failed check never
// short-circuits the rest, so the caller sees all issues at once.
//
// patientHistory is every appointment of the candidate's patient, any
// status, any date. all is the clinic-wide snapshot the conflict and
// capacity checks run against. now is the evaluation instant.
func Validate(candidate Appointment, patientHistory, all []Appointment, now time.Time, cfg SchedulingConfig) ValidationResult {
	var res ValidationResult

	checkTiming(&res, candidate, now, cfg)
	checkBusinessHours(&res, candidate, cfg)
	checkCapacity(&res, candidate, all, cfg)
	checkType(&res, candidate, cfg)
	checkRecurrenceRule(&res, candidate)

	checkPatientLoad(&res, candidate, patientHistory, now, cfg)
	checkSuggestions(&res, candidate, patientHistory, now)

	return res
}

// ValidateBatch validates a freshly expanded series (or a batch of one).
// The first instance gets the full rule pass; later instances get the hard
// business-hours and capacity checks, prefixed with their occurrence date
// so the operator can tell which instance is the problem. The whole batch
// is then scanned for double-bookings; ignoreID excludes the stored version
// of an appointment being edited.
func ValidateBatch(instances []Appointment, patientHistory, all []Appointment, ignoreID uuid.UUID, now time.Time, cfg SchedulingConfig) ValidationResult {
	if len(instances) == 0 {
		var res ValidationResult
		res.addError("no appointment instances to validate")
		return res
	}

	res := Validate(instances[0], patientHistory, all, now, cfg)

	for i := 1; i < len(instances); i++ {
		inst := instances[i]
		prefix := fmt.Sprintf("occurrence on %s: ", inst.StartTime.Format("2006-01-02"))

		var sub ValidationResult
		checkBusinessHours(&sub, inst, cfg)
		checkCapacity(&sub, inst, all, cfg)
		for _, msg := range sub.Errors {
			res.addError(prefix + msg)
		}
	}

	if hit := FindConflict(instances, all, ignoreID); hit != nil {
		res.addError(fmt.Sprintf("time slot conflicts with an existing appointment from %s to %s",
			hit.StartTime.Format("2006-01-02 15:04"), hit.EndTime.Format("15:04")))
	}

	return res
}

// QuickValidate is the lightweight pre-check for client-side use: past
// start and business hours only, no appointment history required.
func QuickValidate(candidate Appointment, now time.Time, cfg SchedulingConfig) (bool, string) {
	if candidate.StartTime.Before(now) {
		return false, "appointment start time is in the past"
	}
	if !cfg.WithinBusinessHours(candidate) {
		return false, businessHoursMessage(candidate, cfg)
	}
	return true, ""
}

// Hard errors

func checkTiming(res *ValidationResult, candidate Appointment, now time.Time, cfg SchedulingConfig) {
	if !candidate.EndTime.After(candidate.StartTime) {
		res.addError("appointment end time must be after its start time")
	}

	if candidate.StartTime.Before(now) {
		res.addError("appointment start time is in the past")
	}

	if cfg.MaxAdvanceDays > 0 {
		limit := now.AddDate(0, 0, cfg.MaxAdvanceDays)
		if candidate.StartTime.After(limit) {
			res.addError(fmt.Sprintf("appointment is more than %d days in advance", cfg.MaxAdvanceDays))
		}
	}
}

func checkBusinessHours(res *ValidationResult, candidate Appointment, cfg SchedulingConfig) {
	if cfg.WithinBusinessHours(candidate) {
		return
	}
	res.addError(businessHoursMessage(candidate, cfg))
}

// businessHoursMessage distinguishes Sunday closure and the reduced
// Saturday window from the generic weekday message.
func businessHoursMessage(candidate Appointment, cfg SchedulingConfig) string {
	day := candidate.StartTime.Weekday()
	window := cfg.BusinessHours[day]

	switch {
	case window == nil && day == time.Sunday:
		return "the clinic is closed on Sundays"
	case window == nil:
		return fmt.Sprintf("the clinic is closed on %ss", day)
	case day == time.Saturday:
		return fmt.Sprintf("Saturday has reduced hours (%s); the appointment falls outside them", window)
	default:
		return fmt.Sprintf("appointment is outside business hours (%s on %ss)", window, day)
	}
}

func checkCapacity(res *ValidationResult, candidate Appointment, all []Appointment, cfg SchedulingConfig) {
	if cfg.MaxPerDay <= 0 {
		return
	}
	if !UnderDailyLimit(candidate.TherapistID, candidate.StartTime, all, cfg.MaxPerDay) {
		res.addError(fmt.Sprintf("therapist already has %d appointments on %s, the daily limit",
			cfg.MaxPerDay, candidate.StartTime.Format("2006-01-02")))
	}
}

func checkType(res *ValidationResult, candidate Appointment, cfg SchedulingConfig) {
	if candidate.Type == TypeTeleconsulta && !cfg.AllowTeleconsulta {
		res.addError("teleconsulta appointments are currently disabled by clinic policy")
	}
}

func checkRecurrenceRule(res *ValidationResult, candidate Appointment) {
	if candidate.Recurrence == nil {
		return
	}
	if err := candidate.Recurrence.Validate(); err != nil {
		res.addError(err.Error())
	}
}

// Warnings

func checkPatientLoad(res *ValidationResult, candidate Appointment, patientHistory []Appointment, now time.Time, cfg SchedulingConfig) {
	if cfg.MinimumGapMinutes > 0 && !HasMinimumGap(candidate, patientHistory, cfg.MinimumGapMinutes) {
		res.addWarning(fmt.Sprintf("another appointment for this patient is within %d minutes of this slot",
			cfg.MinimumGapMinutes))
	}

	for i := range patientHistory {
		other := &patientHistory[i]
		if other.Status != StatusScheduled || other.ID == candidate.ID {
			continue
		}
		if sameDate(other.StartTime, candidate.StartTime) {
			res.addWarning("patient already has an appointment scheduled on this date")
			break
		}
	}

	if next := nextScheduled(patientHistory, candidate, now); next != nil {
		res.addWarning(fmt.Sprintf("patient already has an upcoming appointment on %s",
			next.StartTime.Format("2006-01-02 15:04")))
	}

	for i := range patientHistory {
		if patientHistory[i].PaymentStatus == PaymentPending {
			res.addWarning("patient has an appointment with a pending payment")
			break
		}
	}
}

func nextScheduled(history []Appointment, candidate Appointment, now time.Time) *Appointment {
	var next *Appointment
	for i := range history {
		other := &history[i]
		if other.Status != StatusScheduled || other.ID == candidate.ID {
			continue
		}
		if !other.StartTime.After(now) {
			continue
		}
		if next == nil || other.StartTime.Before(next.StartTime) {
			next = other
		}
	}
	return next
}

// Suggestions

func checkSuggestions(res *ValidationResult, candidate Appointment, patientHistory []Appointment, now time.Time) {
	if candidate.SessionNumber != nil && candidate.TotalSessions != nil &&
		*candidate.SessionNumber == *candidate.TotalSessions {
		res.addSuggestion("this is the last session of the package; consider discussing renewal with the patient")
	}

	if len(patientHistory) == 0 {
		res.addSuggestion("first appointment for this patient; consider setting the type to evaluation")
	}

	switch hour := candidate.StartTime.Hour(); {
	case hour < 9:
		res.addSuggestion("morning slot; confirm the patient can arrive before regular hours traffic")
	case hour >= 17:
		res.addSuggestion("end-of-day slot; leave time for room cleanup after the session")
	}

	if candidate.StartTime.Weekday() == time.Saturday {
		res.addSuggestion("Saturday booking; remember the clinic runs reduced hours")
	}

	recentCount, lastVisit := historyStats(patientHistory, now)
	switch {
	case recentCount >= 8:
		res.addSuggestion(fmt.Sprintf("patient had %d sessions in the last %d days; consider a progress review",
			recentCount, recentWindowDays))
	case recentCount == 0 && lastVisit != nil:
		if gap := int(now.Sub(*lastVisit).Hours() / 24); gap > recentWindowDays {
			res.addSuggestion(fmt.Sprintf("patient's last visit was %d days ago; consider a re-evaluation", gap))
		}
	}

	if candidate.Type == TypeEvaluation && len(patientHistory) > 0 {
		res.addSuggestion("evaluation booked for a returning patient; clarify whether this is a reassessment or a new treatment")
	}
}

// historyStats counts active sessions in the trailing window and finds the
// most recent past visit of any status.
func historyStats(history []Appointment, now time.Time) (recent int, lastVisit *time.Time) {
	windowStart := now.AddDate(0, 0, -recentWindowDays)

	for i := range history {
		appt := &history[i]
		if appt.StartTime.After(now) {
			continue
		}
		if appt.IsActive() && appt.StartTime.After(windowStart) {
			recent++
		}
		if lastVisit == nil || appt.StartTime.After(*lastVisit) {
			t := appt.StartTime
			lastVisit = &t
		}
	}
	return recent, lastVisit
}
