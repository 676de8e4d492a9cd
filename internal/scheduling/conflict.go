package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// FindConflict scans a batch of candidate instances against the existing
// appointment set and returns the first double-booking found, or nil.
//
// Two appointments conflict iff they share a therapist and their intervals
// overlap under half-open semantics. Only active existing appointments
// participate; ignoreID excludes one existing appointment (the record being
// edited), and an existing row whose ID matches a candidate is the
// candidate's own stored version, not a conflict.
//
// Candidates are also checked against earlier candidates in the same batch,
// except true series siblings (same non-nil SeriesID), so that two
// independent drafts colliding with each other are caught before any of
// them is persisted. Iteration order is deterministic: candidates in
// generation order, existing in original order.
func FindConflict(candidates, existing []Appointment, ignoreID uuid.UUID) *Appointment {
	for i := range candidates {
		cand := &candidates[i]

		for j := range existing {
			other := &existing[j]
			if !other.IsActive() {
				continue
			}
			if ignoreID != uuid.Nil && other.ID == ignoreID {
				continue
			}
			if other.ID != uuid.Nil && other.ID == cand.ID {
				continue
			}
			if other.TherapistID == cand.TherapistID && cand.Overlaps(other) {
				hit := *other
				return &hit
			}
		}

		for j := 0; j < i; j++ {
			prev := &candidates[j]
			if sameSeries(cand, prev) {
				continue
			}
			if prev.TherapistID == cand.TherapistID && cand.Overlaps(prev) {
				hit := *prev
				return &hit
			}
		}
	}

	return nil
}

func sameSeries(a, b *Appointment) bool {
	return a.SeriesID != nil && b.SeriesID != nil && *a.SeriesID == *b.SeriesID
}

// HasMinimumGap reports whether every other active appointment of the same
// patient keeps at least gapMinutes between its edges and the candidate's
// edges. False means a violation; callers treat it as advisory.
func HasMinimumGap(appt Appointment, all []Appointment, gapMinutes int) bool {
	gap := time.Duration(gapMinutes) * time.Minute

	for i := range all {
		other := &all[i]
		if !other.IsActive() || other.PatientID != appt.PatientID {
			continue
		}
		if other.ID != uuid.Nil && other.ID == appt.ID {
			continue
		}

		if withinGap(other.StartTime, appt.StartTime, gap) ||
			withinGap(other.StartTime, appt.EndTime, gap) ||
			withinGap(other.EndTime, appt.StartTime, gap) ||
			withinGap(other.EndTime, appt.EndTime, gap) {
			return false
		}
	}

	return true
}

func withinGap(a, b time.Time, gap time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < gap
}

// UnderDailyLimit reports whether the therapist can still take one more
// appointment on the given calendar date. With maxPerDay=12 and 11 active
// appointments the candidate fits; with 12 it does not.
func UnderDailyLimit(therapistID uuid.UUID, date time.Time, all []Appointment, maxPerDay int) bool {
	count := 0
	for i := range all {
		other := &all[i]
		if !other.IsActive() || other.TherapistID != therapistID {
			continue
		}
		if sameDate(other.StartTime, date) {
			count++
		}
	}
	return count < maxPerDay
}
