package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generation ceiling for rules with neither an end date nor an occurrence
// count. Whichever limit trips first stops the expansion.
const (
	MaxGeneratedOccurrences = 365
	MaxHorizonYears         = 2
)

var ErrInvalidRecurrence = errors.New("invalid recurrence rule")

// Validate rejects rules that would silently produce a wrong series.
func (r *RecurrenceRule) Validate() error {
	switch r.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecurrence, r.Type)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRecurrence, r.Interval)
	}
	if r.EndDate != nil && r.Occurrences != nil {
		return fmt.Errorf("%w: end date and occurrence count are mutually exclusive", ErrInvalidRecurrence)
	}
	if r.Occurrences != nil && *r.Occurrences <= 0 {
		return fmt.Errorf("%w: occurrence count must be positive, got %d", ErrInvalidRecurrence, *r.Occurrences)
	}
	return nil
}

// GenerateRecurrences expands a base appointment into the concrete series
// its rule describes. Without a rule the base comes back as a single
// instance, untouched.
//
// Every instance is a copy of the base with shifted times, a fresh ID
// (the seed keeps the base's own ID) and one shared SeriesID. A base that
// already carries a SeriesID keeps it, so editing one occurrence of a
// stored series preserves the series identity.
//
// The expander does not check business hours or conflicts; that is the
// orchestrator's job over the whole batch.
func GenerateRecurrences(base Appointment) ([]Appointment, error) {
	if base.Recurrence == nil {
		return []Appointment{base}, nil
	}

	rule := base.Recurrence
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	seriesID := uuid.New()
	if base.SeriesID != nil {
		seriesID = *base.SeriesID
	}

	duration := base.EndTime.Sub(base.StartTime)
	horizon := base.StartTime.AddDate(MaxHorizonYears, 0, 0)

	var out []Appointment
	for n := 0; ; n++ {
		start := advance(base.StartTime, rule, n)

		if rule.Occurrences != nil {
			if n >= *rule.Occurrences {
				break
			}
		} else if rule.EndDate != nil {
			if n > 0 && start.After(*rule.EndDate) {
				break
			}
		} else if n > 0 && (n >= MaxGeneratedOccurrences || start.After(horizon)) {
			break
		}

		inst := base
		inst.StartTime = start
		inst.EndTime = start.Add(duration)
		sid := seriesID
		inst.SeriesID = &sid
		if n > 0 {
			inst.ID = uuid.New()
		}
		out = append(out, inst)
	}

	return out, nil
}

// advance computes the nth occurrence start from the seed start, so that
// monthly clamping never drifts (Jan 31 -> Feb 28 -> Mar 31).
func advance(start time.Time, rule *RecurrenceRule, n int) time.Time {
	switch rule.Type {
	case RecurrenceDaily:
		return start.AddDate(0, 0, rule.Interval*n)
	case RecurrenceWeekly:
		return start.AddDate(0, 0, 7*rule.Interval*n)
	case RecurrenceBiweekly:
		return start.AddDate(0, 0, 14*rule.Interval*n)
	case RecurrenceMonthly:
		return addMonthsClamped(start, rule.Interval*n)
	}
	return start
}

// addMonthsClamped adds calendar months preserving the day-of-month,
// clamping to the last valid day when the target month is shorter.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}
