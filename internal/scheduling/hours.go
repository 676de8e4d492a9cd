package scheduling

import "time"

// WithinBusinessHours reports whether the whole service window of the
// appointment falls inside the operating window of its weekday. The
// weekday comes from StartTime's local calendar date; there is no holiday
// concept. Cross-midnight spans are never within hours.
func (c SchedulingConfig) WithinBusinessHours(appt Appointment) bool {
	if !c.RequireBusinessHours {
		return true
	}

	window := c.BusinessHours[appt.StartTime.Weekday()]
	if window == nil {
		return false
	}

	if !sameDate(appt.StartTime, appt.EndTime) {
		return false
	}

	start := minuteOfDay(appt.StartTime)
	end := minuteOfDay(appt.EndTime)

	return start >= window.OpenMinute && end <= window.CloseMinute
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func sameDate(a, b time.Time) bool {
	ya, ma, da := a.Date()
	yb, mb, db := b.Date()
	return ya == yb && ma == mb && da == db
}
