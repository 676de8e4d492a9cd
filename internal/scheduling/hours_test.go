package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 2026-09-01 is a Tuesday; 2026-09-05 a Saturday; 2026-09-06 a Sunday.
func septAt(day, hour, min int) time.Time {
	return time.Date(2026, time.September, day, hour, min, 0, 0, time.UTC)
}

func slot(start time.Time, minutes int) Appointment {
	return Appointment{
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
		Status:    StatusScheduled,
		Type:      TypeSession,
	}
}

func TestWithinBusinessHours(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		appt Appointment
		want bool
	}{
		{"weekday mid morning", slot(septAt(1, 10, 0), 60), true},
		{"weekday at opening", slot(septAt(1, 7, 0), 60), true},
		{"weekday before opening", slot(septAt(1, 6, 30), 60), false},
		{"weekday ends exactly at close", slot(septAt(1, 18, 0), 60), true},
		{"weekday spills past close", slot(septAt(1, 18, 30), 60), false},
		{"saturday inside reduced window", slot(septAt(5, 9, 0), 60), true},
		{"saturday afternoon", slot(septAt(5, 15, 0), 60), false},
		{"saturday ends exactly at close", slot(septAt(5, 13, 0), 60), true},
		{"sunday", slot(septAt(6, 10, 0), 60), false},
		{"cross midnight span", slot(septAt(1, 18, 0), 14*60), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.WithinBusinessHours(tt.appt))
		})
	}
}

func TestWithinBusinessHoursDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireBusinessHours = false

	assert.True(t, cfg.WithinBusinessHours(slot(septAt(6, 3, 0), 60)))
}

func TestWithinBusinessHoursIsPure(t *testing.T) {
	cfg := DefaultConfig()
	appt := slot(septAt(1, 10, 0), 60)

	first := cfg.WithinBusinessHours(appt)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, cfg.WithinBusinessHours(appt))
	}
}

func TestDayWindowString(t *testing.T) {
	w := DayWindow{OpenMinute: 8 * 60, CloseMinute: 14 * 60}
	assert.Equal(t, "08:00-14:00", w.String())
}
