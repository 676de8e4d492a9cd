package scheduling

import (
	"fmt"
	"time"
)

// DayWindow is an operating window within one weekday, in minutes from
// midnight. An appointment fits iff it starts at or after OpenMinute and
// ends at or before CloseMinute.
type DayWindow struct {
	OpenMinute  int
	CloseMinute int
}

func (w DayWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		w.OpenMinute/60, w.OpenMinute%60, w.CloseMinute/60, w.CloseMinute%60)
}

// SchedulingConfig is the clinic policy for one validation call. It is a
// plain value passed into every check; the engine holds no ambient state.
type SchedulingConfig struct {
	MinimumGapMinutes    int
	MaxPerDay            int
	RequireBusinessHours bool
	MaxAdvanceDays       int
	AllowTeleconsulta    bool

	// BusinessHours is indexed by time.Weekday (Sunday = 0). nil = closed.
	BusinessHours [7]*DayWindow
}

// Default clinic policy.
const (
	DefaultMinimumGapMinutes = 60
	DefaultMaxPerDay         = 12
	DefaultMaxAdvanceDays    = 90
)

// DefaultConfig returns the stock policy: Mon-Fri 07:00-19:00,
// Sat 08:00-14:00, Sun closed.
func DefaultConfig() SchedulingConfig {
	cfg := SchedulingConfig{
		MinimumGapMinutes:    DefaultMinimumGapMinutes,
		MaxPerDay:            DefaultMaxPerDay,
		RequireBusinessHours: true,
		MaxAdvanceDays:       DefaultMaxAdvanceDays,
		AllowTeleconsulta:    true,
	}

	weekday := &DayWindow{OpenMinute: 7 * 60, CloseMinute: 19 * 60}
	for d := time.Monday; d <= time.Friday; d++ {
		cfg.BusinessHours[d] = weekday
	}
	cfg.BusinessHours[time.Saturday] = &DayWindow{OpenMinute: 8 * 60, CloseMinute: 14 * 60}

	return cfg
}

// WindowFor returns the operating window for a weekday, nil when closed.
func (c SchedulingConfig) WindowFor(day time.Weekday) *DayWindow {
	return c.BusinessHours[day]
}
