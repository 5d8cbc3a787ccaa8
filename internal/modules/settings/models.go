package settings

import (
	"errors"
	"fmt"
	"time"
)

// Setting keys backing TimerSettings
const (
	KeyAutoStopHour         = "timer_auto_stop_hour"
	KeyAutoStopMinute       = "timer_auto_stop_minute"
	KeyAutoStopEnabled      = "timer_auto_stop_enabled"
	KeyAutoStopTimezone     = "timer_auto_stop_timezone"
	KeyAutoStopWeekdaysOnly = "timer_auto_stop_weekdays_only"
)

// KeyEndOfDayLastCycle records the last cutoff the end-of-day sweep completed
const KeyEndOfDayLastCycle = "timer_auto_stop_last_cycle"

// DefaultTimezone is used when neither the settings store nor the seed file names one
const DefaultTimezone = "Europe/Madrid"

// SettingDescriptions documents every key written by this package
var SettingDescriptions = map[string]string{
	KeyAutoStopHour:         "Local hour (0-23) at which running timers are stopped",
	KeyAutoStopMinute:       "Local minute (0-59) at which running timers are stopped",
	KeyAutoStopEnabled:      "Whether the end-of-day auto-stop runs at all",
	KeyAutoStopTimezone:     "IANA timezone the auto-stop time is evaluated in",
	KeyAutoStopWeekdaysOnly: "Only auto-stop Monday to Friday",
	KeyEndOfDayLastCycle:    "Cutoff and timezone of the last completed end-of-day sweep",
}

// ErrInvalidSettings wraps every TimerSettings validation failure
var ErrInvalidSettings = errors.New("settings: invalid timer settings")

// TimerSettings is the organization-wide end-of-day policy
type TimerSettings struct {
	AutoStopHour         int    `json:"autoStopHour" yaml:"hour"`
	AutoStopMinute       int    `json:"autoStopMinute" yaml:"minute"`
	AutoStopEnabled      bool   `json:"autoStopEnabled" yaml:"enabled"`
	AutoStopTimezone     string `json:"autoStopTimezone" yaml:"timezone"`
	AutoStopWeekdaysOnly bool   `json:"autoStopWeekdaysOnly" yaml:"weekdays_only"`
}

// DefaultTimerSettings returns 17:30, enabled, weekdays only, in timezone
func DefaultTimerSettings(timezone string) TimerSettings {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return TimerSettings{
		AutoStopHour:         17,
		AutoStopMinute:       30,
		AutoStopEnabled:      true,
		AutoStopTimezone:     timezone,
		AutoStopWeekdaysOnly: true,
	}
}

// Validate checks ranges and that the timezone is a loadable IANA name
func (s TimerSettings) Validate() error {
	if s.AutoStopHour < 0 || s.AutoStopHour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidSettings, s.AutoStopHour)
	}
	if s.AutoStopMinute < 0 || s.AutoStopMinute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidSettings, s.AutoStopMinute)
	}
	if s.AutoStopTimezone == "" {
		return fmt.Errorf("%w: timezone is required", ErrInvalidSettings)
	}
	if _, err := time.LoadLocation(s.AutoStopTimezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, s.AutoStopTimezone)
	}
	return nil
}

// Location loads the configured timezone, falling back to fallback
// (and then UTC) when the stored name is not loadable. The bool reports
// whether the configured zone was used.
func (s TimerSettings) Location(fallback string) (*time.Location, bool) {
	if loc, err := time.LoadLocation(s.AutoStopTimezone); err == nil && s.AutoStopTimezone != "" {
		return loc, true
	}
	if loc, err := time.LoadLocation(fallback); err == nil {
		return loc, false
	}
	return time.UTC, false
}

// IsWorkday reports whether the policy applies on the local date of t
func (s TimerSettings) IsWorkday(local time.Time) bool {
	if !s.AutoStopWeekdaysOnly {
		return true
	}
	wd := local.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// CutoffOn returns the cutoff instant on the local calendar date of local
func (s TimerSettings) CutoffOn(local time.Time) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d, s.AutoStopHour, s.AutoStopMinute, 0, 0, local.Location())
}

func (s TimerSettings) values() map[string]string {
	return map[string]string{
		KeyAutoStopHour:         fmt.Sprintf("%d", s.AutoStopHour),
		KeyAutoStopMinute:       fmt.Sprintf("%d", s.AutoStopMinute),
		KeyAutoStopEnabled:      formatBool(s.AutoStopEnabled),
		KeyAutoStopTimezone:     s.AutoStopTimezone,
		KeyAutoStopWeekdaysOnly: formatBool(s.AutoStopWeekdaysOnly),
	}
}
