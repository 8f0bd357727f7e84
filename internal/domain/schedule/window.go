// Package schedule holds the timezone-aware calendar arithmetic used by the
// per-minute tick: local day boundaries, interval slots and fire windows.
package schedule

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // IANA database for minimal container images
)

// DateLayout is the calendar date format stored in polls, warns and markers.
const DateLayout = "2006-01-02"

// DefaultTimezone is used for groups that never configured one.
const DefaultTimezone = "Europe/Kiev"

var ErrInvalidInterval = errors.New("collection interval must be positive")

var fallbackTimezone = DefaultTimezone

// SetFallbackTimezone replaces DefaultTimezone for groups without a timezone.
// It is meant to be called once at startup.
func SetFallbackTimezone(name string) error {
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	fallbackTimezone = name
	return nil
}

// LoadLocation resolves an IANA name, falling back to the configured default when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = fallbackTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// LocalDateString renders the calendar date t falls on in loc.
func LocalDateString(loc *time.Location, t time.Time) string {
	return t.In(loc).Format(DateLayout)
}

// StartOfLocalDay returns the absolute instant of 00:00 local time on the day t falls on.
// On days where midnight is skipped by a DST jump, time.Date normalises to the
// first existing instant of that day.
func StartOfLocalDay(loc *time.Location, t time.Time) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextExpectedTrigger returns the most recent slot boundary <= now, where slots
// repeat every interval starting from local midnight.
func NextExpectedTrigger(interval time.Duration, loc *time.Location, now time.Time) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, ErrInvalidInterval
	}
	start := StartOfLocalDay(loc, now)
	elapsed := now.Sub(start)
	slots := elapsed / interval
	return start.Add(slots * interval), nil
}

// IsWithinFireWindow reports whether |now - expected| <= tolerance.
func IsWithinFireWindow(expected, now time.Time, tolerance time.Duration) bool {
	diff := now.Sub(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// AddDays shifts a DateLayout date by whole calendar days.
func AddDays(date string, days int) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.AddDate(0, 0, days).Format(DateLayout), nil
}

// LocalDateOffset renders the local calendar date `days` away from the day t falls on.
func LocalDateOffset(loc *time.Location, t time.Time, days int) string {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+days, 12, 0, 0, 0, time.UTC).Format(DateLayout)
}

// LocalClock is the wall-clock reading of an instant in a group's timezone.
type LocalClock struct {
	Date    string
	Hour    int
	Minute  int
	Weekday time.Weekday
}

func ClockAt(loc *time.Location, t time.Time) LocalClock {
	local := t.In(loc)
	return LocalClock{
		Date:    local.Format(DateLayout),
		Hour:    local.Hour(),
		Minute:  local.Minute(),
		Weekday: local.Weekday(),
	}
}

// InMidnightWindow is true during local 00:00..00:02 inclusive.
func (c LocalClock) InMidnightWindow() bool {
	return c.Hour == 0 && c.Minute <= 2
}

// IsMidnight is true during the exact local minute 00:00.
func (c LocalClock) IsMidnight() bool {
	return c.Hour == 0 && c.Minute == 0
}

// MinutesUntilMidnight counts whole minutes left in the local day.
func (c LocalClock) MinutesUntilMidnight() int {
	return (24-c.Hour)*60 - c.Minute
}
