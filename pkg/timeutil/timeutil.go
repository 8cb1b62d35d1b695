// Package timeutil provides calendar-day helpers for record dates.
// Attendance dates and due dates are calendar days, not instants: they are
// resolved in the school's timezone and stored as midnight UTC.
package timeutil

import (
	"sync"
	"time"
)

// Date layouts used across the API.
const (
	FormatDate     = "2006-01-02"
	FormatDateTime = "2006-01-02 15:04:05"
)

var (
	locMu    sync.RWMutex
	location = time.UTC
)

// SetLocation sets the school timezone used to resolve calendar days.
// A nil location resets to UTC.
func SetLocation(loc *time.Location) {
	locMu.Lock()
	defer locMu.Unlock()
	if loc == nil {
		loc = time.UTC
	}
	location = loc
}

// Location returns the configured school timezone.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return location
}

// Now returns the current time in the school timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// Date creates a calendar day (midnight UTC).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CalendarDay returns the school-timezone calendar day of t as midnight UTC.
// Two instants on the same local day always map to the same value, which is
// what makes (student, course, date) usable as a natural key. A value that is
// already a calendar day is returned unchanged, so CalendarDay is idempotent.
func CalendarDay(t time.Time) time.Time {
	if IsCalendarDay(t) {
		return t.UTC()
	}
	return localDay(t)
}

func localDay(t time.Time) time.Time {
	local := t.In(Location())
	return Date(local.Year(), local.Month(), local.Day())
}

// IsCalendarDay reports whether t is midnight UTC, the form every calendar
// day is stored in.
func IsCalendarDay(t time.Time) bool {
	u := t.UTC()
	return !t.IsZero() && u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

// Today returns the current calendar day.
func Today() time.Time {
	return localDay(time.Now())
}

// ParseDate parses a YYYY-MM-DD string into a calendar day.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(FormatDate, value)
	if err != nil {
		return time.Time{}, err
	}
	return Date(t.Year(), t.Month(), t.Day()), nil
}

// FormatDay formats a calendar day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// IsSameDay checks if two times fall on the same school-timezone day.
func IsSameDay(t1, t2 time.Time) bool {
	return CalendarDay(t1).Equal(CalendarDay(t2))
}

// DaysBetween calculates the number of calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	d := CalendarDay(t2).Sub(CalendarDay(t1))
	days := int(d.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// InRange reports whether day lies in [from, to]. Zero bounds are open.
func InRange(day, from, to time.Time) bool {
	if !from.IsZero() && day.Before(from) {
		return false
	}
	if !to.IsZero() && day.After(to) {
		return false
	}
	return true
}
