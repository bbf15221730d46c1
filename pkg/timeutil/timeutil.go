// Package timeutil provides learning-day utilities for EcoQuest.
// Streaks, daily activity and challenge windows are all evaluated against
// UTC day boundaries so clients in different timezones agree on "today".
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the UTC learning day (00:00:00).
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the UTC learning day (23:59:59.999999999).
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00 UTC).
// Weekly challenge windows are aligned to this boundary.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(u.AddDate(0, 0, -(weekday - 1)))
}

// EndOfWeek returns the end of the week (Sunday 23:59:59 UTC).
func EndOfWeek(t time.Time) time.Time {
	return EndOfDay(StartOfWeek(t).AddDate(0, 0, 6))
}

// IsToday checks if the given time falls on the current UTC learning day.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsYesterday checks if the given time falls on the previous UTC learning day.
func IsYesterday(t time.Time) bool {
	return IsSameDay(t, Now().AddDate(0, 0, -1))
}

// IsSameDay checks if two times fall on the same UTC learning day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// IsConsecutiveDay checks if t2 is the learning day right after t1.
// This is the streak-continuation predicate.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(t1.UTC().AddDate(0, 0, 1), t2)
}

// DaysBetween returns the number of whole learning days between two times.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	days := int(d2.Sub(d1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// DaysSince returns the number of learning days elapsed since the given time.
func DaysSince(t time.Time) int {
	return int(StartOfDay(Now()).Sub(StartOfDay(t)).Hours() / 24)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a UTC date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) as a UTC learning day.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// HoursLeft returns the whole hours remaining until the deadline, never
// negative. Used for challenge countdowns.
func HoursLeft(now, deadline time.Time) int {
	left := deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return int(left.Hours())
}
