package util

import "time"

// TruncateToDay drops the time-of-day part, keeping the location.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether both instants fall on the same calendar day.
// An instant exactly at the following midnight still counts: an event ending
// at 24:00 belongs to the day it started on.
func SameDay(a, b time.Time) bool {
	if TruncateToDay(a).Equal(TruncateToDay(b)) {
		return true
	}
	if b.Before(a) {
		a, b = b, a
	}
	return TruncateToDay(a).AddDate(0, 0, 1).Equal(b)
}
