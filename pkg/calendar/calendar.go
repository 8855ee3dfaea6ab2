// Package calendar converts instants to calendar days in a named timezone.
//
// A calendar day is represented as midnight UTC of that civil date, which keeps
// values comparable and stores cleanly in DATE columns on every driver.
package calendar

import "time"

const day = 24 * time.Hour

// DateOf returns the civil date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is DateOf(now, loc).
func Today(now time.Time, loc *time.Location) time.Time {
	return DateOf(now, loc)
}

// Normalize drops the time of day from a stored date. Stored dates carry no
// zone semantics, so their own Y/M/D fields are kept.
func Normalize(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)) / day)
}

// DaysUntil returns the number of calendar days from now (observed in loc) to
// expiry. Zero means the item expires today; negative values are in the past.
func DaysUntil(now, expiry time.Time, loc *time.Location) int {
	return DaysBetween(Today(now, loc), expiry)
}

// AddDays shifts a calendar day by n days.
func AddDays(date time.Time, n int) time.Time {
	return Normalize(date).AddDate(0, 0, n)
}
