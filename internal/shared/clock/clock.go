// Package clock holds the date and time-of-day conventions shared by venues,
// availability and bookings: calendar days are UTC midnights and times of day
// are "HH:mm" strings compared as minutes since midnight.
package clock

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the UTC day.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Day(t), nil
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Minutes converts "HH:mm" to minutes since midnight.
func Minutes(hhmm string) (int, error) {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:mm", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Hour returns the hour component of "HH:mm", ignoring minutes.
func Hour(hhmm string) (int, error) {
	m, err := Minutes(hhmm)
	if err != nil {
		return 0, err
	}
	return m / 60, nil
}

// Overlaps reports whether half-open intervals [aStart,aEnd) and [bStart,bEnd)
// intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}
