package utils

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date representation used on the wire.
const DateLayout = "2006-01-02"

// CivilDate truncates t to midnight UTC of its own calendar day.
// The wall-clock day of t is kept; only the location is dropped.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	diff := CivilDate(b).Sub(CivilDate(a))
	return int(diff.Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(val string) (time.Time, error) {
	t, err := time.Parse(DateLayout, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", val)
	}
	return t, nil
}

// AbsInt returns the absolute value of n.
func AbsInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
