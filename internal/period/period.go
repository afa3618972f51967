// Package period computes calendar period boundaries for the monthly
// delivery quota. Period equality is by (year, month); all arithmetic is done
// in the location of the supplied time so that boundary computations follow
// the device's wall clock, not UTC.
package period

import (
	"fmt"
	"time"
)

// Key identifies one calendar period (a month).
type Key struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// Of returns the period containing t.
func Of(t time.Time) Key {
	return Key{Year: t.Year(), Month: t.Month()}
}

// NextBoundary returns the first instant of the period after the one
// containing t (midnight on the 1st of the next month, in t's location).
func NextBoundary(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}

// IsZero reports whether k is the zero Key (no period recorded).
func (k Key) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// Next returns the period immediately following k.
func (k Key) Next() Key {
	if k.Month == time.December {
		return Key{Year: k.Year + 1, Month: time.January}
	}
	return Key{Year: k.Year, Month: k.Month + 1}
}

// Before reports whether k is strictly earlier than other.
func (k Key) Before(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// Contains reports whether t falls inside the period.
func (k Key) Contains(t time.Time) bool {
	return t.Year() == k.Year && t.Month() == k.Month
}

// String renders the key as "YYYY-MM", the form used in persisted state and
// audit reports.
func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Parse decodes a "YYYY-MM" key string.
func Parse(s string) (Key, error) {
	var year, month int
	if _, err := fmt.Sscanf(s, "%d-%d", &year, &month); err != nil {
		return Key{}, fmt.Errorf("invalid period key %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return Key{}, fmt.Errorf("invalid period key %q: month out of range", s)
	}
	return Key{Year: year, Month: time.Month(month)}, nil
}
