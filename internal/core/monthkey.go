package core

import (
	"errors"
	"fmt"
	"time"
)

// MonthKey is a calendar month in canonical "YYYY-MM" form. Lexicographic
// order coincides with chronological order, so plain string comparison is
// the only ordering the rest of the package ever needs.
type MonthKey string

var ErrInvalidMonthKey = errors.New("invalid month key")

// NewMonthKey builds the canonical key for a year and 1-based month.
// The caller guarantees 1 <= month <= 12.
func NewMonthKey(year, month int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// MonthKeyOf returns the key for the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return NewMonthKey(t.Year(), int(t.Month()))
}

// ParseMonthKey validates a "YYYY-MM" string and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKeyOf(t), nil
}

// Time returns the first instant of the month in UTC. Invalid keys yield the
// zero time; callers that accept untrusted input go through ParseMonthKey.
func (m MonthKey) Time() time.Time {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddMonths returns the key n months after m (n may be negative).
func (m MonthKey) AddMonths(n int) MonthKey {
	return MonthKeyOf(m.Time().AddDate(0, n, 0))
}

// Before reports whether m is strictly earlier than other.
func (m MonthKey) Before(other MonthKey) bool {
	return m < other
}

func (m MonthKey) String() string {
	return string(m)
}
