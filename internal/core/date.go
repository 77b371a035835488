package core

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date. Time-of-day is always truncated; comparisons and
// month attribution only ever look at year, month and day.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

// Before reports whether d falls on an earlier calendar day than o.
func (d Date) Before(o Date) bool {
	return d.Truncated().Before(o.Truncated())
}

// Truncated drops any time-of-day component that leaked in through JSON.
func (d Date) Truncated() time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return ErrInvalidDate
	}
	s = s[1 : len(s)-1]
	// Accept full timestamps from older exports, keep only the date part.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthID identifies a calendar month as "YYYY-MM".
type MonthID string

// MonthIDOf returns the month id a date belongs to.
func MonthIDOf(d Date) MonthID {
	return MonthID(fmt.Sprintf("%04d-%02d", d.Year(), d.Month()))
}

// ParseMonthID validates a "YYYY-MM" string.
func ParseMonthID(s string) (MonthID, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("parse month id %q: %w", s, ErrInvalidMonthID)
	}
	return MonthIDOf(DateOf(t)), nil
}

// Start returns the first day of the month. Invalid ids return the zero
// Date; ids are validated at the boundary, not here.
func (m MonthID) Start() Date {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return Date{}
	}
	return DateOf(t)
}

func (m MonthID) String() string { return string(m) }
