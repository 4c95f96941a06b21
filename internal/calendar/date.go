package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// DaysInWeek is the number of cells in one row of the weekly grid.
const DaysInWeek = 7

// Date is a civil calendar date with no time-of-day and no time zone.
// All meal-plan date math goes through this type so that local dates are
// never mixed with UTC conversions.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns a normalized Date (e.g. March 32 becomes April 1).
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the local calendar date of now, truncated to midnight.
func Today(now time.Time) Date {
	return FromTime(now.Local())
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) utc() time.Time {
	return d.Time(time.UTC)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.utc().AddDate(0, 0, n))
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.utc().Before(other.utc())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.utc().After(other.utc())
}

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.utc().Sub(d.utc()).Hours() / 24)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Timestamps are accepted
// and reduced to their date part.
func (d *Date) UnmarshalText(b []byte) error {
	s := string(b)
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Week is the seven-day window starting at Start.
type Week struct {
	Start Date
}

// Days returns the seven dates of the week in order.
func (w Week) Days() []Date {
	days := make([]Date, DaysInWeek)
	for i := range days {
		days[i] = w.Start.AddDays(i)
	}
	return days
}

// End returns the last date of the week.
func (w Week) End() Date {
	return w.Start.AddDays(DaysInWeek - 1)
}

// Contains reports whether d falls inside the week.
func (w Week) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End())
}

// WeekStart returns the first day of the week containing d, where weeks begin
// on firstDay (time.Monday or time.Sunday).
func WeekStart(d Date, firstDay time.Weekday) Date {
	offset := (int(d.Weekday()) - int(firstDay) + DaysInWeek) % DaysInWeek
	return d.AddDays(-offset)
}

// WeekOf returns the week containing d.
func WeekOf(d Date, firstDay time.Weekday) Week {
	return Week{Start: WeekStart(d, firstDay)}
}

// NextWeekStart returns the start of the week after the one containing d.
func NextWeekStart(d Date, firstDay time.Weekday) Date {
	return WeekStart(d, firstDay).AddDays(DaysInWeek)
}

// PlanWeekStart returns the Monday under which the backend files the plan
// that holds d.
func PlanWeekStart(d Date) Date {
	return WeekStart(d, time.Monday)
}

// PlanStarts returns the starts of the backend plans the week overlaps, in
// order. A Monday week maps to one plan, a Sunday week spans two.
func (w Week) PlanStarts() []Date {
	first := PlanWeekStart(w.Start)
	if first == w.Start {
		return []Date{first}
	}
	return []Date{first, first.AddDays(DaysInWeek)}
}

// ParseWeekday accepts "monday" or "sunday" (case-insensitive).
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monday", "mon":
		return time.Monday, nil
	case "sunday", "sun":
		return time.Sunday, nil
	default:
		return time.Monday, fmt.Errorf("unsupported week start %q: expected monday or sunday", s)
	}
}
