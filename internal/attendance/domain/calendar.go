package domain

import (
	"fmt"
	"time"
)

// CalendarDate is a proleptic Gregorian date without a time zone.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCalendarDate builds a date and rejects components that do not name a real day.
func NewCalendarDate(year int, month time.Month, day int) (CalendarDate, error) {
	if month < time.January || month > time.December {
		return CalendarDate{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > DaysIn(year, month) {
		return CalendarDate{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	}
	return CalendarDate{Year: year, Month: month, Day: day}, nil
}

// ParseCalendarDate parses the canonical YYYY-MM-DD form.
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return CalendarDate{}, err
	}
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CalendarDate) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns the date n days later, or earlier for negative n.
func (d CalendarDate) AddDays(n int) CalendarDate {
	t := d.Time().AddDate(0, 0, n)
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d CalendarDate) Before(o CalendarDate) bool {
	return d.Time().Before(o.Time())
}

func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

// TimeOfDay is a wall clock time with second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay rejects components outside 0-23, 0-59, 0-59.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	switch {
	case hour < 0 || hour > 23:
		return TimeOfDay{}, fmt.Errorf("hour %d out of range", hour)
	case minute < 0 || minute > 59:
		return TimeOfDay{}, fmt.Errorf("minute %d out of range", minute)
	case second < 0 || second > 59:
		return TimeOfDay{}, fmt.Errorf("second %d out of range", second)
	}
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}, nil
}

// ParseTimeOfDay parses the canonical HH:MM:SS form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return TimeOfDay{}, err
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Seconds since midnight.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Seconds() < o.Seconds()
}

func (t TimeOfDay) After(o TimeOfDay) bool {
	return t.Seconds() > o.Seconds()
}
