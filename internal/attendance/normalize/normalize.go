// Package normalize decodes the date and time encodings found in attendance
// exports. Dates arrive as 7-digit ROC (Minguo) values YYYMMDD, or as 8-digit
// Gregorian YYYYMMDD when explicitly enabled. Times arrive packed as HHMM or
// HHMMSS.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/pkg/errors"
)

// ROCYearOffset converts a Minguo year to a Gregorian one.
const ROCYearOffset = 1911

// DateOptions controls which date encodings are accepted.
type DateOptions struct {
	AcceptGregorian bool
}

// Date decodes raw into a calendar date. Leading and trailing whitespace is
// ignored; everything else must be digits of the exact expected length.
func Date(raw string, opts DateOptions) (domain.CalendarDate, error) {
	s := strings.TrimSpace(raw)
	if !allDigits(s) {
		return domain.CalendarDate{}, dateError(raw, "not a numeric date")
	}

	var year int
	switch {
	case len(s) == 7:
		year = atoi(s[:3]) + ROCYearOffset
		s = s[3:]
	case len(s) == 8 && opts.AcceptGregorian:
		year = atoi(s[:4])
		s = s[4:]
	case len(s) == 8:
		return domain.CalendarDate{}, dateError(raw, "8-digit Gregorian dates are not enabled")
	default:
		return domain.CalendarDate{}, dateError(raw, "expected 7 digits YYYMMDD")
	}

	d, err := domain.NewCalendarDate(year, time.Month(atoi(s[:2])), atoi(s[2:]))
	if err != nil {
		return domain.CalendarDate{}, dateError(raw, err.Error())
	}
	return d, nil
}

// Time decodes raw into a time of day. The 4-digit form gets zero seconds.
func Time(raw string) (domain.TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	if !allDigits(s) {
		return domain.TimeOfDay{}, timeError(raw, "not a numeric time")
	}

	var sec int
	switch len(s) {
	case 4:
	case 6:
		sec = atoi(s[4:])
	default:
		return domain.TimeOfDay{}, timeError(raw, "expected 4 digits HHMM or 6 digits HHMMSS")
	}

	t, err := domain.NewTimeOfDay(atoi(s[:2]), atoi(s[2:4]), sec)
	if err != nil {
		return domain.TimeOfDay{}, timeError(raw, err.Error())
	}
	return t, nil
}

// CanonicalDate accepts either an encoded date or one already in canonical
// YYYY-MM-DD form, so values read back from the store decode the same way.
func CanonicalDate(raw string, opts DateOptions) (domain.CalendarDate, error) {
	if s := strings.TrimSpace(raw); len(s) == 10 && s[4] == '-' {
		d, err := domain.ParseCalendarDate(s)
		if err != nil {
			return domain.CalendarDate{}, dateError(raw, err.Error())
		}
		return d, nil
	}
	return Date(raw, opts)
}

// CanonicalTime is the time counterpart of CanonicalDate.
func CanonicalTime(raw string) (domain.TimeOfDay, error) {
	if s := strings.TrimSpace(raw); len(s) == 8 && s[2] == ':' {
		t, err := domain.ParseTimeOfDay(s)
		if err != nil {
			return domain.TimeOfDay{}, timeError(raw, err.Error())
		}
		return t, nil
	}
	return Time(raw)
}

func dateError(raw, reason string) error {
	return &errors.ConversionError{Value: raw, Kind: "date", Reason: reason}
}

func timeError(raw, reason string) error {
	return &errors.ConversionError{Value: raw, Kind: "time", Reason: reason}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// atoi is only called on validated digit runs.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
