package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Tenant zones must resolve even on images without a system tz database.
	_ "time/tzdata"
)

const (
	// DateLayout is the canonical calendar-day representation. All day
	// comparisons (range bounds, createdAt, start/end dates) use this form.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical time-of-day representation.
	TimeLayout = "15:04"

	// DefaultTimezone is used when a tenant has no usable zone configured.
	DefaultTimezone = "America/Sao_Paulo"

	// UnscheduledTime is the sentinel time given to occurrences of rules
	// without a time list ("once per due day, time unspecified").
	UnscheduledTime = "00:00"
)

var (
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime = errors.New("invalid time, expected HH:mm")
)

// Frequency is the recurrence cadence of a rule.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
)

// Rule is the part of a recurrence row that decides which days are due.
// DayOfWeek uses 0=Sunday..6=Saturday.
type Rule struct {
	Frequency  Frequency
	DayOfWeek  *int
	DayOfMonth *int
}

// Valid reports whether the rule carries the field its frequency requires.
func (r Rule) Valid() bool {
	switch r.Frequency {
	case Daily:
		return true
	case Weekly:
		return r.DayOfWeek != nil && *r.DayOfWeek >= 0 && *r.DayOfWeek <= 6
	case Monthly:
		return r.DayOfMonth != nil && *r.DayOfMonth >= 1 && *r.DayOfMonth <= 31
	default:
		return false
	}
}

// IsDue reports whether the rule fires on day. A MONTHLY rule whose
// day-of-month does not exist in day's month fires on the month's last day.
// Malformed rules are never due.
func IsDue(r Rule, day time.Time) bool {
	if !r.Valid() {
		return false
	}
	switch r.Frequency {
	case Weekly:
		return int(day.Weekday()) == *r.DayOfWeek
	case Monthly:
		target := *r.DayOfMonth
		if last := DaysInMonth(day.Year(), day.Month()); target > last {
			target = last
		}
		return day.Day() == target
	default:
		return true
	}
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

// Noon returns t's calendar day at 12:00 in t's location.
func Noon(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}

// DaysInRange returns every calendar day from start to end inclusive, each
// normalized to noon so DST transitions cannot shift a day. The result is a
// fresh slice; callers may range over it any number of times.
func DaysInRange(start, end time.Time) []time.Time {
	first, last := Noon(start), Noon(end)
	if last.Before(first) {
		return nil
	}
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DateKey formats t as YYYY-MM-DD in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into noon UTC of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Noon(t), nil
}

// DayCount returns the number of calendar days in [start, end]. Both bounds
// must already be valid keys; an inverted range yields a value below 1.
func DayCount(start, end string) (int, error) {
	s, err := ParseDate(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return 0, err
	}
	return int(e.Sub(s).Hours()/24) + 1, nil
}

// TimeToMinutes converts "HH:mm" (or "HH:mm:ss") to minutes after midnight.
func TimeToMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

// NormalizeTime rewrites a time-of-day into zero-padded HH:mm, so that
// lexicographic comparison matches chronological order.
func NormalizeTime(s string) (string, error) {
	m, err := TimeToMinutes(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
}

// Window is a daily time window such as a caregiver shift.
type Window struct {
	Start           string `json:"start_time"`
	End             string `json:"end_time"`
	CrossesMidnight bool   `json:"crosses_midnight"`
}

// NewWindow builds a window, flagging it as crossing midnight when end <= start.
func NewWindow(start, end string) (Window, error) {
	s, err := TimeToMinutes(start)
	if err != nil {
		return Window{}, err
	}
	e, err := TimeToMinutes(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end, CrossesMidnight: e <= s}, nil
}

// Contains reports whether t falls in the window, bounds inclusive. A window
// crossing midnight contains t when t >= Start or t <= End.
func (w Window) Contains(t string) bool {
	tm, err := TimeToMinutes(t)
	if err != nil {
		return false
	}
	s, err := TimeToMinutes(w.Start)
	if err != nil {
		return false
	}
	e, err := TimeToMinutes(w.End)
	if err != nil {
		return false
	}
	if w.CrossesMidnight || e <= s {
		return tm >= s || tm <= e
	}
	return tm >= s && tm <= e
}

// LoadLocation resolves an IANA zone, falling back to DefaultTimezone (and
// UTC as a last resort). The boolean is false when a fallback was used.
func LoadLocation(name string) (*time.Location, bool) {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, true
		}
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc, false
	}
	return time.UTC, false
}

// LocalToUTC interprets date and time-of-day as wall clock in loc and returns
// the corresponding UTC instant.
func LocalToUTC(date, hhmm string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	m, err := TimeToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, dd := d.Date()
	return time.Date(y, mo, dd, m/60, m%60, 0, 0, loc).UTC(), nil
}

// Today returns the calendar day of now in loc.
func Today(loc *time.Location, now time.Time) string {
	return DateKey(now.In(loc))
}
