// Package grid maps a reference date and view mode to the dates a calendar
// view shows, and event times to pixel geometry on a vertical time axis.
//
// Every function here is pure: the current time is always an argument.
package grid

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	// DefaultMinSlotPixels keeps very short events visible and clickable.
	DefaultMinSlotPixels = 20.0
)

// Mode is a calendar view mode.
type Mode string

const (
	ModeDay   Mode = "day"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
	ModeList  Mode = "list"
)

// ParseMode returns the mode for s; unknown values map to ModeWeek.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDay:
		return ModeDay
	case ModeMonth:
		return ModeMonth
	case ModeList:
		return ModeList
	default:
		return ModeWeek
	}
}

// Direction is the navigation step sign.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// mondayOffset is the number of days between t and the Monday on or before it.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekDates returns Monday..Sunday of the week containing anchor.
func WeekDates(anchor time.Time) [7]time.Time {
	monday := StartOfDay(anchor).AddDate(0, 0, -mondayOffset(anchor))
	var out [7]time.Time
	for i := range out {
		out[i] = monday.AddDate(0, 0, i)
	}
	return out
}

// MonthDates returns the cells of a Monday-first month grid for anchor's
// month: zero time.Time placeholders for the leading days of the previous
// month, then every day of the month. There is no trailing padding.
func MonthDates(anchor time.Time) []time.Time {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	lead := mondayOffset(first)
	days := DaysIn(anchor.Year(), anchor.Month())

	out := make([]time.Time, lead, lead+days)
	for d := 0; d < days; d++ {
		out = append(out, first.AddDate(0, 0, d))
	}
	return out
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Navigate moves anchor by one unit of the view: a day, a week, or a
// calendar month. Month moves clamp the day of month (Jan 31 -> Feb 28)
// and roll over year boundaries. List mode pages by month.
func Navigate(anchor time.Time, mode Mode, dir Direction) time.Time {
	step := 1
	if dir < 0 {
		step = -1
	}
	switch mode {
	case ModeDay:
		return anchor.AddDate(0, 0, step)
	case ModeWeek:
		return anchor.AddDate(0, 0, 7*step)
	default:
		return addMonthsClamped(anchor, step)
	}
}

func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ny := y + total/12
	nm := total % 12
	if nm < 0 {
		nm += 12
		ny--
	}
	month := time.Month(nm + 1)
	if maxDay := DaysIn(ny, month); d > maxDay {
		d = maxDay
	}
	hh, mm, ss := t.Clock()
	return time.Date(ny, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// Range returns the first and last day (inclusive) a view needs.
// List mode covers the anchor's month.
func Range(anchor time.Time, mode Mode) (time.Time, time.Time) {
	switch mode {
	case ModeDay:
		d := StartOfDay(anchor)
		return d, d
	case ModeWeek:
		w := WeekDates(anchor)
		return w[0], w[6]
	default:
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
		last := time.Date(anchor.Year(), anchor.Month(), DaysIn(anchor.Year(), anchor.Month()), 0, 0, 0, 0, anchor.Location())
		return first, last
	}
}

// VisibleDates lists the dates a view renders. Month mode includes the
// leading placeholders from MonthDates.
func VisibleDates(anchor time.Time, mode Mode) []time.Time {
	switch mode {
	case ModeDay:
		return []time.Time{StartOfDay(anchor)}
	case ModeWeek:
		w := WeekDates(anchor)
		return w[:]
	default:
		return MonthDates(anchor)
	}
}

// SameDay reports calendar-day equality, ignoring time of day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// IsToday reports whether date falls on the same calendar day as now.
func IsToday(date, now time.Time) bool {
	return SameDay(date, now)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD in loc (time.Local when nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}

var ErrBadClock = errors.New("grid: clock must be HH:mm")

// ParseClock returns minutes since midnight for an HH:mm value.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
