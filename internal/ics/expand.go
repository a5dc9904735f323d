package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"mairiecal/internal/grid"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location is the zone event dates and times are read in. Nil means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the occurrence start times, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps each recurring event. Zero uses the default.
	MaxOccurrencesPerEvent int
}

// Occurrence is one dated instance of a schedule event.
type Occurrence struct {
	EventID     string       `json:"eventId"`
	InstanceKey string       `json:"instanceKey"`
	Title       string       `json:"title"`
	Date        string       `json:"date"`
	StartTime   string       `json:"startTime"`
	EndTime     string       `json:"endTime"`
	AllDay      bool         `json:"isAllDay"`
	Status      model.Status `json:"status"`
	Color       model.Color  `json:"color"`
	Start       time.Time    `json:"start"`
	End         time.Time    `json:"end"`
}

// ExpandResult wraps the occurrences and the ids that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences turns events into dated occurrences within the range.
// Recurring events repeat from their own date with their pattern; others
// occur once. Results are ordered by start time.
func ExpandOccurrences(events []model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]Occurrence, 0)
	for _, ev := range events {
		start, end, err := eventSpan(ev, cfg.Location)
		if err != nil {
			appLog.Error("expand: skipping event", err, "id", ev.ID)
			continue
		}

		freq, recurring := frequency(ev)
		if !recurring {
			if !start.Before(cfg.RangeStart) && !start.After(cfg.RangeEnd) {
				all = append(all, makeOccurrence(ev, start, end))
			}
			continue
		}

		r, err := rrule.NewRRule(rrule.ROption{Freq: freq, Dtstart: start})
		if err != nil {
			appLog.Error("expand: bad recurrence", err, "id", ev.ID)
			continue
		}
		times := r.Between(cfg.RangeStart.In(cfg.Location), cfg.RangeEnd.In(cfg.Location), true)
		if len(times) > cfg.MaxOccurrencesPerEvent {
			times = times[:cfg.MaxOccurrencesPerEvent]
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
			appLog.Warn("expand: truncated occurrences", "id", ev.ID, "cap", cfg.MaxOccurrencesPerEvent)
		}

		spanDays := 0
		if !grid.SameDay(start, end) {
			spanDays = 1
		}
		for _, t := range times {
			occEnd := time.Date(t.Year(), t.Month(), t.Day()+spanDays, end.Hour(), end.Minute(), 0, 0, t.Location())
			all = append(all, makeOccurrence(ev, t, occEnd))
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	result.Occurrences = all
	return result, nil
}

func frequency(ev model.Event) (rrule.Frequency, bool) {
	if !ev.IsRecurring {
		return 0, false
	}
	switch ev.RecurringPattern {
	case model.RecurDaily:
		return rrule.DAILY, true
	case model.RecurWeekly:
		return rrule.WEEKLY, true
	case model.RecurMonthly:
		return rrule.MONTHLY, true
	}
	return 0, false
}

// eventSpan resolves an event's date and clock strings in loc. All-day
// events span the whole day.
func eventSpan(ev model.Event, loc *time.Location) (time.Time, time.Time, error) {
	day, err := grid.ParseDate(ev.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if ev.IsAllDay {
		return day, day.AddDate(0, 0, 1), nil
	}
	startMin, err := grid.ParseClock(ev.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endMin, err := grid.ParseClock(ev.EndTime)
	if err != nil || endMin < startMin {
		endMin = startMin
	}
	return atClock(day, startMin), atClock(day, endMin), nil
}

// atClock is the wall-clock time min minutes after midnight on day, so
// DST transitions shift the instant rather than the displayed time.
func atClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

func makeOccurrence(ev model.Event, start, end time.Time) Occurrence {
	occ := Occurrence{
		EventID:   ev.ID,
		Title:     ev.Title,
		Date:      grid.FormatDate(start),
		StartTime: start.Format(grid.ClockLayout),
		EndTime:   end.Format(grid.ClockLayout),
		AllDay:    ev.IsAllDay,
		Status:    ev.Status,
		Color:     ev.Color,
		Start:     start,
		End:       end,
	}
	if ev.IsAllDay {
		occ.StartTime, occ.EndTime = "00:00", "23:59"
	}
	occ.InstanceKey = ev.ID + "@" + start.Format(time.RFC3339)
	return occ
}
