package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"mairiecal/internal/grid"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

const productID = "-//Mairie//mairiecal//FR"

// Encode renders events as a VCALENDAR. Times are interpreted in loc.
// Events whose date or times cannot be read are logged and left out.
func Encode(events []model.Event, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Agenda du maire")
	cal.SetXWRTimezone(loc.String())

	skipped := 0
	for _, ev := range events {
		if err := addEvent(cal, ev, loc); err != nil {
			skipped++
			appLog.Error("ics encode: skipping event", err, "id", ev.ID)
		}
	}
	appLog.Debug("ics encode completed", "events", len(events)-skipped, "skipped", skipped)
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, ev model.Event, loc *time.Location) error {
	day, err := grid.ParseDate(ev.Date, loc)
	if err != nil {
		return err
	}

	stamp := ev.UpdatedAt
	if stamp.IsZero() {
		stamp = ev.CreatedAt
	}
	if stamp.IsZero() {
		stamp = time.Now()
	}

	// Validate times before the VEVENT is attached to the calendar.
	var start, end time.Time
	if !ev.IsAllDay {
		startMin, err := grid.ParseClock(ev.StartTime)
		if err != nil {
			return err
		}
		endMin, err := grid.ParseClock(ev.EndTime)
		if err != nil || endMin < startMin {
			endMin = startMin
		}
		start = day.Add(time.Duration(startMin) * time.Minute)
		end = day.Add(time.Duration(endMin) * time.Minute)
	}

	ve := cal.AddEvent(ev.ID)
	ve.SetDtStampTime(stamp)
	if !ev.CreatedAt.IsZero() {
		ve.SetCreatedTime(ev.CreatedAt)
	}
	if !ev.UpdatedAt.IsZero() {
		ve.SetModifiedAt(ev.UpdatedAt)
	}
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != nil {
		ve.SetLocation(locationText(ev.Location))
	}

	if ev.IsAllDay {
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}

	if freq := rruleFreq(ev); freq != "" {
		ve.SetProperty(ical.ComponentPropertyRrule, "FREQ="+freq)
	}
	ve.SetProperty(ical.ComponentPropertyStatus, statusToICS(ev.Status))
	ve.SetProperty(ical.ComponentPropertyPriority, strconv.Itoa(priorityToICS(ev.Priority)))
	if ev.Category != "" {
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Category))
	}
	if ev.Color != "" {
		ve.SetProperty(propertyColor, string(ev.Color))
	}

	for _, p := range ev.Participants {
		params := []ical.PropertyParameter{ical.WithCN(p.Name)}
		if p.Confirmed {
			params = append(params, ical.ParticipationStatusAccepted)
		} else {
			params = append(params, ical.ParticipationStatusNeedsAction)
		}
		if p.Email != "" {
			ve.AddAttendee(p.Email, params...)
			continue
		}
		// No address: keep the participant readable with a stable URN.
		ve.AddProperty(ical.ComponentPropertyAttendee, "urn:uuid:"+p.ID, params...)
	}

	for _, m := range ev.Reminders {
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger("-PT" + strconv.Itoa(m) + "M")
		alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
	}
	return nil
}

func rruleFreq(ev model.Event) string {
	if !ev.IsRecurring {
		return ""
	}
	switch ev.RecurringPattern {
	case model.RecurDaily:
		return "DAILY"
	case model.RecurWeekly:
		return "WEEKLY"
	case model.RecurMonthly:
		return "MONTHLY"
	}
	return ""
}

func locationText(l *model.Location) string {
	text := l.Name
	for _, part := range []string{l.Room, l.Address} {
		if part == "" {
			continue
		}
		if text != "" {
			text += ", "
		}
		text += part
	}
	return text
}
