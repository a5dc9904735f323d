package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"mairiecal/internal/grid"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

// ParsedEvent is a VEVENT as read from a calendar file, before it is
// mapped onto the schedule model.
type ParsedEvent struct {
	Source Source

	UID         string
	Summary     string
	Description string
	Location    string
	Categories  []string
	Priority    int
	Status      string
	Color       string
	Attendees   []ParsedAttendee
	// Reminders are VALARM offsets in minutes before the start.
	Reminders []int

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	Created  time.Time
	Modified time.Time
}

type ParsedAttendee struct {
	Name     string
	Email    string
	Role     string
	Accepted bool
}

const propertyColor = ical.ComponentProperty("X-MAIRIE-COLOR")

// ParseICS parses a calendar payload. VEVENTs that cannot be read are
// logged and skipped. Floating and date-only values are read in loc.
func ParseICS(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.UID = strings.TrimSpace(uidProp.Value)

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = strings.ToUpper(strings.TrimSpace(p.Value))
	}
	if p := ve.GetProperty(ical.ComponentPropertyPriority); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Priority = n
		}
	}
	if p := ve.GetProperty(propertyColor); p != nil {
		out.Color = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.Categories = append(out.Categories, c)
			}
		}
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		out.Attendees = append(out.Attendees, parseAttendee(p))
	}

	for _, alarm := range ve.Alarms() {
		trig := alarm.GetProperty(ical.ComponentPropertyTrigger)
		if trig == nil {
			continue
		}
		if m, ok := reminderMinutes(trig.Value); ok {
			out.Reminders = append(out.Reminders, m)
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parseICSTime(dtStart.Value, loc)
		if err != nil {
			return out, err
		}
		out.Start = start
		out.End = start.AddDate(0, 0, 1)
		if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
			if end, err := parseICSTime(p.Value, loc); err == nil && end.After(start) {
				out.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		out.End = start
		if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
			out.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtstamp); p != nil {
		if t, err := parseICSTime(p.Value, time.UTC); err == nil {
			out.Created = t
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		if t, err := parseICSTime(p.Value, time.UTC); err == nil {
			out.Created = t
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyLastModified); p != nil {
		if t, err := parseICSTime(p.Value, time.UTC); err == nil {
			out.Modified = t
		}
	}
	return out, nil
}

// reminderMinutes reads a relative TRIGGER duration ("-PT15M", "-P1DT2H")
// as minutes before the start. Absolute triggers and triggers after the
// start are rejected.
func reminderMinutes(v string) (int, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	neg := strings.HasPrefix(v, "-")
	v = strings.TrimLeft(v, "+-")
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	v = v[1:]

	total, n, inTime, digits := 0, 0, false, false
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			n = n*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, false
		}
		switch {
		case r == 'W' && !inTime:
			total += n * 7 * 24 * 60
		case r == 'D' && !inTime:
			total += n * 24 * 60
		case r == 'H' && inTime:
			total += n * 60
		case r == 'M' && inTime:
			total += n
		case r == 'S' && inTime:
			total += n / 60
		default:
			return 0, false
		}
		n, digits = 0, false
	}
	if digits || (!neg && total != 0) {
		return 0, false
	}
	return total, true
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseAttendee(p *ical.IANAProperty) ParsedAttendee {
	a := ParsedAttendee{}
	addr := strings.TrimSpace(p.Value)
	if strings.HasPrefix(strings.ToLower(addr), "mailto:") {
		a.Email = addr[len("mailto:"):]
	}
	if vs := p.ICalParameters["CN"]; len(vs) > 0 {
		a.Name = vs[0]
	}
	if vs := p.ICalParameters["ROLE"]; len(vs) > 0 && !strings.HasSuffix(strings.ToUpper(vs[0]), "-PARTICIPANT") {
		a.Role = vs[0]
	}
	if vs := p.ICalParameters["PARTSTAT"]; len(vs) > 0 {
		a.Accepted = strings.EqualFold(vs[0], "ACCEPTED")
	}
	if a.Name == "" {
		a.Name = a.Email
	}
	return a
}

// parseICSTime reads DATE and DATE-TIME values. UTC values keep their
// zone; floating and date-only values are placed in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

// ToEvents maps parsed VEVENTs onto schedule events in loc. The UID becomes
// the event id. Events spanning midnight are cut at the end of their first
// day since schedule entries are single-day.
func ToEvents(parsed []ParsedEvent, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Event, 0, len(parsed))
	for _, p := range parsed {
		start := p.Start.In(loc)
		end := p.End.In(loc)

		ev := model.Event{
			ID:          p.UID,
			Title:       strings.TrimSpace(p.Summary),
			Description: strings.TrimSpace(p.Description),
			Date:        grid.FormatDate(start),
			Category:    model.CategoryOther,
			Priority:    priorityFromICS(p.Priority),
			Color:       model.ParseColor(p.Color),
			Status:      statusFromICS(p.Status),
			IsAllDay:    p.AllDay,
			CreatedAt:   p.Created,
			UpdatedAt:   p.Modified,
		}
		if ev.Title == "" {
			ev.Title = "(sans titre)"
		}
		if ev.Description == "" {
			ev.Description = ev.Title
		}
		if len(p.Categories) > 0 {
			ev.Category = model.ParseCategory(p.Categories[0])
		}

		if p.AllDay {
			ev.StartTime, ev.EndTime = "00:00", "23:59"
		} else {
			ev.StartTime = start.Format(grid.ClockLayout)
			ev.EndTime = end.Format(grid.ClockLayout)
			if !grid.SameDay(start, end) {
				ev.EndTime = "23:59"
			}
		}

		if place := strings.TrimSpace(p.Location); place != "" {
			ev.Location = &model.Location{Name: place}
		}

		ev.Participants = make([]model.Participant, 0, len(p.Attendees))
		for i, a := range p.Attendees {
			ev.Participants = append(ev.Participants, model.Participant{
				ID:        p.UID + "-p" + strconv.Itoa(i+1),
				Name:      a.Name,
				Role:      a.Role,
				Email:     a.Email,
				Confirmed: a.Accepted,
			})
		}
		ev.Reminders = append([]int{}, p.Reminders...)

		if p.RawRRule != "" {
			ev.IsRecurring = true
			ev.RecurringPattern = patternFromRRule(p.RawRRule)
		}

		if ev.UpdatedAt.IsZero() {
			ev.UpdatedAt = ev.CreatedAt
		}
		out = append(out, ev)
	}
	return out
}

func patternFromRRule(raw string) model.RecurringPattern {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		appLog.Warn("ics: unreadable RRULE", "rrule", raw, "error", err)
		return model.RecurNone
	}
	switch opt.Freq {
	case rrule.DAILY:
		return model.RecurDaily
	case rrule.WEEKLY:
		return model.RecurWeekly
	case rrule.MONTHLY:
		return model.RecurMonthly
	default:
		return model.RecurNone
	}
}

// priorityFromICS maps the RFC 5545 1..9 scale, 0 meaning undefined.
func priorityFromICS(n int) model.Priority {
	switch {
	case n <= 0:
		return model.PriorityMedium
	case n <= 2:
		return model.PriorityUrgent
	case n <= 4:
		return model.PriorityHigh
	case n == 5:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func priorityToICS(p model.Priority) int {
	switch p {
	case model.PriorityUrgent:
		return 1
	case model.PriorityHigh:
		return 3
	case model.PriorityLow:
		return 9
	default:
		return 5
	}
}

func statusFromICS(s string) model.Status {
	switch s {
	case "CONFIRMED":
		return model.StatusConfirmed
	case "CANCELLED":
		return model.StatusCancelled
	default:
		return model.StatusPending
	}
}

func statusToICS(s model.Status) string {
	switch s {
	case model.StatusConfirmed:
		return "CONFIRMED"
	case model.StatusCancelled:
		return "CANCELLED"
	default:
		return "TENTATIVE"
	}
}
