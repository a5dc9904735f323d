package gateway

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"mairiecal/internal/model"
)

// keyPair names one field in both backend conventions. Inbound values are
// read from Primary first, then Alternate; outbound payloads carry both.
type keyPair struct {
	Primary   string
	Alternate string
}

var (
	keyID          = keyPair{"id", "identifiant"}
	keyTitle       = keyPair{"title", "titre"}
	keyDescription = keyPair{"description", "descriptif"}
	keyDate        = keyPair{"date", "jour"}
	keyStartTime   = keyPair{"start_time", "heure_debut"}
	keyEndTime     = keyPair{"end_time", "heure_fin"}
	keyCategory    = keyPair{"category", "categorie"}
	keyPriority    = keyPair{"priority", "priorite"}
	keyColor       = keyPair{"color", "couleur"}
	keyStatus      = keyPair{"status", "statut"}
	keyLocation    = keyPair{"location", "lieu"}
	keyPartList    = keyPair{"participants", "invites"}
	keyAllDay      = keyPair{"is_all_day", "journee_entiere"}
	keyRecurring   = keyPair{"is_recurring", "recurrent"}
	keyPattern     = keyPair{"recurring_pattern", "motif_recurrence"}
	keyNotes       = keyPair{"notes", "remarques"}
	keyReminders   = keyPair{"reminders", "rappels"}
	keyCreatedAt   = keyPair{"created_at", "date_creation"}
	keyUpdatedAt   = keyPair{"updated_at", "date_modification"}

	keyLocName    = keyPair{"name", "nom"}
	keyLocAddress = keyPair{"address", "adresse"}
	keyLocRoom    = keyPair{"room", "salle"}

	keyPartName      = keyPair{"name", "nom"}
	keyPartRole      = keyPair{"role", "fonction"}
	keyPartEmail     = keyPair{"email", "courriel"}
	keyPartConfirmed = keyPair{"confirmed", "confirme"}
)

const (
	defaultStartTime = "09:00"
	defaultEndTime   = "10:00"
)

var errIncomplete = errors.New("record lacks required fields")

// record is one decoded backend JSON object.
type record map[string]any

func (r record) raw(k keyPair) (any, bool) {
	if v, ok := r[k.Primary]; ok && v != nil {
		return v, true
	}
	if k.Alternate != "" {
		if v, ok := r[k.Alternate]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// str reads k with precedence primary, alternate, def. Empty strings count
// as missing.
func (r record) str(k keyPair, def string) string {
	for _, name := range []string{k.Primary, k.Alternate} {
		if name == "" {
			continue
		}
		if s := scalarString(r[name]); s != "" {
			return s
		}
	}
	return def
}

func (r record) boolean(k keyPair) bool {
	v, ok := r.raw(k)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case float64:
		return b != 0
	}
	return false
}

func (r record) ints(k keyPair) []int {
	v, ok := r.raw(k)
	if !ok {
		return []int{}
	}
	items, ok := v.([]any)
	if !ok {
		return []int{}
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		switch n := it.(type) {
		case float64:
			out = append(out, int(n))
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				out = append(out, i)
			}
		}
	}
	return out
}

func (r record) object(k keyPair) (record, bool) {
	v, ok := r.raw(k)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return record(m), ok
}

func (r record) objects(k keyPair) []record {
	v, ok := r.raw(k)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]record, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, record(m))
		}
	}
	return out
}

func (r record) timestamp(k keyPair) time.Time {
	s := r.str(k, "")
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// normalizeDate accepts YYYY-MM-DD and full timestamps, returning the day.
func normalizeDate(s string) (string, bool) {
	if len(s) >= 10 {
		s = s[:10]
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", false
	}
	return s, true
}

// normalizeClock accepts HH:mm, H:mm and HH:mm:ss, returning HH:mm.
func normalizeClock(s, def string) string {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return def
}

// resolveTimes normalizes a start/end pair. A missing end falls back to the
// start; the fixed default slot is used only when both are missing.
func resolveTimes(rawStart, rawEnd string) (string, string) {
	start := normalizeClock(rawStart, "")
	if start == "" {
		return defaultStartTime, normalizeClock(rawEnd, defaultEndTime)
	}
	return start, normalizeClock(rawEnd, start)
}

// toEvent normalizes one backend record into an Event. Each field follows
// the precedence primary key, alternate key, default. Records without an
// id or a parseable date are rejected.
func toEvent(r record) (model.Event, error) {
	id := r.str(keyID, "")
	date, okDate := normalizeDate(r.str(keyDate, ""))
	if id == "" || !okDate {
		return model.Event{}, errIncomplete
	}

	start, end := resolveTimes(r.str(keyStartTime, ""), r.str(keyEndTime, ""))
	ev := model.Event{
		ID:               id,
		Title:            r.str(keyTitle, ""),
		Description:      r.str(keyDescription, ""),
		Date:             date,
		StartTime:        start,
		EndTime:          end,
		Category:         model.ParseCategory(r.str(keyCategory, "")),
		Priority:         model.ParsePriority(r.str(keyPriority, "")),
		Color:            model.ParseColor(r.str(keyColor, "")),
		Status:           model.ParseStatus(r.str(keyStatus, "")),
		IsAllDay:         r.boolean(keyAllDay),
		IsRecurring:      r.boolean(keyRecurring),
		Notes:            r.str(keyNotes, ""),
		Reminders:        r.ints(keyReminders),
		Participants:     []model.Participant{},
		CreatedAt:        r.timestamp(keyCreatedAt),
		UpdatedAt:        r.timestamp(keyUpdatedAt),
		RecurringPattern: model.RecurNone,
	}
	if ev.IsRecurring {
		ev.RecurringPattern = model.ParseRecurringPattern(r.str(keyPattern, ""))
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = ev.CreatedAt
	}

	if loc, ok := r.object(keyLocation); ok {
		ev.Location = &model.Location{
			Name:    loc.str(keyLocName, ""),
			Address: loc.str(keyLocAddress, ""),
			Room:    loc.str(keyLocRoom, ""),
		}
	} else if name := r.str(keyLocation, ""); name != "" {
		// Some endpoints send the location as a bare string.
		ev.Location = &model.Location{Name: name}
	}

	for i, p := range r.objects(keyPartList) {
		pid := p.str(keyID, "")
		if pid == "" {
			pid = id + "-p" + strconv.Itoa(i+1)
		}
		ev.Participants = append(ev.Participants, model.Participant{
			ID:        pid,
			Name:      p.str(keyPartName, ""),
			Role:      p.str(keyPartRole, ""),
			Email:     p.str(keyPartEmail, ""),
			Confirmed: p.boolean(keyPartConfirmed),
		})
	}

	return ev, nil
}

// payload is an outbound JSON body.
type payload map[string]any

// set writes v under both names of k.
func (p payload) set(k keyPair, v any) {
	p[k.Primary] = v
	if k.Alternate != "" {
		p[k.Alternate] = v
	}
}

func locationPayload(l model.Location) payload {
	p := payload{}
	p.set(keyLocName, l.Name)
	p.set(keyLocAddress, l.Address)
	p.set(keyLocRoom, l.Room)
	return p
}

func participantPayload(id, name, role, email string, confirmed bool) payload {
	p := payload{}
	if id != "" {
		p.set(keyID, id)
	}
	p.set(keyPartName, name)
	p.set(keyPartRole, role)
	p.set(keyPartEmail, email)
	p.set(keyPartConfirmed, confirmed)
	return p
}

// formPayload builds the create body from a validated form.
func formPayload(f model.FormData) payload {
	p := payload{}
	p.set(keyTitle, f.Title)
	p.set(keyDescription, f.Description)
	p.set(keyDate, f.Date)
	start, end := resolveTimes(f.StartTime, f.EndTime)
	p.set(keyStartTime, start)
	p.set(keyEndTime, end)
	p.set(keyCategory, string(orDefault(f.Category, model.CategoryOther)))
	p.set(keyPriority, string(orDefault(f.Priority, model.PriorityMedium)))
	p.set(keyColor, string(orDefault(f.Color, model.ColorBlue)))
	if f.Location != nil {
		p.set(keyLocation, locationPayload(*f.Location))
	}
	parts := make([]payload, 0, len(f.Participants))
	for _, in := range f.Participants {
		parts = append(parts, participantPayload("", in.Name, in.Role, in.Email, false))
	}
	p.set(keyPartList, parts)
	p.set(keyAllDay, f.IsAllDay)
	p.set(keyRecurring, f.IsRecurring)
	if f.IsRecurring && f.RecurringPattern != model.RecurNone {
		p.set(keyPattern, string(f.RecurringPattern))
	}
	p.set(keyNotes, f.Notes)
	reminders := f.Reminders
	if reminders == nil {
		reminders = []int{}
	}
	p.set(keyReminders, reminders)
	return p
}

// patchPayload carries only the fields set on the patch.
func patchPayload(pt model.EventPatch) payload {
	p := payload{}
	if pt.Title != nil {
		p.set(keyTitle, *pt.Title)
	}
	if pt.Description != nil {
		p.set(keyDescription, *pt.Description)
	}
	if pt.Date != nil {
		p.set(keyDate, *pt.Date)
	}
	if pt.StartTime != nil {
		p.set(keyStartTime, *pt.StartTime)
	}
	if pt.EndTime != nil {
		p.set(keyEndTime, *pt.EndTime)
	}
	if pt.Category != nil {
		p.set(keyCategory, string(model.ParseCategory(string(*pt.Category))))
	}
	if pt.Priority != nil {
		p.set(keyPriority, string(model.ParsePriority(string(*pt.Priority))))
	}
	if pt.Color != nil {
		p.set(keyColor, string(model.ParseColor(string(*pt.Color))))
	}
	if pt.Status != nil {
		p.set(keyStatus, string(model.ParseStatus(string(*pt.Status))))
	}
	if pt.Location != nil {
		p.set(keyLocation, locationPayload(*pt.Location))
	}
	if pt.Participants != nil {
		parts := make([]payload, 0, len(*pt.Participants))
		for _, in := range *pt.Participants {
			parts = append(parts, participantPayload(in.ID, in.Name, in.Role, in.Email, in.Confirmed))
		}
		p.set(keyPartList, parts)
	}
	if pt.IsAllDay != nil {
		p.set(keyAllDay, *pt.IsAllDay)
	}
	if pt.IsRecurring != nil {
		p.set(keyRecurring, *pt.IsRecurring)
	}
	if pt.RecurringPattern != nil {
		p.set(keyPattern, string(*pt.RecurringPattern))
	}
	if pt.Notes != nil {
		p.set(keyNotes, *pt.Notes)
	}
	if pt.Reminders != nil {
		p.set(keyReminders, *pt.Reminders)
	}
	return p
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
