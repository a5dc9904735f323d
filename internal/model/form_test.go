package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() FormData {
	return FormData{
		Title:       "Conseil municipal",
		Description: "Séance ordinaire",
		Date:        "2025-03-12",
		StartTime:   "14:30",
		EndTime:     "16:00",
		Category:    CategoryCouncil,
		Priority:    PriorityHigh,
		Color:       ColorPurple,
		Participants: []ParticipantInput{
			{Name: "Marie Dupont", Role: "Adjointe", Email: "marie@mairie.fr"},
		},
		Reminders: []int{15},
	}
}

func TestFormValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*FormData)
		wantMsg string
	}{
		{name: "valid"},
		{name: "blank title", mutate: func(f *FormData) { f.Title = "   " }, wantMsg: "title is required"},
		{name: "missing description", mutate: func(f *FormData) { f.Description = "" }, wantMsg: "description is required"},
		{name: "bad date", mutate: func(f *FormData) { f.Date = "12/03/2025" }, wantMsg: "date must match 2006-01-02"},
		{name: "bad clock", mutate: func(f *FormData) { f.StartTime = "25:00" }, wantMsg: "startTime must be HH:mm"},
		{name: "bad email", mutate: func(f *FormData) { f.Participants[0].Email = "nope" }, wantMsg: "participants[0].email must be a valid email"},
		{name: "negative reminder", mutate: func(f *FormData) { f.Reminders = []int{-5} }, wantMsg: "must be >= 0"},
		{name: "end before start", mutate: func(f *FormData) { f.EndTime = "09:00" }, wantMsg: "endTime must not be before startTime"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := validForm()
			if tc.mutate != nil {
				tc.mutate(&f)
			}
			err := f.Validate()
			if tc.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidForm)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestFormNormalize(t *testing.T) {
	t.Parallel()

	f := FormData{
		Title:            "  Inauguration  ",
		StartTime:        "9:00",
		EndTime:          " 10:30 ",
		Category:         "Conseil",
		Priority:         "urgente",
		Color:            "gris",
		RecurringPattern: "hebdomadaire",
		Participants:     []ParticipantInput{{Name: " Paul ", Email: " paul@mairie.fr "}},
	}
	f.Normalize()

	assert.Equal(t, "Inauguration", f.Title)
	assert.Equal(t, "09:00", f.StartTime)
	assert.Equal(t, "10:30", f.EndTime)
	assert.Equal(t, CategoryCouncil, f.Category)
	assert.Equal(t, PriorityUrgent, f.Priority)
	assert.Equal(t, ColorGray, f.Color)
	assert.Equal(t, RecurNone, f.RecurringPattern, "pattern is dropped when not recurring")
	assert.Equal(t, "Paul", f.Participants[0].Name)
	assert.Equal(t, "paul@mairie.fr", f.Participants[0].Email)

	f.IsRecurring = true
	f.RecurringPattern = "mensuel"
	f.Normalize()
	assert.Equal(t, RecurMonthly, f.RecurringPattern)
}

func TestEventPatch(t *testing.T) {
	t.Parallel()

	ev := Event{
		ID:               "evt-1",
		Title:            "Visite école",
		Description:      "Visite",
		Date:             "2025-03-12",
		StartTime:        "10:00",
		EndTime:          "11:00",
		Status:           StatusPending,
		IsRecurring:      true,
		RecurringPattern: RecurWeekly,
	}

	title := " Visite du collège "
	start := "9:30"
	status := Status("annulé")
	recurring := false
	p := EventPatch{Title: &title, StartTime: &start, Status: &status, IsRecurring: &recurring}
	require.NoError(t, p.Validate())

	p.Apply(&ev)
	assert.Equal(t, "Visite du collège", ev.Title)
	assert.Equal(t, "09:30", ev.StartTime)
	assert.Equal(t, "11:00", ev.EndTime)
	assert.Equal(t, StatusCancelled, ev.Status)
	assert.False(t, ev.IsRecurring)
	assert.Equal(t, RecurNone, ev.RecurringPattern)
	assert.Equal(t, "evt-1", ev.ID)

	blank := "  "
	bogus := Status("bogus")
	badDate := "2025-13-01"
	err := EventPatch{Title: &blank, Status: &bogus, Date: &badDate}.Validate()
	require.ErrorIs(t, err, ErrInvalidForm)
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "status must be one of")
	assert.Contains(t, err.Error(), "date must match")
}

func TestFormFromEvent(t *testing.T) {
	t.Parallel()

	ev := Event{
		ID:          "evt-9",
		Title:       "Réception",
		Description: "Accueil des délégations",
		Date:        "2025-04-02",
		StartTime:   "18:00",
		EndTime:     "20:00",
		Category:    CategoryReception,
		Priority:    PriorityMedium,
		Color:       ColorOrange,
		Status:      StatusConfirmed,
		Location:    &Location{Name: "Salle des fêtes"},
		Participants: []Participant{
			{ID: "p1", Name: "Jean", Role: "Protocole", Email: "jean@mairie.fr", Confirmed: true},
		},
		Reminders: []int{30, 60},
	}

	f := FormFromEvent(ev)
	require.NoError(t, f.Validate())
	assert.Equal(t, ev.Title, f.Title)
	assert.Equal(t, ev.Date, f.Date)
	assert.Equal(t, []ParticipantInput{{Name: "Jean", Role: "Protocole", Email: "jean@mairie.fr"}}, f.Participants)
	assert.Equal(t, []int{30, 60}, f.Reminders)

	f.Location.Name = "Hôtel de ville"
	f.Reminders[0] = 5
	assert.Equal(t, "Salle des fêtes", ev.Location.Name)
	assert.Equal(t, 30, ev.Reminders[0])
}

func TestParseFallbacks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryOther, ParseCategory("garden party"))
	assert.Equal(t, PriorityMedium, ParsePriority(""))
	assert.Equal(t, ColorBlue, ParseColor("turquoise"))
	assert.Equal(t, StatusPending, ParseStatus("unknown"))
	_, ok := LookupStatus("unknown")
	assert.False(t, ok)
}

func TestFilterMatches(t *testing.T) {
	t.Parallel()

	ev := Event{Title: "Conseil municipal", Description: "Budget 2025", Category: CategoryCouncil, Priority: PriorityHigh}

	assert.True(t, Filter{}.Matches(ev))
	assert.True(t, Filter{Query: "BUDGET"}.Matches(ev))
	assert.True(t, Filter{Category: CategoryCouncil, Priority: PriorityHigh}.Matches(ev))
	assert.False(t, Filter{Category: CategoryVisit}.Matches(ev))
	assert.False(t, Filter{Query: "mariage"}.Matches(ev))
}
