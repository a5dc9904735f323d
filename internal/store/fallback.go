package store

import (
	"context"
	"time"

	"mairiecal/internal/grid"
	"mairiecal/internal/model"
)

// Fallback supplies the collection used when the backend is unreachable.
type Fallback interface {
	Events(ctx context.Context, now time.Time) ([]model.Event, error)
}

// FallbackFunc adapts a function to Fallback.
type FallbackFunc func(ctx context.Context, now time.Time) ([]model.Event, error)

func (f FallbackFunc) Events(ctx context.Context, now time.Time) ([]model.Event, error) {
	return f(ctx, now)
}

// DemoFallback serves DemoEvents.
var DemoFallback = FallbackFunc(func(_ context.Context, now time.Time) ([]model.Event, error) {
	return DemoEvents(now), nil
})

// DemoEvents is the fixed demonstration schedule, laid out around now so
// the current week view is never empty.
func DemoEvents(now time.Time) []model.Event {
	day := func(offset int) string {
		return grid.FormatDate(grid.StartOfDay(now).AddDate(0, 0, offset))
	}

	events := []model.Event{
		{
			ID:          "demo-1",
			Title:       "Réunion des adjoints",
			Description: "Point hebdomadaire avec les adjoints au maire",
			Date:        day(0),
			StartTime:   "09:00",
			EndTime:     "10:30",
			Category:    model.CategoryMeeting,
			Priority:    model.PriorityHigh,
			Color:       model.ColorBlue,
			Status:      model.StatusConfirmed,
			Location:    &model.Location{Name: "Hôtel de ville", Room: "Salle des adjoints"},
			Participants: []model.Participant{
				{ID: "demo-1-p1", Name: "Premier adjoint", Role: "Finances", Confirmed: true},
				{ID: "demo-1-p2", Name: "Adjointe", Role: "Affaires scolaires", Confirmed: false},
			},
			IsRecurring:      true,
			RecurringPattern: model.RecurWeekly,
			Reminders:        []int{15},
		},
		{
			ID:          "demo-2",
			Title:       "Rendez-vous avec l'association des commerçants",
			Description: "Préparation du marché de Noël",
			Date:        day(0),
			StartTime:   "14:30",
			EndTime:     "15:30",
			Category:    model.CategoryAppointment,
			Priority:    model.PriorityMedium,
			Color:       model.ColorGreen,
			Status:      model.StatusPending,
			Location:    &model.Location{Name: "Hôtel de ville", Room: "Bureau du maire"},
			Reminders:   []int{30},
		},
		{
			ID:          "demo-3",
			Title:       "Inauguration de la médiathèque",
			Description: "Coupe du ruban et discours",
			Date:        day(1),
			StartTime:   "11:00",
			EndTime:     "12:30",
			Category:    model.CategoryInauguration,
			Priority:    model.PriorityHigh,
			Color:       model.ColorPurple,
			Status:      model.StatusConfirmed,
			Location:    &model.Location{Name: "Médiathèque municipale", Address: "12 place de la République"},
			Reminders:   []int{60, 15},
		},
		{
			ID:          "demo-4",
			Title:       "Visite de l'école Jules Ferry",
			Description: "Visite des nouveaux locaux",
			Date:        day(2),
			StartTime:   "10:00",
			EndTime:     "11:00",
			Category:    model.CategoryVisit,
			Priority:    model.PriorityMedium,
			Color:       model.ColorOrange,
			Status:      model.StatusConfirmed,
			Location:    &model.Location{Name: "École Jules Ferry", Address: "3 rue des Lilas"},
		},
		{
			ID:          "demo-5",
			Title:       "Conseil municipal",
			Description: "Vote du budget primitif",
			Date:        day(3),
			StartTime:   "18:00",
			EndTime:     "21:00",
			Category:    model.CategoryCouncil,
			Priority:    model.PriorityUrgent,
			Color:       model.ColorRed,
			Status:      model.StatusConfirmed,
			Location:    &model.Location{Name: "Hôtel de ville", Room: "Salle du conseil"},
			Notes:       "Ordre du jour envoyé aux élus",
			Reminders:   []int{1440, 60},
		},
		{
			ID:          "demo-6",
			Title:       "Cérémonie commémorative",
			Description: "Dépôt de gerbe au monument aux morts",
			Date:        day(5),
			StartTime:   "10:30",
			EndTime:     "11:15",
			Category:    model.CategoryCeremony,
			Priority:    model.PriorityHigh,
			Color:       model.ColorGray,
			Status:      model.StatusPending,
			Location:    &model.Location{Name: "Monument aux morts"},
		},
		{
			ID:          "demo-7",
			Title:       "Réception des nouveaux habitants",
			Description: "Accueil et présentation des services municipaux",
			Date:        day(-1),
			StartTime:   "18:30",
			EndTime:     "20:00",
			Category:    model.CategoryReception,
			Priority:    model.PriorityLow,
			Color:       model.ColorYellow,
			Status:      model.StatusCancelled,
			Location:    &model.Location{Name: "Salle des fêtes"},
		},
	}

	for i := range events {
		if events[i].Participants == nil {
			events[i].Participants = []model.Participant{}
		}
		if events[i].Reminders == nil {
			events[i].Reminders = []int{}
		}
		events[i].CreatedAt = now
		events[i].UpdatedAt = now
	}
	return events
}
