package model

import (
	"strings"
	"time"
)

// Category classifies an event on the mayor's schedule.
type Category string

const (
	CategoryMeeting      Category = "meeting"
	CategoryCeremony     Category = "ceremony"
	CategoryCouncil      Category = "council"
	CategoryInauguration Category = "inauguration"
	CategoryReception    Category = "reception"
	CategoryAppointment  Category = "appointment"
	CategoryVisit        Category = "visit"
	CategoryOther        Category = "other"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
	ColorYellow Color = "yellow"
	ColorPink   Color = "pink"
	ColorGray   Color = "gray"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// RecurringPattern is a label only; the store never expands it.
type RecurringPattern string

const (
	RecurNone    RecurringPattern = ""
	RecurDaily   RecurringPattern = "daily"
	RecurWeekly  RecurringPattern = "weekly"
	RecurMonthly RecurringPattern = "monthly"
)

// Aliases accepted on input. The backend and older forms use French values.
var (
	categoryAliases = map[string]Category{
		"meeting": CategoryMeeting, "reunion": CategoryMeeting, "réunion": CategoryMeeting,
		"ceremony": CategoryCeremony, "ceremonie": CategoryCeremony, "cérémonie": CategoryCeremony,
		"council": CategoryCouncil, "conseil": CategoryCouncil,
		"inauguration": CategoryInauguration,
		"reception":    CategoryReception, "réception": CategoryReception,
		"appointment": CategoryAppointment, "rendez-vous": CategoryAppointment, "rdv": CategoryAppointment,
		"visit": CategoryVisit, "visite": CategoryVisit,
		"other": CategoryOther, "autre": CategoryOther,
	}
	priorityAliases = map[string]Priority{
		"low": PriorityLow, "basse": PriorityLow,
		"medium": PriorityMedium, "moyenne": PriorityMedium, "normale": PriorityMedium,
		"high": PriorityHigh, "haute": PriorityHigh,
		"urgent": PriorityUrgent, "urgente": PriorityUrgent,
	}
	colorAliases = map[string]Color{
		"blue": ColorBlue, "bleu": ColorBlue,
		"green": ColorGreen, "vert": ColorGreen,
		"red": ColorRed, "rouge": ColorRed,
		"purple": ColorPurple, "violet": ColorPurple,
		"orange": ColorOrange,
		"yellow": ColorYellow, "jaune": ColorYellow,
		"pink": ColorPink, "rose": ColorPink,
		"gray": ColorGray, "grey": ColorGray, "gris": ColorGray,
	}
	statusAliases = map[string]Status{
		"confirmed": StatusConfirmed, "confirme": StatusConfirmed, "confirmé": StatusConfirmed,
		"pending": StatusPending, "en_attente": StatusPending, "en attente": StatusPending,
		"cancelled": StatusCancelled, "canceled": StatusCancelled, "annule": StatusCancelled, "annulé": StatusCancelled,
	}
	patternAliases = map[string]RecurringPattern{
		"daily": RecurDaily, "quotidien": RecurDaily, "quotidienne": RecurDaily,
		"weekly": RecurWeekly, "hebdomadaire": RecurWeekly,
		"monthly": RecurMonthly, "mensuel": RecurMonthly, "mensuelle": RecurMonthly,
	}
)

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ParseCategory returns the category for s, or CategoryOther.
func ParseCategory(s string) Category {
	if c, ok := categoryAliases[key(s)]; ok {
		return c
	}
	return CategoryOther
}

// ParsePriority returns the priority for s, or PriorityMedium.
func ParsePriority(s string) Priority {
	if p, ok := priorityAliases[key(s)]; ok {
		return p
	}
	return PriorityMedium
}

// ParseColor returns the color for s, or ColorBlue.
func ParseColor(s string) Color {
	if c, ok := colorAliases[key(s)]; ok {
		return c
	}
	return ColorBlue
}

// ParseStatus returns the status for s, or StatusPending.
func ParseStatus(s string) Status {
	if st, ok := statusAliases[key(s)]; ok {
		return st
	}
	return StatusPending
}

// ParseRecurringPattern returns the pattern for s, or RecurNone.
func ParseRecurringPattern(s string) RecurringPattern {
	return patternAliases[key(s)]
}

// LookupStatus is ParseStatus without the default; ok is false for unknown input.
func LookupStatus(s string) (Status, bool) {
	st, ok := statusAliases[key(s)]
	return st, ok
}

type Location struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Room    string `json:"room,omitempty"`
}

type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

// Event is a single-day entry on the mayor's schedule.
//
// Date is YYYY-MM-DD; StartTime/EndTime are zero-padded HH:mm so that
// string comparison orders them chronologically.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	Category Category `json:"category"`
	Priority Priority `json:"priority"`
	Color    Color    `json:"color"`
	Status   Status   `json:"status"`

	Location     *Location     `json:"location,omitempty"`
	Participants []Participant `json:"participants"`

	IsAllDay         bool             `json:"isAllDay"`
	IsRecurring      bool             `json:"isRecurring"`
	RecurringPattern RecurringPattern `json:"recurringPattern,omitempty"`

	Notes     string `json:"notes,omitempty"`
	Reminders []int  `json:"reminders"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers cannot mutate store-owned slices.
func (e Event) Clone() Event {
	out := e
	if e.Location != nil {
		loc := *e.Location
		out.Location = &loc
	}
	if e.Participants != nil {
		out.Participants = append([]Participant(nil), e.Participants...)
	}
	if e.Reminders != nil {
		out.Reminders = append([]int(nil), e.Reminders...)
	}
	return out
}

// Filter narrows Store.List. Zero fields match everything.
type Filter struct {
	Query    string
	Category Category
	Priority Priority
}

// Matches reports whether e satisfies f. Query is a case-insensitive
// substring match against title or description.
func (f Filter) Matches(e Event) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Priority != "" && e.Priority != f.Priority {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), q) ||
		strings.Contains(strings.ToLower(e.Description), q)
}
