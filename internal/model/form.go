package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidForm wraps every form validation failure.
var ErrInvalidForm = errors.New("invalid event form")

// ParticipantInput is a participant as typed into the event form.
type ParticipantInput struct {
	Name  string `json:"name" validate:"required"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// FormData is the event creation/edition form submitted by the renderer.
type FormData struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`

	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"omitempty,clock"`
	EndTime   string `json:"endTime" validate:"omitempty,clock"`

	Category Category `json:"category" validate:"omitempty,oneof=meeting ceremony council inauguration reception appointment visit other"`
	Priority Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Color    Color    `json:"color" validate:"omitempty,oneof=blue green red purple orange yellow pink gray"`

	Location     *Location          `json:"location,omitempty"`
	Participants []ParticipantInput `json:"participants" validate:"dive"`

	IsAllDay         bool             `json:"isAllDay"`
	IsRecurring      bool             `json:"isRecurring"`
	RecurringPattern RecurringPattern `json:"recurringPattern,omitempty" validate:"omitempty,oneof=daily weekly monthly"`

	Notes     string `json:"notes,omitempty"`
	Reminders []int  `json:"reminders" validate:"dive,gte=0"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			return clockPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Normalize trims text fields, zero-pads clock values ("9:00" -> "09:00")
// and canonicalizes enum aliases. Invalid clock strings are left as-is so
// Validate can report them.
func (f *FormData) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Date = strings.TrimSpace(f.Date)
	f.StartTime = normalizeClock(f.StartTime)
	f.EndTime = normalizeClock(f.EndTime)
	f.Notes = strings.TrimSpace(f.Notes)
	if f.Category != "" {
		f.Category = ParseCategory(string(f.Category))
	}
	if f.Priority != "" {
		f.Priority = ParsePriority(string(f.Priority))
	}
	if f.Color != "" {
		f.Color = ParseColor(string(f.Color))
	}
	if f.RecurringPattern != "" {
		f.RecurringPattern = ParseRecurringPattern(string(f.RecurringPattern))
	}
	if !f.IsRecurring {
		f.RecurringPattern = RecurNone
	}
	for i := range f.Participants {
		f.Participants[i].Name = strings.TrimSpace(f.Participants[i].Name)
		f.Participants[i].Email = strings.TrimSpace(f.Participants[i].Email)
	}
}

// Validate normalizes the form and checks it. Title and description must be
// non-blank and the start time must not be after the end time.
func (f *FormData) Validate() error {
	f.Normalize()

	if err := formValidator().Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidForm, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	if f.StartTime != "" && f.EndTime != "" && f.StartTime > f.EndTime {
		return fmt.Errorf("%w: endTime must not be before startTime", ErrInvalidForm)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "datetime":
		return field + " must match " + fe.Param()
	case "clock":
		return field + " must be HH:mm"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "email":
		return field + " must be a valid email"
	case "max":
		return field + " is too long (max " + fe.Param() + ")"
	case "gte":
		return field + " must be >= " + fe.Param()
	default:
		return field + " is invalid"
	}
}

func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return s
	}
	return t.Format("15:04")
}

// EventPatch is a partial update. Nil fields are left untouched.
type EventPatch struct {
	Title            *string           `json:"title,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Date             *string           `json:"date,omitempty"`
	StartTime        *string           `json:"startTime,omitempty"`
	EndTime          *string           `json:"endTime,omitempty"`
	Category         *Category         `json:"category,omitempty"`
	Priority         *Priority         `json:"priority,omitempty"`
	Color            *Color            `json:"color,omitempty"`
	Status           *Status           `json:"status,omitempty"`
	Location         *Location         `json:"location,omitempty"`
	Participants     *[]Participant    `json:"participants,omitempty"`
	IsAllDay         *bool             `json:"isAllDay,omitempty"`
	IsRecurring      *bool             `json:"isRecurring,omitempty"`
	RecurringPattern *RecurringPattern `json:"recurringPattern,omitempty"`
	Notes            *string           `json:"notes,omitempty"`
	Reminders        *[]int            `json:"reminders,omitempty"`
}

// Apply merges p into e. Timestamps are the caller's business.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		e.Date = strings.TrimSpace(*p.Date)
	}
	if p.StartTime != nil {
		e.StartTime = normalizeClock(*p.StartTime)
	}
	if p.EndTime != nil {
		e.EndTime = normalizeClock(*p.EndTime)
	}
	if p.Category != nil {
		e.Category = ParseCategory(string(*p.Category))
	}
	if p.Priority != nil {
		e.Priority = ParsePriority(string(*p.Priority))
	}
	if p.Color != nil {
		e.Color = ParseColor(string(*p.Color))
	}
	if p.Status != nil {
		e.Status = ParseStatus(string(*p.Status))
	}
	if p.Location != nil {
		loc := *p.Location
		e.Location = &loc
	}
	if p.Participants != nil {
		e.Participants = append([]Participant(nil), (*p.Participants)...)
	}
	if p.IsAllDay != nil {
		e.IsAllDay = *p.IsAllDay
	}
	if p.IsRecurring != nil {
		e.IsRecurring = *p.IsRecurring
	}
	if p.RecurringPattern != nil {
		e.RecurringPattern = ParseRecurringPattern(string(*p.RecurringPattern))
	}
	if !e.IsRecurring {
		e.RecurringPattern = RecurNone
	}
	if p.Notes != nil {
		e.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Reminders != nil {
		e.Reminders = append([]int(nil), (*p.Reminders)...)
	}
}

// Validate checks the fields a patch would set.
func (p EventPatch) Validate() error {
	var msgs []string
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		msgs = append(msgs, "title is required")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		msgs = append(msgs, "description is required")
	}
	if p.Date != nil {
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(*p.Date)); err != nil {
			msgs = append(msgs, "date must match 2006-01-02")
		}
	}
	if p.StartTime != nil && !clockPattern.MatchString(normalizeClock(*p.StartTime)) {
		msgs = append(msgs, "startTime must be HH:mm")
	}
	if p.EndTime != nil && !clockPattern.MatchString(normalizeClock(*p.EndTime)) {
		msgs = append(msgs, "endTime must be HH:mm")
	}
	if p.Status != nil {
		if _, ok := LookupStatus(string(*p.Status)); !ok {
			msgs = append(msgs, "status must be one of: confirmed pending cancelled")
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidForm, strings.Join(msgs, "; "))
	}
	return nil
}

// ParticipantsWith converts form participants into unconfirmed event
// participants. ids supplies one identifier per participant.
func (f *FormData) ParticipantsWith(ids func() string) []Participant {
	out := make([]Participant, 0, len(f.Participants))
	for _, p := range f.Participants {
		out = append(out, Participant{
			ID:        ids(),
			Name:      p.Name,
			Role:      p.Role,
			Email:     p.Email,
			Confirmed: false,
		})
	}
	return out
}

// FormFromEvent is the form that would recreate e. Server-owned fields
// (id, status, timestamps, participant confirmation) are dropped.
func FormFromEvent(e Event) FormData {
	f := FormData{
		Title:            e.Title,
		Description:      e.Description,
		Date:             e.Date,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Category:         e.Category,
		Priority:         e.Priority,
		Color:            e.Color,
		IsAllDay:         e.IsAllDay,
		IsRecurring:      e.IsRecurring,
		RecurringPattern: e.RecurringPattern,
		Notes:            e.Notes,
		Reminders:        append([]int{}, e.Reminders...),
		Participants:     make([]ParticipantInput, 0, len(e.Participants)),
	}
	if e.Location != nil {
		loc := *e.Location
		f.Location = &loc
	}
	for _, p := range e.Participants {
		f.Participants = append(f.Participants, ParticipantInput{Name: p.Name, Role: p.Role, Email: p.Email})
	}
	return f
}
