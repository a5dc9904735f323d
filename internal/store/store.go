// Package store owns the in-session collection of schedule events.
//
// The Store is the single writer of the collection. Reads are served from
// memory. Writes go through the remote gateway while the store is
// connected and stay local while it is degraded. Only Refresh moves the
// store between the two modes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mairiecal/internal/gateway"
	"mairiecal/internal/grid"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

// ErrNotFound is returned when the referenced event is not in the store.
var ErrNotFound = errors.New("event not found")

// Gateway is the subset of the remote client the store depends on.
type Gateway interface {
	FetchAll(ctx context.Context, q gateway.Query) ([]model.Event, error)
	Create(ctx context.Context, form model.FormData) (model.Event, error)
	Update(ctx context.Context, id string, patch model.EventPatch) (model.Event, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status model.Status) (model.Event, error)
}

// Mode tells whether writes reach the backend.
type Mode string

const (
	ModeConnected Mode = "connected"
	ModeDegraded  Mode = "degraded"
)

type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeStatus    ChangeKind = "status"
	ChangeRefreshed ChangeKind = "refreshed"
)

// Change is published to subscribers after every successful mutation.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	EventID string     `json:"eventId,omitempty"`
	Mode    Mode       `json:"mode"`
}

type Option func(*Store)

// WithGateway connects the store to a backend. Without one the store
// stays degraded.
func WithGateway(g Gateway) Option {
	return func(s *Store) { s.gw = g }
}

// WithFallback replaces the demonstration dataset used offline.
func WithFallback(f Fallback) Option {
	return func(s *Store) { s.fallback = f }
}

// WithIDGenerator sets the generator for locally created ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock sets the time source for timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// Store is safe for concurrent use. Concurrent writes are last-write-wins.
type Store struct {
	mu      sync.RWMutex
	events  []model.Event
	mode    Mode
	lastErr string

	gw       Gateway
	fallback Fallback
	newID    func() string
	now      func() time.Time

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New returns an empty, degraded store. Call Refresh to load it.
func New(opts ...Option) *Store {
	s := &Store{
		mode:     ModeDegraded,
		fallback: DemoFallback,
		newID:    func() string { return "local-" + uuid.NewString() },
		now:      time.Now,
		subs:     make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the current mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// LastError describes the last surfaced failure, or "" after a success.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Subscribe registers fn for every Change. fn runs on the mutating
// goroutine after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(c Change) {
	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// List returns events matching f, ordered by date then start time.
func (s *Store) List(f model.Filter) []model.Event {
	s.mu.RLock()
	out := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		if f.Matches(ev) {
			out = append(out, ev.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// EventsOnDate returns the events of one day (YYYY-MM-DD) by start time.
func (s *Store) EventsOnDate(date string) []model.Event {
	s.mu.RLock()
	out := make([]model.Event, 0)
	for _, ev := range s.events {
		if ev.Date == date {
			out = append(out, ev.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// Get returns the event with id.
func (s *Store) Get(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.events[i].Clone(), true
	}
	return model.Event{}, false
}

func (s *Store) indexLocked(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// upsertLocked replaces the event with the same id or appends it, so ids
// stay unique.
func (s *Store) upsertLocked(ev model.Event) {
	if i := s.indexLocked(ev.ID); i >= 0 {
		s.events[i] = ev
		return
	}
	s.events = append(s.events, ev)
}

func (s *Store) connected() bool {
	return s.gw != nil && s.Mode() == ModeConnected
}

// fail records err as the last surfaced error and returns it.
func (s *Store) fail(op string, err error) error {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	appLog.Error("store: "+op+" failed", err)
	return err
}

// touch returns a timestamp strictly after prev.
func (s *Store) touch(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

// Create validates form and adds the event. Connected stores keep the
// backend's record; degraded stores build a pending local event.
func (s *Store) Create(ctx context.Context, form model.FormData) (model.Event, error) {
	if err := form.Validate(); err != nil {
		return model.Event{}, s.fail("create", err)
	}

	var ev model.Event
	if s.connected() {
		created, err := s.gw.Create(ctx, form)
		if err != nil {
			return model.Event{}, s.fail("create", err)
		}
		ev = created
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = s.now()
		}
		if ev.UpdatedAt.IsZero() {
			ev.UpdatedAt = ev.CreatedAt
		}
	} else {
		ev = s.localEvent(form)
	}

	s.mu.Lock()
	s.upsertLocked(ev)
	s.lastErr = ""
	mode := s.mode
	s.mu.Unlock()

	appLog.Info("event created", "id", ev.ID, "date", ev.Date, "mode", mode)
	s.publish(Change{Kind: ChangeCreated, EventID: ev.ID, Mode: mode})
	return ev.Clone(), nil
}

func (s *Store) localEvent(form model.FormData) model.Event {
	now := s.now()
	start, end := form.StartTime, form.EndTime
	if start == "" {
		start = "09:00"
	}
	if end == "" {
		end = start
	}
	reminders := append([]int{}, form.Reminders...)

	ev := model.Event{
		ID:               s.newID(),
		Title:            form.Title,
		Description:      form.Description,
		Date:             form.Date,
		StartTime:        start,
		EndTime:          end,
		Category:         orDefault(form.Category, model.CategoryOther),
		Priority:         orDefault(form.Priority, model.PriorityMedium),
		Color:            orDefault(form.Color, model.ColorBlue),
		Status:           model.StatusPending,
		Participants:     form.ParticipantsWith(s.newID),
		IsAllDay:         form.IsAllDay,
		IsRecurring:      form.IsRecurring,
		RecurringPattern: form.RecurringPattern,
		Notes:            form.Notes,
		Reminders:        reminders,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if form.Location != nil {
		loc := *form.Location
		ev.Location = &loc
	}
	return ev
}

// Update merges patch into the event with id.
func (s *Store) Update(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	cur, ok := s.Get(id)
	if !ok {
		return model.Event{}, s.fail("update", fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	if err := patch.Validate(); err != nil {
		return model.Event{}, s.fail("update", err)
	}

	merged := cur.Clone()
	patch.Apply(&merged)
	if merged.StartTime > merged.EndTime {
		return model.Event{}, s.fail("update", fmt.Errorf("%w: endTime must not be before startTime", model.ErrInvalidForm))
	}

	if s.connected() {
		remote, err := s.gw.Update(ctx, id, patch)
		if err != nil {
			return model.Event{}, s.fail("update", wrapNotFound(err, id))
		}
		merged = remote
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = cur.CreatedAt
		}
	}
	if !merged.UpdatedAt.After(cur.UpdatedAt) {
		merged.UpdatedAt = s.touch(cur.UpdatedAt)
	}

	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return model.Event{}, s.fail("update", fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	s.upsertLocked(merged)
	s.lastErr = ""
	mode := s.mode
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeUpdated, EventID: id, Mode: mode})
	return merged.Clone(), nil
}

// Delete removes the event with id and reports whether one was removed.
// Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.Get(id); !ok {
		return false, nil
	}

	if s.connected() {
		// Already gone on the backend: drop the local copy too.
		if err := s.gw.Delete(ctx, id); err != nil && !errors.Is(err, gateway.ErrNotFound) {
			return false, s.fail("delete", err)
		}
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i >= 0 {
		s.events = append(s.events[:i], s.events[i+1:]...)
		s.lastErr = ""
	}
	mode := s.mode
	s.mu.Unlock()

	if i < 0 {
		return false, nil
	}
	appLog.Info("event deleted", "id", id, "mode", mode)
	s.publish(Change{Kind: ChangeDeleted, EventID: id, Mode: mode})
	return true, nil
}

// SetStatus changes only the status of the event with id.
func (s *Store) SetStatus(ctx context.Context, id string, status model.Status) (bool, error) {
	st, ok := model.LookupStatus(string(status))
	if !ok {
		return false, s.fail("set status", fmt.Errorf("%w: unknown status %q", model.ErrInvalidForm, status))
	}
	if _, ok := s.Get(id); !ok {
		return false, nil
	}

	if s.connected() {
		if _, err := s.gw.SetStatus(ctx, id, st); err != nil {
			if errors.Is(err, gateway.ErrNotFound) {
				return false, s.fail("set status", wrapNotFound(err, id))
			}
			return false, s.fail("set status", err)
		}
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.events[i].Status = st
	s.events[i].UpdatedAt = s.touch(s.events[i].UpdatedAt)
	s.lastErr = ""
	mode := s.mode
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeStatus, EventID: id, Mode: mode})
	return true, nil
}

// Refresh reloads the collection from the backend. An unreachable backend
// switches the store to degraded mode and never returns an error; the
// collection then holds the last known events, or the fallback set when
// there are none. Other backend errors are returned with state unchanged.
func (s *Store) Refresh(ctx context.Context) error {
	if s.gw == nil {
		s.degrade(ctx, errors.New("no gateway configured"))
		return nil
	}

	events, err := s.gw.FetchAll(ctx, gateway.Query{})
	if err != nil {
		if gateway.IsUnavailable(err) {
			s.degrade(ctx, err)
			return nil
		}
		return s.fail("refresh", err)
	}

	events = dedupe(events)

	s.mu.Lock()
	prev := s.mode
	s.events = events
	s.mode = ModeConnected
	s.lastErr = ""
	s.mu.Unlock()

	if prev != ModeConnected {
		appLog.Info("store connected", "events", len(events))
	}
	s.publish(Change{Kind: ChangeRefreshed, Mode: ModeConnected})
	return nil
}

func (s *Store) degrade(ctx context.Context, cause error) {
	s.mu.RLock()
	prev := s.mode
	empty := len(s.events) == 0
	s.mu.RUnlock()

	var fresh []model.Event
	if empty {
		fresh = s.loadFallback(ctx)
	}

	s.mu.Lock()
	s.mode = ModeDegraded
	if len(s.events) == 0 {
		s.events = fresh
	}
	count := len(s.events)
	s.mu.Unlock()

	if prev != ModeDegraded || empty {
		appLog.Warn("store degraded to offline mode", "cause", cause, "events", count)
	}
	s.publish(Change{Kind: ChangeRefreshed, Mode: ModeDegraded})
}

func (s *Store) loadFallback(ctx context.Context) []model.Event {
	now := s.now()
	if s.fallback != nil {
		events, err := s.fallback.Events(ctx, now)
		if err == nil && len(events) > 0 {
			return dedupe(events)
		}
		if err != nil {
			appLog.Error("store: fallback source failed; using demo events", err)
		}
	}
	return DemoEvents(now)
}

// dedupe keeps the last event for each id, in first-seen order.
func dedupe(events []model.Event) []model.Event {
	pos := make(map[string]int, len(events))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if i, ok := pos[ev.ID]; ok {
			out[i] = ev
			continue
		}
		pos[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

func wrapNotFound(err error, id string) error {
	if errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, id, err)
	}
	return err
}

// Upcoming returns up to limit events that have not ended by now.
// Cancelled events are skipped.
func (s *Store) Upcoming(now time.Time, limit int) []model.Event {
	today := grid.FormatDate(now)
	clock := now.Format(grid.ClockLayout)

	if limit < 0 {
		limit = 0
	}
	all := s.List(model.Filter{})
	out := make([]model.Event, 0, limit)
	for _, ev := range all {
		if ev.Status == model.StatusCancelled {
			continue
		}
		if ev.Date < today || (ev.Date == today && !ev.IsAllDay && ev.EndTime < clock) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Stats summarizes the collection for the schedule header.
type Stats struct {
	Total     int                  `json:"total"`
	ByStatus  map[model.Status]int `json:"byStatus"`
	Today     int                  `json:"today"`
	ThisWeek  int                  `json:"thisWeek"`
	Upcoming  int                  `json:"upcoming"`
	Mode      Mode                 `json:"mode"`
	LastError string               `json:"lastError,omitempty"`
}

// Stats computes counts relative to now.
func (s *Store) Stats(now time.Time) Stats {
	week := grid.WeekDates(now)
	first, last := grid.FormatDate(week[0]), grid.FormatDate(week[6])
	today := grid.FormatDate(now)

	st := Stats{
		ByStatus: map[model.Status]int{
			model.StatusConfirmed: 0,
			model.StatusPending:   0,
			model.StatusCancelled: 0,
		},
	}
	for _, ev := range s.List(model.Filter{}) {
		st.Total++
		st.ByStatus[ev.Status]++
		if ev.Date == today {
			st.Today++
		}
		if ev.Date >= first && ev.Date <= last {
			st.ThisWeek++
		}
	}
	st.Upcoming = len(s.Upcoming(now, 0))
	st.Mode = s.Mode()
	st.LastError = s.LastError()
	return st
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
