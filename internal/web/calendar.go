package web

import (
	"net/http"
	"strings"
	"time"

	"mairiecal/internal/grid"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

type dayResponse struct {
	Date    string        `json:"date"`
	IsToday bool          `json:"isToday"`
	Events  []model.Event `json:"events"`
}

// GET /api/days/{date}
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := grid.ParseDate(r.PathValue("date"), s.location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	date := grid.FormatDate(day)
	writeJSON(w, http.StatusOK, dayResponse{
		Date:    date,
		IsToday: grid.IsToday(day, s.today()),
		Events:  s.store.EventsOnDate(date),
	})
}

type gridCell struct {
	Date    string `json:"date"`
	IsToday bool   `json:"isToday"`
	Events  int    `json:"events"`
}

type gridResponse struct {
	Mode   grid.Mode `json:"mode"`
	Anchor string    `json:"anchor"`
	Start  string    `json:"start"`
	End    string    `json:"end"`
	// Cells has one entry per rendered date; month leading placeholders are null.
	Cells []*gridCell `json:"cells"`
	Prev  string      `json:"prev"`
	Next  string      `json:"next"`
}

// GET /api/grid?mode=week&anchor=2025-03-12&dir=next
//
// dir moves the anchor one view unit before the grid is computed.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := grid.ParseMode(q.Get("mode"))

	anchor := s.today()
	if a := q.Get("anchor"); a != "" {
		parsed, err := grid.ParseDate(a, s.location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "anchor must be YYYY-MM-DD")
			return
		}
		anchor = parsed
	}
	anchor = grid.StartOfDay(anchor)

	switch strings.ToLower(q.Get("dir")) {
	case "":
	case "next", "forward", "1", "+1":
		anchor = grid.Navigate(anchor, mode, grid.Forward)
	case "prev", "previous", "backward", "-1":
		anchor = grid.Navigate(anchor, mode, grid.Backward)
	default:
		writeError(w, http.StatusBadRequest, "dir must be next or prev")
		return
	}

	counts := make(map[string]int)
	for _, ev := range s.store.List(model.Filter{}) {
		counts[ev.Date]++
	}

	today := s.today()
	dates := grid.VisibleDates(anchor, mode)
	cells := make([]*gridCell, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			cells = append(cells, nil)
			continue
		}
		key := grid.FormatDate(d)
		cells = append(cells, &gridCell{Date: key, IsToday: grid.IsToday(d, today), Events: counts[key]})
	}

	start, end := grid.Range(anchor, mode)
	writeJSON(w, http.StatusOK, gridResponse{
		Mode:   mode,
		Anchor: grid.FormatDate(anchor),
		Start:  grid.FormatDate(start),
		End:    grid.FormatDate(end),
		Cells:  cells,
		Prev:   grid.FormatDate(grid.Navigate(anchor, mode, grid.Backward)),
		Next:   grid.FormatDate(grid.Navigate(anchor, mode, grid.Forward)),
	})
}

type slot struct {
	EventID   string `json:"eventId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	grid.Geometry
}

type geometryResponse struct {
	Date          string   `json:"date"`
	DayStartHour  int      `json:"dayStartHour"`
	PixelsPerHour float64  `json:"pixelsPerHour"`
	Slots         []slot   `json:"slots"`
	AllDay        []string `json:"allDay"`
}

// GET /api/geometry?date=2025-03-12
func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	day := s.today()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := grid.ParseDate(d, s.location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	layout := grid.DefaultLayout()
	if s.cfg != nil {
		layout = s.cfg.Layout()
	}

	date := grid.FormatDate(day)
	resp := geometryResponse{
		Date:          date,
		DayStartHour:  layout.DayStartHour,
		PixelsPerHour: layout.PixelsPerHour,
		Slots:         []slot{},
		AllDay:        []string{},
	}
	for _, ev := range s.store.EventsOnDate(date) {
		if ev.IsAllDay {
			resp.AllDay = append(resp.AllDay, ev.ID)
			continue
		}
		g, err := layout.Geometry(ev.StartTime, ev.EndTime)
		if err != nil {
			appLog.Warn("api: event without usable times", "id", ev.ID, "error", err)
			continue
		}
		resp.Slots = append(resp.Slots, slot{EventID: ev.ID, StartTime: ev.StartTime, EndTime: ev.EndTime, Geometry: g})
	}
	writeJSON(w, http.StatusOK, resp)
}

// dateParam parses an optional YYYY-MM-DD query value.
func (s *Server) dateParam(r *http.Request, name string, def time.Time) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	t, err := grid.ParseDate(v, s.location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
