package web

import (
	"errors"
	"io"
	"net/http"

	"mairiecal/internal/grid"
	"mairiecal/internal/ics"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

const (
	maxImportBody         = 5 << 20
	defaultOccurrenceDays = 30
	maxOccurrenceDays     = 366
)

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body := ics.Encode(s.store.List(model.Filter{}), s.location())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agenda-du-maire.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type importFailure struct {
	UID   string `json:"uid"`
	Error string `json:"error"`
}

type importResponse struct {
	Imported []string        `json:"imported"`
	Failed   []importFailure `json:"failed"`
}

// POST /api/import with a text/calendar body. Each VEVENT goes through the
// same validation as a form submission and gets a new id.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "calendar file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	parsed, err := ics.ParseICS(ics.Source{ID: "import"}, body, s.location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calendar: "+err.Error())
		return
	}
	if len(parsed) == 0 {
		writeError(w, http.StatusBadRequest, "calendar contains no events")
		return
	}

	resp := importResponse{Imported: []string{}, Failed: []importFailure{}}
	for _, ev := range ics.ToEvents(parsed, s.location()) {
		created, err := s.store.Create(r.Context(), model.FormFromEvent(ev))
		if err != nil {
			resp.Failed = append(resp.Failed, importFailure{UID: ev.ID, Error: err.Error()})
			continue
		}
		resp.Imported = append(resp.Imported, created.ID)
	}
	appLog.Info("api: calendar imported", "imported", len(resp.Imported), "failed", len(resp.Failed))

	status := http.StatusOK
	if len(resp.Imported) == 0 && len(resp.Failed) > 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

type occurrencesResponse struct {
	Start           string           `json:"start"`
	End             string           `json:"end"`
	Occurrences     []ics.Occurrence `json:"occurrences"`
	TruncatedEvents []string         `json:"truncatedEvents,omitempty"`
}

// GET /api/occurrences?start=YYYY-MM-DD&end=YYYY-MM-DD
//
// Recurring events are expanded into dated instances. Both bounds are
// inclusive days.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	today := grid.StartOfDay(s.today())
	start, ok := s.dateParam(r, "start", today)
	if !ok {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, ok := s.dateParam(r, "end", start.AddDate(0, 0, defaultOccurrenceDays))
	if !ok {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}
	if end.After(start.AddDate(0, 0, maxOccurrenceDays)) {
		writeError(w, http.StatusBadRequest, "range is limited to one year")
		return
	}

	key := grid.FormatDate(start) + "/" + grid.FormatDate(end)
	s.occMu.RLock()
	cached, hit := s.occCache[key]
	gen := s.occGen
	s.occMu.RUnlock()
	if hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	res, err := ics.ExpandOccurrences(s.store.List(model.Filter{}), ics.ExpandConfig{
		Location:   s.location(),
		RangeStart: start,
		RangeEnd:   end.AddDate(0, 0, 1).Add(-1),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := occurrencesResponse{
		Start:           grid.FormatDate(start),
		End:             grid.FormatDate(end),
		Occurrences:     res.Occurrences,
		TruncatedEvents: res.TruncatedEvents,
	}
	s.occMu.Lock()
	if s.occGen == gen {
		s.occCache[key] = resp
	}
	s.occMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}
