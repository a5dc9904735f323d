package web

import (
	"net/http"
	"strconv"

	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
	"mairiecal/internal/store"
)

type eventsResponse struct {
	Events []model.Event `json:"events"`
	Count  int           `json:"count"`
	Mode   store.Mode    `json:"mode"`
}

// GET /api/events?q=&category=&priority=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.Filter{Query: q.Get("q")}
	if c := q.Get("category"); c != "" {
		f.Category = model.ParseCategory(c)
	}
	if p := q.Get("priority"); p != "" {
		f.Priority = model.ParsePriority(p)
	}

	events := s.store.List(f)
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events), Mode: s.store.Mode()})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var form model.FormData
	if err := decodeJSON(w, r, &form); err != nil {
		writeStoreError(w, err)
		return
	}
	ev, err := s.store.Create(r.Context(), form)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeStoreError(w, err)
		return
	}
	ev, err := s.store.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// DELETE /api/events/{id}?confirm=true
//
// The caller must confirm explicitly; the store itself never asks.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !ok {
		writeError(w, http.StatusPreconditionRequired, "deletion must be confirmed with confirm=true")
		return
	}
	id := r.PathValue("id")
	removed, err := s.store.Delete(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	appLog.Info("api: event deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeStoreError(w, err)
		return
	}
	id := r.PathValue("id")
	changed, err := s.store.SetStatus(r.Context(), id, model.Status(req.Status))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	ev, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Refresh(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	s.handleStatus(w, r)
}

type statusResponse struct {
	Mode      store.Mode `json:"mode"`
	Offline   bool       `json:"offline"`
	LastError string     `json:"lastError,omitempty"`
	Events    int        `json:"events"`
}

// handleStatus backs the offline indicator.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	mode := s.store.Mode()
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:      mode,
		Offline:   mode == store.ModeDegraded,
		LastError: s.store.LastError(),
		Events:    len(s.store.List(model.Filter{})),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats(s.today()))
}

const defaultUpcomingLimit = 5

// handleUpcoming prefers the backend's list while connected and falls back
// to the local collection on any failure.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), defaultUpcomingLimit)
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}

	if s.upcoming != nil && s.store.Mode() == store.ModeConnected {
		events, err := s.upcoming.Upcoming(r.Context(), limit)
		if err == nil {
			if len(events) > limit {
				events = events[:limit]
			}
			writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events), Mode: store.ModeConnected})
			return
		}
		appLog.Warn("api: backend upcoming failed; using local events", "error", err)
	}

	events := s.store.Upcoming(s.today(), limit)
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events), Mode: s.store.Mode()})
}
