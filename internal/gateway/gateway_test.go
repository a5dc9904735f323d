package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mairiecal/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL + "/api", Token: func() string { return "s3cret" }})
	require.NoError(t, err)
	return c, srv
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestFetchAll_BareArrayAndPage(t *testing.T) {
	t.Parallel()

	bare := `[
		{"id": 1, "title": "Conseil municipal", "date": "2025-03-12", "start_time": "18:00:00", "end_time": "20:00", "category": "council", "status": "confirmed"},
		{"identifiant": "x2", "titre": "Visite école", "jour": "2025-03-13T00:00:00Z", "heure_debut": "9:30", "categorie": "visite", "statut": "en_attente",
		 "lieu": {"nom": "École Jules Ferry", "adresse": "3 rue des Lilas"},
		 "invites": [{"nom": "Directrice", "confirme": true}], "rappels": [15, "30"]}
	]`
	page := `{"count": 1, "results": [{"id": "p1", "title": "Réception", "date": "2025-03-14"}]}`

	tests := []struct {
		name  string
		body  string
		count int
	}{
		{"bare array", bare, 2},
		{"paginated", page, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/events/", r.URL.Path)
				assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			})

			events, err := c.FetchAll(context.Background(), Query{})
			require.NoError(t, err)
			assert.Len(t, events, tt.count)
		})
	}

	t.Run("normalization precedence", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, bare)
		})
		events, err := c.FetchAll(context.Background(), Query{})
		require.NoError(t, err)
		require.Len(t, events, 2)

		first := events[0]
		assert.Equal(t, "1", first.ID)
		assert.Equal(t, "18:00", first.StartTime)
		assert.Equal(t, model.CategoryCouncil, first.Category)
		assert.Equal(t, model.StatusConfirmed, first.Status)
		assert.Equal(t, model.PriorityMedium, first.Priority)

		second := events[1]
		assert.Equal(t, "x2", second.ID)
		assert.Equal(t, "Visite école", second.Title)
		assert.Equal(t, "2025-03-13", second.Date)
		assert.Equal(t, "09:30", second.StartTime)
		assert.Equal(t, "10:00", second.EndTime, "missing end time falls back to default")
		assert.Equal(t, model.CategoryVisit, second.Category)
		assert.Equal(t, model.StatusPending, second.Status)
		require.NotNil(t, second.Location)
		assert.Equal(t, "École Jules Ferry", second.Location.Name)
		require.Len(t, second.Participants, 1)
		assert.True(t, second.Participants[0].Confirmed)
		assert.Equal(t, []int{15, 30}, second.Reminders)
	})
}

func TestFetchAll_PrimaryKeyWins(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"a","date":"2025-03-12","title":"Primary","titre":"Alternate","start_time":"","heure_debut":"11:00"}]`)
	})

	events, err := c.FetchAll(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Primary", events[0].Title)
	assert.Equal(t, "11:00", events[0].StartTime, "empty primary falls through to alternate")
}

func TestFetchAll_SkipsIncompleteRecords(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"title":"no id","date":"2025-03-12"},{"id":"ok","date":"2025-03-12"},{"id":"bad-date","date":"12/03/2025"}]`)
	})

	events, err := c.FetchAll(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
}

func TestWeek_SendsRangeQuery(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2025-03-10", q.Get("start_date"))
		assert.Equal(t, "2025-03-16", q.Get("end_date"))
		_, _ = io.WriteString(w, `[]`)
	})

	events, err := c.Week(context.Background(), time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDayAndMonth_SendRangeQuery(t *testing.T) {
	t.Parallel()

	var got [][2]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = append(got, [2]string{q.Get("start_date"), q.Get("end_date")})
		_, _ = io.WriteString(w, `[]`)
	})

	anchor := time.Date(2024, time.February, 10, 15, 0, 0, 0, time.UTC)
	_, err := c.Day(context.Background(), anchor)
	require.NoError(t, err)
	_, err = c.Month(context.Background(), anchor)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"2024-02-10", "2024-02-10"},
		{"2024-02-01", "2024-02-29"},
	}, got)
}

func TestUpcoming_SendsLimit(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/upcoming/", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"results": []}`)
	})

	_, err := c.Upcoming(context.Background(), 5)
	require.NoError(t, err)
}

func TestCreate_PayloadCarriesBothKeys(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"srv-1","title":"Inauguration médiathèque","date":"2025-04-02","start_time":"11:00","end_time":"12:00","category":"inauguration","status":"confirmed"}`)
	})

	form := model.FormData{
		Title:       "Inauguration médiathèque",
		Description: "Coupe du ruban",
		Date:        "2025-04-02",
		StartTime:   "11:00",
		EndTime:     "12:00",
		Category:    model.CategoryInauguration,
		Location:    &model.Location{Name: "Médiathèque", Room: "Hall"},
		Participants: []model.ParticipantInput{
			{Name: "Préfet", Email: "prefet@example.org"},
		},
	}

	ev, err := c.Create(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", ev.ID)
	assert.Equal(t, model.StatusConfirmed, ev.Status)

	for _, k := range []keyPair{keyTitle, keyCategory, keyStartTime, keyEndTime, keyDate, keyPriority} {
		require.Contains(t, got, k.Primary)
		require.Contains(t, got, k.Alternate)
		assert.Equal(t, got[k.Primary], got[k.Alternate], k.Primary)
	}
	assert.Equal(t, "11:00", got["heure_debut"])
	assert.Equal(t, "inauguration", got["categorie"])

	loc, ok := got["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Médiathèque", loc["name"])
	assert.Equal(t, "Médiathèque", loc["nom"])
	assert.Equal(t, got["location"], got["lieu"])

	form.EndTime = ""
	_, err = c.Create(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, "11:00", got["start_time"])
	assert.Equal(t, "11:00", got["end_time"], "missing end falls back to the start")
	assert.Equal(t, "11:00", got["heure_fin"])
}

func TestResolveTimes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, start, end   string
		wantStart, wantEnd string
	}{
		{"both set", "14:00", "15:30", "14:00", "15:30"},
		{"start only", "14:00", "", "14:00", "14:00"},
		{"start with seconds", "14:00:00", "", "14:00", "14:00"},
		{"neither", "", "", "09:00", "10:00"},
		{"end only", "", "11:00", "09:00", "11:00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			start, end := resolveTimes(tc.start, tc.end)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestFetchAll_StartWithoutEnd(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"e1","date":"2025-03-12","start_time":"14:00"},{"id":"e2","date":"2025-03-12","heure_debut":"16:15"}]`)
	})

	events, err := c.FetchAll(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "14:00", events[0].StartTime)
	assert.Equal(t, "14:00", events[0].EndTime)
	assert.Equal(t, "16:15", events[1].StartTime)
	assert.Equal(t, "16:15", events[1].EndTime)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	msg := strings.Repeat("a", maxErrorMessage-1) + "éèê"
	got := truncate(msg)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxErrorMessage-1)+"…", got)

	assert.Equal(t, "réunion annulée", truncate("réunion annulée"))
}

func TestUpdate_OnlySendsPatchedFields(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/events/e1/", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"e1","date":"2025-03-12","notes":"salle B"}`)
	})

	notes := "salle B"
	ev, err := c.Update(context.Background(), "e1", model.EventPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "salle B", ev.Notes)
	assert.Equal(t, map[string]any{"notes": "salle B", "remarques": "salle B"}, got)
}

func TestSetStatus_UsesSubResource(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/e1/status/", r.URL.Path)
		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "cancelled", got["status"])
		assert.Equal(t, "cancelled", got["statut"])
		_, _ = io.WriteString(w, `{"id":"e1","date":"2025-03-12","statut":"annule"}`)
	})

	ev, err := c.SetStatus(context.Background(), "e1", model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, ev.Status)
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"not found", http.StatusNotFound, `{"detail":"Not found."}`, ErrNotFound, "Not found."},
		{"validation", http.StatusBadRequest, `{"title":["This field is required."]}`, ErrValidation, "title: This field is required."},
		{"unprocessable", http.StatusUnprocessableEntity, `{"error":"bad date"}`, ErrValidation, "bad date"},
		{"unavailable", http.StatusServiceUnavailable, `<html>down</html>`, ErrUnavailable, "503 Service Unavailable"},
		{"conflict", http.StatusConflict, `{"message":"already exists"}`, ErrConflict, "already exists"},
		{"server error", http.StatusInternalServerError, ``, ErrConflict, "500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.FetchOne(context.Background(), "missing")
			require.ErrorIs(t, err, tt.sentinel)

			var gerr *Error
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.status, gerr.Status)
			assert.Equal(t, tt.message, gerr.Message)
		})
	}
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Options{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.FetchAll(context.Background(), Query{})
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFileToken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token")
	tok := FileToken(path)
	assert.Empty(t, tok(), "missing file means anonymous")

	require.NoError(t, os.WriteFile(path, []byte("abc\n"), 0o600))
	assert.Equal(t, "abc", tok())
	assert.Empty(t, FileToken("")())
}

func TestAnonymousRequestHasNoAuthorization(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), "e1"))
}
