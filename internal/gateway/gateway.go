// Package gateway is the client for the remote events REST API.
//
// The backend is inconsistent about field names: every field may arrive
// under an English snake_case key or a French key. Inbound records are
// normalized in a fixed precedence (primary, alternate, default) and
// outbound payloads always carry both keys. The client keeps no state
// between calls.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"mairiecal/internal/grid"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorMessage = 200
)

// TokenSource returns the current bearer token, or "" for anonymous calls.
type TokenSource func() string

// FileToken reads the token from path on every call, so a token rotated
// on disk is picked up without a restart.
func FileToken(path string) TokenSource {
	return func() string {
		if path == "" {
			return ""
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. "https://mairie.example/api".
	BaseURL string
	// Timeout bounds each request. Zero uses defaultTimeout.
	Timeout time.Duration
	// Token supplies the bearer token. Nil means anonymous.
	Token TokenSource
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client talks to the events resource.
type Client struct {
	base  string
	http  *http.Client
	token TokenSource
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("gateway: base URL must be absolute")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	tok := opts.Token
	if tok == nil {
		tok = func() string { return "" }
	}
	return &Client{
		base:  strings.TrimRight(u.String(), "/"),
		http:  hc,
		token: tok,
	}, nil
}

// Query narrows FetchAll. Zero fields are omitted from the request.
type Query struct {
	Start    time.Time
	End      time.Time
	Category model.Category
	Status   model.Status
}

func (q Query) values() url.Values {
	v := url.Values{}
	if !q.Start.IsZero() {
		v.Set("start_date", grid.FormatDate(q.Start))
	}
	if !q.End.IsZero() {
		v.Set("end_date", grid.FormatDate(q.End))
	}
	if q.Category != "" {
		v.Set("category", string(q.Category))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

// FetchAll lists events. The backend may answer with a bare array or a
// {"results": [...]} page; both are accepted. Records that cannot be
// normalized are logged and skipped.
func (c *Client) FetchAll(ctx context.Context, q Query) ([]model.Event, error) {
	body, err := c.do(ctx, http.MethodGet, c.path(), q.values(), nil)
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

// FetchOne retrieves a single event.
func (c *Client) FetchOne(ctx context.Context, id string) (model.Event, error) {
	body, err := c.do(ctx, http.MethodGet, c.path(id), nil, nil)
	if err != nil {
		return model.Event{}, err
	}
	return decodeOne(body)
}

// Create posts a new event built from a validated form.
func (c *Client) Create(ctx context.Context, form model.FormData) (model.Event, error) {
	body, err := c.do(ctx, http.MethodPost, c.path(), nil, formPayload(form))
	if err != nil {
		return model.Event{}, err
	}
	return decodeOne(body)
}

// Update partially updates an event.
func (c *Client) Update(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	body, err := c.do(ctx, http.MethodPatch, c.path(id), nil, patchPayload(patch))
	if err != nil {
		return model.Event{}, err
	}
	return decodeOne(body)
}

// Delete removes an event.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.path(id), nil, nil)
	return err
}

// SetStatus patches the status sub-resource.
func (c *Client) SetStatus(ctx context.Context, id string, status model.Status) (model.Event, error) {
	p := payload{}
	p.set(keyStatus, string(status))
	body, err := c.do(ctx, http.MethodPatch, c.path(id, "status"), nil, p)
	if err != nil {
		return model.Event{}, err
	}
	// The status endpoint may answer with only {"id", "status"}.
	var r record
	if err := json.Unmarshal(body, &r); err == nil {
		if ev, err := toEvent(r); err == nil {
			return ev, nil
		}
	}
	return model.Event{ID: id, Status: status}, nil
}

// Upcoming returns the next limit events according to the backend.
func (c *Client) Upcoming(ctx context.Context, limit int) ([]model.Event, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.do(ctx, http.MethodGet, c.path("upcoming"), v, nil)
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

// Day lists events on anchor's day.
func (c *Client) Day(ctx context.Context, anchor time.Time) ([]model.Event, error) {
	return c.inView(ctx, anchor, grid.ModeDay)
}

// Week lists events in the Monday-first week containing anchor.
func (c *Client) Week(ctx context.Context, anchor time.Time) ([]model.Event, error) {
	return c.inView(ctx, anchor, grid.ModeWeek)
}

// Month lists events in anchor's month.
func (c *Client) Month(ctx context.Context, anchor time.Time) ([]model.Event, error) {
	return c.inView(ctx, anchor, grid.ModeMonth)
}

func (c *Client) inView(ctx context.Context, anchor time.Time, mode grid.Mode) ([]model.Event, error) {
	start, end := grid.Range(anchor, mode)
	return c.FetchAll(ctx, Query{Start: start, End: end})
}

func (c *Client) path(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.base)
	b.WriteString("/events/")
	for _, p := range parts {
		b.WriteString(url.PathEscape(p))
		b.WriteString("/")
	}
	return b.String()
}

// do performs one request and returns the response body of a 2xx answer.
// Every failure is an *Error.
func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "cannot encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindConflict, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	appLog.Debug("gateway request", "method", method, "url", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &Error{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorMessage(data, resp.Status),
		}
		appLog.Debug("gateway non-success", "method", method, "url", endpoint, "status", resp.StatusCode, "kind", gerr.Kind)
		return nil, gerr
	}
	return data, nil
}

// errorMessage extracts a short message from a DRF-style error body.
func errorMessage(body []byte, fallback string) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"detail", "error", "message", "erreur"} {
			if s := scalarString(obj[k]); s != "" {
				return truncate(s)
			}
		}
		// Field errors: {"title": ["This field is required."]}
		parts := make([]string, 0, len(obj))
		for k, v := range obj {
			if list, ok := v.([]any); ok && len(list) > 0 {
				parts = append(parts, k+": "+scalarString(list[0]))
			}
		}
		if len(parts) > 0 {
			return truncate(strings.Join(parts, "; "))
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && !strings.HasPrefix(s, "<") {
		return truncate(s)
	}
	return fallback
}

func truncate(s string) string {
	if len(s) <= maxErrorMessage {
		return s
	}
	cut := maxErrorMessage
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func decodeOne(body []byte) (model.Event, error) {
	var r record
	if err := json.Unmarshal(body, &r); err != nil {
		return model.Event{}, &Error{Kind: KindConflict, Message: "malformed event payload", Err: err}
	}
	ev, err := toEvent(r)
	if err != nil {
		appLog.Error("gateway: rejected event record", err)
		return model.Event{}, &Error{Kind: KindConflict, Message: "incomplete event payload", Err: err}
	}
	return ev, nil
}

func decodeList(body []byte) ([]model.Event, error) {
	trimmed := bytes.TrimSpace(body)

	var items []record
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &Error{Kind: KindConflict, Message: "malformed event list", Err: err}
		}
	} else {
		var page struct {
			Results []record `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, &Error{Kind: KindConflict, Message: "malformed event list", Err: err}
		}
		items = page.Results
	}

	out := make([]model.Event, 0, len(items))
	for i, r := range items {
		ev, err := toEvent(r)
		if err != nil {
			appLog.Error("gateway: skipping event record", err, "index", i)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
