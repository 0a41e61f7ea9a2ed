// Package api provides HTTP API handlers for PalmChef sessions.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/palmchef/internal/report"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
)

// SessionHandler serves recorded and active sessions. The store is optional;
// without it only active sessions are visible.
type SessionHandler struct {
	store    *store.Store
	registry *session.Registry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s *store.Store, r *session.Registry) *SessionHandler {
	if r == nil {
		r = session.NewRegistry()
	}
	return &SessionHandler{store: s, registry: r}
}

type updateResponse struct {
	Gesture     string  `json:"gesture"`
	Confidence  float64 `json:"confidence"`
	Fired       string  `json:"fired,omitempty"`
	Votes       int     `json:"votes"`
	HandPresent bool    `json:"hand_present"`
	OffsetMs    int64   `json:"offset_ms"`
}

type sessionResponse struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	StartedAt string          `json:"started_at,omitempty"`
	EndedAt   string          `json:"ended_at,omitempty"`
	Active    bool            `json:"active"`
	Events    *int            `json:"events,omitempty"`
	Last      *updateResponse `json:"last,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	ID         int64   `json:"id"`
	Gesture    string  `json:"gesture"`
	Confidence float64 `json:"confidence"`
	Votes      int     `json:"votes"`
	OffsetMs   int64   `json:"offset_ms"`
	CreatedAt  string  `json:"created_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

func toUpdateResponse(u session.Update) *updateResponse {
	resp := &updateResponse{
		Gesture:     string(u.Live.Gesture),
		Confidence:  u.Live.Confidence,
		Votes:       u.Votes,
		HandPresent: u.HandPresent,
		OffsetMs:    u.Offset.Milliseconds(),
	}
	if l, ok := u.Fire(); ok {
		resp.Fired = string(l)
	}
	return resp
}

func fromRecord(rec *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        rec.ID,
		Source:    rec.Source,
		StartedAt: formatTime(rec.StartedAt),
	}
	if rec.EndedAt != nil {
		resp.EndedAt = formatTime(*rec.EndedAt)
	}
	return resp
}

func fromActive(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID(),
		Source:    s.Config().Source,
		StartedAt: formatTime(s.StartedAt()),
		Active:    true,
		Last:      toUpdateResponse(s.Last()),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ServeHTTP routes:
//
//	GET  /api/sessions
//	GET  /api/sessions/{id}
//	GET  /api/sessions/{id}/events
//	GET  /api/sessions/{id}/chart
//	POST /api/sessions/{id}/reset
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.get(w, id)
	case action == "events" && r.Method == http.MethodGet:
		h.events(w, id)
	case action == "chart" && r.Method == http.MethodGet:
		h.chart(w, id)
	case action == "reset" && r.Method == http.MethodPost:
		h.reset(w, id)
	case action == "" || action == "events" || action == "chart" || action == "reset":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// list handles GET /api/sessions. Active sessions come first, then recorded
// ones newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	resp := listSessionsResponse{Sessions: []sessionResponse{}}
	seen := make(map[string]bool)
	for _, s := range h.registry.List() {
		resp.Sessions = append(resp.Sessions, fromActive(s))
		seen[s.ID()] = true
	}

	if h.store != nil {
		records, err := h.store.Sessions().List(limit)
		if err != nil {
			log.Printf("[api] list sessions: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list sessions")
			return
		}
		for _, rec := range records {
			if !seen[rec.ID] {
				resp.Sessions = append(resp.Sessions, fromRecord(rec))
			}
		}
	}

	if len(resp.Sessions) > limit {
		resp.Sessions = resp.Sessions[:limit]
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	active, isActive := h.registry.Get(id)

	var resp sessionResponse
	if isActive {
		resp = fromActive(active)
	}

	if h.store != nil {
		rec, err := h.store.Sessions().GetByID(id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if !isActive {
				writeError(w, http.StatusNotFound, "Session not found")
				return
			}
		case err != nil:
			log.Printf("[api] get session %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Failed to get session")
			return
		default:
			if !isActive {
				resp = fromRecord(rec)
			}
			n, err := h.store.Events().CountBySession(id)
			if err != nil {
				log.Printf("[api] count events %s: %v", id, err)
				writeError(w, http.StatusInternalServerError, "Failed to get session")
				return
			}
			resp.Events = &n
		}
	} else if !isActive {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// events handles GET /api/sessions/{id}/events.
func (h *SessionHandler) events(w http.ResponseWriter, id string) {
	events, ok := h.loadEvents(w, id)
	if !ok {
		return
	}

	resp := listEventsResponse{Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{
			ID:         e.ID,
			Gesture:    e.Gesture,
			Confidence: e.Confidence,
			Votes:      e.Votes,
			OffsetMs:   e.Offset.Milliseconds(),
			CreatedAt:  formatTime(e.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// chart handles GET /api/sessions/{id}/chart and renders the fires as an
// HTML page.
func (h *SessionHandler) chart(w http.ResponseWriter, id string) {
	events, ok := h.loadEvents(w, id)
	if !ok {
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "No events recorded")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	title := fmt.Sprintf("Session %s", id)
	if err := report.RenderHTML(w, title, report.FromEvents(events)); err != nil {
		log.Printf("[api] render chart %s: %v", id, err)
	}
}

// reset handles POST /api/sessions/{id}/reset. Only active sessions can be
// reset.
func (h *SessionHandler) reset(w http.ResponseWriter, id string) {
	s, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not active")
		return
	}
	u := s.ResetLatest()
	writeJSON(w, http.StatusOK, toUpdateResponse(u))
}

func (h *SessionHandler) loadEvents(w http.ResponseWriter, id string) ([]*store.Event, bool) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Sessions are not recorded")
		return nil, false
	}
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, false
		}
		log.Printf("[api] get session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil, false
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		log.Printf("[api] list events %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return nil, false
	}
	return events, true
}
