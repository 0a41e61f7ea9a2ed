// Package server provides the HTTP server for PalmChef: the tracker ingest
// socket, the HUD broadcast socket and the session API.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/palmchef/internal/server/api"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Registry  *session.Registry

	// NewSession returns the pipeline settings for a new session from the
	// given source. Nil means session.DefaultConfig.
	NewSession func(source string) session.Config

	// Observers are attached to every tracker session, after the
	// navigator and the HUD hub.
	Observers []session.Observer

	// Steps is the recipe length given to each navigator. Zero is unbounded.
	Steps int
}

// Server represents the HTTP server for the PalmChef application.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *Hub
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Registry == nil {
		config.Registry = session.NewRegistry()
	}
	if config.NewSession == nil {
		config.NewSession = session.DefaultConfig
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewHub(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/track", &TrackHandler{server: s})
	s.mux.Handle("/api/hud", s.hub)

	sessions := api.NewSessionHandler(s.config.Store, s.config.Registry)
	s.mux.Handle("/api/sessions", sessions)
	s.mux.Handle("/api/sessions/", sessions)

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the HUD broadcaster so that sessions created outside the
// server, such as the local camera session, can feed it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Registry returns the registry of active sessions.
func (s *Server) Registry() *session.Registry {
	return s.config.Registry
}

// startSession creates, registers and records a session. The returned
// function undoes all of it.
func (s *Server) startSession(source string, observers ...session.Observer) (*session.Session, func(), error) {
	observers = append(observers, s.hub)
	observers = append(observers, s.config.Observers...)

	sess, err := session.New(s.config.NewSession(source), observers...)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	endRecord := func(time.Time) {}
	if s.config.Store != nil {
		endRecord, err = s.config.Store.Track(sess)
		if err != nil {
			return nil, nil, fmt.Errorf("record session: %w", err)
		}
	}

	s.config.Registry.Add(sess)
	return sess, func() {
		s.config.Registry.Remove(sess.ID())
		endRecord(time.Now())
	}, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status":   "ok",
		"uptime":   uptime.String(),
		"sessions": s.config.Registry.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
