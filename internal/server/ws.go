package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// hudBuffer is the number of updates queued per HUD client before new ones
// are dropped.
const hudBuffer = 32

// updateMessage is the wire form of a session.Update.
type updateMessage struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id"`
	Timestamp   int64           `json:"timestamp"`
	OffsetMs    int64           `json:"offset_ms"`
	Gesture     gesture.Label   `json:"gesture"`
	Confidence  float64         `json:"confidence"`
	Label       string          `json:"label"`
	Locked      bool            `json:"locked"`
	Fired       gesture.Label   `json:"fired,omitempty"`
	Votes       int             `json:"votes"`
	HandPresent bool            `json:"hand_present"`
	Cursor      *session.Cursor `json:"cursor,omitempty"`
}

func newUpdateMessage(u session.Update, cursor *session.Cursor) updateMessage {
	msg := updateMessage{
		Type:        "update",
		SessionID:   u.SessionID,
		Timestamp:   u.At.UnixMilli(),
		OffsetMs:    u.Offset.Milliseconds(),
		Gesture:     u.Live.Gesture,
		Confidence:  u.Live.Confidence,
		Label:       u.Live.Gesture.Description(),
		Locked:      u.Live.Locked(),
		Votes:       u.Votes,
		HandPresent: u.HandPresent,
		Cursor:      cursor,
	}
	if l, ok := u.Fire(); ok {
		msg.Fired = l
	}
	return msg
}

// trackMessage is sent by browser trackers on /api/track.
type trackMessage struct {
	Type      string             `json:"type"`
	Timestamp int64              `json:"timestamp"`
	Landmarks []detector.Point3D `json:"landmarks"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Hub broadcasts every update it observes to the connected HUD sockets.
type Hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with no clients.
func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

// Observe queues u for every client. Slow clients miss updates rather than
// stalling the session.
func (h *Hub) Observe(u session.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(newUpdateMessage(u, nil))
	if err != nil {
		log.Printf("[hud] encode update: %v", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams updates until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &hubClient{conn: conn, send: make(chan []byte, hudBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	<-done
}

// TrackHandler runs one session per WebSocket connection, fed by a browser
// hand tracker.
type TrackHandler struct {
	server *Server
}

// ServeHTTP upgrades the request and processes tracker messages until the
// connection closes.
func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	nav := session.NewNavigator(h.server.config.Steps)
	sess, end, err := h.server.startSession(session.SourceTracker, nav)
	if err != nil {
		log.Printf("[track] %v", err)
		conn.WriteJSON(errorMessage{Type: "error", Error: "failed to start session"})
		return
	}
	defer end()

	log.Printf("[track] session %s connected from %s", sess.ID(), r.RemoteAddr)

	var clock frameClock

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[track] session %s: %v", sess.ID(), err)
			}
			return
		}

		var msg trackMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := conn.WriteJSON(errorMessage{Type: "error", Error: "invalid message"}); err != nil {
				return
			}
			continue
		}

		var u session.Update
		switch msg.Type {
		case "frame":
			var ok bool
			u, ok = sess.HandleFrame(msg.Landmarks, clock.at(msg.Timestamp, time.Now()))
			if !ok {
				continue
			}
		case "reset":
			if msg.Timestamp > 0 {
				u = sess.Reset(clock.at(msg.Timestamp, time.Now()))
			} else {
				u = sess.ResetLatest()
			}
		default:
			if err := conn.WriteJSON(errorMessage{Type: "error", Error: "unknown message type"}); err != nil {
				return
			}
			continue
		}

		cursor := nav.Cursor()
		if err := conn.WriteJSON(newUpdateMessage(u, &cursor)); err != nil {
			return
		}
	}
}

// frameClock pins a tracker connection to one time base, chosen by its first
// timestamped message: client milliseconds when non-zero, otherwise the
// server clock. Once on client time, a zero timestamp is estimated from the
// last client timestamp plus the wall time elapsed since it arrived. Once on
// server time, client timestamps are ignored.
type frameClock struct {
	pinned bool
	client bool
	lastMs int64
	lastAt time.Time
}

func (c *frameClock) at(ms int64, now time.Time) time.Time {
	if !c.pinned {
		c.pinned = true
		c.client = ms > 0
	}
	if !c.client {
		return now
	}
	if ms <= 0 {
		ms = c.lastMs + now.Sub(c.lastAt).Milliseconds()
	}
	c.lastMs, c.lastAt = ms, now
	return time.UnixMilli(ms)
}
