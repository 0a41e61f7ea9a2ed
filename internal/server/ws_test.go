package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
)

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) updateMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg updateMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendPalm(t *testing.T, conn *websocket.Conn, frames int) {
	t.Helper()
	palm := detector.OpenPalmLandmarks().Points
	for i := 0; i < frames; i++ {
		require.NoError(t, conn.WriteJSON(trackMessage{
			Type:      "frame",
			Timestamp: int64(1000 + i*130),
			Landmarks: palm,
		}))
	}
}

func TestTrackHandler_FiresAndMovesCursor(t *testing.T) {
	srv := New(Config{Steps: 4})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts, "/api/track")
	sendPalm(t, conn, 5)

	var msgs []updateMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, readUpdate(t, conn))
	}

	for _, m := range msgs[:4] {
		assert.Equal(t, "update", m.Type)
		assert.Empty(t, m.Fired)
		require.NotNil(t, m.Cursor)
		assert.Equal(t, 0, m.Cursor.Step)
	}

	last := msgs[4]
	assert.Equal(t, gesture.Next, last.Fired)
	assert.Equal(t, int64(520), last.OffsetMs)
	assert.Equal(t, "Next Step", last.Label)
	assert.True(t, last.HandPresent)
	require.NotNil(t, last.Cursor)
	assert.Equal(t, session.Cursor{Step: 1, Steps: 4}, *last.Cursor)

	assert.Equal(t, 1, srv.Registry().Len())
	assert.Equal(t, last.SessionID, srv.Registry().List()[0].ID())

	conn.Close()
	assert.Eventually(t, func() bool { return srv.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTrackHandler_Messages(t *testing.T) {
	ts := httptest.NewServer(New(Config{}))
	defer ts.Close()

	conn := dial(t, ts, "/api/track")

	t.Run("absent hand resets", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(trackMessage{Type: "frame", Timestamp: 1000}))
		msg := readUpdate(t, conn)
		assert.False(t, msg.HandPresent)
		assert.Equal(t, gesture.None, msg.Gesture)
		assert.Equal(t, "No Hand", msg.Label)
	})

	t.Run("throttled frames get no reply", func(t *testing.T) {
		fist := detector.FistLandmarks().Points
		require.NoError(t, conn.WriteJSON(trackMessage{Type: "frame", Timestamp: 1050, Landmarks: fist}))
		require.NoError(t, conn.WriteJSON(trackMessage{Type: "frame", Timestamp: 1200, Landmarks: fist}))

		msg := readUpdate(t, conn)
		assert.Equal(t, int64(1200), msg.Timestamp)
		assert.True(t, msg.HandPresent)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(trackMessage{Type: "reset"}))
		msg := readUpdate(t, conn)
		assert.Equal(t, int64(1200), msg.Timestamp)
		assert.False(t, msg.HandPresent)
	})

	t.Run("unknown type", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "wave"}))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg errorMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, errorMessage{Type: "error", Error: "unknown message type"}, msg)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg errorMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "invalid message", msg.Error)
	})
}

func TestTrackHandler_MixedTimestamps(t *testing.T) {
	ts := httptest.NewServer(New(Config{}))
	defer ts.Close()

	conn := dial(t, ts, "/api/track")
	fist := detector.FistLandmarks().Points

	require.NoError(t, conn.WriteJSON(trackMessage{Type: "frame", Timestamp: 1000, Landmarks: fist}))
	assert.Equal(t, int64(1000), readUpdate(t, conn).Timestamp)

	time.Sleep(130 * time.Millisecond)
	require.NoError(t, conn.WriteJSON(trackMessage{Type: "frame", Landmarks: fist}))
	estimated := readUpdate(t, conn).Timestamp
	assert.GreaterOrEqual(t, estimated, int64(1130))
	assert.Less(t, estimated, int64(1500), "a zero timestamp stays on the client clock")

	require.NoError(t, conn.WriteJSON(trackMessage{Type: "frame", Timestamp: 1500, Landmarks: fist}))
	assert.Equal(t, int64(1500), readUpdate(t, conn).Timestamp)
}

func TestFrameClock(t *testing.T) {
	wall := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("client time", func(t *testing.T) {
		var c frameClock
		assert.Equal(t, time.UnixMilli(1000), c.at(1000, wall))
		assert.Equal(t, time.UnixMilli(1250), c.at(0, wall.Add(250*time.Millisecond)))
		assert.Equal(t, time.UnixMilli(1400), c.at(1400, wall.Add(300*time.Millisecond)))
		assert.Equal(t, time.UnixMilli(1500), c.at(0, wall.Add(400*time.Millisecond)))
	})

	t.Run("server time", func(t *testing.T) {
		var c frameClock
		assert.Equal(t, wall, c.at(0, wall))
		later := wall.Add(time.Second)
		assert.Equal(t, later, c.at(1000, later), "client timestamps are ignored once on server time")
	})
}

func TestTrackHandler_InvalidSessionConfig(t *testing.T) {
	srv := New(Config{NewSession: func(source string) session.Config {
		cfg := session.DefaultConfig(source)
		cfg.Stabilizer.HistorySize = 0
		return cfg
	}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts, "/api/track")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg errorMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, 0, srv.Registry().Len())
}

func TestHub_BroadcastsTrackerUpdates(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	hud := dial(t, ts, "/api/hud")
	require.Eventually(t, func() bool { return srv.Hub().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	track := dial(t, ts, "/api/track")
	sendPalm(t, track, 5)

	var fired gesture.Label
	for i := 0; i < 5; i++ {
		msg := readUpdate(t, hud)
		assert.Nil(t, msg.Cursor, "HUD updates carry no cursor")
		if msg.Fired != "" {
			fired = msg.Fired
		}
	}
	assert.Equal(t, gesture.Next, fired)

	hud.Close()
	assert.Eventually(t, func() bool { return srv.Hub().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ObserveWithoutClients(t *testing.T) {
	h := NewHub()
	h.Observe(session.Update{Live: gesture.Unclassified, Fired: gesture.None})
	assert.Equal(t, 0, h.Len())
}

func TestNewUpdateMessage(t *testing.T) {
	u := session.Update{
		SessionID:   "abc",
		At:          time.UnixMilli(1520),
		Offset:      520 * time.Millisecond,
		Live:        gesture.Classification{Gesture: gesture.Timer, Confidence: 0.9},
		Fired:       gesture.Timer,
		Votes:       4,
		HandPresent: true,
	}
	msg := newUpdateMessage(u, nil)
	assert.Equal(t, updateMessage{
		Type:        "update",
		SessionID:   "abc",
		Timestamp:   1520,
		OffsetMs:    520,
		Gesture:     gesture.Timer,
		Confidence:  0.9,
		Label:       "Pause/Resume",
		Locked:      true,
		Fired:       gesture.Timer,
		Votes:       4,
		HandPresent: true,
	}, msg)

	u.Fired = gesture.None
	assert.Empty(t, newUpdateMessage(u, nil).Fired)
}
