package app

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/palmchef/internal/capture"
	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
)

type fireLog struct {
	mu    sync.Mutex
	fired []gesture.Label
}

func (f *fireLog) Observe(u session.Update) {
	if l, ok := u.Fire(); ok {
		f.mu.Lock()
		f.fired = append(f.fired, l)
		f.mu.Unlock()
	}
}

func (f *fireLog) labels() []gesture.Label {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gesture.Label(nil), f.fired...)
}

// newTestApp builds an app on a mock camera and detector.
func newTestApp(t *testing.T, cfg Config) (*App, *detector.MockDetector) {
	t.Helper()
	det := detector.NewMockDetector()
	if cfg.Camera == nil {
		cfg.Camera = capture.NewMockCamera(nil, true)
	}
	if cfg.Session.Stabilizer.HistorySize == 0 {
		cfg.Session = session.DefaultConfig(session.SourceCamera)
	}
	cfg.Detector = det

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a, det
}

func TestApp_ProcessHands(t *testing.T) {
	fires := &fireLog{}
	a, _ := newTestApp(t, Config{Steps: 3, Observers: []session.Observer{fires}})

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	palm := []detector.HandLandmarks{detector.OpenPalmLandmarks()}
	for i := 0; i <= 4; i++ {
		a.processHands(palm, start.Add(time.Duration(i*130)*time.Millisecond))
	}

	assert.Equal(t, []gesture.Label{gesture.Next}, fires.labels())
	assert.Equal(t, session.Cursor{Step: 1, Steps: 3}, a.Navigator().Cursor())
	assert.Equal(t, session.SourceCamera, a.Session().Config().Source)

	// No hand resets the stabilizer.
	u, ok := a.processHands(nil, start.Add(700*time.Millisecond))
	require.True(t, ok)
	assert.False(t, u.HandPresent)
	assert.Empty(t, a.Session().State().History)
}

func TestApp_DisableResetsSession(t *testing.T) {
	a, _ := newTestApp(t, Config{})

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	fist := []detector.HandLandmarks{detector.FistLandmarks()}
	a.SetEnabled(true)
	a.processHands(fist, start)
	a.processHands(fist, start.Add(130*time.Millisecond))
	require.Equal(t, gesture.Prev, a.Session().State().Candidate)

	a.SetEnabled(false)
	assert.False(t, a.IsEnabled())
	assert.Equal(t, gesture.None, a.Session().State().Candidate)
	assert.Empty(t, a.Session().State().History)
}

func TestApp_InvalidSessionConfig(t *testing.T) {
	cfg := session.DefaultConfig(session.SourceCamera)
	cfg.Stabilizer.Cooldown = 0

	_, err := New(Config{Session: cfg, Camera: capture.NewMockCamera(nil, true), Detector: detector.NewMockDetector()})
	assert.ErrorIs(t, err, gesture.ErrInvalidConfig)
}

func TestApp_RecordsSession(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	reg := session.NewRegistry()

	a, _ := newTestApp(t, Config{Store: s, Registry: reg})
	id := a.Session().ID()

	rec, err := s.Sessions().GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, session.SourceCamera, rec.Source)
	assert.True(t, rec.Active())
	assert.Equal(t, 1, reg.Len())

	a.Stop()
	a.Stop()

	rec, err = s.Sessions().GetByID(id)
	require.NoError(t, err)
	assert.False(t, rec.Active())
	assert.Equal(t, 0, reg.Len())
	assert.ErrorIs(t, a.Start(), ErrStopped)
}

func TestApp_DetectionPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	black := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	// Alternating frames keep the motion gate open.
	cam := capture.NewMockCamera([]*gocv.Mat{&black, &white}, true)
	fires := &fireLog{}
	a, det := newTestApp(t, Config{Camera: cam, Observers: []session.Observer{fires}})
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	// Disabled: frames are not even read.
	require.NoError(t, a.Start())
	require.NoError(t, a.Start())
	time.Sleep(450 * time.Millisecond)
	assert.Equal(t, 0, cam.Reads())

	a.SetEnabled(true)
	require.Eventually(t, func() bool {
		return len(fires.labels()) > 0
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, gesture.Next, fires.labels()[0])
	assert.Greater(t, det.Calls(), 3)
	assert.Equal(t, capture.FPSFor(session.DefaultThrottle), cam.FPS())

	a.Stop()
	assert.False(t, cam.IsOpen())
}
