// Package app runs PalmChef in local mode: camera frames go through motion
// gating and hand detection into one gesture session.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/palmchef/internal/capture"
	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
)

// ErrStopped is returned by Start after Stop released the pipeline.
var ErrStopped = errors.New("app stopped")

// Config holds configuration options for local mode.
type Config struct {
	CameraID     int
	MotionThresh float64
	IdleTimeout  time.Duration

	// Session configures the pipeline. Source is forced to camera.
	Session session.Config
	// Steps is the recipe length for the navigator. Zero is unbounded.
	Steps int

	// Observers receive every update after the navigator.
	Observers []session.Observer
	// Store, when set, records the session and its fires.
	Store *store.Store
	// Registry, when set, lists the session while the app runs.
	Registry *session.Registry

	// Camera and Detector override the device camera and the MediaPipe
	// detector.
	Camera   capture.Camera
	Detector detector.Detector
}

// App owns the camera, the detector and the camera session.
type App struct {
	config    Config
	camera    capture.Camera
	motion    *capture.MotionDetector
	session   *session.Session
	navigator *session.Navigator
	endRecord func(time.Time)

	mu       sync.RWMutex
	detector detector.Detector
	enabled  bool
	stopCh   chan struct{}
	done     chan struct{}
	stopped  bool
}

// New creates the camera session and picks a detector: the configured one,
// then MediaPipe, then the mock detector.
func New(config Config) (*App, error) {
	config.Session.Source = session.SourceCamera
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = capture.DefaultIdleTimeout
	}

	nav := session.NewNavigator(config.Steps)
	observers := append([]session.Observer{nav}, config.Observers...)
	sess, err := session.New(config.Session, observers...)
	if err != nil {
		return nil, fmt.Errorf("create camera session: %w", err)
	}

	a := &App{
		config:    config,
		camera:    config.Camera,
		motion:    capture.NewMotionDetector(config.MotionThresh),
		session:   sess,
		navigator: nav,
		endRecord: func(time.Time) {},
		detector:  config.Detector,
	}
	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraID)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	if config.Store != nil {
		end, err := config.Store.Track(sess)
		if err != nil {
			return nil, err
		}
		a.endRecord = end
	}
	if config.Registry != nil {
		config.Registry.Add(sess)
	}

	return a, nil
}

// SetEnabled turns gesture detection on or off. Disabling resets the
// session so a half-held pose cannot fire after re-enabling.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed && !enabled {
		a.session.ResetLatest()
		a.motion.Reset()
	}
	if changed {
		log.Printf("Gesture detection enabled: %v", enabled)
	}
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Start opens the camera and runs the pipeline until Stop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return ErrStopped
	}
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(capture.IdleFPS)

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	log.Printf("Detection pipeline started (session %s)", a.session.ID())
	return nil
}

// Stop halts the pipeline, releases the camera and the detector and ends the
// session. The app cannot be restarted.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	stopCh, done := a.stopCh, a.done
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()
	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	if a.config.Registry != nil {
		a.config.Registry.Remove(a.session.ID())
	}
	a.endRecord(time.Now())

	log.Println("Detection pipeline stopped")
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Session returns the camera session.
func (a *App) Session() *session.Session {
	return a.session
}

// Navigator returns the recipe cursor driven by this session.
func (a *App) Navigator() *session.Navigator {
	return a.navigator
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}
