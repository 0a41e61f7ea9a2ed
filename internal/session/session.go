// Package session runs one input stream through the throttle, classifier and
// stabilizer, and fans the results out to observers.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/gesture"
)

// Input sources recorded with each session.
const (
	SourceCamera  = "camera"
	SourceTracker = "tracker"
	SourceReplay  = "replay"
)

// DefaultThrottle is the minimum spacing between processed frames.
const DefaultThrottle = 120 * time.Millisecond

// Config holds everything a session needs to build its pipeline.
type Config struct {
	Stabilizer gesture.Config     `json:"stabilizer"`
	Thresholds gesture.Thresholds `json:"thresholds"`
	Throttle   time.Duration      `json:"throttle"`
	Source     string             `json:"source"`
}

// DefaultConfig returns the stock pipeline settings for the given source.
func DefaultConfig(source string) Config {
	return Config{
		Stabilizer: gesture.DefaultConfig(),
		Thresholds: gesture.DefaultThresholds(),
		Throttle:   DefaultThrottle,
		Source:     source,
	}
}

// Update is what observers receive for every processed frame and reset.
type Update struct {
	SessionID string        `json:"session_id"`
	At        time.Time     `json:"at"`
	Offset    time.Duration `json:"offset"`

	Live  gesture.Classification `json:"live"`
	Fired gesture.Label          `json:"fired"`
	Votes int                    `json:"votes"`

	HandPresent bool `json:"hand_present"`
	// Raw is the single-frame verdict before stabilization.
	Raw gesture.Classification `json:"raw"`
}

// Fire returns the fired gesture, if any.
func (u Update) Fire() (gesture.Label, bool) {
	return gesture.Output{Fired: u.Fired}.Fire()
}

// Observer receives session updates on the goroutine that fed the frame.
// Implementations must not block.
type Observer interface {
	Observe(Update)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Update)

// Observe calls f(u).
func (f ObserverFunc) Observe(u Update) { f(u) }

// Session owns the stabilizer for one input stream. Its methods are safe for
// concurrent use; calls are serialized so that a reset from the API cannot
// interleave with frame ingest.
type Session struct {
	id         string
	cfg        Config
	classifier gesture.Classifier
	stabilizer *gesture.Stabilizer
	throttle   *gesture.Throttle

	mu        sync.Mutex
	observers []Observer
	started   time.Time
	last      Update
}

// New validates cfg and creates a session with a fresh ID.
func New(cfg Config, observers ...Observer) (*Session, error) {
	stab, err := gesture.NewStabilizer(cfg.Stabilizer)
	if err != nil {
		return nil, err
	}
	if cfg.Source == "" {
		cfg.Source = SourceTracker
	}

	return &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		classifier: gesture.NewClassifier(cfg.Thresholds),
		stabilizer: stab,
		throttle:   gesture.NewThrottle(cfg.Throttle),
		observers:  observers,
		last:       Update{Live: gesture.Unclassified, Fired: gesture.None, Raw: gesture.Unclassified},
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Config returns the configuration the session was built with.
func (s *Session) Config() Config { return s.cfg }

// AddObserver registers another observer for subsequent updates.
func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// StartedAt returns the timestamp of the first frame or reset, or the zero
// time if nothing has been fed yet.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Last returns the most recent update.
func (s *Session) Last() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.last
	u.SessionID = s.id
	return u
}

// State returns a copy of the stabilizer internals.
func (s *Session) State() gesture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stabilizer.Snapshot()
}

// HandleFrame feeds one landmark frame taken at now. An empty frame means the
// hand left the view and resets the stabilizer. The second return value is
// false when the throttle dropped the frame; no observer is called then.
func (s *Session) HandleFrame(points []detector.Point3D, now time.Time) (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.throttle.Allow(now) {
		return Update{}, false
	}

	if len(points) == 0 {
		return s.publish(s.stabilizer.Reset(now), gesture.Unclassified, false, now), true
	}

	raw := s.classifier.Classify(points)
	return s.publish(s.stabilizer.Process(raw, now), raw, true, now), true
}

// HandleHands feeds a detector result. Only the first hand is tracked.
func (s *Session) HandleHands(hands []detector.HandLandmarks, now time.Time) (Update, bool) {
	if len(hands) == 0 {
		return s.HandleFrame(nil, now)
	}
	return s.HandleFrame(hands[0].Points, now)
}

// Reset returns the stabilizer to idle, for example when the user switches
// screens. It is not throttled.
func (s *Session) Reset(now time.Time) Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(s.stabilizer.Reset(now), gesture.Unclassified, false, now)
}

// ResetLatest resets at the timestamp of the most recent update, or at the
// wall clock if nothing has been fed yet. Use it from callers that do not
// share the input's clock.
func (s *Session) ResetLatest() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.last.At
	if now.IsZero() {
		now = time.Now()
	}
	return s.publish(s.stabilizer.Reset(now), gesture.Unclassified, false, now)
}

func (s *Session) publish(out gesture.Output, raw gesture.Classification, present bool, now time.Time) Update {
	if s.started.IsZero() {
		s.started = now
	}

	u := Update{
		SessionID:   s.id,
		At:          now,
		Offset:      now.Sub(s.started),
		Live:        out.Live,
		Fired:       out.Fired,
		Votes:       out.Votes,
		HandPresent: present,
		Raw:         raw,
	}
	s.last = u

	if l, ok := out.Fire(); ok {
		log.Printf("[session %s] fired %s (%.2f, %d votes) at +%v", shortID(s.id), l, out.Live.Confidence, out.Votes, u.Offset)
	}

	for _, o := range s.observers {
		o.Observe(u)
	}
	return u
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
