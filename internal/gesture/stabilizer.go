package gesture

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MinVotes is the number of matching frames in the history window a gesture
// needs before it can fire. A single stray frame never fires.
const MinVotes = 2

// ErrInvalidConfig is returned for stabilizer settings that could never fire.
var ErrInvalidConfig = errors.New("invalid stabilizer config")

// RearmPolicy decides what a held pose does once the cooldown lapses.
type RearmPolicy string

const (
	// RearmOnHold lets a held pose fire again after the cooldown plus a fresh
	// stability window.
	RearmOnHold RearmPolicy = "hold"
	// RearmOnRelease blocks the fired gesture until the live estimate moves
	// off it or the hand leaves the frame.
	RearmOnRelease RearmPolicy = "release"
)

// Config holds the stabilizer timing and gating parameters.
type Config struct {
	HistorySize   int           `json:"history_size"`
	StableFor     time.Duration `json:"stable_for"`
	Cooldown      time.Duration `json:"cooldown"`
	MinConfidence float64       `json:"min_confidence"`
	Rearm         RearmPolicy   `json:"rearm"`
}

// DefaultConfig returns the tuning used for touch-free recipe navigation.
func DefaultConfig() Config {
	return Config{
		HistorySize:   6,
		StableFor:     300 * time.Millisecond,
		Cooldown:      900 * time.Millisecond,
		MinConfidence: 0.5,
		Rearm:         RearmOnHold,
	}
}

// Validate checks that every setting is positive and that the history window
// can hold MinVotes entries.
func (c Config) Validate() error {
	switch {
	case c.HistorySize < MinVotes:
		return fmt.Errorf("%w: history size %d is below %d", ErrInvalidConfig, c.HistorySize, MinVotes)
	case c.StableFor <= 0:
		return fmt.Errorf("%w: stable window must be positive", ErrInvalidConfig)
	case c.Cooldown <= 0:
		return fmt.Errorf("%w: cooldown must be positive", ErrInvalidConfig)
	case c.MinConfidence <= 0 || c.MinConfidence > 1:
		return fmt.Errorf("%w: min confidence %.2f outside (0,1]", ErrInvalidConfig, c.MinConfidence)
	case c.Rearm != RearmOnHold && c.Rearm != RearmOnRelease:
		return fmt.Errorf("%w: unknown rearm policy %q", ErrInvalidConfig, c.Rearm)
	}
	return nil
}

// Output is the result of one Process or Reset call.
type Output struct {
	// Live is the current best estimate, reported on every call.
	Live Classification `json:"live"`
	// Fired is the gesture that fired on this call, or None.
	Fired Label `json:"fired"`
	// Votes is the number of history entries agreeing with Live.
	Votes int `json:"votes"`
}

// Fire returns the fired gesture and whether one fired.
func (o Output) Fire() (Label, bool) {
	if o.Fired == "" || o.Fired == None {
		return None, false
	}
	return o.Fired, true
}

// State is a copy of the stabilizer internals for HUD and debugging.
type State struct {
	History       []Classification `json:"history"`
	Candidate     Label            `json:"candidate"`
	Since         time.Time        `json:"since"`
	CooldownUntil time.Time        `json:"cooldown_until"`
}

// Stabilizer turns a jittery per-frame signal into rate-limited fire events.
//
// It owns no timers: every decision compares the caller's clock against
// stored timestamps. Calls must be time-ordered and must not be made
// concurrently.
type Stabilizer struct {
	cfg           Config
	history       []Classification
	candidate     Label
	since         time.Time
	cooldownUntil time.Time
	blocked       Label
}

// NewStabilizer creates an idle stabilizer.
func NewStabilizer(cfg Config) (*Stabilizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stabilizer{
		cfg:       cfg,
		history:   make([]Classification, 0, cfg.HistorySize),
		candidate: None,
		blocked:   None,
	}, nil
}

// Config returns the settings the stabilizer was built with.
func (s *Stabilizer) Config() Config {
	return s.cfg
}

// Len returns the number of classifications in the history window.
func (s *Stabilizer) Len() int {
	return len(s.history)
}

// Snapshot returns a copy of the current state.
func (s *Stabilizer) Snapshot() State {
	return State{
		History:       append([]Classification(nil), s.history...),
		Candidate:     s.candidate,
		Since:         s.since,
		CooldownUntil: s.cooldownUntil,
	}
}

// Reset returns to idle after the hand left the frame or the input session
// changed. The cooldown deadline survives so fires stay at least one cooldown
// apart. Reset is idempotent.
func (s *Stabilizer) Reset(now time.Time) Output {
	s.history = s.history[:0]
	s.candidate = None
	s.since = now
	s.blocked = None
	return Output{Live: Unclassified, Fired: None}
}

// Process records one classification and decides whether a gesture fires.
func (s *Stabilizer) Process(c Classification, now time.Time) Output {
	if len(s.history) >= s.cfg.HistorySize {
		copy(s.history, s.history[1:])
		s.history = s.history[:s.cfg.HistorySize-1]
	}
	s.history = append(s.history, c)

	best, votes := s.vote()
	out := Output{
		Live:  Classification{Gesture: best, Confidence: s.meanConfidence(best)},
		Fired: None,
		Votes: votes,
	}

	if s.blocked != None && best != s.blocked {
		s.blocked = None
	}

	if best == None || votes < MinVotes {
		return out
	}
	// Written as a negation so NaN confidence never passes.
	if !(out.Live.Confidence >= s.cfg.MinConfidence) {
		return out
	}
	if now.Before(s.cooldownUntil) {
		return out
	}
	if best == s.blocked {
		return out
	}
	if best != s.candidate {
		s.candidate = best
		s.since = now
		return out
	}
	if now.Sub(s.since) < s.cfg.StableFor {
		return out
	}

	out.Fired = best
	s.cooldownUntil = now.Add(s.cfg.Cooldown)
	s.candidate = None
	if s.cfg.Rearm == RearmOnRelease {
		s.blocked = best
	}
	return out
}

// vote returns the label with the most votes in the window. Labels are
// scanned in tie-break order and only a strictly greater count replaces the
// leader, so the first-listed label wins ties.
func (s *Stabilizer) vote() (Label, int) {
	var counts [len(Labels)]int
	for _, h := range s.history {
		for i, l := range Labels {
			if h.Gesture == l {
				counts[i]++
				break
			}
		}
	}

	best, bestCount := None, 0
	for i, l := range Labels {
		if counts[i] > bestCount {
			best, bestCount = l, counts[i]
		}
	}
	return best, bestCount
}

func (s *Stabilizer) meanConfidence(label Label) float64 {
	if label == None {
		return 0
	}
	confidences := make([]float64, 0, len(s.history))
	for _, h := range s.history {
		if h.Gesture == label {
			confidences = append(confidences, h.Confidence)
		}
	}
	if len(confidences) == 0 {
		return 0
	}
	return stat.Mean(confidences, nil)
}
