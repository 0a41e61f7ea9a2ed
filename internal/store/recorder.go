package store

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/palmchef/internal/session"
)

// Recorder is a session observer that writes every fire to the events table.
type Recorder struct {
	events *EventRepository
}

// NewRecorder returns a recorder writing to s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{events: s.Events()}
}

// Observe stores fired updates and ignores the rest.
func (r *Recorder) Observe(u session.Update) {
	l, ok := u.Fire()
	if !ok {
		return
	}

	err := r.events.Create(&Event{
		SessionID:  u.SessionID,
		Gesture:    string(l),
		Confidence: u.Live.Confidence,
		Votes:      u.Votes,
		Offset:     u.Offset,
		CreatedAt:  u.At,
	})
	if err != nil {
		log.Printf("[store] failed to record %s: %v", l, err)
	}
}

// Track inserts a sessions row for sess and attaches a Recorder to it. Call
// the returned function when the input stream ends.
func (s *Store) Track(sess *session.Session) (end func(at time.Time), err error) {
	cfg, err := json.Marshal(sess.Config())
	if err != nil {
		return nil, fmt.Errorf("encode session config: %w", err)
	}

	err = s.Sessions().Create(&Session{
		ID:        sess.ID(),
		Source:    sess.Config().Source,
		Config:    cfg,
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	sess.AddObserver(NewRecorder(s))

	return func(at time.Time) {
		if err := s.Sessions().End(sess.ID(), at); err != nil {
			log.Printf("[store] failed to end session %s: %v", sess.ID(), err)
		}
	}, nil
}
