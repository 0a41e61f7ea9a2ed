package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Event is one fired gesture.
type Event struct {
	ID         int64         `json:"id"`
	SessionID  string        `json:"session_id"`
	Gesture    string        `json:"gesture"`
	Confidence float64       `json:"confidence"`
	Votes      int           `json:"votes"`
	Offset     time.Duration `json:"offset"`
	CreatedAt  time.Time     `json:"created_at"`
}

// EventRepository provides access to the events table.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event and sets its ID. A zero CreatedAt is set to now.
func (r *EventRepository) Create(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO events (session_id, gesture, confidence, votes, offset_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Gesture, e.Confidence, e.Votes, e.Offset.Milliseconds(), toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event for %s: %w", e.SessionID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession returns a session's events in firing order.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, gesture, confidence, votes, offset_ms, created_at
		 FROM events WHERE session_id = ? ORDER BY offset_ms, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e       Event
			offset  int64
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Gesture, &e.Confidence, &e.Votes, &offset, &created); err != nil {
			return nil, err
		}
		e.Offset = time.Duration(offset) * time.Millisecond
		e.CreatedAt = fromMillis(created)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// CountBySession returns the number of events recorded for a session.
func (r *EventRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events for %s: %w", sessionID, err)
	}
	return n, nil
}
