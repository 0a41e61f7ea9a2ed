package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Session is one recorded input session.
type Session struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Config    json.RawMessage `json:"config"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides access to the sessions table.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session. A zero StartedAt is set to now and an empty
// Config is stored as "{}".
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	if len(sess.Config) == 0 {
		sess.Config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, config, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Source, string(sess.Config), toMillis(sess.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

// End marks a session finished. Ending an unknown session returns ErrNotFound.
func (r *SessionRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns one session.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, source, config, started_at, ended_at FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns the most recently started sessions first. A non-positive
// limit uses DefaultListLimit.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, source, config, started_at, ended_at FROM sessions
		 ORDER BY started_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess    Session
		config  string
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Source, &config, &started, &ended); err != nil {
		return nil, err
	}

	sess.Config = json.RawMessage(config)
	sess.StartedAt = fromMillis(started)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		sess.EndedAt = &t
	}
	return &sess, nil
}
