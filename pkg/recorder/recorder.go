// Package recorder stores per-cycle drive telemetry in SQLite so runs can
// be replayed or used as steering-model training data.
//
// Each Store writes one session. Tuned parameters are not stored.
package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-picar/internal/log"
	"github.com/teslashibe/go-picar/pkg/loop"
	"github.com/teslashibe/go-picar/pkg/vision"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder: closed")

// Session describes one recorded run.
type Session struct {
	ID        string
	Strategy  string
	CarIP     string
	StartedAt time.Time
	EndedAt   time.Time // zero while the run is open
}

// Cycle is one recorded control cycle.
type Cycle struct {
	Seq        uint64
	Time       time.Time
	FPS        float64
	Speed      int
	Steer      int
	Dispatched bool
	MaskJPEG   []byte // nil unless masks are recorded
}

// Option configures a Store.
type Option func(*Store)

// WithMasks stores the JPEG-encoded mask with every cycle.
func WithMasks(enabled bool) Option {
	return func(s *Store) {
		s.masks = enabled
	}
}

// WithSessionInfo labels the session with the steering strategy and car address.
func WithSessionInfo(strategy, carIP string) Option {
	return func(s *Store) {
		s.strategy = strategy
		s.carIP = carIP
	}
}

// Store is a loop.Recorder backed by a SQLite file.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	session string
	now     func() time.Time

	masks    bool
	strategy string
	carIP    string

	mu     sync.Mutex
	closed bool
}

// Ensure Store implements loop.Recorder
var _ loop.Recorder = (*Store)(nil)

// Open opens (or creates) the database at path, migrates it and starts a
// new session.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:       db,
		logger:   log.For("recorder"),
		session:  uuid.NewString(),
		now:      time.Now,
		strategy: "manual",
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := migrateUp(db, s.logger); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(
		`INSERT INTO sessions (session_id, strategy, car_ip, started_at) VALUES (?, ?, ?, ?)`,
		s.session, s.strategy, s.carIP, s.now().UnixNano(),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: start session: %w", err)
	}

	s.logger.Info("recording telemetry", "path", path, "session", s.session, "masks", s.masks)
	return s, nil
}

// Session returns the id of the session this Store writes.
func (s *Store) Session() string {
	return s.session
}

// Record implements loop.Recorder.
func (s *Store) Record(t loop.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var mask []byte
	if s.masks && !t.Mask.Empty() {
		data, err := vision.EncodeJPEG(t.Mask, vision.DefaultJPEGQuality)
		if err != nil {
			return fmt.Errorf("recorder: encode mask: %w", err)
		}
		mask = data
	}

	_, err := s.db.Exec(
		`INSERT INTO cycles (session_id, seq, ts, fps, speed, steer, dispatched, mask_jpeg)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.session, int64(t.Seq), t.Time.UnixNano(), t.FPS,
		t.Command.Speed, t.Command.Steer, t.Dispatched, mask,
	)
	if err != nil {
		return fmt.Errorf("recorder: insert cycle %d: %w", t.Seq, err)
	}
	return nil
}

// Cycles returns the cycles of session in sequence order.
func (s *Store) Cycles(session string) ([]Cycle, error) {
	rows, err := s.db.Query(
		`SELECT seq, ts, fps, speed, steer, dispatched, mask_jpeg
		 FROM cycles WHERE session_id = ? ORDER BY seq`,
		session,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var (
			c   Cycle
			seq int64
			ts  int64
		)
		if err := rows.Scan(&seq, &ts, &c.FPS, &c.Speed, &c.Steer, &c.Dispatched, &c.MaskJPEG); err != nil {
			return nil, err
		}
		c.Seq = uint64(seq)
		c.Time = time.Unix(0, ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Sessions lists all recorded sessions, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, strategy, car_ip, started_at, ended_at
		 FROM sessions ORDER BY started_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.Strategy, &sess.CarIP, &started, &ended); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(0, started)
		if ended.Valid {
			sess.EndedAt = time.Unix(0, ended.Int64)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Close ends the session and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_, err := s.db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, s.now().UnixNano(), s.session)
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
