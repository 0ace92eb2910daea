// Package session persists one row per extraction run so status and
// download endpoints can answer after the upload request has returned.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/compliancedesk/filings/internal/common"
)

// Session states, in lifecycle order.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusDegraded   = "succeeded-degraded"
	StatusFailed     = "failed"
)

// Schema for the sessions table. Applied by Store.Init.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	detected_type TEXT NOT NULL DEFAULT '',
	parse_method TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	records INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	degraded INTEGER NOT NULL DEFAULT 0,
	artifact_path TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`

// Session is one extraction run's persisted state.
type Session struct {
	ID           string
	FileName     string
	DetectedType string
	ParseMethod  string
	Attempts     int
	Records      int
	Status       string
	Degraded     bool
	ArtifactPath string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store wraps the SQLite session table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and creates if needed) the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the sessions table if it does not exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("init session schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a queued session for an accepted upload.
func (s *Store) Create(ctx context.Context, id, fileName string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, file_name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, fileName, StatusQueued, now, now)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	s.logger.Info("session.create", "session_id", id, "file", fileName)
	return nil
}

// MarkProcessing flips a queued session to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		StatusProcessing, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("mark session %s processing: %w", id, err)
	}
	return nil
}

// Finish records the terminal state of a run.
func (s *Store) Finish(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET detected_type = ?, parse_method = ?, attempts = ?, records = ?,
		     status = ?, degraded = ?, artifact_path = ?, error = ?, updated_at = ?
		 WHERE id = ?`,
		sess.DetectedType, sess.ParseMethod, sess.Attempts, sess.Records,
		sess.Status, boolToInt(sess.Degraded), sess.ArtifactPath, sess.Error,
		time.Now().Unix(), sess.ID)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", sess.ID, err)
	}
	s.logger.Info("session.finish",
		"session_id", sess.ID,
		"status", sess.Status,
		"attempts", sess.Attempts,
		"records", sess.Records)
	return nil
}

// Get returns one session, or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, detected_type, parse_method, attempts, records,
		        status, degraded, artifact_path, error, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	var sess Session
	var degraded int
	var created, updated int64
	err := row.Scan(&sess.ID, &sess.FileName, &sess.DetectedType, &sess.ParseMethod,
		&sess.Attempts, &sess.Records, &sess.Status, &degraded,
		&sess.ArtifactPath, &sess.Error, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.Degraded = degraded != 0
	sess.CreatedAt = time.Unix(created, 0)
	sess.UpdatedAt = time.Unix(updated, 0)
	return &sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
