// Package history persists a timeline of recording runs in SQLite so
// `recap -history N` can list past sessions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded-and-transcribed session.
type Run struct {
	ID          int64
	SessionID   string
	RecordedAt  time.Time
	WAVPath     string
	DurationMs  int64
	SampleRate  int
	Model       string
	Backend     string
	Language    string
	Transcript  string
	Interrupted bool
}

// Store wraps the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open initialises the history database at path, creating the schema if
// needed.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    wav_path TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    sample_rate INTEGER NOT NULL,
    model TEXT,
    backend TEXT,
    language TEXT,
    transcript TEXT,
    interrupted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_recorded ON runs(recorded_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Append records one finished run.
func (s *Store) Append(ctx context.Context, r Run) error {
	const q = `INSERT INTO runs
		(session_id, recorded_at, wav_path, duration_ms, sample_rate, model, backend, language, transcript, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		r.SessionID, r.RecordedAt.UTC(), r.WAVPath, r.DurationMs, r.SampleRate,
		r.Model, r.Backend, r.Language, r.Transcript, boolToInt(r.Interrupted))
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// Recent returns the latest n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `SELECT id, session_id, recorded_at, wav_path, duration_ms, sample_rate,
		model, backend, language, transcript, interrupted
		FROM runs ORDER BY recorded_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var interrupted int
		if err := rows.Scan(&r.ID, &r.SessionID, &r.RecordedAt, &r.WAVPath, &r.DurationMs,
			&r.SampleRate, &r.Model, &r.Backend, &r.Language, &r.Transcript, &interrupted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Interrupted = interrupted != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
