package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"podscribe/internal/config"
)

const timestampLayout = time.RFC3339Nano

// Journal records run and attempt history.
type Journal interface {
	StartRun(ctx context.Context, run Run) error
	RecordAttempt(ctx context.Context, attempt Attempt) error
	FinishRun(ctx context.Context, runID string, outcome Outcome) error
	Close() error
}

// Store is the SQLite-backed Journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open returns the journal described by cfg: a SQLite store when history is
// enabled, otherwise a no-op journal.
func Open(cfg *config.Config) (Journal, error) {
	if cfg == nil || !cfg.History.Enabled {
		return Noop{}, nil
	}
	return OpenStore(cfg.History.Path)
}

// OpenStore initializes or connects to the history database at path and
// applies migrations.
func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Connection-scoped pragmas must hold for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a running run row.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, model, episode_limit, status) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timestampLayout), run.Model, run.Limit, RunRunning)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordAttempt appends an attempt to its run.
func (s *Store) RecordAttempt(ctx context.Context, attempt Attempt) error {
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (
            run_id, episode_id, title, status, failure_kind, error_message,
            audio_bytes, duration_ms, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.RunID,
		attempt.EpisodeID,
		attempt.Title,
		attempt.Status,
		nullableString(attempt.FailureKind),
		nullableString(attempt.Error),
		attempt.AudioBytes,
		attempt.Duration.Milliseconds(),
		attempt.StartedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and marks the run completed, or failed
// when outcome.Err is set.
func (s *Store) FinishRun(ctx context.Context, runID string, outcome Outcome) error {
	status := RunCompleted
	errMessage := ""
	if outcome.Err != nil {
		status = RunFailed
		errMessage = outcome.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, attempted = ?, succeeded = ?, failed = ?, total = ?, error_message = ?
        WHERE id = ?`,
		time.Now().UTC().Format(timestampLayout),
		status,
		outcome.Attempted,
		outcome.Succeeded,
		outcome.Failed,
		outcome.Total,
		nullableString(errMessage),
		runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, model, episode_limit, status, attempted, succeeded, failed, total, error_message
        FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			startedRaw  string
			finishedRaw sql.NullString
			errMessage  sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedRaw, &finishedRaw, &run.Model, &run.Limit, &run.Status,
			&run.Attempted, &run.Succeeded, &run.Failed, &run.Total, &errMessage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(startedRaw)
		if finishedRaw.Valid {
			finished := parseTime(finishedRaw.String)
			run.FinishedAt = &finished
		}
		run.Error = errMessage.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AttemptsForEpisode returns every attempt recorded for an episode, oldest
// first.
func (s *Store) AttemptsForEpisode(ctx context.Context, episodeID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, episode_id, title, status, failure_kind, error_message, audio_bytes, duration_ms, started_at
        FROM attempts WHERE episode_id = ? ORDER BY id ASC`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			attempt     Attempt
			failureKind sql.NullString
			errMessage  sql.NullString
			durationMS  int64
			startedRaw  string
		)
		if err := rows.Scan(&attempt.RunID, &attempt.EpisodeID, &attempt.Title, &attempt.Status,
			&failureKind, &errMessage, &attempt.AudioBytes, &durationMS, &startedRaw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempt.FailureKind = failureKind.String
		attempt.Error = errMessage.String
		attempt.Duration = time.Duration(durationMS) * time.Millisecond
		attempt.StartedAt = parseTime(startedRaw)
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
