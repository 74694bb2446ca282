// Package history keeps a best-effort journal of finished runs in SQLite.
// The pipeline never consults it; a broken journal costs a log line, not a
// run.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"upapasta/internal/pipeline"
)

// Store manages the run journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one journal row.
type Record struct {
	RunID        string
	Source       string
	Status       string
	ManifestPath string
	Message      string
	Stages       []StageRecord
	FinishedAt   time.Time
	Duration     time.Duration
}

// StageRecord is the per-stage slice of a journal row, stored as JSON.
type StageRecord struct {
	Stage     string  `json:"stage"`
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	DurationS float64 `json:"duration_s"`
	Simulated bool    `json:"simulated,omitempty"`
}

// Open initializes or connects to the journal database.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the journal file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        source TEXT NOT NULL,
        status TEXT NOT NULL,
        manifest_path TEXT NOT NULL DEFAULT '',
        message TEXT NOT NULL DEFAULT '',
        stages TEXT NOT NULL DEFAULT '[]',
        finished_at TEXT NOT NULL,
        duration_ms INTEGER NOT NULL DEFAULT 0
    )`)
	if err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// RecordRun journals a finished pipeline run.
func (s *Store) RecordRun(ctx context.Context, source string, outcome pipeline.RunOutcome) error {
	stages := make([]StageRecord, 0, len(outcome.StageResults))
	for _, result := range outcome.StageResults {
		stages = append(stages, StageRecord{
			Stage:     result.Stage,
			Status:    string(result.Status),
			Message:   result.Message,
			DurationS: result.Duration.Seconds(),
			Simulated: result.Simulated,
		})
	}
	encoded, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("encode stage results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, status, manifest_path, message, stages, finished_at, duration_ms)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.RunID,
		source,
		string(outcome.Status),
		outcome.ManifestPath,
		outcome.Message,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
		outcome.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// ListRecent returns the newest runs, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source, status, manifest_path, message, stages, finished_at, duration_ms
         FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var stages, finished string
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.Status, &rec.ManifestPath,
			&rec.Message, &stages, &finished, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		if err := json.Unmarshal([]byte(stages), &rec.Stages); err != nil {
			return nil, fmt.Errorf("decode stage results: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			rec.FinishedAt = ts
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
