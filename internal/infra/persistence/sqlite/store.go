// Package sqlite persists run snapshots to an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"falciparum/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

const defaultPath = "falciparum.db"

const schema = `CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	day        REAL NOT NULL,
	host_count INTEGER NOT NULL,
	payload    BLOB NOT NULL
)`

// Store keeps one row per run with the checkpoint encoded as JSON.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers on the file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// SaveRun upserts run.
func (s *Store) SaveRun(ctx context.Context, run domain.RunSnapshot) error {
	if run.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs (run_id, created_at, day, host_count, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			created_at = excluded.created_at,
			day = excluded.day,
			host_count = excluded.host_count,
			payload = excluded.payload`,
		run.RunID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Day, len(run.Hosts), payload)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// LoadRun decodes the checkpoint stored under runID.
func (s *Store) LoadRun(ctx context.Context, runID string) (domain.RunSnapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunSnapshot{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	if err != nil {
		return domain.RunSnapshot{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	var run domain.RunSnapshot
	if err := json.Unmarshal(payload, &run); err != nil {
		return domain.RunSnapshot{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns stored runs ordered by creation time, then id.
func (s *Store) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, created_at, day, host_count FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.RunSummary
	for rows.Next() {
		var (
			sum     domain.RunSummary
			created string
		)
		if err := rows.Scan(&sum.RunID, &created, &sum.Day, &sum.HostCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", sum.RunID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
