// Package postgres persists run snapshots to PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"falciparum/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/falciparum?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the function used to open connections and returns a
// restore func. Tests use it to inject a stub driver.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Store keeps one row per run with the checkpoint in a JSONB column.
type Store struct {
	db *sql.DB
}

// NewStore connects to dsn (defaultDSN when empty) and ensures the runs table.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		day DOUBLE PRECISION NOT NULL,
		host_count INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure runs table: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// SaveRun upserts run inside a transaction.
func (s *Store) SaveRun(ctx context.Context, run domain.RunSnapshot) error {
	if run.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (run_id, created_at, day, host_count, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			day = EXCLUDED.day,
			host_count = EXCLUDED.host_count,
			payload = EXCLUDED.payload`,
		run.RunID, run.CreatedAt.UTC(), run.Day, len(run.Hosts), payload)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return nil
}

// LoadRun decodes the checkpoint stored under runID.
func (s *Store) LoadRun(ctx context.Context, runID string) (domain.RunSnapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE run_id = $1`, runID).Scan(&payload)
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
			created time.Time
		)
		if err := rows.Scan(&sum.RunID, &created, &sum.Day, &sum.HostCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.CreatedAt = created.UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }
