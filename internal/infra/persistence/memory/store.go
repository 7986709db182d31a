// Package memory provides an in-memory run snapshot store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"falciparum/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

type entry struct {
	summary domain.RunSummary
	payload []byte
}

// Store keeps encoded checkpoints in a map. Payloads are stored as JSON so
// callers never share slices with the store.
type Store struct {
	mu   sync.RWMutex
	runs map[string]entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{runs: make(map[string]entry)}
}

// SaveRun stores run, replacing any checkpoint with the same id.
func (s *Store) SaveRun(ctx context.Context, run domain.RunSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	s.mu.Lock()
	s.runs[run.RunID] = entry{summary: summarize(run), payload: b}
	s.mu.Unlock()
	return nil
}

// LoadRun decodes the checkpoint stored under runID.
func (s *Store) LoadRun(ctx context.Context, runID string) (domain.RunSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.RunSnapshot{}, err
	}
	s.mu.RLock()
	e, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return domain.RunSnapshot{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	var run domain.RunSnapshot
	if err := json.Unmarshal(e.payload, &run); err != nil {
		return domain.RunSnapshot{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns stored runs ordered by creation time, then id.
func (s *Store) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.RunSummary, 0, len(s.runs))
	for _, e := range s.runs {
		out = append(out, e.summary)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func summarize(run domain.RunSnapshot) domain.RunSummary {
	return domain.RunSummary{
		RunID:     run.RunID,
		CreatedAt: run.CreatedAt.UTC(),
		Day:       run.Day,
		HostCount: len(run.Hosts),
	}
}
