package domain

import (
	"context"
	"errors"
	"time"
)

// RunSnapshot is a checkpoint of every host in a cohort at a given simulation
// day. Seed and Step let a restored cohort continue on the same random streams.
type RunSnapshot struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Day       float64        `json:"day"`
	Seed      uint64         `json:"seed"`
	Step      uint64         `json:"step"`
	Hosts     []HostSnapshot `json:"hosts"`
}

// RunSummary describes a stored run without its host payload.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Day       float64   `json:"day"`
	HostCount int       `json:"host_count"`
}

// ErrRunNotFound is returned by stores when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// SnapshotStore is a minimal abstraction over durable checkpoint backends.
// Saving a run id that already exists replaces the stored checkpoint.
type SnapshotStore interface {
	SaveRun(ctx context.Context, run RunSnapshot) error
	LoadRun(ctx context.Context, runID string) (RunSnapshot, error)
	ListRuns(ctx context.Context) ([]RunSummary, error)
	Close() error
}
