// Package archive stores cohort checkpoints as immutable JSON objects on a
// pluggable object store (filesystem, memory or S3).
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"falciparum/internal/archive/core"
	"falciparum/pkg/domain"
)

type (
	// Driver identifies an archive backend.
	Driver = core.Driver
	// PutOptions configures a write.
	PutOptions = core.PutOptions
	// Info describes a stored object.
	Info = core.Info
	// Store is the interface implemented by every archive driver.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

const runPrefix = "runs/"

// RunKey is the object key of a run checkpoint.
func RunKey(runID string) string { return runPrefix + runID + ".json" }

// PutRun writes run as JSON under RunKey. A run id can be archived once.
func PutRun(ctx context.Context, s Store, run domain.RunSnapshot) (Info, error) {
	b, err := json.Marshal(run)
	if err != nil {
		return Info{}, fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	return s.Put(ctx, RunKey(run.RunID), bytes.NewReader(b), PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"day":        strconv.FormatFloat(run.Day, 'g', -1, 64),
			"host-count": strconv.Itoa(len(run.Hosts)),
		},
	})
}

// GetRun reads a run checkpoint. Unknown ids return domain.ErrRunNotFound.
func GetRun(ctx context.Context, s Store, runID string) (domain.RunSnapshot, error) {
	_, rc, err := s.Get(ctx, RunKey(runID))
	if err != nil {
		if isNotFound(err) {
			return domain.RunSnapshot{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return domain.RunSnapshot{}, err
	}
	defer rc.Close()
	var run domain.RunSnapshot
	if err := json.NewDecoder(rc).Decode(&run); err != nil {
		return domain.RunSnapshot{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the ids of archived runs in key order.
func ListRuns(ctx context.Context, s Store) ([]string, error) {
	infos, err := s.List(ctx, runPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		id, ok := strings.CutSuffix(strings.TrimPrefix(info.Key, runPrefix), ".json")
		if ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
