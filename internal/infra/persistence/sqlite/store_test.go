package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"falciparum/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndReloadAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	ctx := context.Background()
	first := openStore(t, path)
	run := domain.RunSnapshot{
		RunID:     "r1",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC),
		Day:       30,
		Seed:      11,
		Step:      30,
		Hosts: []domain.HostSnapshot{{
			ID:               "h1",
			MonteCarloWeight: 1,
			Immune:           domain.ImmuneSnapshot{RBCCount: 100, RBCCapacity: 200},
		}},
	}
	if err := first.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = first.Close()

	second := openStore(t, path)
	got, err := second.LoadRun(ctx, "r1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Seed != 11 || len(got.Hosts) != 1 || got.Hosts[0].Immune.RBCCount != 100 || !got.CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("round trip mismatch %+v", got)
	}
	if _, err := second.LoadRun(ctx, "missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestUpsertAndList(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "runs.db"))
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a"} {
		run := domain.RunSnapshot{RunID: id, CreatedAt: t0.Add(time.Duration(i) * time.Minute), Day: float64(i)}
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	replaced := domain.RunSnapshot{RunID: "b", CreatedAt: t0, Day: 9, Hosts: make([]domain.HostSnapshot, 3)}
	if err := s.SaveRun(ctx, replaced); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "b" || list[0].HostCount != 3 || list[0].Day != 9 || list[1].RunID != "a" {
		t.Fatalf("unexpected list %+v", list)
	}
	var tables int
	if err := s.DB().QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='runs'`).Scan(&tables); err != nil || tables != 1 {
		t.Fatalf("expected runs table, got %d err=%v", tables, err)
	}
}
