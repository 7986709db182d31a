package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"falciparum/internal/infra/persistence/postgres/testutil"
	"falciparum/pkg/domain"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	s, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, conn
}

func TestNewStoreCreatesRunsTable(t *testing.T) {
	_, conn := newStubStore(t)
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS runs") {
		t.Fatalf("expected runs DDL, got %v", conn.Execs)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://stub"); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestSaveLoadAndList(t *testing.T) {
	s, conn := newStubStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	runs := []domain.RunSnapshot{
		{RunID: "r1", CreatedAt: t0, Day: 5, Hosts: []domain.HostSnapshot{{ID: "h1"}}},
		{RunID: "r2", CreatedAt: t0.Add(time.Hour), Day: 10, Hosts: []domain.HostSnapshot{{ID: "h1"}, {ID: "h2"}}},
	}
	for _, run := range runs {
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("save %s: %v", run.RunID, err)
		}
	}
	runs[0].Day = 6
	if err := s.SaveRun(ctx, runs[0]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := len(conn.Rows("runs")); got != 2 {
		t.Fatalf("expected upsert to keep 2 rows, got %d", got)
	}

	got, err := s.LoadRun(ctx, "r2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Hosts) != 2 || got.Hosts[1].ID != "h2" {
		t.Fatalf("unexpected run %+v", got)
	}
	if _, err := s.LoadRun(ctx, "missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	list, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := map[string]domain.RunSummary{}
	for _, sum := range list {
		seen[sum.RunID] = sum
	}
	if len(seen) != 2 || seen["r1"].Day != 6 || seen["r2"].HostCount != 2 || !seen["r2"].CreatedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected summaries %+v", list)
	}
}

func TestSaveRunErrors(t *testing.T) {
	s, conn := newStubStore(t)
	ctx := context.Background()
	if err := s.SaveRun(ctx, domain.RunSnapshot{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
	conn.FailBegin = true
	if err := s.SaveRun(ctx, domain.RunSnapshot{RunID: "r"}); err == nil || !strings.Contains(err.Error(), "begin") {
		t.Fatalf("expected begin error, got %v", err)
	}
	conn.FailBegin = false
	conn.FailCommit = true
	if err := s.SaveRun(ctx, domain.RunSnapshot{RunID: "r"}); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
}
