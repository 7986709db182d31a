package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"falciparum/internal/archive/core"
)

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"runs/a.json", true},
		{"runs//b.json", true},
		{"", false},
		{"   ", false},
		{"/etc/passwd", false},
		{"../escape", false},
		{"runs/../../x", false},
		{"runs/a.json.meta", false},
	}
	for _, tc := range cases {
		_, err := sanitizeKey(tc.key)
		if (err == nil) != tc.ok {
			t.Fatalf("sanitizeKey(%q) err=%v, want ok=%v", tc.key, err, tc.ok)
		}
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	info, err := s.Put(ctx, "runs/r1.json", strings.NewReader(`{"day":3}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"hosts": "2"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 9 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "runs", "r1.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}

	got, rc, err := s.Get(ctx, "runs/r1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"day":3}` || got.ETag != info.ETag || got.Metadata["hosts"] != "2" {
		t.Fatalf("round trip mismatch %q %+v", body, got)
	}
	if _, err := s.Put(ctx, "runs/r1.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestMissingKeysAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, _, err := s.Get(ctx, "runs/none.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "runs/none.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, err := s.Delete(ctx, "runs/none.json"); ok || err != nil {
		t.Fatalf("delete missing: ok=%v err=%v", ok, err)
	}
	if _, err := s.Put(ctx, "runs/x.json", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := s.Delete(ctx, "runs/x.json"); !ok || err != nil {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if list, _ := s.List(ctx, ""); len(list) != 0 {
		t.Fatalf("expected empty archive, got %+v", list)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, k := range []string{"runs/b.json", "runs/a.json", "exports/c.csv"} {
		if _, err := s.Put(ctx, k, strings.NewReader(k), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := s.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "runs/a.json" || list[1].Key != "runs/b.json" {
		t.Fatalf("unexpected list %+v", list)
	}
}
