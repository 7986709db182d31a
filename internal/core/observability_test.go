package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"falciparum/pkg/domain"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()
	rec.Observe(ctx, "step", true, 2*time.Millisecond)
	rec.Observe(ctx, "step", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)
	rec.RecordEvent(ctx, domain.Event{Kind: domain.EventNewClinicalCase, HostID: "h0"})
	rec.RecordEvent(ctx, domain.Event{Kind: domain.EventNewClinicalCase, HostID: "h1"})

	snap := rec.Snapshot()
	if snap.Results["step"]["success"] != 1 || snap.Results["step"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if snap.DurationsMS["step"] != 3 {
		t.Fatalf("expected 3ms total, got %g", snap.DurationsMS["step"])
	}
	if len(snap.Results) != 1 {
		t.Fatal("unnamed operations must be ignored")
	}
	if snap.Events[domain.EventNewClinicalCase] != 2 {
		t.Fatalf("unexpected events %+v", snap.Events)
	}
	v := expvar.Get(rec.Name())
	if v == nil || !strings.Contains(v.String(), "events_total") {
		t.Fatalf("recorder not published under %s", rec.Name())
	}
}

func TestJSONTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "checkpoint")
	span.End(errors.New("disk full"))
	_, span = tracer.Start(context.Background(), "step")
	span.End(nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two json lines, got %q", buf.String())
	}
	var first JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if first.Operation != "checkpoint" || first.Status != "error" || first.Error != "disk full" {
		t.Fatalf("unexpected span %+v", first)
	}
	if entries := tracer.Entries(); len(entries) != 2 || entries[1].Status != "success" {
		t.Fatalf("unexpected retained spans %+v", entries)
	}
}

func TestPrometheusRecorder(t *testing.T) {
	rec := NewPrometheusRecorder()
	ctx := context.Background()
	rec.Observe(ctx, "step", true, 10*time.Millisecond)
	rec.Observe(ctx, "checkpoint", false, time.Millisecond)
	rec.RecordEvent(ctx, domain.Event{Kind: domain.EventHostDeath})

	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]int{}
	var deaths, clinical float64 = -1, -1
	var failures float64
	for _, mf := range families {
		byName[mf.GetName()] = len(mf.GetMetric())
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				switch {
				case mf.GetName() == "falciparum_host_events_total" && lp.GetValue() == string(domain.EventHostDeath):
					deaths = m.GetCounter().GetValue()
				case mf.GetName() == "falciparum_host_events_total" && lp.GetValue() == string(domain.EventNewClinicalCase):
					clinical = m.GetCounter().GetValue()
				case mf.GetName() == "falciparum_operation_failures_total" && lp.GetValue() == "checkpoint":
					failures = m.GetCounter().GetValue()
				}
			}
		}
	}
	if byName["falciparum_operation_duration_seconds"] != 2 {
		t.Fatalf("expected two histogram series, got %v", byName)
	}
	if byName["falciparum_host_events_total"] != 5 {
		t.Fatalf("expected every event kind exported, got %v", byName)
	}
	if deaths != 1 || clinical != 0 || failures != 1 {
		t.Fatalf("deaths=%g clinical=%g failures=%g", deaths, clinical, failures)
	}
}

func TestServiceDrivesPrometheusRecorder(t *testing.T) {
	rec := NewPrometheusRecorder()
	svc := newTestService(t, 1, WithMetrics(rec))
	if _, err := svc.Step(context.Background(), 0); err == nil {
		t.Fatal("expected invalid dt to fail")
	}
	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "falciparum_operation_failures_total" {
			continue
		}
		if len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
			t.Fatalf("expected one step failure, got %v", mf.GetMetric())
		}
		return
	}
	t.Fatal("failure counter not exported")
}
