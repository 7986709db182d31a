package core

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"falciparum/internal/config"
	"falciparum/internal/host"
	"falciparum/internal/infection"
	"falciparum/pkg/domain"
)

const adultAgeDays = 30 * 365

var testStrain = domain.StrainIdentity{Clade: 1, Genome: 42}

type fixedDrugs infection.DrugKillRates

func (d fixedDrugs) KillRates() infection.DrugKillRates { return infection.DrugKillRates(d) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestService(t *testing.T, seed uint64, opts ...Option) *Service {
	t.Helper()
	p := config.Default()
	svc, err := NewService(&p, seed, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// seedCohort adds n adults named h0..h{n-1} and challenges each of them.
func seedCohort(t *testing.T, svc *Service, n int, sporozoites int64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id, err := svc.AddHost(ctx, host.Settings{ID: "h" + string(rune('0'+i)), AgeDays: adultAgeDays})
		if err != nil {
			t.Fatalf("add host %d: %v", i, err)
		}
		if _, err := svc.Challenge(ctx, id, testStrain, sporozoites); err != nil {
			t.Fatalf("challenge %s: %v", id, err)
		}
	}
}

func stepDays(t *testing.T, svc *Service, days int) []StepReport {
	t.Helper()
	reports := make([]StepReport, 0, days)
	for d := 0; d < days; d++ {
		r, err := svc.Step(context.Background(), 1)
		if err != nil {
			t.Fatalf("step %d: %v", d, err)
		}
		reports = append(reports, r)
	}
	return reports
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	calls  []metricsCall
	events []domain.Event
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetrics) RecordEvent(_ context.Context, e domain.Event) {
	c.events = append(c.events, e)
}

func (c *captureMetrics) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type blockingRule struct{}

func (blockingRule) Name() string { return "always_block" }

func (blockingRule) Evaluate(_ context.Context, hosts []domain.HostSnapshot) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "always_block",
		Severity: domain.SeverityBlock,
		Message:  "blocked",
		HostID:   hosts[0].ID,
	}}}, nil
}
