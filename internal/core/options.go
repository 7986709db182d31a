package core

import (
	"context"
	"runtime"
	"time"

	"falciparum/internal/archive"
	"falciparum/pkg/domain"
)

// Clock supplies wall-clock time for checkpoint stamps and operation timing.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and duration of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// EventRecorder is implemented by metrics recorders that also count host
// events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event domain.Event)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock       Clock
	logger      domain.Logger
	metrics     MetricsRecorder
	tracer      Tracer
	store       domain.SnapshotStore
	archive     archive.Store
	rules       *domain.RulesEngine
	concurrency int
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:       ClockFunc(time.Now),
		logger:      domain.NopLogger{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		rules:       NewDefaultRulesEngine(),
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the service logger. Hosts added without their own logger
// inherit it.
func WithLogger(l domain.Logger) Option {
	return func(o *serviceOptions) { o.logger = domain.LoggerOrNop(l) }
}

// WithMetrics installs a metrics recorder. Recorders that implement
// EventRecorder also receive every host event.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStore sets the checkpoint store used by Checkpoint and Restore.
func WithStore(s domain.SnapshotStore) Option {
	return func(o *serviceOptions) { o.store = s }
}

// WithArchive sets the object archive checkpoints are copied to.
func WithArchive(a archive.Store) Option {
	return func(o *serviceOptions) { o.archive = a }
}

// WithRulesEngine replaces the default post-step rules. A nil engine
// disables rule evaluation.
func WithRulesEngine(e *domain.RulesEngine) Option {
	return func(o *serviceOptions) { o.rules = e }
}

// WithConcurrency bounds the number of hosts stepped in parallel.
func WithConcurrency(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
