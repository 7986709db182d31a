// Package core drives a cohort of independent hosts: it steps them in
// parallel, checks model invariants after each step, reports events to the
// configured observability sinks and checkpoints the cohort to durable
// storage.
package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"falciparum/internal/archive"
	"falciparum/internal/config"
	"falciparum/internal/host"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// challengeStreams offsets the random streams used for challenges from the
// per-step streams of the same host.
const challengeStreams = uint64(1) << 63

// Service owns a cohort of hosts. Its methods are safe for concurrent use;
// Step holds the cohort lock while hosts are updated.
type Service struct {
	params *config.Params
	opts   serviceOptions

	mu    sync.Mutex
	seed  uint64
	day   float64
	step  uint64
	hosts []*hostEntry
	byID  map[string]*hostEntry
}

// hostEntry binds a host to its random seed and buffers the events it
// raises during a step. Each entry is only touched by the goroutine stepping
// it.
type hostEntry struct {
	host   *host.Host
	seed   uint64
	events []domain.Event
}

func (e *hostEntry) Broadcast(ev domain.Event) { e.events = append(e.events, ev) }

// StepReport summarises one cohort step.
type StepReport struct {
	Day    float64
	Events []domain.Event
	Result domain.Result
}

// Count returns how many events of kind the step produced.
func (r StepReport) Count(kind domain.EventKind) int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// NewService validates p and returns an empty cohort whose random streams
// derive from seed.
func NewService(p *config.Params, seed uint64, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, &domain.CapabilityError{Capability: "Params", Caller: "core.NewService"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		params: p,
		opts:   o,
		seed:   seed,
		byID:   make(map[string]*hostEntry),
	}, nil
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.opts.tracer.Start(ctx, op)
	start := s.opts.clock.Now()
	err := fn(ctx)
	elapsed := s.opts.clock.Now().Sub(start)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.opts.logger.Error("operation failed", "op", op, "error", err, "duration", elapsed)
		return err
	}
	s.opts.logger.Debug("operation completed", "op", op, "duration", elapsed)
	return nil
}

// AddHost creates a host from settings and returns its id. An empty id is
// replaced by a random UUID. Events and, when unset, Logger are supplied by
// the service.
func (s *Service) AddHost(ctx context.Context, settings host.Settings) (string, error) {
	var id string
	err := s.run(ctx, "add_host", func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if settings.ID == "" {
			settings.ID = uuid.NewString()
		}
		if _, dup := s.byID[settings.ID]; dup {
			return fmt.Errorf("host %s already exists", settings.ID)
		}
		entry := &hostEntry{seed: random.Derive(s.seed, uint64(len(s.hosts)))}
		settings.Events = entry
		if settings.Logger == nil {
			settings.Logger = s.opts.logger
		}
		h, err := host.New(s.params, random.New(entry.seed), settings)
		if err != nil {
			return err
		}
		entry.host = h
		s.hosts = append(s.hosts, entry)
		s.byID[h.ID()] = entry
		id = h.ID()
		return nil
	})
	return id, err
}

// Host returns the live host with id. Callers must not use it concurrently
// with Step.
func (s *Service) Host(id string) (*host.Host, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.host, true
}

// Challenge delivers an infectious bite of strain to host id and reports
// whether it started an infection.
func (s *Service) Challenge(ctx context.Context, id string, strain domain.StrainIdentity, sporozoites int64) (bool, error) {
	var infected bool
	err := s.run(ctx, "challenge", func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		e, ok := s.byID[id]
		if !ok {
			return fmt.Errorf("host %s not found", id)
		}
		rng := random.New(random.Derive(e.seed, challengeStreams|e.host.NextInfectionID()))
		var err error
		infected, err = e.host.Challenge(rng, strain, sporozoites)
		return err
	})
	return infected, err
}

// Step advances every host by dt days. Hosts are updated in parallel, each on
// a stream derived from its seed and the step number, so results do not
// depend on the degree of concurrency. After the update the rules engine
// checks the cohort; blocking violations fail the step with a
// domain.RuleViolationError.
func (s *Service) Step(ctx context.Context, dt float64) (StepReport, error) {
	var report StepReport
	err := s.run(ctx, "step", func(ctx context.Context) error {
		if !(dt > 0) {
			return &domain.ConfigError{Param: "dt", Reason: fmt.Sprintf("must be positive, got %g", dt)}
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.concurrency)
		step := s.step
		for _, e := range s.hosts {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := e.host.Update(random.New(random.Derive(e.seed, step)), dt); err != nil {
					return fmt.Errorf("host %s: %w", e.host.ID(), err)
				}
				return nil
			})
		}
		err := g.Wait()
		events := s.drainEventsLocked()
		if err != nil {
			return err
		}
		s.step++
		s.day += dt
		report.Day = s.day
		report.Events = events
		s.recordEvents(ctx, events)

		if s.opts.rules == nil {
			return nil
		}
		res, err := s.opts.rules.Evaluate(ctx, s.snapshotsLocked())
		if err != nil {
			return fmt.Errorf("evaluate rules: %w", err)
		}
		report.Result = res
		for _, v := range res.Violations {
			switch v.Severity {
			case domain.SeverityBlock:
				s.opts.logger.Error("rule violation", "rule", v.Rule, "host_id", v.HostID, "message", v.Message)
			case domain.SeverityWarn:
				s.opts.logger.Warn("rule violation", "rule", v.Rule, "host_id", v.HostID, "message", v.Message)
			default:
				s.opts.logger.Info("rule violation", "rule", v.Rule, "host_id", v.HostID, "message", v.Message)
			}
		}
		if res.HasBlocking() {
			return domain.RuleViolationError{Result: res}
		}
		return nil
	})
	return report, err
}

// drainEventsLocked collects buffered events in host order.
func (s *Service) drainEventsLocked() []domain.Event {
	var out []domain.Event
	for _, e := range s.hosts {
		out = append(out, e.events...)
		e.events = e.events[:0]
	}
	return out
}

func (s *Service) recordEvents(ctx context.Context, events []domain.Event) {
	rec, _ := s.opts.metrics.(EventRecorder)
	for _, ev := range events {
		s.opts.logger.Info("host event", "kind", ev.Kind, "host_id", ev.HostID, "cause", ev.Cause, "day", s.day)
		if rec != nil {
			rec.RecordEvent(ctx, ev)
		}
	}
}

// Day returns the simulated time in days.
func (s *Service) Day() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Len returns the number of hosts, dead or alive.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hosts)
}

// Hosts returns snapshots of every host in insertion order.
func (s *Service) Hosts() []domain.HostSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotsLocked()
}

func (s *Service) snapshotsLocked() []domain.HostSnapshot {
	out := make([]domain.HostSnapshot, len(s.hosts))
	for i, e := range s.hosts {
		out[i] = e.host.Snapshot()
	}
	return out
}

// Checkpoint saves the cohort under a new run id to the store and, when
// configured, the archive.
func (s *Service) Checkpoint(ctx context.Context) (string, error) {
	var runID string
	err := s.run(ctx, "checkpoint", func(ctx context.Context) error {
		if s.opts.store == nil && s.opts.archive == nil {
			return &domain.CapabilityError{Capability: "SnapshotStore", Caller: "core.Checkpoint"}
		}
		s.mu.Lock()
		run := domain.RunSnapshot{
			RunID:     uuid.NewString(),
			CreatedAt: s.opts.clock.Now().UTC(),
			Day:       s.day,
			Seed:      s.seed,
			Step:      s.step,
			Hosts:     s.snapshotsLocked(),
		}
		s.mu.Unlock()
		if s.opts.store != nil {
			if err := s.opts.store.SaveRun(ctx, run); err != nil {
				return err
			}
		}
		if s.opts.archive != nil {
			if _, err := archive.PutRun(ctx, s.opts.archive, run); err != nil {
				return fmt.Errorf("archive run %s: %w", run.RunID, err)
			}
		}
		runID = run.RunID
		s.opts.logger.Info("checkpoint saved", "run_id", run.RunID, "day", run.Day, "hosts", len(run.Hosts))
		return nil
	})
	return runID, err
}

// Restore replaces the cohort with the checkpoint runID, read from the store
// or else the archive. Drug effect providers are not persisted and must be
// reinstalled on the restored hosts.
func (s *Service) Restore(ctx context.Context, runID string) error {
	return s.run(ctx, "restore", func(ctx context.Context) error {
		run, err := s.loadRun(ctx, runID)
		if err != nil {
			return err
		}
		hosts := make([]*hostEntry, 0, len(run.Hosts))
		byID := make(map[string]*hostEntry, len(run.Hosts))
		for i, snap := range run.Hosts {
			entry := &hostEntry{seed: random.Derive(run.Seed, uint64(i))}
			h, err := host.Restore(s.params, snap, host.Settings{Events: entry, Logger: s.opts.logger})
			if err != nil {
				return fmt.Errorf("restore host %s: %w", snap.ID, err)
			}
			entry.host = h
			hosts = append(hosts, entry)
			byID[h.ID()] = entry
		}
		s.mu.Lock()
		s.seed, s.day, s.step = run.Seed, run.Day, run.Step
		s.hosts, s.byID = hosts, byID
		s.mu.Unlock()
		return nil
	})
}

func (s *Service) loadRun(ctx context.Context, runID string) (domain.RunSnapshot, error) {
	switch {
	case s.opts.store != nil:
		return s.opts.store.LoadRun(ctx, runID)
	case s.opts.archive != nil:
		return archive.GetRun(ctx, s.opts.archive, runID)
	default:
		return domain.RunSnapshot{}, &domain.CapabilityError{Capability: "SnapshotStore", Caller: "core.Restore"}
	}
}
