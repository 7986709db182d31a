// Package host aggregates one individual's immune state and concurrent
// infections, stepping them together and exposing clinical, diagnostic and
// transmission outputs.
package host

import (
	"falciparum/internal/config"
	"falciparum/internal/immune"
	"falciparum/internal/infection"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// Settings are the per-host inputs to New.
type Settings struct {
	ID                       string
	AgeDays                  float64
	MonteCarloWeight         float64
	MaternalAntibodyStrength float64
	// Events receives clinical, clearance and death notifications. Required.
	Events domain.EventSink
	// Drugs supplies kill rates; nil means untreated.
	Drugs  infection.DrugEffects
	Logger domain.Logger
}

// Host owns an immune state and the infections it carries. A Host is not
// safe for concurrent use; callers step distinct hosts on distinct
// goroutines, each with its own random source.
type Host struct {
	params *config.Params
	events domain.EventSink
	logger domain.Logger
	drugs  infection.DrugEffects

	id                  string
	weight              float64
	mortalityMultiplier float64
	dead                bool

	immune          *immune.State
	infections      []*infection.Infection
	nextInfectionID uint64

	reservoir      map[domain.StrainIdentity]*gametocytePool
	infectiousness float64
	diagnostics    domain.DiagnosticReadings
}

// New creates a healthy host. rng draws the host's innate immune variation.
func New(p *config.Params, rng random.Source, s Settings) (*Host, error) {
	if s.Events == nil {
		return nil, &domain.CapabilityError{Capability: "EventSink", Caller: "host.New"}
	}
	st, err := immune.New(p, s.Events, rng, immune.Settings{
		HostID:                   s.ID,
		AgeDays:                  s.AgeDays,
		MaternalAntibodyStrength: s.MaternalAntibodyStrength,
		Logger:                   s.Logger,
	})
	if err != nil {
		return nil, err
	}
	return newHost(p, st, s), nil
}

func newHost(p *config.Params, st *immune.State, s Settings) *Host {
	weight := s.MonteCarloWeight
	if weight <= 0 {
		weight = 1
	}
	return &Host{
		params:              p,
		events:              s.Events,
		logger:              domain.LoggerOrNop(s.Logger),
		drugs:               s.Drugs,
		id:                  s.ID,
		weight:              weight,
		mortalityMultiplier: 1,
		immune:              st,
		reservoir:           make(map[domain.StrainIdentity]*gametocytePool),
	}
}

func (h *Host) ID() string                   { return h.id }
func (h *Host) MonteCarloWeight() float64    { return h.weight }
func (h *Host) Dead() bool                   { return h.dead }
func (h *Host) Immune() *immune.State        { return h.immune }
func (h *Host) InfectionCount() int          { return len(h.infections) }
func (h *Host) NextInfectionID() uint64      { return h.nextInfectionID }
func (h *Host) Infectiousness() float64      { return h.infectiousness }
func (h *Host) ParasiteDensity() float64     { return h.immune.ParasiteDensity() }
func (h *Host) Fever() float64               { return h.immune.Fever() }
func (h *Host) FeverCelsius() float64        { return h.immune.FeverCelsius() }
func (h *Host) Hemoglobin() float64          { return h.immune.Hemoglobin() }
func (h *Host) InvMicrolitersBlood() float64 { return h.immune.InvMicrolitersBlood() }

// Infections returns the live infections in insertion order.
func (h *Host) Infections() []*infection.Infection {
	return append([]*infection.Infection(nil), h.infections...)
}

// Symptoms returns the clinical flags raised during the last step.
func (h *Host) Symptoms() []domain.ClinicalSymptom { return h.immune.Symptoms() }

// SetDrugEffects installs or clears (nil) the drug kill-rate provider.
func (h *Host) SetDrugEffects(d infection.DrugEffects) { h.drugs = d }

// SetMortalityMultiplier scales the fatal disease probability, e.g. 0 while
// the host is under effective treatment.
func (h *Host) SetMortalityMultiplier(m float64) {
	if m < 0 {
		m = 0
	}
	h.mortalityMultiplier = m
}

// TotalIRBC sums asexual parasites over every infection.
func (h *Host) TotalIRBC() int64 {
	var total int64
	for _, inf := range h.infections {
		total += inf.TotalIRBC()
	}
	return total
}

// Update advances the host by dt days: infections first, then the immune
// response to what they presented, then the clinical course, gametocyte
// reservoir and infection bookkeeping. Fatal errors abort the step.
func (h *Host) Update(rng random.Source, dt float64) error {
	if h.dead {
		return nil
	}
	for _, inf := range h.infections {
		if err := inf.Update(rng, dt, h.drugs); err != nil {
			return err
		}
	}
	h.immune.SetParasiteDensity(float64(h.TotalIRBC()) * h.immune.InvMicrolitersBlood())
	h.immune.Update(dt)
	fatal := h.immune.UpdateClinical(rng, dt, h.mortalityMultiplier)

	h.collectGametocytes(dt)
	h.infectiousness = h.computeInfectiousness()

	if h.removeFinishedInfections() {
		fatal = true
	}
	if fatal {
		h.die()
	}
	return nil
}

// removeFinishedInfections drops every infection that signalled a terminal
// state and reports whether any of them killed the host.
func (h *Host) removeFinishedInfections() bool {
	fatal := false
	live := h.infections[:0]
	for _, inf := range h.infections {
		switch inf.StateChange() {
		case domain.StateChangeNone:
			live = append(live, inf)
		case domain.StateChangeCleared:
			h.logger.Debug("infection cleared", "host_id", h.id, "infection_id", inf.ID(), "duration", inf.Duration())
			h.broadcast(domain.EventInfectionClear)
		case domain.StateChangeFatal:
			fatal = true
		}
	}
	clear(h.infections[len(live):])
	h.infections = live
	return fatal
}

func (h *Host) die() {
	h.dead = true
	h.infections = nil
	h.infectiousness = 0
	h.logger.Info("host died", "host_id", h.id, "age_days", h.immune.AgeDays())
	h.broadcast(domain.EventHostDeath)
}

func (h *Host) broadcast(kind domain.EventKind) {
	h.events.Broadcast(domain.Event{Kind: kind, HostID: h.id})
}
