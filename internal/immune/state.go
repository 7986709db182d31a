// Package immune models a host's red blood cells, innate cytokine response,
// antibody repertoire and clinical course.
package immune

import (
	"math"

	"falciparum/internal/antibody"
	"falciparum/internal/config"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

const (
	birthBloodLiters  = 0.3
	adultBloodLiters  = 5.0
	adultAgeDays      = 20 * 365.0
	rbcPerMicroliter  = 5e6
	fullHemoglobin    = 15.0
	normalTemperature = 37.0

	// Capacity above which a variant counts as "having antibodies".
	antibodyPresenceCapacity = 1e-7
)

// Settings are the per-host inputs to New.
type Settings struct {
	HostID string
	// AgeDays is the host age at creation.
	AgeDays float64
	// MaternalAntibodyStrength is the initial maternal antibody residual in
	// [0, 1], typically nonzero only for newborns.
	MaternalAntibodyStrength float64
	Logger                   domain.Logger
}

// State is the immune system of one host. It is not safe for concurrent use.
type State struct {
	params *config.Params
	events domain.EventSink
	logger domain.Logger
	hostID string

	antibodies *antibody.Registry

	ageDays             float64
	invMicrolitersBlood float64

	rbcCount      int64
	rbcCapacity   int64
	rbcProduction int64

	cytokines           float64
	cytokineStimulation float64
	pyrogenicThreshold  float64
	feverKillRate       float64
	innateMultiplier    float64

	parasiteDensity          float64
	maternalAntibodyStrength float64

	clinical clinicalCourse
}

// New creates the immune state of a host. The event sink is required; rng
// draws the host's innate immune variation.
func New(p *config.Params, events domain.EventSink, rng random.Source, s Settings) (*State, error) {
	if p == nil {
		return nil, &domain.CapabilityError{Capability: "config.Params", Caller: "immune.New"}
	}
	if events == nil {
		return nil, &domain.CapabilityError{Capability: "EventSink", Caller: "immune.New"}
	}
	if rng == nil {
		return nil, &domain.CapabilityError{Capability: "random.Source", Caller: "immune.New"}
	}
	st := &State{
		params:                   p,
		events:                   events,
		logger:                   domain.LoggerOrNop(s.Logger),
		hostID:                   s.HostID,
		antibodies:               antibody.NewRegistry(p),
		ageDays:                  s.AgeDays,
		maternalAntibodyStrength: clampUnit(s.MaternalAntibodyStrength),
		innateMultiplier:         1,
	}
	if p.InnateImmuneVariationType != config.InnateNone && p.InnateImmuneDistributionSigma > 0 {
		st.innateMultiplier = math.Exp(rng.Normal(0, p.InnateImmuneDistributionSigma))
	}
	st.updateBloodVolume()
	st.rbcCount = st.rbcCapacity
	st.rbcProduction = int64(float64(st.rbcCapacity) / p.RBCLifetimeDays)
	st.applyInnateVariation()
	return st, nil
}

func (s *State) updateBloodVolume() {
	liters := birthBloodLiters + (adultBloodLiters-birthBloodLiters)*math.Min(s.ageDays/adultAgeDays, 1)
	microliters := liters * 1e6
	s.invMicrolitersBlood = 1 / microliters
	s.rbcCapacity = int64(microliters * rbcPerMicroliter)
}

func (s *State) applyInnateVariation() {
	p := s.params
	s.pyrogenicThreshold = p.PyrogenicThreshold
	s.feverKillRate = p.FeverIRBCKillRate
	switch p.InnateImmuneVariationType {
	case config.InnatePyrogenicThreshold:
		s.pyrogenicThreshold *= s.innateMultiplier
	case config.InnateCytokineKilling:
		s.feverKillRate *= s.innateMultiplier
	case config.InnatePyrogenicThresholdByAge:
		s.pyrogenicThreshold *= s.innateMultiplier * (1 + math.Min(s.ageDays/adultAgeDays, 1))
	}
}

// Update advances the host-level immune state by dt days. Infections must
// already have reported their antigen counts for this step; the counters are
// consumed and reset here.
func (s *State) Update(dt float64) {
	s.ageDays += dt
	s.updateBloodVolume()
	if s.params.InnateImmuneVariationType == config.InnatePyrogenicThresholdByAge {
		s.applyInnateVariation()
	}

	s.maternalAntibodyStrength *= math.Exp(-s.params.MaternalAntibodyDecayRate * dt)

	s.cytokineStimulation = s.antibodies.StimulateCytokines(s.invMicrolitersBlood, s.cytokineWeight)
	target := saturatingFever(s.cytokineStimulation/s.pyrogenicThreshold, s.params.MaxFever)
	s.cytokines = target + (s.cytokines-target)*math.Exp(-s.params.CytokineRelaxationRate*dt)
	if s.cytokines < 0 {
		s.logger.Debug("clamped negative cytokines", "host_id", s.hostID, "value", s.cytokines)
		s.cytokines = 0
	}

	s.antibodies.Update(dt, s.invMicrolitersBlood)
	s.antibodies.ResetCounters()

	s.updateRBCs(dt)
}

// saturatingFever maps stimulation relative to the pyrogenic threshold to a
// fever excess. It tracks x for small stimulation and never exceeds ceiling.
func saturatingFever(x, ceiling float64) float64 {
	if x <= 0 {
		return 0
	}
	return ceiling * x / (ceiling + x)
}

func (s *State) cytokineWeight(t domain.AntibodyType) float64 {
	switch t {
	case domain.AntibodyPfEMP1Major:
		return 1
	case domain.AntibodyPfEMP1Minor:
		return s.params.NonspecificAntigenicityFactor
	}
	return 0
}

func (s *State) updateRBCs(dt float64) {
	lifetime := s.params.RBCLifetimeDays
	production := float64(s.rbcCapacity) / lifetime * math.Exp(s.params.ErythropoiesisAnemiaEffect*(1-s.RBCAvailability()))
	s.rbcProduction = int64(production)
	next := float64(s.rbcCount) + production*dt - float64(s.rbcCount)/lifetime*dt
	switch {
	case next < 0:
		s.logger.Debug("clamped negative rbc count", "host_id", s.hostID, "value", next)
		next = 0
	case next > float64(s.rbcCapacity):
		next = float64(s.rbcCapacity)
	}
	s.rbcCount = int64(next)
}

// RegisterAntibody returns the host's antibody for (t, variant), creating it
// on first reference.
func (s *State) RegisterAntibody(t domain.AntibodyType, variant int) (*antibody.Variant, error) {
	return s.antibodies.Register(t, variant)
}

// Antibodies exposes the registry for inspection.
func (s *State) Antibodies() *antibody.Registry { return s.antibodies }

// RemoveRBCs destroys n red blood cells, never dropping below zero.
func (s *State) RemoveRBCs(n int64) {
	if n <= 0 {
		return
	}
	s.rbcCount -= n
	if s.rbcCount < 0 {
		s.logger.Debug("clamped negative rbc count", "host_id", s.hostID, "value", s.rbcCount)
		s.rbcCount = 0
	}
}

// SetParasiteDensity records this step's asexual parasite density per
// microliter.
func (s *State) SetParasiteDensity(d float64) {
	if d < 0 {
		d = 0
	}
	s.parasiteDensity = d
}

// BoostMaternalAntibodies raises the maternal residual to at least strength.
func (s *State) BoostMaternalAntibodies(strength float64) {
	s.maternalAntibodyStrength = math.Max(s.maternalAntibodyStrength, clampUnit(strength))
}

func (s *State) AgeDays() float64             { return s.ageDays }
func (s *State) InvMicrolitersBlood() float64 { return s.invMicrolitersBlood }
func (s *State) RBCCount() int64              { return s.rbcCount }
func (s *State) RBCCapacity() int64           { return s.rbcCapacity }
func (s *State) RBCProduction() int64         { return s.rbcProduction }
func (s *State) Cytokines() float64           { return s.cytokines }
func (s *State) PyrogenicThreshold() float64  { return s.pyrogenicThreshold }
func (s *State) FeverKillRate() float64       { return s.feverKillRate }
func (s *State) ParasiteDensity() float64     { return s.parasiteDensity }

// Fever is the temperature excess over normal, in degrees Celsius.
func (s *State) Fever() float64 { return s.cytokines }

// FeverCelsius is the body temperature.
func (s *State) FeverCelsius() float64 { return normalTemperature + s.Fever() }

// RBCAvailability is the fraction of red blood cell capacity present.
func (s *State) RBCAvailability() float64 {
	if s.rbcCapacity <= 0 {
		return 0
	}
	return float64(s.rbcCount) / float64(s.rbcCapacity)
}

// Hemoglobin in g/dL, proportional to red blood cell density.
func (s *State) Hemoglobin() float64 {
	return fullHemoglobin * float64(s.rbcCount) * s.invMicrolitersBlood / rbcPerMicroliter
}

// MaternalAntibodyStrength is the remaining maternal antibody fraction.
func (s *State) MaternalAntibodyStrength() float64 { return s.maternalAntibodyStrength }

// MaternalAntibody is the maternal contribution to antibody killing.
func (s *State) MaternalAntibody() float64 {
	return s.maternalAntibodyStrength * s.params.MaternalAntibodyProtection
}

// FractionWithAntibodies returns the share of the configured variants of t
// against which the host holds any antibody capacity.
func (s *State) FractionWithAntibodies(t domain.AntibodyType) float64 {
	n := antibody.VariantCount(s.params, t)
	if n == 0 {
		return 0
	}
	return float64(s.antibodies.CountWithCapacity(t, antibodyPresenceCapacity)) / float64(n)
}

// Snapshot returns the persisted form of the state.
func (s *State) Snapshot() domain.ImmuneSnapshot {
	c := s.clinical
	return domain.ImmuneSnapshot{
		AgeDays:                    s.ageDays,
		InvMicrolitersBlood:        s.invMicrolitersBlood,
		RBCCount:                   s.rbcCount,
		RBCCapacity:                s.rbcCapacity,
		RBCProduction:              s.rbcProduction,
		Cytokines:                  s.cytokines,
		CytokineStimulation:        s.cytokineStimulation,
		PyrogenicThreshold:         s.pyrogenicThreshold,
		FeverKillRate:              s.feverKillRate,
		InnateMultiplier:           s.innateMultiplier,
		ParasiteDensity:            s.parasiteDensity,
		MaternalAntibodyStrength:   s.maternalAntibodyStrength,
		CumulativeDaysClinical:     c.daysClinical,
		CumulativeDaysSevere:       c.daysSevere,
		CumulativeDaysSevereAnemia: c.daysSevereAnemia,
		DaysBetweenIncidents:       c.daysBetweenIncidents,
		SevereCaseType:             c.severeCaseType,
		MaxFever:                   c.maxFever,
		MaxParasiteDensity:         c.maxParasiteDensity,
		Antibodies:                 s.antibodies.Snapshots(),
	}
}

// Restore replaces the state with a snapshot. Antibody handles held by
// infections must be re-registered afterwards.
func (s *State) Restore(snap domain.ImmuneSnapshot) error {
	if err := s.antibodies.Restore(snap.Antibodies); err != nil {
		return err
	}
	s.ageDays = snap.AgeDays
	s.invMicrolitersBlood = snap.InvMicrolitersBlood
	s.rbcCount = snap.RBCCount
	s.rbcCapacity = snap.RBCCapacity
	s.rbcProduction = snap.RBCProduction
	s.cytokines = snap.Cytokines
	s.cytokineStimulation = snap.CytokineStimulation
	s.pyrogenicThreshold = snap.PyrogenicThreshold
	s.feverKillRate = snap.FeverKillRate
	s.innateMultiplier = snap.InnateMultiplier
	s.parasiteDensity = snap.ParasiteDensity
	s.maternalAntibodyStrength = snap.MaternalAntibodyStrength
	s.clinical = clinicalCourse{
		daysClinical:         snap.CumulativeDaysClinical,
		daysSevere:           snap.CumulativeDaysSevere,
		daysSevereAnemia:     snap.CumulativeDaysSevereAnemia,
		daysBetweenIncidents: snap.DaysBetweenIncidents,
		severeCaseType:       snap.SevereCaseType,
		maxFever:             snap.MaxFever,
		maxParasiteDensity:   snap.MaxParasiteDensity,
	}
	return nil
}

func clampUnit(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
