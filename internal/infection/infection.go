// Package infection implements the within-host life cycle of a single
// falciparum infection: liver stage, asexual blood-stage cycling with
// antigenic variation, and gametocyte maturation.
package infection

import (
	"falciparum/internal/antibody"
	"falciparum/internal/config"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

const (
	variants     = domain.ClonalPfEMP1Variants
	stages       = domain.GametocyteStageCount
	mature       = domain.MatureGametocyteStage
	releaseSlots = 5

	asexualCycleDays = 2.0
)

// Susceptibility is the host immune context an infection reads and mutates.
// *immune.State satisfies it.
type Susceptibility interface {
	RegisterAntibody(t domain.AntibodyType, variant int) (*antibody.Variant, error)
	InvMicrolitersBlood() float64
	RBCAvailability() float64
	RBCCount() int64
	RemoveRBCs(n int64)
	Fever() float64
	FeverKillRate() float64
	MaternalAntibody() float64
}

// DrugKillRates are per-day kill rates supplied by the drug model.
type DrugKillRates struct {
	IRBC             float64
	Hepatocyte       float64
	Gametocyte02     float64
	Gametocyte34     float64
	GametocyteMature float64
}

// DrugEffects supplies drug kill rates. A nil DrugEffects means no drugs.
type DrugEffects interface {
	KillRates() DrugKillRates
}

// Settings are the inputs to New.
type Settings struct {
	ID          uint64
	Strain      domain.StrainIdentity
	Hepatocytes int64
	Logger      domain.Logger
}

// Infection is one parasite clone in a host. It is not safe for concurrent
// use; the owning host steps it.
type Infection struct {
	params *config.Params
	sus    Susceptibility
	logger domain.Logger

	id     uint64
	strain domain.StrainIdentity

	hepatocytes int64
	irbc        [variants]int64
	maleGam     [stages]int64
	femaleGam   [stages]int64

	mspType          int
	nonspecType      int
	irbcType         [variants]int
	minorEpitopeType [variants]int

	phase            domain.AsexualPhase
	cycleTimer       float64
	cycleCount       int
	duration         float64
	measuredDuration float64
	incubationPeriod float64
	stateChange      domain.StateChange
	drugResistant    int

	mspAntibody     *antibody.Variant
	majorAntibodies [variants]*antibody.Variant
	minorAntibodies [variants]*antibody.Variant
}

// New creates an infection in its liver stage and binds its antigen
// repertoire to the host's antibodies. The Susceptibility is required.
func New(p *config.Params, sus Susceptibility, rng random.Source, s Settings) (*Infection, error) {
	if p == nil {
		return nil, &domain.CapabilityError{Capability: "config.Params", Caller: "infection.New"}
	}
	if sus == nil {
		return nil, &domain.CapabilityError{Capability: "Susceptibility", Caller: "infection.New"}
	}
	if rng == nil {
		return nil, &domain.CapabilityError{Capability: "random.Source", Caller: "infection.New"}
	}
	inf := &Infection{
		params:           p,
		sus:              sus,
		logger:           domain.LoggerOrNop(s.Logger),
		id:               s.ID,
		strain:           s.Strain,
		hepatocytes:      max(s.Hepatocytes, 0),
		phase:            domain.PhaseNoAsexualCycle,
		incubationPeriod: p.BaseIncubationPeriod,
	}
	if err := inf.assignAntigens(rng); err != nil {
		return nil, err
	}
	if err := inf.bindAntibodies(); err != nil {
		return nil, err
	}
	return inf, nil
}

// assignAntigens draws the MSP, nonspecific and per-slot PfEMP1 types
// according to the configured strain model.
func (inf *Infection) assignAntigens(rng random.Source) error {
	p := inf.params
	switch p.MalariaStrains {
	case config.StrainNonRandom:
		inf.mspType = 0
		inf.nonspecType = 0
		for i := range inf.irbcType {
			inf.irbcType[i] = i
			inf.minorEpitopeType[i] = i % domain.MinorEpitopeVariantsPerSet
		}
	case config.StrainRandom:
		inf.drawAntigens(rng)
	case config.StrainGenerator:
		inf.drawAntigens(random.New(uint64(inf.strain.Genome)))
	default:
		return &domain.ConfigError{Param: "MALARIA_STRAINS", Reason: "unsupported strain model " + string(p.MalariaStrains)}
	}
	return inf.checkAntigens()
}

func (inf *Infection) drawAntigens(rng random.Source) {
	p := inf.params
	inf.mspType = rng.Intn(p.FalciparumMSPVariants)
	inf.nonspecType = rng.Intn(p.FalciparumNonspecificVariants)
	for i := range inf.irbcType {
		inf.irbcType[i] = rng.Intn(p.FalciparumPfEMP1Variants)
		inf.minorEpitopeType[i] = inf.nonspecType*domain.MinorEpitopeVariantsPerSet + rng.Intn(domain.MinorEpitopeVariantsPerSet)
	}
}

func (inf *Infection) checkAntigens() error {
	p := inf.params
	if inf.mspType < 0 || inf.mspType >= p.FalciparumMSPVariants {
		return domain.Invariantf("infection", "msp type %d outside [0, %d)", inf.mspType, p.FalciparumMSPVariants)
	}
	minorLimit := p.FalciparumNonspecificVariants * domain.MinorEpitopeVariantsPerSet
	for i := range inf.irbcType {
		if t := inf.irbcType[i]; t < 0 || t >= p.FalciparumPfEMP1Variants {
			return domain.Invariantf("infection", "irbc type %d in slot %d outside [0, %d)", t, i, p.FalciparumPfEMP1Variants)
		}
		if t := inf.minorEpitopeType[i]; t < 0 || t >= minorLimit {
			return domain.Invariantf("infection", "minor epitope type %d in slot %d outside [0, %d)", t, i, minorLimit)
		}
	}
	return nil
}

// bindAntibodies resolves the antibody handles for the infection's antigens.
func (inf *Infection) bindAntibodies() error {
	var err error
	if inf.mspAntibody, err = inf.sus.RegisterAntibody(domain.AntibodyMSP1, inf.mspType); err != nil {
		return err
	}
	for i := range inf.irbcType {
		if inf.majorAntibodies[i], err = inf.sus.RegisterAntibody(domain.AntibodyPfEMP1Major, inf.irbcType[i]); err != nil {
			return err
		}
		if inf.minorAntibodies[i], err = inf.sus.RegisterAntibody(domain.AntibodyPfEMP1Minor, inf.minorEpitopeType[i]); err != nil {
			return err
		}
	}
	return nil
}

func (inf *Infection) ID() uint64                        { return inf.id }
func (inf *Infection) Strain() domain.StrainIdentity     { return inf.strain }
func (inf *Infection) Hepatocytes() int64                { return inf.hepatocytes }
func (inf *Infection) IRBC(slot int) int64               { return inf.irbc[slot] }
func (inf *Infection) IRBCType(slot int) int             { return inf.irbcType[slot] }
func (inf *Infection) MinorEpitopeType(slot int) int     { return inf.minorEpitopeType[slot] }
func (inf *Infection) MSPType() int                      { return inf.mspType }
func (inf *Infection) NonspecificType() int              { return inf.nonspecType }
func (inf *Infection) Phase() domain.AsexualPhase        { return inf.phase }
func (inf *Infection) CycleCount() int                   { return inf.cycleCount }
func (inf *Infection) Duration() float64                 { return inf.duration }
func (inf *Infection) MeasuredDuration() float64         { return inf.measuredDuration }
func (inf *Infection) StateChange() domain.StateChange   { return inf.stateChange }
func (inf *Infection) MaleGametocytes(stage int) int64   { return inf.maleGam[stage] }
func (inf *Infection) FemaleGametocytes(stage int) int64 { return inf.femaleGam[stage] }

// SetDrugResistance marks the infection resistant to drug IRBC killing when
// flag is nonzero.
func (inf *Infection) SetDrugResistance(flag int) { inf.drugResistant = flag }

// TotalIRBC sums the asexual population over every variant slot.
func (inf *Infection) TotalIRBC() int64 {
	var total int64
	for _, n := range inf.irbc {
		total += n
	}
	return total
}

// TotalGametocytes sums both sexes over every stage.
func (inf *Infection) TotalGametocytes() int64 {
	var total int64
	for j := 0; j < stages; j++ {
		total += inf.maleGam[j] + inf.femaleGam[j]
	}
	return total
}

// ResetMatureGametocytes drains the mature stage and returns what it held, so
// the host can move it into its reservoir without double counting.
func (inf *Infection) ResetMatureGametocytes() (male, female int64) {
	male, female = inf.maleGam[mature], inf.femaleGam[mature]
	inf.maleGam[mature], inf.femaleGam[mature] = 0, 0
	return male, female
}

// Snapshot returns the persisted form of the infection.
func (inf *Infection) Snapshot() domain.InfectionSnapshot {
	return domain.InfectionSnapshot{
		ID:                 inf.id,
		Strain:             inf.strain,
		Hepatocytes:        inf.hepatocytes,
		IRBC:               inf.irbc,
		MaleGametocytes:    inf.maleGam,
		FemaleGametocytes:  inf.femaleGam,
		MSPType:            inf.mspType,
		NonspecType:        inf.nonspecType,
		IRBCType:           inf.irbcType,
		MinorEpitopeType:   inf.minorEpitopeType,
		AsexualPhase:       inf.phase,
		CycleTimer:         inf.cycleTimer,
		CycleCount:         inf.cycleCount,
		Duration:           inf.duration,
		MeasuredDuration:   inf.measuredDuration,
		IncubationPeriod:   inf.incubationPeriod,
		StateChange:        inf.stateChange,
		DrugResistanceFlag: inf.drugResistant,
	}
}

// Restore rebuilds an infection from a snapshot and re-registers its
// antibody handles with sus.
func Restore(p *config.Params, sus Susceptibility, snap domain.InfectionSnapshot, logger domain.Logger) (*Infection, error) {
	if sus == nil {
		return nil, &domain.CapabilityError{Capability: "Susceptibility", Caller: "infection.Restore"}
	}
	inf := &Infection{
		params:           p,
		sus:              sus,
		logger:           domain.LoggerOrNop(logger),
		id:               snap.ID,
		strain:           snap.Strain,
		hepatocytes:      snap.Hepatocytes,
		irbc:             snap.IRBC,
		maleGam:          snap.MaleGametocytes,
		femaleGam:        snap.FemaleGametocytes,
		mspType:          snap.MSPType,
		nonspecType:      snap.NonspecType,
		irbcType:         snap.IRBCType,
		minorEpitopeType: snap.MinorEpitopeType,
		phase:            snap.AsexualPhase,
		cycleTimer:       snap.CycleTimer,
		cycleCount:       snap.CycleCount,
		duration:         snap.Duration,
		measuredDuration: snap.MeasuredDuration,
		incubationPeriod: snap.IncubationPeriod,
		stateChange:      snap.StateChange,
		drugResistant:    snap.DrugResistanceFlag,
	}
	if err := inf.checkAntigens(); err != nil {
		return nil, err
	}
	if err := inf.bindAntibodies(); err != nil {
		return nil, err
	}
	return inf, nil
}
