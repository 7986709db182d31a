package domain

import "fmt"

const (
	// ClonalPfEMP1Variants is the number of IRBC variant slots tracked per infection.
	ClonalPfEMP1Variants = 50
	// GametocyteStageCount is the number of gametocyte maturation stages (0..5).
	GametocyteStageCount = 6
	// MatureGametocyteStage is the index of the mature, transmissible stage.
	MatureGametocyteStage = GametocyteStageCount - 1
	// MinorEpitopeVariantsPerSet is the number of minor epitopes per nonspecific type.
	MinorEpitopeVariantsPerSet = 5
)

// AsexualPhase tracks where an infection is in its blood-stage life cycle.
type AsexualPhase string

// Asexual phases in the order an infection moves through them.
const (
	PhaseNoAsexualCycle    AsexualPhase = "none"
	PhaseHepatocyteRelease AsexualPhase = "hepatocyte_release"
	PhaseAsexualCycle      AsexualPhase = "asexual_cycle"
)

// StateChange is the one-shot terminal signal an infection raises to its owner.
type StateChange string

// Terminal signals. StateChangeNone means the infection continues.
const (
	StateChangeNone    StateChange = ""
	StateChangeCleared StateChange = "cleared"
	StateChangeFatal   StateChange = "fatal"
)

// StrainIdentity names the parasite strain that founded an infection.
type StrainIdentity struct {
	Clade  int   `json:"clade"`
	Genome int64 `json:"genome"`
}

func (s StrainIdentity) String() string {
	return fmt.Sprintf("clade=%d genome=%d", s.Clade, s.Genome)
}

// InfectionSnapshot captures every persisted field of one infection. Antibody
// handles are not stored; they are re-registered from the type fields on restore.
type InfectionSnapshot struct {
	ID                 uint64                      `json:"id"`
	Strain             StrainIdentity              `json:"strain"`
	Hepatocytes        int64                       `json:"hepatocytes"`
	IRBC               [ClonalPfEMP1Variants]int64 `json:"irbc"`
	MaleGametocytes    [GametocyteStageCount]int64 `json:"male_gametocytes"`
	FemaleGametocytes  [GametocyteStageCount]int64 `json:"female_gametocytes"`
	MSPType            int                         `json:"msp_type"`
	NonspecType        int                         `json:"nonspec_type"`
	IRBCType           [ClonalPfEMP1Variants]int   `json:"irbc_type"`
	MinorEpitopeType   [ClonalPfEMP1Variants]int   `json:"minor_epitope_type"`
	AsexualPhase       AsexualPhase                `json:"asexual_phase"`
	CycleTimer         float64                     `json:"cycle_timer"`
	CycleCount         int                         `json:"cycle_count"`
	Duration           float64                     `json:"duration"`
	MeasuredDuration   float64                     `json:"measured_duration"`
	IncubationPeriod   float64                     `json:"incubation_period"`
	StateChange        StateChange                 `json:"state_change"`
	DrugResistanceFlag int                         `json:"drug_resistance_flag"`
}
