// Package config holds the immutable parameter set shared by every model
// component of a run.
package config

import "math"

// Params is the validated parameter set for a simulation run. Values are
// constructed once by Load or Default and passed by pointer; components must
// not mutate them.
type Params struct {
	// Asexual cycle and antigenic variation.
	AntigenSwitchRate                       float64     `env:"ANTIGEN_SWITCH_RATE"`
	ParasiteSwitchType                      SwitchModel `env:"PARASITE_SWITCH_TYPE"`
	MalariaStrains                          StrainModel `env:"STRAINS"`
	MerozoitesPerHepatocyte                 float64     `env:"MEROZOITES_PER_HEPATOCYTE"`
	MerozoitesPerSchizont                   float64     `env:"MEROZOITES_PER_SCHIZONT"`
	MSP1MerozoiteKillFraction               float64     `env:"MSP1_MEROZOITE_KILL_FRACTION"`
	RBCDestructionMultiplier                float64     `env:"RBC_DESTRUCTION_MULTIPLIER"`
	MerozoiteLimitingRBCThreshold           float64     `env:"MEROZOITE_LIMITING_RBC_THRESHOLD"`
	NumberOfAsexualCyclesWithoutGametocytes int         `env:"NUMBER_OF_ASEXUAL_CYCLES_WITHOUT_GAMETOCYTES"`
	BaseGametocyteProductionRate            float64     `env:"BASE_GAMETOCYTE_PRODUCTION_RATE"`
	BaseGametocyteFractionMale              float64     `env:"BASE_GAMETOCYTE_FRACTION_MALE"`
	GametocyteStageSurvivalRate             float64     `env:"GAMETOCYTE_STAGE_SURVIVAL_RATE"`
	BaseGametocyteMosquitoSurvivalRate      float64     `env:"BASE_GAMETOCYTE_MOSQUITO_SURVIVAL_RATE"`
	MatureGametocyteHalfLife                float64     `env:"MATURE_GAMETOCYTE_HALF_LIFE"`
	CytokineGametocyteInactivation          float64     `env:"CYTOKINE_GAMETOCYTE_INACTIVATION"`
	BaseIncubationPeriod                    float64     `env:"BASE_INCUBATION_PERIOD"`
	BaseSporozoiteSurvivalFraction          float64     `env:"BASE_SPOROZOITE_SURVIVAL_FRACTION"`
	MaxIndividualInfections                 int         `env:"MAX_INDIVIDUAL_INFECTIONS"`
	FalciparumMSPVariants                   int         `env:"FALCIPARUM_MSP_VARIANTS"`
	FalciparumNonspecificVariants           int         `env:"FALCIPARUM_NONSPECIFIC_TYPES"`
	FalciparumPfEMP1Variants                int         `env:"FALCIPARUM_PFEMP1_VARIANTS"`

	// Antibodies.
	AntibodyIRBCKillRate                float64 `env:"ANTIBODY_IRBC_KILL_RATE"`
	NonspecificAntigenicityFactor       float64 `env:"NONSPECIFIC_ANTIGENICITY_FACTOR"`
	NonspecificAntibodyGrowthRateFactor float64 `env:"NONSPECIFIC_ANTIBODY_GROWTH_RATE_FACTOR"`
	MaxMSP1AntibodyGrowthRate           float64 `env:"MAX_MSP1_ANTIBODY_GROWTH_RATE"`
	AntibodyCapacityGrowthRate          float64 `env:"ANTIBODY_CAPACITY_GROWTH_RATE"`
	AntibodyStimulationC50              float64 `env:"ANTIBODY_STIMULATION_C50"`
	AntibodyMemoryLevel                 float64 `env:"ANTIBODY_MEMORY_LEVEL"`
	AntibodyCapacityHalfLifeDays        float64 `env:"ANTIBODY_CAPACITY_HALF_LIFE_DAYS"`
	AntibodyConcentrationDecayDays      float64 `env:"ANTIBODY_CONCENTRATION_DECAY_DAYS"`
	MinAdaptedResponse                  float64 `env:"MIN_ADAPTED_RESPONSE"`
	AntibodyReleaseThreshold            float64 `env:"ANTIBODY_RELEASE_THRESHOLD"`
	AntibodyReleaseFactor               float64 `env:"ANTIBODY_RELEASE_FACTOR"`
	BCellProliferationThreshold         float64 `env:"B_CELL_PROLIFERATION_THRESHOLD"`
	BCellProliferationRate              float64 `env:"B_CELL_PROLIFERATION_RATE"`
	AntibodyCSPDecayDays                float64 `env:"ANTIBODY_CSP_DECAY_DAYS"`
	AntibodyCSPKillingThreshold         float64 `env:"ANTIBODY_CSP_KILLING_THRESHOLD"`
	AntibodyCSPKillingInvWidth          float64 `env:"ANTIBODY_CSP_KILLING_INVWIDTH"`
	MaternalAntibodyDecayRate           float64 `env:"MATERNAL_ANTIBODY_DECAY_RATE"`
	MaternalAntibodyProtection          float64 `env:"MATERNAL_ANTIBODY_PROTECTION"`

	// Innate response and red blood cells.
	PyrogenicThreshold            float64         `env:"PYROGENIC_THRESHOLD"`
	FeverIRBCKillRate             float64         `env:"FEVER_IRBC_KILL_RATE"`
	CytokineRelaxationRate        float64         `env:"CYTOKINE_RELAXATION_RATE"`
	MaxFever                      float64         `env:"MAX_FEVER"`
	InnateImmuneVariationType     InnateVariation `env:"INNATE_IMMUNE_VARIATION_TYPE"`
	InnateImmuneDistributionSigma float64         `env:"INNATE_IMMUNE_DISTRIBUTION_SIGMA"`
	ErythropoiesisAnemiaEffect    float64         `env:"ERYTHROPOIESIS_ANEMIA_EFFECT"`
	RBCLifetimeDays               float64         `env:"RBC_LIFETIME_DAYS"`

	// Clinical severity.
	ClinicalFeverThresholdLow       float64 `env:"CLINICAL_FEVER_THRESHOLD_LOW"`
	ClinicalFeverThresholdHigh      float64 `env:"CLINICAL_FEVER_THRESHOLD_HIGH"`
	MinDaysBetweenClinicalIncidents float64 `env:"MIN_DAYS_BETWEEN_CLINICAL_INCIDENTS"`
	AnemiaSevereThreshold           float64 `env:"ANEMIA_SEVERE_THRESHOLD"`
	AnemiaSevereInverseWidth        float64 `env:"ANEMIA_SEVERE_INVERSE_WIDTH"`
	ParasiteSevereThreshold         float64 `env:"PARASITE_SEVERE_THRESHOLD"`
	ParasiteSevereInverseWidth      float64 `env:"PARASITE_SEVERE_INVERSE_WIDTH"`
	FeverSevereThreshold            float64 `env:"FEVER_SEVERE_THRESHOLD"`
	FeverSevereInverseWidth         float64 `env:"FEVER_SEVERE_INVERSE_WIDTH"`
	AnemiaMortalityThreshold        float64 `env:"ANEMIA_MORTALITY_THRESHOLD"`
	AnemiaMortalityInverseWidth     float64 `env:"ANEMIA_MORTALITY_INVERSE_WIDTH"`
	ParasiteMortalityThreshold      float64 `env:"PARASITE_MORTALITY_THRESHOLD"`
	ParasiteMortalityInverseWidth   float64 `env:"PARASITE_MORTALITY_INVERSE_WIDTH"`
	FeverMortalityThreshold         float64 `env:"FEVER_MORTALITY_THRESHOLD"`
	FeverMortalityInverseWidth      float64 `env:"FEVER_MORTALITY_INVERSE_WIDTH"`
	SevereAnemiaHemoglobin          float64 `env:"SEVERE_ANEMIA_HEMOGLOBIN"`

	// Diagnostics.
	ParasiteSmearSensitivity   float64 `env:"PARASITE_SMEAR_SENSITIVITY"`
	GametocyteSmearSensitivity float64 `env:"GAMETOCYTE_SMEAR_SENSITIVITY"`
	NewDiagnosticSensitivity   float64 `env:"NEW_DIAGNOSTIC_SENSITIVITY"`
	DetectionThreshold         float64 `env:"DETECTION_THRESHOLD"`
	MinimumDetectableDensity   float64 `env:"MINIMUM_DETECTABLE_DENSITY"`
}

// Default returns the reference parameter set.
func Default() Params {
	return Params{
		AntigenSwitchRate:                       2e-9,
		ParasiteSwitchType:                      SwitchRatePerParasite7Vars,
		MalariaStrains:                          StrainNonRandom,
		MerozoitesPerHepatocyte:                 15000,
		MerozoitesPerSchizont:                   16,
		MSP1MerozoiteKillFraction:               0.5,
		RBCDestructionMultiplier:                3.29,
		MerozoiteLimitingRBCThreshold:           0.2,
		NumberOfAsexualCyclesWithoutGametocytes: 1,
		BaseGametocyteProductionRate:            0.02,
		BaseGametocyteFractionMale:              0.2,
		GametocyteStageSurvivalRate:             0.7,
		BaseGametocyteMosquitoSurvivalRate:      0.01,
		MatureGametocyteHalfLife:                2.5,
		CytokineGametocyteInactivation:          0.02,
		BaseIncubationPeriod:                    7,
		BaseSporozoiteSurvivalFraction:          0.25,
		MaxIndividualInfections:                 3,
		FalciparumMSPVariants:                   100,
		FalciparumNonspecificVariants:           20,
		FalciparumPfEMP1Variants:                1000,

		AntibodyIRBCKillRate:                2.0,
		NonspecificAntigenicityFactor:       0.2,
		NonspecificAntibodyGrowthRateFactor: 0.5,
		MaxMSP1AntibodyGrowthRate:           0.045,
		AntibodyCapacityGrowthRate:          0.09,
		AntibodyStimulationC50:              30,
		AntibodyMemoryLevel:                 0.34,
		AntibodyCapacityHalfLifeDays:        180,
		AntibodyConcentrationDecayDays:      20,
		MinAdaptedResponse:                  0.02,
		AntibodyReleaseThreshold:            0.3,
		AntibodyReleaseFactor:               4,
		BCellProliferationThreshold:         0.4,
		BCellProliferationRate:              0.33,
		AntibodyCSPDecayDays:                90,
		AntibodyCSPKillingThreshold:         20,
		AntibodyCSPKillingInvWidth:          1.5,
		MaternalAntibodyDecayRate:           0.01,
		MaternalAntibodyProtection:          0.1,

		PyrogenicThreshold:            15000,
		FeverIRBCKillRate:             1.4,
		CytokineRelaxationRate:        2,
		MaxFever:                      5,
		InnateImmuneVariationType:     InnateNone,
		InnateImmuneDistributionSigma: 0,
		ErythropoiesisAnemiaEffect:    3.5,
		RBCLifetimeDays:               120,

		ClinicalFeverThresholdLow:       1,
		ClinicalFeverThresholdHigh:      1.5,
		MinDaysBetweenClinicalIncidents: 14,
		AnemiaSevereThreshold:           4.5,
		AnemiaSevereInverseWidth:        10,
		ParasiteSevereThreshold:         851500,
		ParasiteSevereInverseWidth:      56.5,
		FeverSevereThreshold:            3.98,
		FeverSevereInverseWidth:         27.5,
		AnemiaMortalityThreshold:        1.5,
		AnemiaMortalityInverseWidth:     20,
		ParasiteMortalityThreshold:      2.5e6,
		ParasiteMortalityInverseWidth:   100,
		FeverMortalityThreshold:         4.5,
		FeverMortalityInverseWidth:      20,
		SevereAnemiaHemoglobin:          5,

		ParasiteSmearSensitivity:   0.1,
		GametocyteSmearSensitivity: 0.1,
		NewDiagnosticSensitivity:   0.025,
		DetectionThreshold:         0,
		MinimumDetectableDensity:   0.01,
	}
}

// HyperimmuneDecayRate is the per-day decay rate of antibody capacity above
// the memory level.
func (p *Params) HyperimmuneDecayRate() float64 {
	if p.AntibodyCapacityHalfLifeDays <= 0 {
		return 0
	}
	return math.Ln2 / p.AntibodyCapacityHalfLifeDays
}

// CSPDecayFactor returns the multiplier applied over dt days to a CSP
// concentration held above its capacity.
func (p *Params) CSPDecayFactor(dt float64) float64 {
	return math.Pow(0.5, dt/p.AntibodyCSPDecayDays)
}

// GametocyteProductionRate returns the fraction of asexual parasites that
// commit to gametocytes after cycleCount completed cycles.
func (p *Params) GametocyteProductionRate(cycleCount int) float64 {
	if cycleCount < p.NumberOfAsexualCyclesWithoutGametocytes {
		return 0
	}
	return p.BaseGametocyteProductionRate
}
