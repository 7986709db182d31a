package config

import (
	"errors"
	"fmt"
	"math"

	"falciparum/pkg/domain"
)

type rangeRule struct {
	name string
	value    func(*Params) float64
	min, max float64
}

func intValue(get func(*Params) int) func(*Params) float64 {
	return func(p *Params) float64 { return float64(get(p)) }
}

var rangeRules = []rangeRule{
	{"Antigen_Switch_Rate", func(p *Params) float64 { return p.AntigenSwitchRate }, 0, 1},
	{"Merozoites_Per_Hepatocyte", func(p *Params) float64 { return p.MerozoitesPerHepatocyte }, 0, 1e6},
	{"Merozoites_Per_Schizont", func(p *Params) float64 { return p.MerozoitesPerSchizont }, 0, 1000},
	{"MSP1_Merozoite_Kill_Fraction", func(p *Params) float64 { return p.MSP1MerozoiteKillFraction }, 0, 1},
	{"RBC_Destruction_Multiplier", func(p *Params) float64 { return p.RBCDestructionMultiplier }, 0, 100},
	{"Merozoite_Limiting_RBC_Threshold", func(p *Params) float64 { return p.MerozoiteLimitingRBCThreshold }, 0.01, 1},
	{"Number_Of_Asexual_Cycles_Without_Gametocytes", intValue(func(p *Params) int { return p.NumberOfAsexualCyclesWithoutGametocytes }), 0, 1000},
	{"Base_Gametocyte_Production_Rate", func(p *Params) float64 { return p.BaseGametocyteProductionRate }, 0, 1},
	{"Base_Gametocyte_Fraction_Male", func(p *Params) float64 { return p.BaseGametocyteFractionMale }, 0, 1},
	{"Gametocyte_Stage_Survival_Rate", func(p *Params) float64 { return p.GametocyteStageSurvivalRate }, 0, 1},
	{"Base_Gametocyte_Mosquito_Survival_Rate", func(p *Params) float64 { return p.BaseGametocyteMosquitoSurvivalRate }, 0, 1},
	{"Mature_Gametocyte_Half_Life", func(p *Params) float64 { return p.MatureGametocyteHalfLife }, 0.001, 1000},
	{"Cytokine_Gametocyte_Inactivation", func(p *Params) float64 { return p.CytokineGametocyteInactivation }, 0, 1},
	{"Base_Incubation_Period", func(p *Params) float64 { return p.BaseIncubationPeriod }, 0, 100},
	{"Base_Sporozoite_Survival_Fraction", func(p *Params) float64 { return p.BaseSporozoiteSurvivalFraction }, 0, 1},
	{"Max_Individual_Infections", intValue(func(p *Params) int { return p.MaxIndividualInfections }), 1, 1000},
	{"Falciparum_MSP_Variants", intValue(func(p *Params) int { return p.FalciparumMSPVariants }), 1, 1000},
	{"Falciparum_Nonspecific_Types", intValue(func(p *Params) int { return p.FalciparumNonspecificVariants }), 1, 1000},
	{"Falciparum_PfEMP1_Variants", intValue(func(p *Params) int { return p.FalciparumPfEMP1Variants }), 1, 100000},
	{"Antibody_IRBC_Kill_Rate", func(p *Params) float64 { return p.AntibodyIRBCKillRate }, 0, 1000},
	{"Nonspecific_Antigenicity_Factor", func(p *Params) float64 { return p.NonspecificAntigenicityFactor }, 0, 1},
	{"Nonspecific_Antibody_Growth_Rate_Factor", func(p *Params) float64 { return p.NonspecificAntibodyGrowthRateFactor }, 0, 1000},
	{"Max_MSP1_Antibody_Growth_Rate", func(p *Params) float64 { return p.MaxMSP1AntibodyGrowthRate }, 0, 1},
	{"Antibody_Capacity_Growth_Rate", func(p *Params) float64 { return p.AntibodyCapacityGrowthRate }, 0, 1},
	{"Antibody_Stimulation_C50", func(p *Params) float64 { return p.AntibodyStimulationC50 }, 0.1, 1e4},
	{"Antibody_Memory_Level", func(p *Params) float64 { return p.AntibodyMemoryLevel }, 0, 1},
	{"Antibody_Capacity_Half_Life_Days", func(p *Params) float64 { return p.AntibodyCapacityHalfLifeDays }, 1, 1e5},
	{"Antibody_Concentration_Decay_Days", func(p *Params) float64 { return p.AntibodyConcentrationDecayDays }, 1, 1e4},
	{"Min_Adapted_Response", func(p *Params) float64 { return p.MinAdaptedResponse }, 0, 1},
	{"Antibody_Release_Threshold", func(p *Params) float64 { return p.AntibodyReleaseThreshold }, 0, 1},
	{"Antibody_Release_Factor", func(p *Params) float64 { return p.AntibodyReleaseFactor }, 0, 100},
	{"B_Cell_Proliferation_Threshold", func(p *Params) float64 { return p.BCellProliferationThreshold }, 0, 1},
	{"B_Cell_Proliferation_Rate", func(p *Params) float64 { return p.BCellProliferationRate }, 0, 10},
	{"Antibody_CSP_Decay_Days", func(p *Params) float64 { return p.AntibodyCSPDecayDays }, 1, 1e5},
	{"Antibody_CSP_Killing_Threshold", func(p *Params) float64 { return p.AntibodyCSPKillingThreshold }, 1, 1e5},
	{"Antibody_CSP_Killing_Inverse_Width", func(p *Params) float64 { return p.AntibodyCSPKillingInvWidth }, 0.1, 1e5},
	{"Maternal_Antibody_Decay_Rate", func(p *Params) float64 { return p.MaternalAntibodyDecayRate }, 0, 1},
	{"Maternal_Antibody_Protection", func(p *Params) float64 { return p.MaternalAntibodyProtection }, 0, 1},
	{"Pyrogenic_Threshold", func(p *Params) float64 { return p.PyrogenicThreshold }, 0.1, 1e6},
	{"Fever_IRBC_Kill_Rate", func(p *Params) float64 { return p.FeverIRBCKillRate }, 0, 1000},
	{"Cytokine_Relaxation_Rate", func(p *Params) float64 { return p.CytokineRelaxationRate }, 0, 100},
	{"Max_Fever", func(p *Params) float64 { return p.MaxFever }, 0.1, 20},
	{"Innate_Immune_Distribution_Sigma", func(p *Params) float64 { return p.InnateImmuneDistributionSigma }, 0, 5},
	{"Erythropoiesis_Anemia_Effect", func(p *Params) float64 { return p.ErythropoiesisAnemiaEffect }, 0, 1000},
	{"RBC_Lifetime_Days", func(p *Params) float64 { return p.RBCLifetimeDays }, 1, 1000},
	{"Clinical_Fever_Threshold_Low", func(p *Params) float64 { return p.ClinicalFeverThresholdLow }, 0, 20},
	{"Clinical_Fever_Threshold_High", func(p *Params) float64 { return p.ClinicalFeverThresholdHigh }, 0, 20},
	{"Min_Days_Between_Clinical_Incidents", func(p *Params) float64 { return p.MinDaysBetweenClinicalIncidents }, 0, 1e5},
	{"Anemia_Severe_Threshold", func(p *Params) float64 { return p.AnemiaSevereThreshold }, 0.01, 100},
	{"Anemia_Severe_Inverse_Width", func(p *Params) float64 { return p.AnemiaSevereInverseWidth }, 0.01, 1e6},
	{"Parasite_Severe_Threshold", func(p *Params) float64 { return p.ParasiteSevereThreshold }, 0.01, 1e10},
	{"Parasite_Severe_Inverse_Width", func(p *Params) float64 { return p.ParasiteSevereInverseWidth }, 0.01, 1e6},
	{"Fever_Severe_Threshold", func(p *Params) float64 { return p.FeverSevereThreshold }, 0.01, 100},
	{"Fever_Severe_Inverse_Width", func(p *Params) float64 { return p.FeverSevereInverseWidth }, 0.01, 1e6},
	{"Anemia_Mortality_Threshold", func(p *Params) float64 { return p.AnemiaMortalityThreshold }, 0.01, 100},
	{"Anemia_Mortality_Inverse_Width", func(p *Params) float64 { return p.AnemiaMortalityInverseWidth }, 0.01, 1e6},
	{"Parasite_Mortality_Threshold", func(p *Params) float64 { return p.ParasiteMortalityThreshold }, 0.01, 1e10},
	{"Parasite_Mortality_Inverse_Width", func(p *Params) float64 { return p.ParasiteMortalityInverseWidth }, 0.01, 1e6},
	{"Fever_Mortality_Threshold", func(p *Params) float64 { return p.FeverMortalityThreshold }, 0.01, 100},
	{"Fever_Mortality_Inverse_Width", func(p *Params) float64 { return p.FeverMortalityInverseWidth }, 0.01, 1e6},
	{"Severe_Anemia_Hemoglobin", func(p *Params) float64 { return p.SevereAnemiaHemoglobin }, 0, 20},
	{"Parasite_Smear_Sensitivity", func(p *Params) float64 { return p.ParasiteSmearSensitivity }, 0.0001, 100},
	{"Gametocyte_Smear_Sensitivity", func(p *Params) float64 { return p.GametocyteSmearSensitivity }, 0.0001, 100},
	{"New_Diagnostic_Sensitivity", func(p *Params) float64 { return p.NewDiagnosticSensitivity }, 0.0001, 100},
	{"Detection_Threshold", func(p *Params) float64 { return p.DetectionThreshold }, 0, 1e6},
	{"Minimum_Detectable_Density", func(p *Params) float64 { return p.MinimumDetectableDensity }, 0, 1e6},
}

// Validate checks every parameter against its documented range and the enum
// selectors against their allowed names. All violations are returned joined.
func (p *Params) Validate() error {
	var errs []error
	for _, rule := range rangeRules {
		v := rule.value(p)
		if math.IsNaN(v) || v < rule.min || v > rule.max {
			errs = append(errs, &domain.ConfigError{
				Param:  rule.name,
				Reason: fmt.Sprintf("value %g outside [%g, %g]", v, rule.min, rule.max),
			})
		}
	}
	if !p.ParasiteSwitchType.Valid() {
		errs = append(errs, &domain.ConfigError{Param: "PARASITE_SWITCH_TYPE", Reason: fmt.Sprintf("unknown model %q", p.ParasiteSwitchType)})
	}
	if !p.MalariaStrains.Valid() {
		errs = append(errs, &domain.ConfigError{Param: "MALARIA_STRAINS", Reason: fmt.Sprintf("unknown model %q", p.MalariaStrains)})
	}
	if !p.InnateImmuneVariationType.Valid() {
		errs = append(errs, &domain.ConfigError{Param: "INNATE_IMMUNE_VARIATION_TYPE", Reason: fmt.Sprintf("unknown type %q", p.InnateImmuneVariationType)})
	}
	if p.ClinicalFeverThresholdLow > p.ClinicalFeverThresholdHigh {
		errs = append(errs, &domain.ConfigError{Param: "Clinical_Fever_Threshold_Low", Reason: "must not exceed Clinical_Fever_Threshold_High"})
	}
	if p.MalariaStrains == StrainNonRandom && p.FalciparumPfEMP1Variants < domain.ClonalPfEMP1Variants {
		errs = append(errs, &domain.ConfigError{
			Param:  "Falciparum_PfEMP1_Variants",
			Reason: fmt.Sprintf("nonrandom strains need at least %d variants, got %d", domain.ClonalPfEMP1Variants, p.FalciparumPfEMP1Variants),
		})
	}
	return errors.Join(errs...)
}
