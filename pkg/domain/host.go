package domain

// ClinicalSymptom is a flag raised on a host while a symptom is present.
type ClinicalSymptom string

// Clinical symptom flags tracked per host step.
const (
	SymptomClinicalDisease ClinicalSymptom = "clinical_disease"
	SymptomSevereDisease   ClinicalSymptom = "severe_disease"
	SymptomSevereAnemia    ClinicalSymptom = "severe_anemia"
)

// DiagnosticReadings holds the most recent emulated test results of a host.
type DiagnosticReadings struct {
	SmearParasiteDensity   float64 `json:"smear_parasite_density"`
	SmearGametocyteDensity float64 `json:"smear_gametocyte_density"`
	NovelParasiteDensity   float64 `json:"novel_parasite_density"`
}

// StrainGametocytes is the mature gametocyte reservoir attributed to one strain.
type StrainGametocytes struct {
	Strain StrainIdentity `json:"strain"`
	Male   float64        `json:"male"`
	Female float64        `json:"female"`
}

// HostSnapshot captures a host, its immune state and all live infections.
type HostSnapshot struct {
	ID               string              `json:"id"`
	MonteCarloWeight float64             `json:"monte_carlo_weight"`
	Dead             bool                `json:"dead"`
	NextInfectionID  uint64              `json:"next_infection_id"`
	Infectiousness   float64             `json:"infectiousness"`
	Immune           ImmuneSnapshot      `json:"immune"`
	Infections       []InfectionSnapshot `json:"infections"`
	Gametocytes      []StrainGametocytes `json:"gametocytes"`
	Diagnostics      DiagnosticReadings  `json:"diagnostics"`
	Symptoms         []ClinicalSymptom   `json:"symptoms"`
}
