package domain

// SevereCaseType attributes a severe malaria episode to its dominant cause.
type SevereCaseType string

// Severe case attributions.
const (
	SevereCaseNone      SevereCaseType = ""
	SevereCaseAnemia    SevereCaseType = "anemia"
	SevereCaseParasites SevereCaseType = "parasites"
	SevereCaseFever     SevereCaseType = "fever"
)

// ImmuneSnapshot captures the persisted state of one host's immune system,
// including every registered antibody variant.
type ImmuneSnapshot struct {
	AgeDays                    float64            `json:"age_days"`
	InvMicrolitersBlood        float64            `json:"inv_microliters_blood"`
	RBCCount                   int64              `json:"rbc_count"`
	RBCCapacity                int64              `json:"rbc_capacity"`
	RBCProduction              int64              `json:"rbc_production"`
	Cytokines                  float64            `json:"cytokines"`
	CytokineStimulation        float64            `json:"cytokine_stimulation"`
	PyrogenicThreshold         float64            `json:"pyrogenic_threshold"`
	FeverKillRate              float64            `json:"fever_kill_rate"`
	InnateMultiplier           float64            `json:"innate_multiplier"`
	ParasiteDensity            float64            `json:"parasite_density"`
	MaternalAntibodyStrength   float64            `json:"maternal_antibody_strength"`
	CumulativeDaysClinical     float64            `json:"cumulative_days_clinical"`
	CumulativeDaysSevere       float64            `json:"cumulative_days_severe"`
	CumulativeDaysSevereAnemia float64            `json:"cumulative_days_severe_anemia"`
	DaysBetweenIncidents       float64            `json:"days_between_incidents"`
	SevereCaseType             SevereCaseType     `json:"severe_case_type"`
	MaxFever                   float64            `json:"max_fever"`
	MaxParasiteDensity         float64            `json:"max_parasite_density"`
	Antibodies                 []AntibodySnapshot `json:"antibodies"`
}
