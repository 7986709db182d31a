package immune

import (
	"math"

	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// clinicalCourse is the bookkeeping of the current clinical episode.
type clinicalCourse struct {
	daysClinical         float64
	daysSevere           float64
	daysSevereAnemia     float64
	daysBetweenIncidents float64
	severeCaseType       domain.SevereCaseType
	maxFever             float64
	maxParasiteDensity   float64

	symptoms []domain.ClinicalSymptom
}

func (c *clinicalCourse) reset() {
	c.daysClinical = 0
	c.daysSevere = 0
	c.daysSevereAnemia = 0
	c.severeCaseType = domain.SevereCaseNone
	c.maxFever = 0
	c.maxParasiteDensity = 0
}

// Probability is a combined severe or fatal probability with the share of it
// attributed to each cause. Shares are zero when the total is zero.
type Probability struct {
	Total     float64
	Anemia    float64
	Parasites float64
	Fever     float64
}

// Combine merges independent per-cause probabilities into 1 - prod(1 - p).
func Combine(anemia, parasites, fever float64) Probability {
	out := Probability{Total: 1 - (1-anemia)*(1-parasites)*(1-fever)}
	sum := anemia + parasites + fever
	if sum > 0 {
		out.Anemia = anemia / sum
		out.Parasites = parasites / sum
		out.Fever = fever / sum
	}
	return out
}

// Cause picks the cause a draw in [0, Total) falls on, using the attribution
// shares as consecutive ranges.
func (p Probability) Cause(r float64) domain.SevereCaseType {
	if p.Total <= 0 {
		return domain.SevereCaseNone
	}
	x := r / p.Total
	switch {
	case x < p.Anemia:
		return domain.SevereCaseAnemia
	case x < p.Anemia+p.Parasites:
		return domain.SevereCaseParasites
	}
	return domain.SevereCaseFever
}

// VariableWidthSigmoid rises from 0 to 1 around threshold with a width of
// threshold/invWidth.
func VariableWidthSigmoid(x, threshold, invWidth float64) float64 {
	return 1 / (1 + math.Exp((threshold-x)/(threshold/invWidth)))
}

// SevereProbability is this step's severe disease probability.
func (s *State) SevereProbability() Probability {
	p := s.params
	return Combine(
		1-VariableWidthSigmoid(s.Hemoglobin(), p.AnemiaSevereThreshold, p.AnemiaSevereInverseWidth),
		VariableWidthSigmoid(s.parasiteDensity, p.ParasiteSevereThreshold, p.ParasiteSevereInverseWidth),
		VariableWidthSigmoid(s.Fever(), p.FeverSevereThreshold, p.FeverSevereInverseWidth),
	)
}

// FatalProbability is this step's probability of death from malaria.
func (s *State) FatalProbability() Probability {
	p := s.params
	return Combine(
		1-VariableWidthSigmoid(s.Hemoglobin(), p.AnemiaMortalityThreshold, p.AnemiaMortalityInverseWidth),
		VariableWidthSigmoid(s.parasiteDensity, p.ParasiteMortalityThreshold, p.ParasiteMortalityInverseWidth),
		VariableWidthSigmoid(s.Fever(), p.FeverMortalityThreshold, p.FeverMortalityInverseWidth),
	)
}

// UpdateClinical advances the clinical course by dt days, broadcasting new
// clinical, severe and severe anemia cases. mortalityMultiplier scales the
// fatal probability, e.g. to model treatment. It reports whether the host
// dies this step.
//
// An episode stays open while fever is above the low clinical threshold or a
// severe or severe anemia incident is ongoing. Counters reset once the host
// has been quiet for longer than the minimum gap between incidents.
func (s *State) UpdateClinical(rng random.Source, dt, mortalityMultiplier float64) bool {
	p := s.params
	c := &s.clinical
	c.symptoms = c.symptoms[:0]
	fever := s.Fever()
	active := fever > p.ClinicalFeverThresholdLow

	if fever > p.ClinicalFeverThresholdHigh {
		if c.daysClinical == 0 {
			s.broadcast(domain.Event{Kind: domain.EventNewClinicalCase})
		}
		c.daysClinical += dt
		c.symptoms = append(c.symptoms, domain.SymptomClinicalDisease)
	}
	if c.daysClinical > 0 {
		c.maxFever = math.Max(c.maxFever, fever)
		c.maxParasiteDensity = math.Max(c.maxParasiteDensity, s.parasiteDensity)
	}

	severe := s.SevereProbability()
	r := rng.Uniform()
	if r < severe.Total {
		if c.daysSevere == 0 {
			c.severeCaseType = severe.Cause(r)
			s.broadcast(domain.Event{Kind: domain.EventNewSevereCase, Cause: c.severeCaseType})
		}
		c.daysSevere += dt
		c.symptoms = append(c.symptoms, domain.SymptomSevereDisease)
		active = true
	}
	if s.Hemoglobin() < p.SevereAnemiaHemoglobin {
		if c.daysSevereAnemia == 0 {
			s.broadcast(domain.Event{Kind: domain.EventSevereAnemia})
		}
		c.daysSevereAnemia += dt
		c.symptoms = append(c.symptoms, domain.SymptomSevereAnemia)
		active = true
	}
	fatal := r < s.FatalProbability().Total*mortalityMultiplier

	if active {
		c.daysBetweenIncidents = 0
	} else {
		c.daysBetweenIncidents += dt
	}
	if c.daysBetweenIncidents > p.MinDaysBetweenClinicalIncidents {
		c.reset()
	}
	return fatal
}

func (s *State) broadcast(e domain.Event) {
	e.HostID = s.hostID
	s.events.Broadcast(e)
}

// Symptoms returns the symptom flags raised by the last UpdateClinical call.
func (s *State) Symptoms() []domain.ClinicalSymptom {
	return append([]domain.ClinicalSymptom(nil), s.clinical.symptoms...)
}

// RestoreSymptoms reinstates the flags of a persisted step.
func (s *State) RestoreSymptoms(symptoms []domain.ClinicalSymptom) {
	s.clinical.symptoms = append(s.clinical.symptoms[:0], symptoms...)
}

func (s *State) CumulativeDaysClinical() float64     { return s.clinical.daysClinical }
func (s *State) CumulativeDaysSevere() float64       { return s.clinical.daysSevere }
func (s *State) CumulativeDaysSevereAnemia() float64 { return s.clinical.daysSevereAnemia }
func (s *State) DaysBetweenIncidents() float64       { return s.clinical.daysBetweenIncidents }
func (s *State) SevereCaseType() domain.SevereCaseType {
	return s.clinical.severeCaseType
}
func (s *State) MaxFever() float64           { return s.clinical.maxFever }
func (s *State) MaxParasiteDensity() float64 { return s.clinical.maxParasiteDensity }
