// Package antibody tracks per-antigen antibody capacity and concentration.
package antibody

import (
	"math"

	"falciparum/internal/config"
	"falciparum/pkg/domain"
)

// Variant is the antibody response to a single antigen variant. Capacity is
// the slow-moving potential in [0, 1]; concentration is the circulating level,
// bounded by capacity except while a CSP boost decays.
type Variant struct {
	params *config.Params

	kind  domain.AntibodyType
	index int

	capacity       float64
	concentration  float64
	antigenCount   int64
	antigenPresent bool
}

func newVariant(p *config.Params, kind domain.AntibodyType, index int) *Variant {
	return &Variant{params: p, kind: kind, index: index}
}

// Key identifies the variant within its registry.
func (v *Variant) Key() domain.AntibodyKey {
	return domain.AntibodyKey{Type: v.kind, Variant: v.index}
}

func (v *Variant) Type() domain.AntibodyType { return v.kind }
func (v *Variant) Index() int                { return v.index }
func (v *Variant) Capacity() float64         { return v.capacity }
func (v *Variant) Concentration() float64    { return v.concentration }
func (v *Variant) AntigenCount() int64       { return v.antigenCount }
func (v *Variant) AntigenPresent() bool      { return v.antigenPresent }

// IncreaseAntigenCount records antigen exposure for the current step.
func (v *Variant) IncreaseAntigenCount(n int64) {
	if n <= 0 {
		return
	}
	v.antigenCount += n
	v.antigenPresent = true
}

// ResetCounters clears the per-step antigen exposure.
func (v *Variant) ResetCounters() {
	v.antigenCount = 0
	v.antigenPresent = false
}

// SetCapacity overrides the capacity, clamped to [0, 1].
func (v *Variant) SetCapacity(c float64) { v.capacity = clamp01(c) }

// SetConcentration overrides the concentration. Values above capacity are kept
// only for CSP, which then decays back geometrically.
func (v *Variant) SetConcentration(c float64) {
	if c < 0 {
		c = 0
	}
	if v.kind != domain.AntibodyCSP && c > v.capacity {
		c = v.capacity
	}
	v.concentration = c
}

// Boost raises the concentration to at least c, as after a vaccine dose.
func (v *Variant) Boost(c float64) {
	if c > v.concentration {
		v.SetConcentration(c)
	}
}

// UpdateCapacity grows capacity when antigen was seen this step, otherwise
// decays any capacity held above the memory level.
func (v *Variant) UpdateCapacity(dt, invMicrolitersBlood float64) {
	if !v.antigenPresent {
		v.decayCapacity(dt)
		return
	}
	p := v.params
	exposure := float64(v.antigenCount) * invMicrolitersBlood
	proliferating := v.proliferating()

	switch v.kind {
	case domain.AntibodyPfEMP1Major:
		if proliferating {
			v.capacity += (1 - v.capacity) * p.BCellProliferationRate * dt
			return
		}
		v.capacity += p.AntibodyCapacityGrowthRate * dt * (1 - v.capacity) * Sigmoid(p.AntibodyStimulationC50, exposure+p.MinAdaptedResponse)
		v.capacity = math.Min(v.capacity, 1)
	case domain.AntibodyPfEMP1Minor:
		if proliferating {
			v.capacity += (1 - v.capacity) * p.BCellProliferationRate * dt
		} else {
			rate := p.AntibodyCapacityGrowthRate * p.NonspecificAntibodyGrowthRateFactor
			v.capacity += rate * dt * (1 - v.capacity) * Sigmoid(p.AntibodyStimulationC50, exposure+p.MinAdaptedResponse)
		}
		v.capacity = math.Min(v.capacity, 1)
	default:
		rate := p.AntibodyCapacityGrowthRate
		if v.kind == domain.AntibodyMSP1 {
			rate = p.MaxMSP1AntibodyGrowthRate
		}
		if proliferating {
			v.capacity += (1 - v.capacity) * p.BCellProliferationRate * dt
		} else {
			v.capacity += rate * dt * (1 - v.capacity) * Sigmoid(p.AntibodyStimulationC50, exposure)
		}
		v.capacity = math.Min(v.capacity, 1)
	}
}

// UpdateCapacityByRate grows capacity at an externally tracked exposure rate,
// independent of the sigmoid stimulation.
func (v *Variant) UpdateCapacityByRate(dt, rate float64) {
	v.capacity = clamp01(v.capacity + rate*dt*(1-v.capacity))
}

// proliferating reports whether capacity is strictly above the B-cell
// proliferation threshold.
func (v *Variant) proliferating() bool {
	return v.capacity > v.params.BCellProliferationThreshold
}

func (v *Variant) decayCapacity(dt float64) {
	floor := v.params.AntibodyMemoryLevel
	if v.capacity <= floor {
		return
	}
	excess := (v.capacity - floor) * math.Exp(-v.params.HyperimmuneDecayRate()*dt)
	v.capacity = floor + excess
}

// UpdateConcentration applies the release law while antigen is present and
// exponential decay otherwise. Concentration never exceeds capacity on
// return, except for a CSP boost still decaying.
func (v *Variant) UpdateConcentration(dt float64) {
	p := v.params
	if v.kind == domain.AntibodyCSP && v.concentration > v.capacity {
		v.concentration *= p.CSPDecayFactor(dt)
		if v.concentration < v.capacity && v.antigenPresent {
			v.release(dt)
		}
		return
	}
	if !v.antigenPresent {
		v.concentration *= math.Exp(-dt / p.AntibodyConcentrationDecayDays)
	} else {
		v.release(dt)
	}
	if v.concentration > v.capacity {
		v.concentration = v.capacity
	}
}

func (v *Variant) release(dt float64) {
	if v.capacity > v.params.AntibodyReleaseThreshold {
		v.concentration += (v.capacity - v.concentration) * v.params.AntibodyReleaseFactor * dt
	}
	if v.concentration > v.capacity {
		v.concentration = v.capacity
	}
}

// StimulateCytokines returns the innate stimulation from antigen not yet
// neutralized. Once B-cell proliferation has started the variant no longer
// contributes.
func (v *Variant) StimulateCytokines(invMicrolitersBlood float64) float64 {
	if v.proliferating() {
		return 0
	}
	return (1 - v.concentration) * float64(v.antigenCount) * invMicrolitersBlood
}

// Snapshot returns the persisted form of the variant.
func (v *Variant) Snapshot() domain.AntibodySnapshot {
	return domain.AntibodySnapshot{
		Type:           v.kind,
		Variant:        v.index,
		Capacity:       v.capacity,
		Concentration:  v.concentration,
		AntigenCount:   v.antigenCount,
		AntigenPresent: v.antigenPresent,
	}
}

// Sigmoid is the saturating response x/(c50+x) for x > 0, and 0 otherwise.
func Sigmoid(c50, x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (c50 + x)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
