package infection

import (
	"math"

	"falciparum/internal/antibody"
	"falciparum/internal/random"
)

const (
	// Fever (degrees above normal) below which cytokines do not kill IRBCs.
	minFeverForKilling = 0.5
	feverKillingC50    = 1.5
)

// killIRBC removes parasites killed by antibodies, fever and drugs this step.
func (inf *Infection) killIRBC(rng random.Source, dt, drugRate float64) {
	p := inf.params
	var feverRate float64
	if fever := inf.sus.Fever(); fever > minFeverForKilling {
		feverRate = inf.sus.FeverKillRate() * antibody.Sigmoid(feverKillingC50, fever-minFeverForKilling)
	}
	if inf.drugResistant != 0 {
		drugRate = 0
	}
	maternal := inf.sus.MaternalAntibody()
	for i, n := range inf.irbc {
		if n <= 0 {
			continue
		}
		antibodyRate := (inf.majorAntibodies[i].Concentration() +
			p.NonspecificAntigenicityFactor*inf.minorAntibodies[i].Concentration() +
			maternal) * p.AntibodyIRBCKillRate
		pKill := 1 - math.Exp(-dt*(antibodyRate+feverRate+drugRate))
		inf.irbc[i] = n - drawKills(rng, n, pKill)
		if inf.irbc[i] < 0 {
			inf.logger.Debug("clamped negative irbc count", "infection_id", inf.id, "slot", i, "value", inf.irbc[i])
			inf.irbc[i] = 0
		}
	}
}

// drawKills approximates a Binomial(n, p) draw with a continuity-corrected
// normal draw of the same mean and variance.
func drawKills(rng random.Source, n int64, p float64) int64 {
	expected := float64(n) * p
	if expected <= 0 {
		return 0
	}
	v := rng.Normal(expected, math.Sqrt(expected*(1-p)))
	if v < 0 {
		v = 0
	}
	return int64(v + 0.5)
}

// killGametocytes applies drug and cytokine killing to every stage as a
// deterministic exponential survival.
func (inf *Infection) killGametocytes(dt float64, rates DrugKillRates) {
	matureRate := rates.GametocyteMature + inf.params.CytokineGametocyteInactivation*inf.sus.Fever()
	for j := 0; j < stages; j++ {
		var k float64
		switch {
		case j <= 2:
			k = rates.Gametocyte02
		case j < mature:
			k = rates.Gametocyte34
		default:
			k = matureRate
		}
		if k <= 0 {
			continue
		}
		survival := math.Exp(-dt * k)
		inf.maleGam[j] = roundCount(float64(inf.maleGam[j]) * survival)
		inf.femaleGam[j] = roundCount(float64(inf.femaleGam[j]) * survival)
	}
}
