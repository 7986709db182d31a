package infection

import (
	"math"

	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// Update advances the infection by dt days. Sub-steps run in a fixed order:
// liver stage, asexual cycle, host death check, immune stimulation, IRBC
// killing, gametocyte killing and finally the status check.
func (inf *Infection) Update(rng random.Source, dt float64, drugs DrugEffects) error {
	if inf.stateChange != domain.StateChangeNone {
		return nil
	}
	var rates DrugKillRates
	if drugs != nil {
		rates = drugs.KillRates()
	}
	inf.duration += dt

	inf.updateHepatocytes(rng, dt, rates.Hepatocyte)
	if err := inf.updateAsexual(rng, dt); err != nil {
		return err
	}
	if inf.sus.RBCCount() < 1 {
		inf.stateChange = domain.StateChangeFatal
		return nil
	}
	inf.stimulateImmunity()
	inf.killIRBC(rng, dt, rates.IRBC)
	inf.killGametocytes(dt, rates)
	inf.checkStatus(dt)
	return nil
}

func (inf *Infection) updateHepatocytes(rng random.Source, dt, killRate float64) {
	if inf.hepatocytes > 0 && dt > 0 && killRate > 0 {
		survival := math.Exp(-dt * killRate)
		var survivors int64
		for i := int64(0); i < inf.hepatocytes; i++ {
			if rng.Uniform() < survival {
				survivors++
			}
		}
		inf.hepatocytes = survivors
	}
	if inf.phase == domain.PhaseNoAsexualCycle && inf.duration >= inf.incubationPeriod {
		inf.releaseMerozoites()
	}
}

// releaseMerozoites ends the liver stage, seeding the first variant slots.
func (inf *Infection) releaseMerozoites() {
	perSlot := int64(float64(inf.hepatocytes) * inf.params.MerozoitesPerHepatocyte / releaseSlots)
	for i := 0; i < releaseSlots; i++ {
		inf.irbc[i] = perSlot
	}
	inf.hepatocytes = 0
	inf.cycleTimer = asexualCycleDays
	inf.phase = domain.PhaseHepatocyteRelease
}

func (inf *Infection) updateAsexual(rng random.Source, dt float64) error {
	switch inf.phase {
	case domain.PhaseHepatocyteRelease:
		inf.phase = domain.PhaseAsexualCycle
	case domain.PhaseAsexualCycle:
		inf.cycleTimer -= dt
		if inf.cycleTimer <= 0 {
			return inf.endCycle(rng)
		}
	}
	return nil
}

// endCycle runs schizont rupture: merozoite survival, MSP stimulation,
// gametocyte cycling, antigenic switching and RBC destruction.
func (inf *Infection) endCycle(rng random.Source) error {
	p := inf.params
	availability := inf.sus.RBCAvailability()
	limiting := math.Exp(-availability / p.MerozoiteLimitingRBCThreshold)
	survival := merozoiteSurvival(availability, p.MerozoiteLimitingRBCThreshold, p.MSP1MerozoiteKillFraction, inf.mspAntibody.Concentration())

	total := inf.TotalIRBC()
	inf.mspAntibody.IncreaseAntigenCount(total)

	gamRate := p.GametocyteProductionRate(inf.cycleCount)
	inf.cycleGametocytes(total, gamRate)

	next, err := switchAntigens(p.ParasiteSwitchType, rng, inf.irbc, p.AntigenSwitchRate, survival, p.MerozoitesPerSchizont, gamRate)
	if err != nil {
		return err
	}
	inf.irbc = next

	destruction := math.Max(1, p.RBCDestructionMultiplier*limiting)
	inf.sus.RemoveRBCs(int64(float64(total)*destruction) + inf.maleGam[0] + inf.femaleGam[0])

	inf.cycleTimer = asexualCycleDays
	inf.cycleCount++
	return nil
}

// merozoiteSurvival is the fraction of released merozoites that invade a new
// RBC: (1 - kill*msp) * (1 - exp(-availability/threshold)). Survival falls to
// zero as RBC availability vanishes and approaches the MSP-limited ceiling when
// RBCs are plentiful.
func merozoiteSurvival(availability, threshold, kill, msp float64) float64 {
	limiting := math.Exp(-availability / threshold)
	return math.Max(0, (1-kill*msp)*(1-limiting))
}

// cycleGametocytes matures every stage by one step and commits a fraction of
// the rupturing asexual population to new stage-0 gametocytes. Stages are
// processed from the oldest down so no population moves twice.
func (inf *Infection) cycleGametocytes(totalIRBC int64, gamRate float64) {
	surv := inf.params.GametocyteStageSurvivalRate
	inf.maleGam[mature] += roundCount(float64(inf.maleGam[mature-1]) * surv)
	inf.femaleGam[mature] += roundCount(float64(inf.femaleGam[mature-1]) * surv)
	for j := mature - 1; j >= 1; j-- {
		inf.maleGam[j] = roundCount(float64(inf.maleGam[j-1]) * surv)
		inf.femaleGam[j] = roundCount(float64(inf.femaleGam[j-1]) * surv)
	}
	committed := int64(float64(totalIRBC) * gamRate)
	male := int64(float64(committed) * inf.params.BaseGametocyteFractionMale)
	inf.maleGam[0] = male
	inf.femaleGam[0] = committed - male
}

// stimulateImmunity reports every occupied variant slot to its major and
// minor PfEMP1 antibodies.
func (inf *Infection) stimulateImmunity() {
	for i, n := range inf.irbc {
		if n > 0 {
			inf.majorAntibodies[i].IncreaseAntigenCount(n)
			inf.minorAntibodies[i].IncreaseAntigenCount(n)
		}
	}
}

// checkStatus accounts measured duration and raises Cleared once nothing of
// the infection remains.
func (inf *Infection) checkStatus(dt float64) {
	irbc := inf.TotalIRBC()
	if float64(irbc)*inf.sus.InvMicrolitersBlood() > inf.params.MinimumDetectableDensity {
		inf.measuredDuration += dt
	}
	if irbc+inf.hepatocytes+inf.TotalGametocytes() < 1 {
		inf.stateChange = domain.StateChangeCleared
	}
}

func roundCount(x float64) int64 {
	if x <= 0 {
		return 0
	}
	return int64(x + 0.5)
}
