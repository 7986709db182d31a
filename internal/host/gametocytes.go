package host

import (
	"cmp"
	"math"
	"slices"

	"falciparum/pkg/domain"
)

// gametocytePool is the mature gametocyte reservoir of one strain.
type gametocytePool struct {
	male   float64
	female float64
}

// collectGametocytes decays the reservoir over dt and moves each infection's
// mature stage into it. Infections are drained so nothing is counted twice.
func (h *Host) collectGametocytes(dt float64) {
	rate := math.Ln2 / h.params.MatureGametocyteHalfLife
	if h.drugs != nil {
		rate += h.drugs.KillRates().GametocyteMature
	}
	survival := math.Exp(-rate * dt)
	for strain, pool := range h.reservoir {
		pool.male *= survival
		pool.female *= survival
		if pool.male+pool.female < 1 {
			delete(h.reservoir, strain)
		}
	}
	for _, inf := range h.infections {
		male, female := inf.ResetMatureGametocytes()
		if male == 0 && female == 0 {
			continue
		}
		pool, ok := h.reservoir[inf.Strain()]
		if !ok {
			pool = &gametocytePool{}
			h.reservoir[inf.Strain()] = pool
		}
		pool.male += float64(male)
		pool.female += float64(female)
	}
}

// MatureGametocytes returns the reservoir totals over all strains.
func (h *Host) MatureGametocytes() (male, female float64) {
	for _, pool := range h.reservoir {
		male += pool.male
		female += pool.female
	}
	return male, female
}

// GametocytesByStrain returns the reservoir per strain ordered by clade and
// genome.
func (h *Host) GametocytesByStrain() []domain.StrainGametocytes {
	out := make([]domain.StrainGametocytes, 0, len(h.reservoir))
	for strain, pool := range h.reservoir {
		out = append(out, domain.StrainGametocytes{Strain: strain, Male: pool.male, Female: pool.female})
	}
	slices.SortFunc(out, func(a, b domain.StrainGametocytes) int {
		if c := cmp.Compare(a.Strain.Clade, b.Strain.Clade); c != 0 {
			return c
		}
		return cmp.Compare(a.Strain.Genome, b.Strain.Genome)
	})
	return out
}

// computeInfectiousness is the probability that a mosquito feeding now is
// infected. It needs both sexes; fever inactivates gametocytes in the blood
// meal.
func (h *Host) computeInfectiousness() float64 {
	male, female := h.MatureGametocytes()
	if male <= 0 || female <= 0 {
		return 0
	}
	p := h.params
	density := female * h.immune.InvMicrolitersBlood()
	infect := 1 - math.Exp(-density*p.BaseGametocyteMosquitoSurvivalRate)
	inactivation := math.Min(1, p.CytokineGametocyteInactivation*h.immune.Fever())
	return infect * (1 - inactivation)
}
