package host

import (
	"math"

	"falciparum/internal/infection"
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// cspVariant is the single CSP antibody variant tracked per host.
const cspVariant = 0

// Challenge exposes the host to an infectious bite delivering sporozoites of
// strain. The CSP antibody sees the sporozoites; those escaping CSP killing
// and the base liver survival seed a new infection. It reports whether an
// infection was created.
func (h *Host) Challenge(rng random.Source, strain domain.StrainIdentity, sporozoites int64) (bool, error) {
	if h.dead || sporozoites <= 0 {
		return false, nil
	}
	csp, err := h.immune.RegisterAntibody(domain.AntibodyCSP, cspVariant)
	if err != nil {
		return false, err
	}
	csp.IncreaseAntigenCount(sporozoites)

	survival := h.params.BaseSporozoiteSurvivalFraction * (1 - h.cspKilling(csp.Concentration()))
	hepatocytes := int64(math.Round(float64(sporozoites) * survival))
	return h.ChallengeWithHepatocytes(rng, strain, hepatocytes)
}

// ChallengeWithHepatocytes starts an infection with an explicit number of
// infected hepatocytes, bypassing sporozoite survival. No infection is
// created once the host carries the maximum number of infections.
func (h *Host) ChallengeWithHepatocytes(rng random.Source, strain domain.StrainIdentity, hepatocytes int64) (bool, error) {
	if h.dead || hepatocytes < 1 {
		return false, nil
	}
	if len(h.infections) >= h.params.MaxIndividualInfections {
		h.logger.Debug("challenge ignored at infection limit", "host_id", h.id, "infections", len(h.infections))
		return false, nil
	}
	inf, err := infection.New(h.params, h.immune, rng, infection.Settings{
		ID:          h.nextInfectionID,
		Strain:      strain,
		Hepatocytes: hepatocytes,
		Logger:      h.logger,
	})
	if err != nil {
		return false, err
	}
	h.nextInfectionID++
	h.infections = append(h.infections, inf)
	h.logger.Debug("infection started", "host_id", h.id, "infection_id", inf.ID(), "strain", strain.String(), "hepatocytes", hepatocytes)
	return true, nil
}

// cspKilling is the fraction of sporozoites neutralised at a CSP antibody
// concentration: a Hill curve that is 0 at 0 and 0.5 at the killing threshold.
func (h *Host) cspKilling(concentration float64) float64 {
	if concentration <= 0 {
		return 0
	}
	p := h.params
	x := math.Pow(concentration/p.AntibodyCSPKillingThreshold, p.AntibodyCSPKillingInvWidth)
	return x / (1 + x)
}

// BoostAntibody raises the concentration of an antibody variant to at least
// concentration, as after vaccination. CSP boosts may exceed capacity and
// then decay back.
func (h *Host) BoostAntibody(t domain.AntibodyType, variant int, concentration float64) error {
	v, err := h.immune.RegisterAntibody(t, variant)
	if err != nil {
		return err
	}
	v.Boost(concentration)
	return nil
}

// UpdateCSPByRate grows CSP capacity at an externally tracked exposure rate.
func (h *Host) UpdateCSPByRate(rate, dt float64) error {
	csp, err := h.immune.RegisterAntibody(domain.AntibodyCSP, cspVariant)
	if err != nil {
		return err
	}
	csp.UpdateCapacityByRate(dt, rate)
	return nil
}
