package host

import (
	"falciparum/internal/random"
	"falciparum/pkg/domain"
)

// measure emulates counting a sample: the observed count is Poisson around
// density*sensitivity and is scaled back to a density.
func measure(rng random.Source, density, sensitivity float64) float64 {
	if sensitivity <= 0 || density <= 0 {
		return 0
	}
	return float64(rng.Poisson(density*sensitivity)) / sensitivity
}

// BloodSmearParasites reads asexual parasite density from a thick smear and
// reports whether it is above the detection threshold.
func (h *Host) BloodSmearParasites(rng random.Source) (float64, bool) {
	d := measure(rng, h.immune.ParasiteDensity(), h.params.ParasiteSmearSensitivity)
	h.diagnostics.SmearParasiteDensity = d
	return d, h.detected(d)
}

// BloodSmearGametocytes reads mature gametocyte density from a smear.
func (h *Host) BloodSmearGametocytes(rng random.Source) (float64, bool) {
	male, female := h.MatureGametocytes()
	d := measure(rng, (male+female)*h.immune.InvMicrolitersBlood(), h.params.GametocyteSmearSensitivity)
	h.diagnostics.SmearGametocyteDensity = d
	return d, h.detected(d)
}

// NovelDiagnostic reads asexual density with the more sensitive new test.
func (h *Host) NovelDiagnostic(rng random.Source) (float64, bool) {
	d := measure(rng, h.immune.ParasiteDensity(), h.params.NewDiagnosticSensitivity)
	h.diagnostics.NovelParasiteDensity = d
	return d, h.detected(d)
}

func (h *Host) detected(density float64) bool {
	return density > h.params.DetectionThreshold
}

// Diagnostics returns the last measured values of every test.
func (h *Host) Diagnostics() domain.DiagnosticReadings { return h.diagnostics }
