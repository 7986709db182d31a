package core

import (
	"context"
	"fmt"

	"falciparum/pkg/domain"
)

// NewHyperparasitaemiaRule returns an advisory rule that warns when a living
// host's parasite density exceeds threshold parasites per microliter.
func NewHyperparasitaemiaRule(threshold float64) domain.Rule {
	return hyperparasitaemiaRule{threshold: threshold}
}

type hyperparasitaemiaRule struct {
	threshold float64
}

func (hyperparasitaemiaRule) Name() string { return "hyperparasitaemia" }

func (r hyperparasitaemiaRule) Evaluate(_ context.Context, hosts []domain.HostSnapshot) (domain.Result, error) {
	res := domain.Result{}
	for _, h := range hosts {
		if h.Dead || h.Immune.ParasiteDensity <= r.threshold {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("parasite density %.0f/uL above %.0f/uL", h.Immune.ParasiteDensity, r.threshold),
			HostID:   h.ID,
		})
	}
	return res, nil
}
