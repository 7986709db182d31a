package core

import (
	"context"
	"fmt"

	"falciparum/pkg/domain"
)

// antibodyTolerance absorbs floating point drift in the concentration clamp.
const antibodyTolerance = 1e-9

// NewAntibodyBoundsRule returns a rule blocking antibody capacities outside
// [0, 1], negative concentrations and, for every type but CSP, concentrations
// above capacity. CSP may exceed capacity after a boost.
func NewAntibodyBoundsRule() domain.Rule {
	return antibodyBoundsRule{}
}

type antibodyBoundsRule struct{}

func (antibodyBoundsRule) Name() string { return "antibody_bounds" }

func (r antibodyBoundsRule) Evaluate(_ context.Context, hosts []domain.HostSnapshot) (domain.Result, error) {
	res := domain.Result{}
	for _, h := range hosts {
		for _, ab := range h.Immune.Antibodies {
			var msg string
			switch {
			case ab.Capacity < 0 || ab.Capacity > 1+antibodyTolerance:
				msg = fmt.Sprintf("capacity %g outside [0, 1]", ab.Capacity)
			case ab.Concentration < 0:
				msg = fmt.Sprintf("negative concentration %g", ab.Concentration)
			case ab.Type != domain.AntibodyCSP && ab.Concentration > ab.Capacity+antibodyTolerance:
				msg = fmt.Sprintf("concentration %g above capacity %g", ab.Concentration, ab.Capacity)
			default:
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  ab.Key().String() + ": " + msg,
				HostID:   h.ID,
			})
		}
	}
	return res, nil
}
