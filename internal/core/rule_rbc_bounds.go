package core

import (
	"context"
	"fmt"

	"falciparum/pkg/domain"
)

// NewRBCBoundsRule returns a rule blocking red blood cell counts outside
// [0, capacity] on living hosts.
func NewRBCBoundsRule() domain.Rule {
	return rbcBoundsRule{}
}

type rbcBoundsRule struct{}

func (rbcBoundsRule) Name() string { return "rbc_bounds" }

func (r rbcBoundsRule) Evaluate(_ context.Context, hosts []domain.HostSnapshot) (domain.Result, error) {
	res := domain.Result{}
	for _, h := range hosts {
		if h.Dead {
			continue
		}
		im := h.Immune
		if im.RBCCount < 0 || im.RBCCount > im.RBCCapacity {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("rbc count %d outside [0, %d]", im.RBCCount, im.RBCCapacity),
				HostID:   h.ID,
			})
		}
	}
	return res, nil
}
