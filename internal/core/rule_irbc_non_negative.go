package core

import (
	"context"
	"fmt"

	"falciparum/pkg/domain"
)

// NewIRBCNonNegativeRule returns a rule blocking any negative parasite count:
// hepatocytes, infected red blood cells or gametocytes of any stage.
func NewIRBCNonNegativeRule() domain.Rule {
	return irbcNonNegativeRule{}
}

type irbcNonNegativeRule struct{}

func (irbcNonNegativeRule) Name() string { return "irbc_non_negative" }

func (r irbcNonNegativeRule) Evaluate(_ context.Context, hosts []domain.HostSnapshot) (domain.Result, error) {
	res := domain.Result{}
	for _, h := range hosts {
		for _, inf := range h.Infections {
			if msg := negativeCount(inf); msg != "" {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("infection %d: %s", inf.ID, msg),
					HostID:   h.ID,
				})
			}
		}
	}
	return res, nil
}

func negativeCount(inf domain.InfectionSnapshot) string {
	if inf.Hepatocytes < 0 {
		return fmt.Sprintf("hepatocytes %d", inf.Hepatocytes)
	}
	for i, n := range inf.IRBC {
		if n < 0 {
			return fmt.Sprintf("irbc[%d] = %d", i, n)
		}
	}
	for i := range inf.MaleGametocytes {
		if inf.MaleGametocytes[i] < 0 || inf.FemaleGametocytes[i] < 0 {
			return fmt.Sprintf("gametocyte stage %d = %d/%d", i, inf.MaleGametocytes[i], inf.FemaleGametocytes[i])
		}
	}
	return ""
}
