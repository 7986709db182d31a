package core

import "falciparum/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in invariant
// checks. Each of them blocks the step on violation.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewIRBCNonNegativeRule())
	engine.Register(NewAntibodyBoundsRule())
	engine.Register(NewRBCBoundsRule())
	return engine
}
