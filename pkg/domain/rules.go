package domain

import "context"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a step may proceed.
const (
	// SeverityBlock aborts the run.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning and continues.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	HostID   string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "step blocked by rule " + v.Rule + ": " + v.Message
		}
	}
	return "step blocked by rules"
}

// Is matches ErrInvariant: a blocking rule is an invariant the model broke.
func (e RuleViolationError) Is(target error) bool { return target == ErrInvariant }

// Rule inspects host snapshots after a step.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, hosts []HostSnapshot) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Len returns the number of registered rules.
func (e *RulesEngine) Len() int { return len(e.rules) }

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, hosts []HostSnapshot) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, hosts)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
