// Package rules defines the hardening rule catalog evaluated against a
// parsed sshd configuration.
//
// Each rule is a pure, self-contained unit producing one Verdict. Rules are
// collected into an immutable, ordered Set constructed explicitly by the
// caller; there is no package-global registry, so independent audits can run
// concurrently without locking.
package rules

import "github.com/dkrizhanovskyi/ssh-config-auditor/internal/sshconfig"

// Status is the outcome class of a single rule evaluation.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"
	StatusInfo Status = "INFO"
)

// severity orders statuses for aggregate reporting; higher wins.
var severity = map[Status]int{
	StatusPass: 0,
	StatusInfo: 1,
	StatusWarn: 2,
	StatusFail: 3,
}

// Worse returns the more severe of two statuses (FAIL > WARN > INFO > PASS).
func Worse(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// Verdict is the result of evaluating one rule.
type Verdict struct {
	RuleID   string `json:"rule_id"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Observed string `json:"observed,omitempty"`
}

// Rule evaluates one hardening policy against a directive map. Evaluate
// must not depend on other rules or on any connection state.
type Rule interface {
	// ID returns the stable identifier used in reports.
	ID() string

	// Evaluate inspects the configuration and produces a verdict.
	Evaluate(cfg *sshconfig.Config) Verdict
}

// Set is an ordered, read-only collection of rules. Evaluation order is the
// registration order and is preserved in reports.
type Set struct {
	rules []Rule
}

// NewSet builds a Set from the given rules, keeping their order.
func NewSet(rules ...Rule) *Set {
	s := &Set{rules: make([]Rule, len(rules))}
	copy(s.rules, rules)
	return s
}

// Rules returns the rules in registration order. The returned slice is a
// copy; mutating it does not affect the Set.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of registered rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// DefaultSet returns the built-in hardening rules in their fixed
// registration order.
func DefaultSet() *Set {
	return NewSet(
		PasswordAuthRule{},
		RootLoginRule{},
		PortRule{},
		EmptyPasswordsRule{},
		X11ForwardingRule{},
		ProtocolRule{},
		MaxAuthTriesRule{},
	)
}
