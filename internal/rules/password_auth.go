package rules

import (
	"strings"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/sshconfig"
)

const directivePasswordAuth = "PasswordAuthentication"

// PasswordAuthRule checks that password authentication is explicitly
// disabled. Many distributions compile the default to "yes", so an absent
// directive is treated as insecure.
type PasswordAuthRule struct{}

func (PasswordAuthRule) ID() string { return directivePasswordAuth }

func (PasswordAuthRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value(directivePasswordAuth)
	if !present {
		return Verdict{
			RuleID:  directivePasswordAuth,
			Status:  StatusFail,
			Message: "PasswordAuthentication is not set; the default is yes on many systems",
		}
	}
	if strings.EqualFold(value, "no") {
		return Verdict{
			RuleID:   directivePasswordAuth,
			Status:   StatusPass,
			Message:  "password authentication is disabled",
			Observed: value,
		}
	}
	return Verdict{
		RuleID:   directivePasswordAuth,
		Status:   StatusFail,
		Message:  "password authentication is enabled; use key-based authentication",
		Observed: value,
	}
}
