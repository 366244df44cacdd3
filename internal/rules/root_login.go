package rules

import (
	"strings"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/sshconfig"
)

const directiveRootLogin = "PermitRootLogin"

// RootLoginRule checks that direct root logins are disabled.
// "prohibit-password" and its older spelling "without-password" still allow
// root key logins, so they warn rather than pass.
type RootLoginRule struct{}

func (RootLoginRule) ID() string { return directiveRootLogin }

func (RootLoginRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value(directiveRootLogin)
	if !present {
		return Verdict{
			RuleID:  directiveRootLogin,
			Status:  StatusFail,
			Message: "PermitRootLogin is not set; root login may be permitted by default",
		}
	}
	switch strings.ToLower(value) {
	case "no":
		return Verdict{
			RuleID:   directiveRootLogin,
			Status:   StatusPass,
			Message:  "root login is disabled",
			Observed: value,
		}
	case "prohibit-password", "without-password":
		return Verdict{
			RuleID:   directiveRootLogin,
			Status:   StatusWarn,
			Message:  "root login is restricted to keys but not disabled",
			Observed: value,
		}
	}
	return Verdict{
		RuleID:   directiveRootLogin,
		Status:   StatusFail,
		Message:  "root login is permitted; set PermitRootLogin no",
		Observed: value,
	}
}
