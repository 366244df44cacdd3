package rules

import (
	"strconv"
	"strings"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/sshconfig"
)

// Supplemental hardening rules beyond the core three. Each follows the same
// contract: pure evaluation against the directive map, one verdict out.

// EmptyPasswordsRule checks that accounts with empty passwords cannot log
// in. Modern sshd defaults to no, so an unset directive is informational.
type EmptyPasswordsRule struct{}

func (EmptyPasswordsRule) ID() string { return "PermitEmptyPasswords" }

func (r EmptyPasswordsRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value("PermitEmptyPasswords")
	if !present {
		return Verdict{
			RuleID:  r.ID(),
			Status:  StatusInfo,
			Message: "PermitEmptyPasswords is not set; sshd defaults to no",
		}
	}
	if strings.EqualFold(value, "no") {
		return Verdict{
			RuleID:   r.ID(),
			Status:   StatusPass,
			Message:  "empty passwords are rejected",
			Observed: value,
		}
	}
	return Verdict{
		RuleID:   r.ID(),
		Status:   StatusFail,
		Message:  "accounts with empty passwords may log in",
		Observed: value,
	}
}

// X11ForwardingRule checks that X11 forwarding is disabled; a forwarded X11
// display widens the attack surface of the client.
type X11ForwardingRule struct{}

func (X11ForwardingRule) ID() string { return "X11Forwarding" }

func (r X11ForwardingRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value("X11Forwarding")
	if !present || strings.EqualFold(value, "no") {
		return Verdict{
			RuleID:   r.ID(),
			Status:   StatusPass,
			Message:  "X11 forwarding is disabled",
			Observed: value,
		}
	}
	return Verdict{
		RuleID:   r.ID(),
		Status:   StatusWarn,
		Message:  "X11 forwarding is enabled; disable it unless required",
		Observed: value,
	}
}

// ProtocolRule checks for legacy SSH protocol 1. The directive is gone from
// modern sshd, so absence passes; any configuration still offering protocol
// 1 fails outright.
type ProtocolRule struct{}

func (ProtocolRule) ID() string { return "Protocol" }

func (r ProtocolRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value("Protocol")
	if !present {
		return Verdict{
			RuleID:  r.ID(),
			Status:  StatusPass,
			Message: "Protocol is not set; modern sshd speaks protocol 2 only",
		}
	}
	for _, v := range strings.Split(value, ",") {
		if strings.TrimSpace(v) == "1" {
			return Verdict{
				RuleID:   r.ID(),
				Status:   StatusFail,
				Message:  "legacy SSH protocol 1 is enabled",
				Observed: value,
			}
		}
	}
	return Verdict{
		RuleID:   r.ID(),
		Status:   StatusPass,
		Message:  "only SSH protocol 2 is enabled",
		Observed: value,
	}
}

// MaxAuthTriesRule checks that authentication attempts per connection are
// bounded to slow down brute forcing.
type MaxAuthTriesRule struct{}

func (MaxAuthTriesRule) ID() string { return "MaxAuthTries" }

func (r MaxAuthTriesRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value("MaxAuthTries")
	if !present {
		return Verdict{
			RuleID:  r.ID(),
			Status:  StatusInfo,
			Message: "MaxAuthTries is not set; sshd defaults to 6",
		}
	}
	tries, err := strconv.Atoi(value)
	if err != nil || tries < 1 {
		return Verdict{
			RuleID:   r.ID(),
			Status:   StatusWarn,
			Message:  "MaxAuthTries value is not a positive integer",
			Observed: value,
		}
	}
	if tries > 6 {
		return Verdict{
			RuleID:   r.ID(),
			Status:   StatusWarn,
			Message:  "MaxAuthTries is higher than the sshd default of 6",
			Observed: value,
		}
	}
	return Verdict{
		RuleID:   r.ID(),
		Status:   StatusPass,
		Message:  "authentication attempts are bounded",
		Observed: value,
	}
}
