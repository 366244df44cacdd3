package rules

import (
	"strconv"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/sshconfig"
)

const directivePort = "Port"

// PortRule checks that sshd does not listen on the default port 22.
// Moving the port is no substitute for real hardening, but it cuts
// opportunistic scanner noise substantially.
type PortRule struct{}

func (PortRule) ID() string { return directivePort }

func (PortRule) Evaluate(cfg *sshconfig.Config) Verdict {
	value, present := cfg.Value(directivePort)
	if !present {
		return Verdict{
			RuleID:  directivePort,
			Status:  StatusFail,
			Message: "Port is not set; sshd listens on the default port 22",
		}
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return Verdict{
			RuleID:   directivePort,
			Status:   StatusFail,
			Message:  "Port value is not a valid TCP port",
			Observed: value,
		}
	}
	if port == 22 {
		return Verdict{
			RuleID:   directivePort,
			Status:   StatusFail,
			Message:  "sshd listens on the default port 22",
			Observed: value,
		}
	}
	return Verdict{
		RuleID:   directivePort,
		Status:   StatusPass,
		Message:  "sshd listens on a non-default port",
		Observed: value,
	}
}
