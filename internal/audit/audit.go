// Package audit orchestrates one configuration audit: open a transport
// session, fetch the sshd configuration, parse it, evaluate the rule set
// and assemble the report. The session is released on every exit path.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/sshconfig"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/transport"
)

// KindParse marks input that could not be tokenized at all.
const KindParse transport.Kind = "parse"

// ConnectionRuleID is the synthetic verdict id used when a report records a
// connection failure instead of rule results.
const ConnectionRuleID = "Connection"

// Error is a terminal audit failure with a kind the caller can branch on.
type Error struct {
	Kind transport.Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("audit failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Report is the outcome of one audit invocation. Verdicts appear in rule
// registration order; Status is the worst verdict across all rules.
type Report struct {
	Host        string          `json:"host"`
	Port        int             `json:"port"`
	User        string          `json:"user"`
	GeneratedAt time.Time       `json:"generated_at"`
	Verdicts    []rules.Verdict `json:"verdicts"`
	Status      rules.Status    `json:"status"`
}

// Session is the slice of transport behavior the orchestrator needs.
// *transport.Session satisfies it; tests substitute fakes.
type Session interface {
	FetchConfig(ctx context.Context) (string, error)
	Close() error
}

// OpenFunc acquires a session for a descriptor.
type OpenFunc func(ctx context.Context, d transport.Descriptor) (Session, error)

// Auditor runs audits against a fixed rule set. It holds no per-invocation
// state, so a single Auditor is safe to use from concurrent call sites.
type Auditor struct {
	ruleSet *rules.Set
	open    OpenFunc
	log     *zap.SugaredLogger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithOpenFunc overrides session acquisition, mainly for tests.
func WithOpenFunc(open OpenFunc) Option {
	return func(a *Auditor) { a.open = open }
}

// WithLogger attaches a logger; audits are silent without one.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *Auditor) { a.log = log }
}

// New builds an Auditor over the given rule set. The set must not be
// mutated afterwards (rules.Set is copy-on-construction, so sharing the
// default set across auditors is fine).
func New(ruleSet *rules.Set, opts ...Option) *Auditor {
	a := &Auditor{
		ruleSet: ruleSet,
		open: func(ctx context.Context, d transport.Descriptor) (Session, error) {
			return transport.Open(ctx, d)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run performs one full audit. A connection acquisition failure still
// produces a report (single FAIL verdict, nil error); fetch and parse
// failures abort with a kinded *Error.
func (a *Auditor) Run(ctx context.Context, d transport.Descriptor) (*Report, error) {
	report := a.newReport(d)

	sess, err := a.open(ctx, d)
	if err != nil {
		a.logf("connection to %s failed: %v", d.Host, err)
		report.Verdicts = []rules.Verdict{{
			RuleID:  ConnectionRuleID,
			Status:  rules.StatusFail,
			Message: fmt.Sprintf("could not connect (%s): %v", failureKind(err), err),
		}}
		report.Status = rules.StatusFail
		return report, nil
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logf("closing session to %s: %v", d.Host, cerr)
		}
	}()

	raw, err := sess.FetchConfig(ctx)
	if err != nil {
		return nil, &Error{Kind: failureKind(err), Err: err}
	}

	cfg, err := sshconfig.Parse(raw)
	if err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}

	report.Verdicts = a.evaluate(cfg)
	report.Status = overallStatus(report.Verdicts)
	a.logf("audit of %s finished: %s", d.Host, report.Status)
	return report, nil
}

// evaluate runs every registered rule in order. A panicking rule is
// downgraded to a WARN verdict and does not stop the remaining rules.
func (a *Auditor) evaluate(cfg *sshconfig.Config) []rules.Verdict {
	verdicts := make([]rules.Verdict, 0, a.ruleSet.Len())
	for _, rule := range a.ruleSet.Rules() {
		verdicts = append(verdicts, a.evaluateOne(rule, cfg))
	}
	return verdicts
}

func (a *Auditor) evaluateOne(rule rules.Rule, cfg *sshconfig.Config) (v rules.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			a.logf("rule %s panicked: %v", rule.ID(), r)
			v = rules.Verdict{
				RuleID:  rule.ID(),
				Status:  rules.StatusWarn,
				Message: fmt.Sprintf("rule evaluation failed: %v", r),
			}
		}
	}()
	return rule.Evaluate(cfg)
}

func (a *Auditor) newReport(d transport.Descriptor) *Report {
	port := d.Port
	if port == 0 {
		port = transport.DefaultPort
	}
	user := d.User
	if user == "" {
		user = transport.DefaultUser
	}
	return &Report{
		Host:        d.Host,
		Port:        port,
		User:        user,
		GeneratedAt: time.Now().UTC(),
	}
}

func (a *Auditor) logf(format string, args ...interface{}) {
	if a.log != nil {
		a.log.Infof(format, args...)
	}
}

func overallStatus(verdicts []rules.Verdict) rules.Status {
	status := rules.StatusPass
	for _, v := range verdicts {
		status = rules.Worse(status, v.Status)
	}
	return status
}

func failureKind(err error) transport.Kind {
	if kind := transport.KindOf(err); kind != "" {
		return kind
	}
	return transport.KindConnection
}
